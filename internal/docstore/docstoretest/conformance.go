// Package docstoretest holds the behaviour every docstore.Collection backend
// must share.
package docstoretest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/geocoder89/userhub/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a backend. newColl must return an empty collection each call.
func Run(t *testing.T, newColl func(t *testing.T) docstore.Collection) {
	t.Run("insert_find_roundtrip", func(t *testing.T) {
		ctx := context.Background()
		c := newColl(t)

		ts := time.Date(2026, 1, 2, 3, 4, 5, 6000000, time.UTC)

		require.NoError(t, c.InsertOne(ctx, docstore.Document{
			docstore.IDField: "a",
			"name":           "Ada",
			"is_admin":       true,
			"created_at":     ts,
			"updated_at":     nil,
		}))

		doc, err := c.FindByID(ctx, "a")
		require.NoError(t, err)

		name, err := doc.String("name")
		require.NoError(t, err)
		assert.Equal(t, "Ada", name)

		admin, err := doc.Bool("is_admin")
		require.NoError(t, err)
		assert.True(t, admin)

		created, err := doc.Time("created_at")
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.True(t, created.Equal(ts), "created_at %v != %v", created, ts)

		updated, err := doc.Time("updated_at")
		require.NoError(t, err)
		assert.Nil(t, updated)

		_, err = c.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("unique_index", func(t *testing.T) {
		ctx := context.Background()
		c := newColl(t)
		require.NoError(t, c.EnsureUniqueIndex(ctx, "email"))

		require.NoError(t, c.InsertOne(ctx, docstore.Document{docstore.IDField: "a", "email": "x@example.com"}))
		require.NoError(t, c.InsertOne(ctx, docstore.Document{docstore.IDField: "b", "email": "y@example.com"}))

		err := c.InsertOne(ctx, docstore.Document{docstore.IDField: "c", "email": "x@example.com"})
		assert.ErrorIs(t, err, docstore.ErrDuplicateKey)

		_, err = c.UpdateFields(ctx, "b", docstore.Document{"email": "x@example.com"})
		assert.ErrorIs(t, err, docstore.ErrDuplicateKey)
	})

	t.Run("find_order_skip_limit_filter", func(t *testing.T) {
		ctx := context.Background()
		c := newColl(t)

		for i := 0; i < 6; i++ {
			require.NoError(t, c.InsertOne(ctx, docstore.Document{
				docstore.IDField: fmt.Sprintf("id-%d", i),
				"is_active":      i%2 == 0,
			}))
		}

		docs, err := c.Find(ctx, docstore.Filter{}, 2, 3)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "id-2", docs[0].ID())
		assert.Equal(t, "id-4", docs[2].ID())

		active, err := c.Find(ctx, docstore.Filter{"is_active": true}, 0, 10)
		require.NoError(t, err)
		assert.Len(t, active, 3)

		n, err := c.Count(ctx, docstore.Filter{})
		require.NoError(t, err)
		assert.EqualValues(t, 6, n)
	})

	t.Run("update_and_delete", func(t *testing.T) {
		ctx := context.Background()
		c := newColl(t)

		require.NoError(t, c.InsertOne(ctx, docstore.Document{docstore.IDField: "a", "name": "Ada", "is_active": true}))

		doc, err := c.UpdateFields(ctx, "a", docstore.Document{"name": "Grace"})
		require.NoError(t, err)
		assert.Equal(t, "a", doc.ID())
		assert.Equal(t, "Grace", doc["name"])
		assert.Equal(t, true, doc["is_active"])

		_, err = c.UpdateFields(ctx, "missing", docstore.Document{"name": "x"})
		assert.ErrorIs(t, err, docstore.ErrNotFound)

		require.NoError(t, c.DeleteByID(ctx, "a"))
		assert.ErrorIs(t, c.DeleteByID(ctx, "a"), docstore.ErrNotFound)

		n, err := c.Count(ctx, docstore.Filter{})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
