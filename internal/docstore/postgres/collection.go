package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/userhub/internal/docstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Collection stores documents as JSONB rows in a table named after the
// collection. seq preserves insertion order for unsorted reads.
type Collection struct {
	pool  *pgxpool.Pool
	name  string
	table string
}

func NewCollection(pool *pgxpool.Pool, name string) *Collection {
	return &Collection{
		pool:  pool,
		name:  name,
		table: pgx.Identifier{name}.Sanitize(),
	}
}

// Migrate creates the backing table when it does not exist yet.
func (c *Collection) Migrate(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+c.table+` (
		id  TEXT PRIMARY KEY,
		seq BIGSERIAL,
		doc JSONB NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("postgres: migrate %s: %w", c.name, err)
	}

	return nil
}

func (c *Collection) InsertOne(ctx context.Context, doc docstore.Document) error {
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("postgres: insert: missing %s", docstore.IDField)
	}

	_, err := c.pool.Exec(ctx,
		`INSERT INTO `+c.table+` (id, doc) VALUES ($1, $2::jsonb)`,
		id, map[string]any(doc),
	)
	if err != nil {
		return translate("insert", err)
	}

	return nil
}

func (c *Collection) FindByID(ctx context.Context, id string) (docstore.Document, error) {
	var doc map[string]any

	err := c.pool.QueryRow(ctx, `SELECT doc FROM `+c.table+` WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		return nil, translate("find by id", err)
	}

	return docstore.Document(doc), nil
}

func (c *Collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	var doc map[string]any

	err := c.pool.QueryRow(ctx,
		`SELECT doc FROM `+c.table+` WHERE doc @> $1::jsonb ORDER BY seq LIMIT 1`,
		containment(filter),
	).Scan(&doc)
	if err != nil {
		return nil, translate("find one", err)
	}

	return docstore.Document(doc), nil
}

func (c *Collection) Find(ctx context.Context, filter docstore.Filter, skip, limit int64) ([]docstore.Document, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := c.pool.Query(ctx,
		`SELECT doc FROM `+c.table+` WHERE doc @> $1::jsonb ORDER BY seq OFFSET $2 LIMIT $3`,
		containment(filter), skip, lim,
	)
	if err != nil {
		return nil, translate("find", err)
	}

	defer rows.Close()

	out := make([]docstore.Document, 0)

	for rows.Next() {
		var doc map[string]any

		if err := rows.Scan(&doc); err != nil {
			return nil, translate("find", err)
		}

		out = append(out, docstore.Document(doc))
	}

	if err := rows.Err(); err != nil {
		return nil, translate("find", err)
	}

	return out, nil
}

func (c *Collection) UpdateFields(ctx context.Context, id string, set docstore.Document) (docstore.Document, error) {
	fields := make(map[string]any, len(set))
	for k, v := range set {
		if k == docstore.IDField {
			continue
		}
		fields[k] = v
	}

	var doc map[string]any

	err := c.pool.QueryRow(ctx,
		`UPDATE `+c.table+` SET doc = doc || $2::jsonb WHERE id = $1 RETURNING doc`,
		id, fields,
	).Scan(&doc)
	if err != nil {
		return nil, translate("update", err)
	}

	return docstore.Document(doc), nil
}

func (c *Collection) DeleteByID(ctx context.Context, id string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM `+c.table+` WHERE id = $1`, id)
	if err != nil {
		return translate("delete", err)
	}

	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}

	return nil
}

func (c *Collection) Count(ctx context.Context, filter docstore.Filter) (int64, error) {
	var n int64

	err := c.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM `+c.table+` WHERE doc @> $1::jsonb`,
		containment(filter),
	).Scan(&n)
	if err != nil {
		return 0, translate("count", err)
	}

	return n, nil
}

func (c *Collection) EnsureUniqueIndex(ctx context.Context, field string) error {
	index := pgx.Identifier{c.name + "_" + field + "_key"}.Sanitize()
	literal := "'" + strings.ReplaceAll(field, "'", "''") + "'"

	_, err := c.pool.Exec(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS `+index+` ON `+c.table+` ((doc->>`+literal+`))`,
	)
	if err != nil {
		return translate("create index", err)
	}

	return nil
}

func (c *Collection) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// containment renders an equality filter as a JSONB containment operand.
func containment(f docstore.Filter) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func translate(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("postgres: %s: %w: %s", op, docstore.ErrDuplicateKey, pgErr.ConstraintName)
	}

	return fmt.Errorf("postgres: %s: %w", op, err)
}
