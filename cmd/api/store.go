package main

import (
	"context"
	"fmt"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/db"
	"github.com/geocoder89/userhub/internal/docstore"
	"github.com/geocoder89/userhub/internal/docstore/memory"
	"github.com/geocoder89/userhub/internal/docstore/mongo"
	"github.com/geocoder89/userhub/internal/docstore/postgres"
)

// openCollection connects the configured backend and returns the named
// collection plus a func releasing the connection.
func openCollection(ctx context.Context, cfg config.Config, name string) (docstore.Collection, func(context.Context), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		store, err := mongo.Open(ctx, cfg.MongoURL, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}

		closeFn := func(ctx context.Context) { _ = store.Close(ctx) }

		return store.Collection(name), closeFn, nil

	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, err
		}

		coll := postgres.NewCollection(pool, name)

		if err := coll.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}

		return coll, func(context.Context) { pool.Close() }, nil

	case config.StoreMemory:
		return memory.NewCollection(), func(context.Context) {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
