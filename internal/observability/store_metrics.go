package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/userhub/internal/docstore"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ObserveStore times one logical store operation. A not-found result is an
// answer, not a failure, so it is counted as ok.
func (p *Prom) ObserveStore(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "ok"

	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		status = "error"
		p.StoreErrorsTotal.WithLabelValues(op, classifyStoreErr(err)).Inc()
	}
	p.StoreOpDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

func classifyStoreErr(err error) string {
	if errors.Is(err, docstore.ErrDuplicateKey) {
		return "duplicate_key"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	if mongo.IsTimeout(err) {
		return "timeout"
	}
	if mongo.IsNetworkError(err) {
		return "connection"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}

// InstrumentCollection wraps every collection call in a span and the store
// metrics. p may be nil when metrics are not wanted.
func InstrumentCollection(next docstore.Collection, name string, p *Prom) docstore.Collection {
	return &instrumentedCollection{
		next:   next,
		name:   name,
		prom:   p,
		tracer: otel.Tracer("github.com/geocoder89/userhub/internal/docstore"),
	}
}

type instrumentedCollection struct {
	next   docstore.Collection
	name   string
	prom   *Prom
	tracer trace.Tracer
}

func (c *instrumentedCollection) do(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "docstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.collection.name", c.name)),
	)
	defer span.End()

	run := func() error { return fn(ctx) }

	var err error
	if c.prom != nil {
		err = c.prom.ObserveStore(op, run)
	} else {
		err = run()
	}

	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (c *instrumentedCollection) InsertOne(ctx context.Context, doc docstore.Document) error {
	return c.do(ctx, "insert_one", func(ctx context.Context) error {
		return c.next.InsertOne(ctx, doc)
	})
}

func (c *instrumentedCollection) FindByID(ctx context.Context, id string) (docstore.Document, error) {
	var out docstore.Document
	err := c.do(ctx, "find_by_id", func(ctx context.Context) error {
		var err error
		out, err = c.next.FindByID(ctx, id)
		return err
	})
	return out, err
}

func (c *instrumentedCollection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	var out docstore.Document
	err := c.do(ctx, "find_one", func(ctx context.Context) error {
		var err error
		out, err = c.next.FindOne(ctx, filter)
		return err
	})
	return out, err
}

func (c *instrumentedCollection) Find(ctx context.Context, filter docstore.Filter, skip, limit int64) ([]docstore.Document, error) {
	var out []docstore.Document
	err := c.do(ctx, "find", func(ctx context.Context) error {
		var err error
		out, err = c.next.Find(ctx, filter, skip, limit)
		return err
	})
	return out, err
}

func (c *instrumentedCollection) UpdateFields(ctx context.Context, id string, set docstore.Document) (docstore.Document, error) {
	var out docstore.Document
	err := c.do(ctx, "update_fields", func(ctx context.Context) error {
		var err error
		out, err = c.next.UpdateFields(ctx, id, set)
		return err
	})
	return out, err
}

func (c *instrumentedCollection) DeleteByID(ctx context.Context, id string) error {
	return c.do(ctx, "delete_by_id", func(ctx context.Context) error {
		return c.next.DeleteByID(ctx, id)
	})
}

func (c *instrumentedCollection) Count(ctx context.Context, filter docstore.Filter) (int64, error) {
	var n int64
	err := c.do(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = c.next.Count(ctx, filter)
		return err
	})
	return n, err
}

func (c *instrumentedCollection) EnsureUniqueIndex(ctx context.Context, field string) error {
	return c.do(ctx, "ensure_unique_index", func(ctx context.Context) error {
		return c.next.EnsureUniqueIndex(ctx, field)
	})
}

// Ping is not traced.
func (c *instrumentedCollection) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}
