// Package surrealdb implements [store.Store] on SurrealDB over WebSocket.
//
// The connection uses the gorilla/websocket transport and the surrealcbor
// codec, which round-trips time.Time and record ids without custom types.
// Records are keyed by integer record ids (pages:1, blocks:7) drawn from a
// per-table counter record, so ids follow the same increasing scheme as the
// other backends.
//
// Migrate defines a unique index on pages.slug; SurrealDB then rejects
// duplicate slugs itself.
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/store"
)

// Config holds connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Store implements store.Store on SurrealDB.
type Store struct {
	db *surrealdb.DB
}

var _ store.Store = (*Store)(nil)

// Open connects, signs in when credentials are set and selects the
// namespace and database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("connect to SurrealDB: %w", err)
	}
	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("authenticate: %w", err)
		}
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("use namespace/database: %w", err)
	}
	return &Store{db: db}, nil
}

const schema = `
DEFINE TABLE IF NOT EXISTS pages SCHEMALESS;
DEFINE TABLE IF NOT EXISTS blocks SCHEMALESS;
DEFINE TABLE IF NOT EXISTS templates SCHEMALESS;
DEFINE TABLE IF NOT EXISTS counter SCHEMALESS;
DEFINE INDEX IF NOT EXISTS pages_slug ON pages FIELDS slug UNIQUE;
DEFINE INDEX IF NOT EXISTS templates_ord ON templates FIELDS ord;
`

// Migrate defines the tables and indexes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, s.db, schema, nil); err != nil {
		return fmt.Errorf("define schema: %w", err)
	}
	return nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// reset drops every table. Used by tests.
func (s *Store) reset(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, s.db,
		`REMOVE TABLE IF EXISTS pages; REMOVE TABLE IF EXISTS blocks;
		REMOVE TABLE IF EXISTS templates; REMOVE TABLE IF EXISTS counter;`, nil)
	if err != nil {
		return err
	}
	return s.Migrate(ctx)
}

// query runs a single statement and returns its result rows.
func query[T any](ctx context.Context, s *Store, sql string, vars map[string]any) ([]T, error) {
	res, err := surrealdb.Query[[]T](ctx, s.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	return (*res)[0].Result, nil
}

// nextID bumps the counter for table and returns the new value.
func (s *Store) nextID(ctx context.Context, table models.Collection) (models.ID, error) {
	type counter struct {
		Value int64 `json:"value"`
	}
	rows, err := query[counter](ctx, s,
		`UPSERT type::thing('counter', $table) SET value += 1 RETURN value`,
		map[string]any{"table": string(table)})
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", table, err)
	}
	if len(rows) != 1 {
		return 0, fmt.Errorf("next %s id: counter returned %d rows", table, len(rows))
	}
	return models.ID(rows[0].Value), nil
}

// recordNum extracts the integer key of a record id. The codec decodes
// integers as either signed or unsigned depending on sign.
func recordNum(rid surrealmodels.RecordID) (models.ID, error) {
	switch v := rid.ID.(type) {
	case int64:
		return models.ID(v), nil
	case uint64:
		return models.ID(v), nil
	case int:
		return models.ID(v), nil
	default:
		return 0, fmt.Errorf("record %s has non-integer key %T", rid.Table, rid.ID)
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already contains")
}

func translate(err error, slug string) error {
	if isUniqueViolation(err) {
		return models.DuplicateSlug(slug)
	}
	return err
}

func checkOrder(order int) error {
	if order < 0 {
		return &models.ConstraintViolationError{Field: "order", Value: fmt.Sprint(order), Reason: "must not be negative"}
	}
	return nil
}
