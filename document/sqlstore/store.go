// Package sqlstore persists configuration objects with bun. SQLite and
// Postgres are supported; field values are stored msgpack encoded so their
// types survive a round trip.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/goliatone/go-errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-document-config/document"
	"github.com/goliatone/go-document-config/event"
	"github.com/goliatone/go-document-config/reference"
)

const (
	// DriverSQLite selects mattn/go-sqlite3.
	DriverSQLite = "sqlite3"
	// DriverPostgres selects lib/pq.
	DriverPostgres = "postgres"
)

// Store is a document.ReadWriter backed by a SQL database.
type Store struct {
	db     *bun.DB
	notify document.Notifier
	now    func() time.Time
}

var _ document.ReadWriter = (*Store)(nil)

// Option configures a Store.
type Option func(*options)

type options struct {
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// WithPublisher sets where write events are published.
func WithPublisher(p event.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithLogger sets the logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides the time source used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Dialect returns the bun dialect for a driver name.
func Dialect(driver string) (schema.Dialect, error) {
	switch driver {
	case DriverSQLite:
		return sqlitedialect.New(), nil
	case DriverPostgres:
		return pgdialect.New(), nil
	default:
		return nil, errors.New(fmt.Sprintf("unsupported database driver %q", driver), errors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_DRIVER")
	}
}

// Open connects to dsn with driver and wraps the connection in a Store.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := Dialect(driver)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "open database")
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer; in-memory databases also vanish with
		// their connection.
		sqldb.SetMaxOpenConns(1)
	}

	return New(bun.NewDB(sqldb, dialect), opts...), nil
}

// New wraps an existing bun database.
func New(db *bun.DB, opts ...Option) *Store {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		db:     db,
		notify: document.NewNotifier(o.publisher, o.logger),
		now:    o.now,
	}
}

// DB exposes the underlying bun database.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates the tables and indexes if missing.
func (s *Store) CreateSchema(ctx context.Context) error {
	models := []any{(*objectRow)(nil), (*propertyRow)(nil)}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "create schema")
		}
	}

	_, err := s.db.NewCreateIndex().
		Model((*objectRow)(nil)).
		Index("config_objects_wiki_idx").
		Column("wiki").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "create schema")
	}
	return nil
}

// FetchRecord implements document.Store.
func (s *Store) FetchRecord(ctx context.Context, doc reference.Document, class reference.Class) (*document.Record, error) {
	id := objectID(doc, class)

	exists, err := s.db.NewSelect().Model((*objectRow)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "fetch object")
	}
	if !exists {
		return nil, nil
	}

	var rows []propertyRow
	err = s.db.NewSelect().
		Model(&rows).
		Where("object_id = ?", id).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "fetch object fields")
	}

	rec := document.NewRecord()
	for _, row := range rows {
		value, err := decodeValue(row.Value)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "decode field").
				WithMetadata(map[string]any{"field": row.Name})
		}
		rec.Set(row.Name, value)
	}
	return rec, nil
}

// SetField implements document.Writer.
func (s *Store) SetField(ctx context.Context, doc reference.Document, class reference.Class, name string, value any) error {
	if err := document.ValidateTarget(doc, class, name); err != nil {
		return err
	}

	encoded, err := encodeValue(value)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "encode field").
			WithMetadata(map[string]any{"field": name, "value_type": fmt.Sprintf("%T", value)})
	}

	var created bool
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		obj := newObjectRow(doc, class, s.now())

		exists, err := tx.NewSelect().Model((*objectRow)(nil)).Where("id = ?", obj.ID).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			_, err = tx.NewUpdate().Model(obj).Column("updated_at").WherePK().Exec(ctx)
		} else {
			created = true
			_, err = tx.NewInsert().Model(obj).Exec(ctx)
		}
		if err != nil {
			return err
		}

		var next int
		err = tx.NewSelect().
			Model((*propertyRow)(nil)).
			ColumnExpr("COALESCE(MAX(position) + 1, 0)").
			Where("object_id = ?", obj.ID).
			Scan(ctx, &next)
		if err != nil {
			return err
		}

		prop := &propertyRow{ObjectID: obj.ID, Name: name, Position: next, Value: encoded}
		_, err = tx.NewInsert().
			Model(prop).
			On("CONFLICT (object_id, name) DO UPDATE").
			Set("value = EXCLUDED.value").
			Exec(ctx)
		return err
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "set field").
			WithMetadata(map[string]any{"field": name})
	}

	kind := event.ObjectUpdated
	if created {
		kind = event.ObjectAdded
	}
	s.notify.ObjectChanged(ctx, kind, doc, class)
	return nil
}

// RemoveField implements document.Writer.
func (s *Store) RemoveField(ctx context.Context, doc reference.Document, class reference.Class, name string) error {
	if err := document.ValidateTarget(doc, class, name); err != nil {
		return err
	}

	id := objectID(doc, class)
	var removed, missing bool

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*objectRow)(nil)).Where("id = ?", id).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			missing = true
			return nil
		}

		res, err := tx.NewDelete().
			Model((*propertyRow)(nil)).
			Where("object_id = ?", id).
			Where("name = ?", name).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = n > 0
		if !removed {
			return nil
		}

		_, err = tx.NewUpdate().
			Model((*objectRow)(nil)).
			Set("updated_at = ?", s.now()).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "remove field").
			WithMetadata(map[string]any{"field": name})
	}
	if missing {
		return document.ObjectNotFound(doc, class)
	}

	if removed {
		s.notify.ObjectChanged(ctx, event.ObjectUpdated, doc, class)
	}
	return nil
}

// DeleteObject implements document.Writer.
func (s *Store) DeleteObject(ctx context.Context, doc reference.Document, class reference.Class) error {
	id := objectID(doc, class)
	var deleted bool

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*propertyRow)(nil)).Where("object_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*objectRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "delete object")
	}
	if !deleted {
		return document.ObjectNotFound(doc, class)
	}

	s.notify.ObjectChanged(ctx, event.ObjectDeleted, doc, class)
	return nil
}

// DeleteWiki implements document.Writer.
func (s *Store) DeleteWiki(ctx context.Context, wiki string) error {
	if wiki == "" {
		return errors.New("wiki is required", errors.CategoryValidation)
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ids := tx.NewSelect().Model((*objectRow)(nil)).Column("id").Where("wiki = ?", wiki)
		if _, err := tx.NewDelete().Model((*propertyRow)(nil)).Where("object_id IN (?)", ids).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*objectRow)(nil)).Where("wiki = ?", wiki).Exec(ctx)
		return err
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "delete wiki").
			WithMetadata(map[string]any{"wiki": wiki})
	}

	s.notify.WikiDeleted(ctx, wiki)
	return nil
}

// Objects lists the serialized references of the objects stored for wiki.
func (s *Store) Objects(ctx context.Context, wiki string) ([]string, error) {
	var rows []objectRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("wiki = ?", wiki).
		Order("reference ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "list objects")
	}

	refs := make([]string, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, row.Reference)
	}
	return refs, nil
}
