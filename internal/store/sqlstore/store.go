// Package sqlstore keeps readings in a relational database through gorm.
// Each session is one database transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
)

const pgUniqueViolation = "23505"

type Store struct {
	db      *gorm.DB
	backend string
	log     *zap.Logger
	metrics *metrics.Collector
}

var _ reading.Store = (*Store)(nil)

type Option func(*Store)

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// New wraps db and makes sure the readings table exists.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		backend: db.Dialector.Name(),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or alters the readings table. Safe to run repeatedly.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&readingRow{}); err != nil {
		return fmt.Errorf("auto-migrating readings: %w", err)
	}
	return nil
}

func (s *Store) Backend() string { return s.backend }

// DB exposes the underlying engine for pool statistics.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Begin(ctx context.Context) (reading.Session, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.metrics.StoreError("begin", "internal")
		return nil, fmt.Errorf("starting transaction: %w", tx.Error)
	}
	return &session{store: s, tx: tx}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type session struct {
	store      *Store
	tx         *gorm.DB
	done       bool
	savepoints int
}

func (ss *session) active() error {
	if ss.done {
		return reading.ErrNotInContext
	}
	return nil
}

func (ss *session) observe(op string, start time.Time, err error) {
	s := ss.store
	s.metrics.ObserveStoreOp(op, s.backend, start)
	if err == nil {
		return
	}

	kind := reading.ErrorKind(err)
	s.metrics.StoreError(op, kind)
	if kind == "internal" {
		s.log.Error("reading store failure",
			zap.String("operation", op),
			zap.String("backend", s.backend),
			zap.Error(err),
		)
	}
}

func (ss *session) Add(ctx context.Context, r *reading.GlucoseReading) (err error) {
	defer func(start time.Time) { ss.observe("add", start, err) }(time.Now())

	if err := ss.active(); err != nil {
		return err
	}

	// Postgres aborts the whole transaction on a failed statement. Running the
	// insert under a savepoint keeps the session usable after a duplicate.
	ss.savepoints++
	sp := fmt.Sprintf("reading_add_%d", ss.savepoints)
	tx := ss.tx.WithContext(ctx)

	if err := tx.SavePoint(sp).Error; err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}

	row := toRow(r)
	if err := tx.Create(&row).Error; err != nil {
		if rbErr := tx.RollbackTo(sp).Error; rbErr != nil {
			return errors.Join(fmt.Errorf("inserting reading %s: %w", r.ID, err), rbErr)
		}
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", reading.ErrDuplicateReading, r.ID)
		}
		return fmt.Errorf("inserting reading %s: %w", r.ID, err)
	}

	if err := tx.Exec("RELEASE SAVEPOINT " + sp).Error; err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}
	return nil
}

func (ss *session) Update(ctx context.Context, r *reading.GlucoseReading) (err error) {
	defer func(start time.Time) { ss.observe("update", start, err) }(time.Now())

	if err := ss.active(); err != nil {
		return err
	}

	tx := ss.tx.WithContext(ctx)
	if _, err := ss.find(tx, r.ID); err != nil {
		return err
	}

	row := toRow(r)
	err = tx.Model(&readingRow{}).
		Where("reading_uuid = ?", row.ReadingUUID).
		Updates(map[string]any{
			"patient_uuid": row.PatientUUID,
			"value":        row.Value,
			"units":        row.Units,
			"recorded_at":  row.RecordedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("updating reading %s: %w", r.ID, err)
	}
	return nil
}

func (ss *session) Get(ctx context.Context, ref reading.Ref) (r *reading.GlucoseReading, err error) {
	defer func(start time.Time) { ss.observe("get", start, err) }(time.Now())

	if err := ss.active(); err != nil {
		return nil, err
	}
	id, err := ref.UUID()
	if err != nil {
		return nil, err
	}

	row, err := ss.find(ss.tx.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return row.toReading()
}

func (ss *session) Delete(ctx context.Context, ref reading.Ref) (err error) {
	defer func(start time.Time) { ss.observe("delete", start, err) }(time.Now())

	if err := ss.active(); err != nil {
		return err
	}
	id, err := ref.UUID()
	if err != nil {
		return err
	}

	res := ss.tx.WithContext(ctx).Where("reading_uuid = ?", id.String()).Delete(&readingRow{})
	if res.Error != nil {
		return fmt.Errorf("deleting reading %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", reading.ErrNoSuchReading, id)
	}
	return nil
}

// Iterate streams rows ordered by recorded_at. The cursor holds the
// session's connection, so finish or break the loop before making other
// calls on the same session.
func (ss *session) Iterate(ctx context.Context) iter.Seq2[*reading.GlucoseReading, error] {
	return func(yield func(*reading.GlucoseReading, error) bool) {
		if err := ss.active(); err != nil {
			yield(nil, err)
			return
		}

		start := time.Now()
		rows, err := ss.tx.WithContext(ctx).
			Model(&readingRow{}).
			Order("recorded_at, reading_uuid").
			Rows()
		if err != nil {
			err = fmt.Errorf("listing readings: %w", err)
			ss.observe("iterate", start, err)
			yield(nil, err)
			return
		}
		defer rows.Close()
		ss.observe("iterate", start, nil)

		for rows.Next() {
			var row readingRow
			if err := ss.tx.ScanRows(rows, &row); err != nil {
				yield(nil, fmt.Errorf("scanning reading row: %w", err))
				return
			}
			r, err := row.toReading()
			if !yield(r, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("reading rows: %w", err))
		}
	}
}

func (ss *session) Commit() error {
	if ss.done {
		return reading.ErrNotInContext
	}
	ss.done = true

	if err := ss.tx.Commit().Error; err != nil {
		ss.store.metrics.StoreError("commit", "internal")
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (ss *session) Rollback() error {
	if ss.done {
		return nil
	}
	ss.done = true

	if err := ss.tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

func (ss *session) find(tx *gorm.DB, id uuid.UUID) (*readingRow, error) {
	var row readingRow
	err := tx.Where("reading_uuid = ?", id.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", reading.ErrNoSuchReading, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading reading %s: %w", id, err)
	}
	return &row, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
