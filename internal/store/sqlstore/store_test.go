package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/config"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store/sqlstore"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store/storetest"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "readings.db")
	db, err := database.Connect(config.StoreConfig{
		ConnectionString: "sqlite:///" + path,
		MaxOpenConns:     4,
		MaxIdleConns:     4,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newStore(t *testing.T, opts ...sqlstore.Option) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.New(openDB(t), opts...)
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) reading.Store {
		return newStore(t)
	})
}

func TestBackendName(t *testing.T) {
	assert.Equal(t, "sqlite", newStore(t).Backend())
}

func TestNewIsIdempotent(t *testing.T) {
	db := openDB(t)
	_, err := sqlstore.New(db)
	require.NoError(t, err)
	_, err = sqlstore.New(db)
	require.NoError(t, err)
	require.NoError(t, sqlstore.Migrate(db))
}

func TestCommittedWritesVisibleToNewSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	r := storetest.Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")

	sess, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Add(ctx, r))

	// Visible inside the session before commit.
	_, err = sess.Get(ctx, reading.ByUUID(r.ID))
	require.NoError(t, err)
	require.NoError(t, sess.Commit())

	next, err := s.Begin(ctx)
	require.NoError(t, err)
	defer next.Rollback()
	got, err := next.Get(ctx, reading.ByUUID(r.ID))
	require.NoError(t, err)
	assert.True(t, r.Equal(got))
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	r := storetest.Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")

	sess, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Add(ctx, r))
	require.NoError(t, sess.Rollback())

	next, err := s.Begin(ctx)
	require.NoError(t, err)
	defer next.Rollback()
	_, err = next.Get(ctx, reading.ByUUID(r.ID))
	assert.ErrorIs(t, err, reading.ErrNoSuchReading)
}

func TestWithSessionRollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	r := storetest.Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")

	err := reading.WithSession(ctx, s, func(sess reading.Session) error {
		require.NoError(t, sess.Add(ctx, r))
		_, err := sess.Get(ctx, reading.ByString("nope"))
		return err
	})
	require.ErrorIs(t, err, reading.ErrIDValue)

	err = reading.WithSession(ctx, s, func(sess reading.Session) error {
		_, err := sess.Get(ctx, reading.ByUUID(r.ID))
		return err
	})
	assert.ErrorIs(t, err, reading.ErrNoSuchReading)
}

func TestWithSessionRollsBackOnPanic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	r := storetest.Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")

	assert.PanicsWithValue(t, "boom", func() {
		_ = reading.WithSession(ctx, s, func(sess reading.Session) error {
			require.NoError(t, sess.Add(ctx, r))
			panic("boom")
		})
	})

	err := reading.WithSession(ctx, s, func(sess reading.Session) error {
		_, err := sess.Get(ctx, reading.ByUUID(r.ID))
		return err
	})
	assert.ErrorIs(t, err, reading.ErrNoSuchReading)
}

func TestClosedSessionIsNotInContext(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	r := storetest.Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")

	for name, finish := range map[string]func(reading.Session) error{
		"commit":   reading.Session.Commit,
		"rollback": reading.Session.Rollback,
	} {
		t.Run(name, func(t *testing.T) {
			sess, err := s.Begin(ctx)
			require.NoError(t, err)
			require.NoError(t, finish(sess))

			assert.ErrorIs(t, sess.Add(ctx, r), reading.ErrNotInContext)
			assert.ErrorIs(t, sess.Update(ctx, r), reading.ErrNotInContext)
			_, err = sess.Get(ctx, reading.ByUUID(r.ID))
			assert.ErrorIs(t, err, reading.ErrNotInContext)
			assert.ErrorIs(t, sess.Delete(ctx, reading.ByUUID(r.ID)), reading.ErrNotInContext)
			_, err = reading.Collect(sess.Iterate(ctx))
			assert.ErrorIs(t, err, reading.ErrNotInContext)

			assert.NoError(t, sess.Rollback())
			assert.ErrorIs(t, sess.Commit(), reading.ErrNotInContext)
		})
	}
}

func TestStoreRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("glucoflow_test", reg)
	s := newStore(t, sqlstore.WithMetrics(collector), sqlstore.WithLogger(zap.NewNop()))
	ctx := context.Background()
	r := storetest.Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")

	err := reading.WithSession(ctx, s, func(sess reading.Session) error {
		return sess.Add(ctx, r)
	})
	require.NoError(t, err)

	err = reading.WithSession(ctx, s, func(sess reading.Session) error {
		return sess.Add(ctx, r)
	})
	require.ErrorIs(t, err, reading.ErrDuplicateReading)

	assert.Equal(t, 1, testutil.CollectAndCount(collector.StoreOpDuration))
	assert.InDelta(t, 1, testutil.ToFloat64(collector.StoreErrors.WithLabelValues("add", "duplicate")), 0)
}
