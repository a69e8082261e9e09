package service_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/events"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store/memory"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.ReadingEvent
}

func (s *recordingSink) Enqueue(ev events.ReadingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []events.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Type, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc     *service.ReadingService
	store   *memory.Store
	sink    *recordingSink
	metrics *metrics.Collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.New(),
		sink:    &recordingSink{},
		metrics: metrics.NewCollector("service_test", prometheus.NewRegistry()),
	}
	f.svc = service.NewReadingService(f.store, f.sink, f.metrics, zap.NewNop())
	return f
}

func createCmd() *service.CreateReadingCommand {
	return &service.CreateReadingCommand{
		PatientID:  uuid.New(),
		Value:      decimal.RequireFromString("5.5"),
		Unit:       reading.UnitMmolPerL,
		RecordedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateReading(ctx, createCmd())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	got, err := f.svc.GetReading(ctx, reading.ByUUID(created.ID))
	require.NoError(t, err)
	assert.True(t, created.Equal(got))

	assert.Equal(t, []events.Type{events.TypeCreated}, f.sink.types())
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ReadingsTotal.WithLabelValues(string(events.TypeCreated))), 0)
}

func TestCreateRejectsInvalidReading(t *testing.T) {
	f := newFixture(t)
	cmd := createCmd()
	cmd.Unit = "mmol"

	_, err := f.svc.CreateReading(context.Background(), cmd)

	var verr *reading.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.sink.types())
}

func TestCreateWithSuppliedIDRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	cmd := createCmd()
	cmd.ReadingID = uuid.New()

	_, err := f.svc.CreateReading(context.Background(), cmd)
	require.NoError(t, err)

	cmd.Value = decimal.RequireFromString("9.9")
	_, err = f.svc.CreateReading(context.Background(), cmd)
	require.ErrorIs(t, err, reading.ErrDuplicateReading)

	got, err := f.svc.GetReading(context.Background(), reading.ByUUID(cmd.ReadingID))
	require.NoError(t, err)
	assert.Equal(t, "5.5", reading.FormatValue(got.Value))
	assert.Len(t, f.sink.types(), 1)
}

func TestListReadings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.ListReadings(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for range 3 {
		_, err := f.svc.CreateReading(ctx, createCmd())
		require.NoError(t, err)
	}

	all, err := f.svc.ListReadings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateAppliesOnlySuppliedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateReading(ctx, createCmd())
	require.NoError(t, err)

	updated, err := f.svc.UpdateReading(ctx, reading.ByUUID(created.ID), &service.UpdateReadingCommand{
		Value: ptr(decimal.RequireFromString("0")),
	})
	require.NoError(t, err)

	assert.Equal(t, "0", reading.FormatValue(updated.Value))
	assert.Equal(t, created.PatientID, updated.PatientID)
	assert.Equal(t, created.Unit, updated.Unit)
	assert.True(t, created.RecordedAt.Equal(updated.RecordedAt))

	got, err := f.svc.GetReading(ctx, reading.ByUUID(created.ID))
	require.NoError(t, err)
	assert.True(t, updated.Equal(got))
	assert.Equal(t, []events.Type{events.TypeCreated, events.TypeUpdated}, f.sink.types())
}

func TestUpdateWithNothingSuppliedKeepsReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateReading(ctx, createCmd())
	require.NoError(t, err)

	updated, err := f.svc.UpdateReading(ctx, reading.ByUUID(created.ID), &service.UpdateReadingCommand{})
	require.NoError(t, err)
	assert.True(t, created.Equal(updated))
}

func TestUpdateRejectsInvalidUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateReading(ctx, createCmd())
	require.NoError(t, err)

	_, err = f.svc.UpdateReading(ctx, reading.ByUUID(created.ID), &service.UpdateReadingCommand{
		Unit: ptr(reading.Unit("grams")),
	})
	assert.True(t, reading.IsInvalidInput(err))

	got, err := f.svc.GetReading(ctx, reading.ByUUID(created.ID))
	require.NoError(t, err)
	assert.Equal(t, reading.UnitMmolPerL, got.Unit)
}

func TestUpdateMissingReading(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateReading(context.Background(), reading.ByUUID(uuid.New()), &service.UpdateReadingCommand{})
	assert.ErrorIs(t, err, reading.ErrNoSuchReading)
}

func TestDeleteReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateReading(ctx, createCmd())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteReading(ctx, reading.ByString(created.ID.String())))

	_, err = f.svc.GetReading(ctx, reading.ByUUID(created.ID))
	assert.ErrorIs(t, err, reading.ErrNoSuchReading)
	assert.ErrorIs(t, f.svc.DeleteReading(ctx, reading.ByUUID(created.ID)), reading.ErrNoSuchReading)
	assert.Equal(t, []events.Type{events.TypeCreated, events.TypeDeleted}, f.sink.types())
}

func TestGetByIntegerRef(t *testing.T) {
	f := newFixture(t)
	cmd := createCmd()
	cmd.ReadingID = uuid.MustParse("00000000-0000-0000-0000-00000000007b")
	_, err := f.svc.CreateReading(context.Background(), cmd)
	require.NoError(t, err)

	got, err := f.svc.GetReading(context.Background(), reading.ByInt(big.NewInt(123)))
	require.NoError(t, err)
	assert.Equal(t, cmd.ReadingID, got.ID)
}

func TestNilSinkIsAllowed(t *testing.T) {
	svc := service.NewReadingService(memory.New(), nil, nil, zap.NewNop())
	_, err := svc.CreateReading(context.Background(), createCmd())
	require.NoError(t, err)
	assert.Equal(t, memory.Backend, svc.Backend())
}
