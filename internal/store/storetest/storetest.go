// Package storetest is the behavioural suite every reading.Store backend
// must pass.
package storetest

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) reading.Store

// Run executes the shared suite against stores produced by newStore. Every
// subtest gets a fresh store.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s reading.Store)
	}{
		{"AddThenGetRoundTrips", testAddThenGet},
		{"ValuePrecisionIsKept", testValuePrecision},
		{"LargestValuesRoundTrip", testLargestValues},
		{"TimestampComesBackInUTC", testTimestampUTC},
		{"DuplicateAddIsRejected", testDuplicateAdd},
		{"SessionUsableAfterDuplicate", testSessionUsableAfterDuplicate},
		{"MissingReadingIsNotFound", testMissing},
		{"UpdateReplacesEveryField", testUpdateReplaces},
		{"DeleteRemovesReading", testDelete},
		{"RefFormsAddressSameReading", testRefForms},
		{"InvalidRefIsRejected", testInvalidRef},
		{"IterateYieldsEveryReading", testIterate},
		{"IterateStopsEarly", testIterateBreak},
		{"EmptyStoreIteratesNothing", testIterateEmpty},
		{"CreateGetDeleteScenario", testScenario},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// Reading builds a valid reading with a fresh ID.
func Reading(t *testing.T, value string, unit reading.Unit, recordedAt string) *reading.GlucoseReading {
	t.Helper()

	v, err := reading.ParseValue(value)
	require.NoError(t, err)
	ts, err := reading.ParseRecordedAt(recordedAt)
	require.NoError(t, err)

	r, err := reading.New(reading.NewReadingCommand{
		PatientID:  uuid.New(),
		Value:      v,
		Unit:       unit,
		RecordedAt: ts,
	})
	require.NoError(t, err)
	return r
}

func add(t *testing.T, s reading.Store, rs ...*reading.GlucoseReading) {
	t.Helper()
	err := reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		for _, r := range rs {
			if err := sess.Add(context.Background(), r); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func get(s reading.Store, ref reading.Ref) (*reading.GlucoseReading, error) {
	var got *reading.GlucoseReading
	err := reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		var err error
		got, err = sess.Get(context.Background(), ref)
		return err
	})
	return got, err
}

func all(t *testing.T, s reading.Store) []*reading.GlucoseReading {
	t.Helper()
	var out []*reading.GlucoseReading
	err := reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		var err error
		out, err = reading.Collect(sess.Iterate(context.Background()))
		return err
	})
	require.NoError(t, err)
	return out
}

func testLargestValues(t *testing.T, s reading.Store) {
	tiny := Reading(t, "0."+strings.Repeat("1", reading.MaxValueDigits), reading.UnitMmolPerL, "2024-01-01T00:00:00Z")
	huge := Reading(t, "1e63", reading.UnitMgPerDL, "2024-01-01T00:00:00Z")
	add(t, s, tiny, huge)

	for _, want := range []*reading.GlucoseReading{tiny, huge} {
		got, err := get(s, reading.ByUUID(want.ID))
		require.NoError(t, err)
		assert.Equal(t, reading.FormatValue(want.Value), reading.FormatValue(got.Value))
		assert.True(t, want.Equal(got))
	}
}

func testAddThenGet(t *testing.T, s reading.Store) {
	r := Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00+00:00")
	add(t, s, r)

	got, err := get(s, reading.ByUUID(r.ID))
	require.NoError(t, err)
	assert.True(t, r.Equal(got), "want %s, got %s", r, got)
	assert.Equal(t, r.PatientID, got.PatientID)
	assert.Equal(t, reading.UnitMmolPerL, got.Unit)
}

func testValuePrecision(t *testing.T, s reading.Store) {
	values := []string{"5.50", "120", "7.125", "0.0", "99.9990"}
	rs := make([]*reading.GlucoseReading, 0, len(values))
	for _, v := range values {
		rs = append(rs, Reading(t, v, reading.UnitMgPerDL, "2024-03-10T08:30:00Z"))
	}
	add(t, s, rs...)

	for i, r := range rs {
		got, err := get(s, reading.ByUUID(r.ID))
		require.NoError(t, err)
		assert.Equal(t, values[i], reading.FormatValue(got.Value))
	}
}

func testTimestampUTC(t *testing.T, s reading.Store) {
	r := Reading(t, "6.1", reading.UnitMmolPerL, "2024-06-01T14:15:16+02:00")
	add(t, s, r)

	got, err := get(s, reading.ByUUID(r.ID))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.RecordedAt.Location())
	assert.True(t, got.RecordedAt.Equal(time.Date(2024, 6, 1, 12, 15, 16, 0, time.UTC)),
		"got %s", got.RecordedAt)
}

func testDuplicateAdd(t *testing.T, s reading.Store) {
	first := Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")
	add(t, s, first)

	second := first.Clone()
	second.Value = decimal.RequireFromString("9.9")

	err := reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		return sess.Add(context.Background(), second)
	})
	require.ErrorIs(t, err, reading.ErrDuplicateReading)

	stored := all(t, s)
	require.Len(t, stored, 1)
	assert.Equal(t, "5.5", reading.FormatValue(stored[0].Value))
}

func testSessionUsableAfterDuplicate(t *testing.T, s reading.Store) {
	first := Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")
	add(t, s, first)
	other := Reading(t, "6.0", reading.UnitMmolPerL, "2024-01-01T01:00:00Z")

	err := reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		err := sess.Add(context.Background(), first)
		require.ErrorIs(t, err, reading.ErrDuplicateReading)
		return sess.Add(context.Background(), other)
	})
	require.NoError(t, err)

	assert.Len(t, all(t, s), 2)
}

func testMissing(t *testing.T, s reading.Store) {
	existing := Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")
	add(t, s, existing)
	absent := Reading(t, "7.0", reading.UnitMmolPerL, "2024-01-02T00:00:00Z")

	ctx := context.Background()
	err := reading.WithSession(ctx, s, func(sess reading.Session) error {
		_, err := sess.Get(ctx, reading.ByUUID(absent.ID))
		assert.ErrorIs(t, err, reading.ErrNoSuchReading)
		assert.ErrorIs(t, sess.Update(ctx, absent), reading.ErrNoSuchReading)
		assert.ErrorIs(t, sess.Delete(ctx, reading.ByUUID(absent.ID)), reading.ErrNoSuchReading)
		return nil
	})
	require.NoError(t, err)

	stored := all(t, s)
	require.Len(t, stored, 1)
	assert.True(t, existing.Equal(stored[0]))
}

func testUpdateReplaces(t *testing.T, s reading.Store) {
	r := Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")
	add(t, s, r)

	updated := &reading.GlucoseReading{
		ID:         r.ID,
		PatientID:  uuid.New(),
		Value:      decimal.RequireFromString("101.20"),
		Unit:       reading.UnitMgPerDL,
		RecordedAt: time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC),
	}
	err := reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		return sess.Update(context.Background(), updated)
	})
	require.NoError(t, err)

	got, err := get(s, reading.ByUUID(r.ID))
	require.NoError(t, err)
	assert.True(t, updated.Equal(got), "want %s, got %s", updated, got)
}

func testDelete(t *testing.T, s reading.Store) {
	keep := Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")
	gone := Reading(t, "6.5", reading.UnitMmolPerL, "2024-01-01T02:00:00Z")
	add(t, s, keep, gone)

	err := reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		return sess.Delete(context.Background(), reading.ByString(gone.ID.String()))
	})
	require.NoError(t, err)

	_, err = get(s, reading.ByUUID(gone.ID))
	assert.ErrorIs(t, err, reading.ErrNoSuchReading)

	stored := all(t, s)
	require.Len(t, stored, 1)
	assert.Equal(t, keep.ID, stored[0].ID)
}

func testRefForms(t *testing.T, s reading.Store) {
	r := Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00Z")
	r.ID = uuid.MustParse("00000000-0000-0000-0000-00000000007b")
	add(t, s, r)

	for _, ref := range []reading.Ref{
		reading.ByUUID(r.ID),
		reading.ByString("00000000-0000-0000-0000-00000000007b"),
		reading.ByInt(big.NewInt(123)),
		reading.ByUint64(123),
	} {
		got, err := get(s, ref)
		require.NoError(t, err, "ref %s", ref)
		assert.Equal(t, r.ID, got.ID)
	}
}

func testInvalidRef(t *testing.T, s reading.Store) {
	_, err := get(s, reading.ByString("not-a-uuid"))
	assert.ErrorIs(t, err, reading.ErrIDValue)

	_, err = get(s, reading.ByInt(big.NewInt(-1)))
	assert.ErrorIs(t, err, reading.ErrIDValue)

	err = reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		return sess.Delete(context.Background(), reading.Ref{})
	})
	assert.ErrorIs(t, err, reading.ErrIDType)
}

func testIterate(t *testing.T, s reading.Store) {
	want := map[uuid.UUID]bool{}
	for i := range 5 {
		r := Reading(t, "5.5", reading.UnitMmolPerL,
			time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC).Format(time.RFC3339))
		add(t, s, r)
		want[r.ID] = true
	}

	// Each pass starts over.
	for range 2 {
		got := map[uuid.UUID]bool{}
		for _, r := range all(t, s) {
			got[r.ID] = true
		}
		assert.Equal(t, want, got)
	}
}

func testIterateBreak(t *testing.T, s reading.Store) {
	for i := range 3 {
		add(t, s, Reading(t, "5.5", reading.UnitMmolPerL,
			time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC).Format(time.RFC3339)))
	}

	seen := 0
	err := reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		for _, err := range sess.Iterate(context.Background()) {
			if err != nil {
				return err
			}
			seen++
			break
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func testIterateEmpty(t *testing.T, s reading.Store) {
	assert.Empty(t, all(t, s))
}

func testScenario(t *testing.T, s reading.Store) {
	r := Reading(t, "5.5", reading.UnitMmolPerL, "2024-01-01T00:00:00+00:00")
	add(t, s, r)

	got, err := get(s, reading.ByUUID(r.ID))
	require.NoError(t, err)
	assert.True(t, r.Equal(got))

	err = reading.WithSession(context.Background(), s, func(sess reading.Session) error {
		return sess.Delete(context.Background(), reading.ByUUID(r.ID))
	})
	require.NoError(t, err)

	_, err = get(s, reading.ByUUID(r.ID))
	assert.ErrorIs(t, err, reading.ErrNoSuchReading)
}
