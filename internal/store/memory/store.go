// Package memory is a reading store kept in a Go map. Nothing survives a
// restart; it backs tests and --test-mode.
package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
)

const Backend = "memory"

// Store holds readings keyed by ID. The whole lifetime of the store counts as
// one open scope: sessions share the map and Commit/Rollback do nothing.
type Store struct {
	mu       sync.RWMutex
	readings map[uuid.UUID]*reading.GlucoseReading
	order    []uuid.UUID
}

var _ reading.Store = (*Store)(nil)

func New() *Store {
	return &Store{readings: make(map[uuid.UUID]*reading.GlucoseReading)}
}

func (s *Store) Begin(ctx context.Context) (reading.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{store: s}, nil
}

func (s *Store) Backend() string { return Backend }

func (s *Store) Close() error { return nil }

// Len reports how many readings are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings)
}

// stored copies r with its timestamp moved to UTC, matching what the SQL
// backends hand back.
func stored(r *reading.GlucoseReading) *reading.GlucoseReading {
	c := r.Clone()
	c.RecordedAt = c.RecordedAt.UTC()
	return c
}

type session struct {
	store *Store
}

func (ss *session) Add(_ context.Context, r *reading.GlucoseReading) error {
	s := ss.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.readings[r.ID]; exists {
		return fmt.Errorf("%w: %s", reading.ErrDuplicateReading, r.ID)
	}
	s.readings[r.ID] = stored(r)
	s.order = append(s.order, r.ID)
	return nil
}

func (ss *session) Update(_ context.Context, r *reading.GlucoseReading) error {
	s := ss.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.readings[r.ID]; !exists {
		return fmt.Errorf("%w: %s", reading.ErrNoSuchReading, r.ID)
	}
	s.readings[r.ID] = stored(r)
	return nil
}

func (ss *session) Get(_ context.Context, ref reading.Ref) (*reading.GlucoseReading, error) {
	id, err := ref.UUID()
	if err != nil {
		return nil, err
	}

	s := ss.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.readings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", reading.ErrNoSuchReading, id)
	}
	return r.Clone(), nil
}

func (ss *session) Delete(_ context.Context, ref reading.Ref) error {
	id, err := ref.UUID()
	if err != nil {
		return err
	}

	s := ss.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readings[id]; !ok {
		return fmt.Errorf("%w: %s", reading.ErrNoSuchReading, id)
	}
	delete(s.readings, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return nil
}

// Iterate yields readings in insertion order. The set of IDs is fixed when
// iteration starts; readings deleted mid-iteration are skipped.
func (ss *session) Iterate(ctx context.Context) iter.Seq2[*reading.GlucoseReading, error] {
	return func(yield func(*reading.GlucoseReading, error) bool) {
		s := ss.store
		s.mu.RLock()
		ids := slices.Clone(s.order)
		s.mu.RUnlock()

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			s.mu.RLock()
			r, ok := s.readings[id]
			if ok {
				r = r.Clone()
			}
			s.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (ss *session) Commit() error { return nil }

func (ss *session) Rollback() error { return nil }
