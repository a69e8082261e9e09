package reading

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// Store is the persistence contract every backend implements. Data access
// goes through a Session obtained from Begin; the error semantics are the
// same for every backend.
type Store interface {
	// Begin opens a session. For transactional backends this acquires a
	// connection from the pool and starts a transaction.
	Begin(ctx context.Context) (Session, error)

	// Backend names the implementation, e.g. "memory" or "postgres".
	Backend() string

	Close() error
}

// Session is one scoped unit of access to a Store. Writes are visible to
// later calls on the same session and become durable on Commit.
//
// Transactional backends return ErrNotInContext from every data method once
// the session has been committed or rolled back.
type Session interface {
	// Add inserts a new reading. Returns ErrDuplicateReading if a reading with
	// the same ID exists.
	Add(ctx context.Context, r *GlucoseReading) error

	// Update replaces every field of an existing reading. Returns
	// ErrNoSuchReading if it does not exist.
	Update(ctx context.Context, r *GlucoseReading) error

	// Get returns the reading identified by ref or ErrNoSuchReading.
	Get(ctx context.Context, ref Ref) (*GlucoseReading, error)

	// Delete removes the reading identified by ref or returns ErrNoSuchReading.
	Delete(ctx context.Context, ref Ref) error

	// Iterate yields every reading in backend-defined order. Each call starts
	// a fresh pass. A non-nil error ends the sequence.
	Iterate(ctx context.Context) iter.Seq2[*GlucoseReading, error]

	Commit() error

	// Rollback discards uncommitted work. It is a no-op after Commit, so it
	// is safe to defer.
	Rollback() error
}

// WithSession runs fn inside a session of s. The session is committed only if
// fn returns nil; an error or a panic rolls it back.
func WithSession(ctx context.Context, s Store, fn func(Session) error) (err error) {
	sess, err := s.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning %s session: %w", s.Backend(), err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sess.Rollback(); rbErr != nil && !errors.Is(rbErr, ErrNotInContext) {
			err = errors.Join(err, fmt.Errorf("rolling back %s session: %w", s.Backend(), rbErr))
		}
	}()

	if err := fn(sess); err != nil {
		return err
	}

	committed = true
	if err := sess.Commit(); err != nil {
		return fmt.Errorf("committing %s session: %w", s.Backend(), err)
	}
	return nil
}

// Collect drains an Iterate sequence into a slice.
func Collect(seq iter.Seq2[*GlucoseReading, error]) ([]*GlucoseReading, error) {
	out := make([]*GlucoseReading, 0)
	for r, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
