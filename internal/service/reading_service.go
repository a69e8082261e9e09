package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/events"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
)

// EventSink receives an event for every committed change.
type EventSink interface {
	Enqueue(ev events.ReadingEvent)
}

type nopSink struct{}

func (nopSink) Enqueue(events.ReadingEvent) {}

type CreateReadingCommand struct {
	// ReadingID is optional. Ingestion supplies one so redeliveries collide.
	ReadingID  uuid.UUID
	PatientID  uuid.UUID
	Value      decimal.Decimal
	Unit       reading.Unit
	RecordedAt time.Time
}

// UpdateReadingCommand carries only the fields the caller supplied. A nil
// field is left unchanged; a non-nil zero value is applied.
type UpdateReadingCommand struct {
	PatientID  *uuid.UUID
	Value      *decimal.Decimal
	Unit       *reading.Unit
	RecordedAt *time.Time
}

func (c *UpdateReadingCommand) apply(r *reading.GlucoseReading) {
	if c.PatientID != nil {
		r.PatientID = *c.PatientID
	}
	if c.Value != nil {
		r.Value = *c.Value
	}
	if c.Unit != nil {
		r.Unit = *c.Unit
	}
	if c.RecordedAt != nil {
		r.RecordedAt = *c.RecordedAt
	}
}

type ReadingService struct {
	store   reading.Store
	events  EventSink
	metrics *metrics.Collector
	tracer  trace.Tracer
	log     *zap.Logger
}

func NewReadingService(store reading.Store, sink EventSink, m *metrics.Collector, log *zap.Logger) *ReadingService {
	if sink == nil {
		sink = nopSink{}
	}
	return &ReadingService{
		store:   store,
		events:  sink,
		metrics: m,
		tracer:  otel.Tracer("glucoflow/service"),
		log:     log,
	}
}

// Backend names the store in use, for health reporting.
func (s *ReadingService) Backend() string {
	return s.store.Backend()
}

func (s *ReadingService) ListReadings(ctx context.Context) ([]*reading.GlucoseReading, error) {
	ctx, span := s.tracer.Start(ctx, "ReadingService.ListReadings")
	defer span.End()

	var out []*reading.GlucoseReading
	err := reading.WithSession(ctx, s.store, func(sess reading.Session) error {
		var err error
		out, err = reading.Collect(sess.Iterate(ctx))
		return err
	})
	if err != nil {
		return nil, s.fail(span, "list", err)
	}

	span.SetAttributes(attribute.Int("reading.count", len(out)))
	return out, nil
}

func (s *ReadingService) CreateReading(ctx context.Context, cmd *CreateReadingCommand) (*reading.GlucoseReading, error) {
	ctx, span := s.tracer.Start(ctx, "ReadingService.CreateReading")
	defer span.End()

	r, err := reading.New(reading.NewReadingCommand{
		ID:         cmd.ReadingID,
		PatientID:  cmd.PatientID,
		Value:      cmd.Value,
		Unit:       cmd.Unit,
		RecordedAt: cmd.RecordedAt,
	})
	if err != nil {
		return nil, s.fail(span, "create", err)
	}
	span.SetAttributes(attribute.String("reading.id", r.ID.String()))

	err = reading.WithSession(ctx, s.store, func(sess reading.Session) error {
		return sess.Add(ctx, r)
	})
	if err != nil {
		return nil, s.fail(span, "create", err, zap.String("reading_id", r.ID.String()))
	}

	s.committed(events.TypeCreated, r)
	s.log.Info("reading created",
		zap.String("reading_id", r.ID.String()),
		zap.String("patient_id", r.PatientID.String()),
	)
	return r, nil
}

func (s *ReadingService) GetReading(ctx context.Context, ref reading.Ref) (*reading.GlucoseReading, error) {
	ctx, span := s.tracer.Start(ctx, "ReadingService.GetReading",
		trace.WithAttributes(attribute.String("reading.ref", ref.String())))
	defer span.End()

	var r *reading.GlucoseReading
	err := reading.WithSession(ctx, s.store, func(sess reading.Session) error {
		var err error
		r, err = sess.Get(ctx, ref)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "get", err, zap.Stringer("ref", ref))
	}
	return r, nil
}

// UpdateReading merges cmd into the stored reading and writes it back, all in
// one session.
func (s *ReadingService) UpdateReading(ctx context.Context, ref reading.Ref, cmd *UpdateReadingCommand) (*reading.GlucoseReading, error) {
	ctx, span := s.tracer.Start(ctx, "ReadingService.UpdateReading",
		trace.WithAttributes(attribute.String("reading.ref", ref.String())))
	defer span.End()

	var updated *reading.GlucoseReading
	err := reading.WithSession(ctx, s.store, func(sess reading.Session) error {
		current, err := sess.Get(ctx, ref)
		if err != nil {
			return err
		}
		cmd.apply(current)
		if err := current.Validate(); err != nil {
			return err
		}
		if err := sess.Update(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, s.fail(span, "update", err, zap.Stringer("ref", ref))
	}

	s.committed(events.TypeUpdated, updated)
	s.log.Info("reading updated", zap.String("reading_id", updated.ID.String()))
	return updated, nil
}

func (s *ReadingService) DeleteReading(ctx context.Context, ref reading.Ref) error {
	ctx, span := s.tracer.Start(ctx, "ReadingService.DeleteReading",
		trace.WithAttributes(attribute.String("reading.ref", ref.String())))
	defer span.End()

	var deleted *reading.GlucoseReading
	err := reading.WithSession(ctx, s.store, func(sess reading.Session) error {
		r, err := sess.Get(ctx, ref)
		if err != nil {
			return err
		}
		if err := sess.Delete(ctx, reading.ByUUID(r.ID)); err != nil {
			return err
		}
		deleted = r
		return nil
	})
	if err != nil {
		return s.fail(span, "delete", err, zap.Stringer("ref", ref))
	}

	s.committed(events.TypeDeleted, deleted)
	s.log.Info("reading deleted", zap.String("reading_id", deleted.ID.String()))
	return nil
}

func (s *ReadingService) committed(t events.Type, r *reading.GlucoseReading) {
	s.metrics.ReadingChanged(string(t))
	s.events.Enqueue(events.NewReadingEvent(t, r))
}
