// Package events announces committed reading changes to the outside world.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
)

type Type string

const (
	TypeCreated Type = "reading.created"
	TypeUpdated Type = "reading.updated"
	TypeDeleted Type = "reading.deleted"
)

type ReadingEvent struct {
	Type       Type
	ReadingID  uuid.UUID
	PatientID  uuid.UUID
	OccurredAt time.Time
	// Reading is the state after the change. Nil for deletions.
	Reading *reading.GlucoseReading
}

func NewReadingEvent(t Type, r *reading.GlucoseReading) ReadingEvent {
	ev := ReadingEvent{
		Type:       t,
		ReadingID:  r.ID,
		PatientID:  r.PatientID,
		OccurredAt: time.Now().UTC(),
	}
	if t != TypeDeleted {
		ev.Reading = r.Clone()
	}
	return ev
}

type wireEvent struct {
	Type       Type        `json:"type"`
	ReadingID  uuid.UUID   `json:"reading_uuid"`
	PatientID  uuid.UUID   `json:"patient_uuid"`
	OccurredAt time.Time   `json:"occurred_at"`
	Value      json.Number `json:"value,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	RecordedAt *time.Time  `json:"recorded_at,omitempty"`
}

func (e ReadingEvent) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Type:       e.Type,
		ReadingID:  e.ReadingID,
		PatientID:  e.PatientID,
		OccurredAt: e.OccurredAt,
	}
	if e.Reading != nil {
		recorded := e.Reading.RecordedAt.UTC()
		w.Value = json.Number(reading.FormatValue(e.Reading.Value))
		w.Unit = string(e.Reading.Unit)
		w.RecordedAt = &recorded
	}
	return json.Marshal(w)
}

type Publisher interface {
	Publish(ctx context.Context, ev ReadingEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReadingEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }
