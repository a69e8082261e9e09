package sqlstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
)

// readingRow is the persisted shape of a reading. UUIDs are kept as text and
// the value as its decimal text so no engine rounds it.
type readingRow struct {
	ReadingUUID string    `gorm:"column:reading_uuid;type:varchar(36);primaryKey"`
	PatientUUID string    `gorm:"column:patient_uuid;type:varchar(36);not null;index"`
	Value       string    `gorm:"column:value;type:text;not null"`
	Units       string    `gorm:"column:units;type:varchar(8);not null"`
	RecordedAt  time.Time `gorm:"column:recorded_at;type:timestamp;not null"`
}

func (readingRow) TableName() string { return "readings" }

func toRow(r *reading.GlucoseReading) readingRow {
	return readingRow{
		ReadingUUID: r.ID.String(),
		PatientUUID: r.PatientID.String(),
		Value:       reading.FormatValue(r.Value),
		Units:       string(r.Unit),
		RecordedAt:  r.RecordedAt.UTC(),
	}
}

func (row *readingRow) toReading() (*reading.GlucoseReading, error) {
	id, err := uuid.Parse(row.ReadingUUID)
	if err != nil {
		return nil, fmt.Errorf("row has malformed reading_uuid %q: %w", row.ReadingUUID, err)
	}
	patientID, err := uuid.Parse(row.PatientUUID)
	if err != nil {
		return nil, fmt.Errorf("row %s has malformed patient_uuid %q: %w", id, row.PatientUUID, err)
	}
	value, err := reading.ParseValue(row.Value)
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", id, err)
	}

	return &reading.GlucoseReading{
		ID:         id,
		PatientID:  patientID,
		Value:      value,
		Unit:       reading.Unit(row.Units),
		RecordedAt: reading.AsUTC(row.RecordedAt),
	}, nil
}
