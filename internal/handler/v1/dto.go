package v1

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/service"
)

// ReadingResponse is the wire form of a reading. Value is a JSON number
// written with the precision it was stored with.
type ReadingResponse struct {
	ReadingUUID uuid.UUID    `json:"reading_uuid"`
	PatientUUID uuid.UUID    `json:"patient_uuid"`
	Value       json.Number  `json:"value"`
	Unit        reading.Unit `json:"unit"`
	RecordedAt  time.Time    `json:"recorded_at"`
}

func toResponse(r *reading.GlucoseReading) ReadingResponse {
	return ReadingResponse{
		ReadingUUID: r.ID,
		PatientUUID: r.PatientID,
		Value:       json.Number(reading.FormatValue(r.Value)),
		Unit:        r.Unit,
		RecordedAt:  r.RecordedAt.UTC(),
	}
}

type CreateReadingRequest struct {
	PatientUUID string      `json:"patient_uuid" binding:"required"`
	Value       json.Number `json:"value" binding:"required"`
	Unit        string      `json:"unit" binding:"required,oneof=mmol/L mg/dL"`
	RecordedAt  string      `json:"recorded_at" binding:"required"`
}

// toCommand converts the request, collecting every field that fails to parse.
func (r *CreateReadingRequest) toCommand() (*service.CreateReadingCommand, error) {
	var fields []string

	cmd := &service.CreateReadingCommand{Unit: reading.Unit(r.Unit)}

	patientID, err := parsePatientUUID(r.PatientUUID)
	if err != nil {
		fields = append(fields, err.Error())
	}
	cmd.PatientID = patientID

	v, err := reading.ParseValue(r.Value.String())
	if err != nil {
		fields = append(fields, "value: "+err.Error())
	}
	cmd.Value = v

	ts, err := reading.ParseRecordedAt(r.RecordedAt)
	if err != nil {
		fields = append(fields, "recorded_at: "+err.Error())
	}
	cmd.RecordedAt = ts

	if len(fields) > 0 {
		return nil, &reading.ValidationError{Fields: fields}
	}
	return cmd, nil
}

// UpdateReadingRequest fields are optional. An absent or null field keeps
// the stored value.
type UpdateReadingRequest struct {
	PatientUUID *string      `json:"patient_uuid"`
	Value       *json.Number `json:"value"`
	Unit        *string      `json:"unit" binding:"omitempty,oneof=mmol/L mg/dL"`
	RecordedAt  *string      `json:"recorded_at"`
}

func (r *UpdateReadingRequest) toCommand() (*service.UpdateReadingCommand, error) {
	var fields []string
	cmd := &service.UpdateReadingCommand{}

	if r.PatientUUID != nil {
		id, err := parsePatientUUID(*r.PatientUUID)
		if err != nil {
			fields = append(fields, err.Error())
		} else {
			cmd.PatientID = &id
		}
	}
	if r.Unit != nil {
		u := reading.Unit(*r.Unit)
		cmd.Unit = &u
	}
	if r.Value != nil {
		v, err := reading.ParseValue(r.Value.String())
		if err != nil {
			fields = append(fields, "value: "+err.Error())
		} else {
			cmd.Value = &v
		}
	}
	if r.RecordedAt != nil {
		ts, err := reading.ParseRecordedAt(*r.RecordedAt)
		if err != nil {
			fields = append(fields, "recorded_at: "+err.Error())
		} else {
			cmd.RecordedAt = &ts
		}
	}

	if len(fields) > 0 {
		return nil, &reading.ValidationError{Fields: fields}
	}
	return cmd, nil
}

// parsePatientUUID accepts every form uuid.Parse does, in either case, the
// same as reading identifiers in the path.
func parsePatientUUID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("patient_uuid must be a UUID")
	}
	return id, nil
}
