// Package ingest loads readings delivered in SQS batches.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/service"
)

var ErrMissingReadingID = errors.New("reading_uuid is required for ingestion")

// Message is one queued reading. The producer assigns reading_uuid so a
// redelivered message collides with the reading it already created.
type Message struct {
	ReadingUUID string      `json:"reading_uuid"`
	PatientUUID string      `json:"patient_uuid"`
	Value       json.Number `json:"value"`
	Unit        string      `json:"unit"`
	RecordedAt  string      `json:"recorded_at"`
}

func (m *Message) toCommand() (*service.CreateReadingCommand, error) {
	if m.ReadingUUID == "" {
		return nil, ErrMissingReadingID
	}
	id, err := uuid.Parse(m.ReadingUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: reading_uuid %q", reading.ErrIDValue, m.ReadingUUID)
	}
	patientID, err := uuid.Parse(m.PatientUUID)
	if err != nil {
		return nil, &reading.ValidationError{Fields: []string{"patient_uuid must be a UUID"}}
	}
	value, err := reading.ParseValue(m.Value.String())
	if err != nil {
		return nil, err
	}
	recordedAt, err := reading.ParseRecordedAt(m.RecordedAt)
	if err != nil {
		return nil, err
	}

	return &service.CreateReadingCommand{
		ReadingID:  id,
		PatientID:  patientID,
		Value:      value,
		Unit:       reading.Unit(m.Unit),
		RecordedAt: recordedAt,
	}, nil
}

type Processor struct {
	svc *service.ReadingService
	log *zap.Logger
}

func NewProcessor(svc *service.ReadingService, log *zap.Logger) *Processor {
	return &Processor{svc: svc, log: log}
}

// Handle creates one reading per record. Malformed messages and redeliveries
// are dropped; records that fail for any other reason are reported back so
// only they are retried.
func (p *Processor) Handle(ctx context.Context, event awsevents.SQSEvent) (awsevents.SQSEventResponse, error) {
	var resp awsevents.SQSEventResponse

	for _, record := range event.Records {
		log := p.log.With(zap.String("message_id", record.MessageId))

		var msg Message
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			log.Warn("invalid message", zap.Error(err))
			continue
		}

		cmd, err := msg.toCommand()
		if err != nil {
			log.Warn("invalid reading", zap.Error(err))
			continue
		}

		_, err = p.svc.CreateReading(ctx, cmd)
		switch {
		case err == nil:
		case errors.Is(err, reading.ErrDuplicateReading):
			log.Info("reading already ingested", zap.String("reading_id", msg.ReadingUUID))
		case reading.IsInvalidInput(err):
			log.Warn("invalid reading", zap.Error(err))
		default:
			log.Error("failed to ingest reading", zap.String("reading_id", msg.ReadingUUID), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, awsevents.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	return resp, nil
}
