package ingest

import (
	"context"
	"errors"
	"testing"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store/memory"
)

func body(id string) string {
	return `{"reading_uuid":"` + id + `","patient_uuid":"3fa85f64-5717-4562-b3fc-2c963f66afa6","value":"6.10","unit":"mmol/L","recorded_at":"2024-01-01T00:00:00Z"}`
}

func TestHandleCreatesAndSkipsRedeliveries(t *testing.T) {
	store := memory.New()
	p := NewProcessor(service.NewReadingService(store, nil, nil, zap.NewNop()), zap.NewNop())
	id := uuid.NewString()

	resp, err := p.Handle(context.Background(), awsevents.SQSEvent{Records: []awsevents.SQSMessage{
		{MessageId: "m1", Body: body(id)},
		{MessageId: "m2", Body: body(id)},
		{MessageId: "m3", Body: "{not json"},
		{MessageId: "m4", Body: `{"patient_uuid":"3fa85f64-5717-4562-b3fc-2c963f66afa6"}`},
		{MessageId: "m5", Body: `{"reading_uuid":"` + uuid.NewString() + `","patient_uuid":"3fa85f64-5717-4562-b3fc-2c963f66afa6","value":1,"unit":"stone","recorded_at":"2024-01-01T00:00:00Z"}`},
	}})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Equal(t, 1, store.Len())

	svc := service.NewReadingService(store, nil, nil, zap.NewNop())
	got, err := svc.GetReading(context.Background(), reading.ByString(id))
	require.NoError(t, err)
	assert.Equal(t, "6.10", reading.FormatValue(got.Value))
}

type brokenStore struct{}

func (brokenStore) Begin(context.Context) (reading.Session, error) {
	return nil, errors.New("connection refused")
}
func (brokenStore) Backend() string { return "broken" }
func (brokenStore) Close() error    { return nil }

func TestHandleReportsFailedItems(t *testing.T) {
	p := NewProcessor(service.NewReadingService(brokenStore{}, nil, nil, zap.NewNop()), zap.NewNop())

	resp, err := p.Handle(context.Background(), awsevents.SQSEvent{Records: []awsevents.SQSMessage{
		{MessageId: "m1", Body: body(uuid.NewString())},
		{MessageId: "m2", Body: "garbage"},
	}})
	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "m1", resp.BatchItemFailures[0].ItemIdentifier)
}

func TestMessageRequiresReadingID(t *testing.T) {
	_, err := (&Message{PatientUUID: uuid.NewString()}).toCommand()
	assert.ErrorIs(t, err, ErrMissingReadingID)

	_, err = (&Message{ReadingUUID: "x"}).toCommand()
	assert.ErrorIs(t, err, reading.ErrIDValue)
}
