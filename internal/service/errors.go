package service

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
)

// fail marks span as failed and logs err at a level that matches its kind.
// Rejected input and missing readings are the caller's problem and only
// reach debug logs.
func (s *ReadingService) fail(span trace.Span, op string, err error, fields ...zap.Field) error {
	kind := reading.ErrorKind(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)

	fields = append(fields, zap.String("operation", op), zap.String("kind", kind), zap.Error(err))
	switch kind {
	case "internal":
		s.log.Error("reading operation failed", fields...)
	case "canceled":
		s.log.Warn("reading operation canceled", fields...)
	default:
		s.log.Debug("reading operation rejected", fields...)
	}
	return err
}
