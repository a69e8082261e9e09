// Command ingest-lambda loads readings from an SQS queue into the store.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/config"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/events"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/ingest"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log, cfg.App)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	// Nothing scrapes a Lambda; the registry only backs the collector.
	collector := metrics.NewCollector(cfg.App.Name, prometheus.NewRegistry())

	st, err := store.Open(ctx, cfg.Store, log, collector)
	if err != nil {
		return err
	}
	defer st.Close()

	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.Events.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, log)
	}
	dispatcher := events.NewDispatcher(pub, log, collector)
	defer dispatcher.Shutdown(5 * time.Second)

	svc := service.NewReadingService(st, dispatcher, collector, log)
	processor := ingest.NewProcessor(svc, log.With(zap.String("component", "ingest")))

	lambda.Start(processor.Handle)
	return nil
}
