// Package store picks and opens the reading store a process runs against.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/config"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store/memory"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store/sqlstore"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/secrets"
)

// ResolveConnection fills in the connection string from AWS Secrets Manager
// when only a secret id is configured.
func ResolveConnection(ctx context.Context, cfg config.StoreConfig) (config.StoreConfig, error) {
	if cfg.ConnectionString != "" || cfg.ConnectionSecret == "" {
		return cfg, nil
	}

	resolver, err := secrets.NewResolver(ctx)
	if err != nil {
		return cfg, err
	}
	conn, err := resolver.ConnectionString(ctx, cfg.ConnectionSecret)
	if err != nil {
		return cfg, err
	}
	cfg.ConnectionString = conn
	return cfg, nil
}

// Open returns the in-memory store in test mode and the SQL store otherwise.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger, m *metrics.Collector) (reading.Store, error) {
	if cfg.TestMode {
		log.Warn("running in test mode: readings are kept in memory and lost on exit")
		return memory.New(), nil
	}

	cfg, err := ResolveConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}

	s, err := sqlstore.New(db, sqlstore.WithLogger(log), sqlstore.WithMetrics(m))
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("opening reading store: %w", err)
	}

	log.Info("reading store ready", zap.String("backend", s.Backend()))
	return s, nil
}
