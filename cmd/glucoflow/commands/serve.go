package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/config"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/events"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/handler"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store/sqlstore"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/tlsconfig"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/tracer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reading API (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log, cfg.App)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	collector := metrics.NewDefaultCollector(cfg.App.Name)

	st, err := store.Open(ctx, cfg.Store, log, collector)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("closing reading store", zap.Error(err))
		}
	}()

	if sqlStore, ok := st.(*sqlstore.Store); ok {
		go database.WatchPool(ctx, sqlStore.DB(), collector, 15*time.Second, log)
	}

	dispatcher := events.NewDispatcher(newPublisher(cfg.Events, log), log, collector)
	defer dispatcher.Shutdown(10 * time.Second)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize)
	go sweepLimiter(ctx, limiter)

	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(handler.Deps{
		Readings:    service.NewReadingService(st, dispatcher, collector, log),
		Metrics:     collector,
		RateLimiter: limiter,
		Log:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if cfg.Server.TLSEnabled() {
		srv.TLSConfig, err = tlsconfig.Server(cfg.Server.TLSCert, cfg.Server.TLSKey, cfg.Server.TLSCA)
		if err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.Server.TLSEnabled()),
			zap.String("store", st.Backend()),
		)
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func newPublisher(cfg config.EventsConfig, log *zap.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	log.Info("publishing reading events",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
}

func sweepLimiter(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(5 * time.Minute)
		}
	}
}
