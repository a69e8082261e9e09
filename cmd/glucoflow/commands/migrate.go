package commands

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/config"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/store/sqlstore"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the readings table and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.Store.TestMode {
			return errors.New("nothing to migrate in test mode")
		}

		log, err := logger.New(cfg.Log, cfg.App)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		storeCfg, err := store.ResolveConnection(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}

		db, err := database.Connect(storeCfg)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		if err := sqlstore.Migrate(db); err != nil {
			return err
		}
		log.Info("readings table is up to date", zap.String("dialect", db.Dialector.Name()))
		return nil
	},
}
