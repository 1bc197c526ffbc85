package app

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/config"
	"github.com/lariatlabs/dirsync/internal/db/dsn"
	"github.com/lariatlabs/dirsync/internal/directory/gormstore"
	"github.com/lariatlabs/dirsync/internal/scheduler"
)

func init() { //nolint: gochecknoinits
	syncNowCmd.Flags().StringVar(&syncNowConfigPath, "config", "", "Path to the configuration directory")

	rootCmd.AddCommand(syncNowCmd)
}

var syncNowConfigPath string // Path to the configuration directory holding main.toml, for the sync-now command

var syncNowCmd = &cobra.Command{
	Use:   "sync-now",
	Short: "Run one directory reconciliation tick synchronously and exit",
	Long: `sync-now drives the same reconciliation logic as the hourly
scheduled driver, but runs exactly one tick inline and exits instead of
waiting for the next cron interval. It is the "host process's task
runner" escape hatch for operators who want to force a sync from a shell.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.ReadConfig(syncNowConfigPath)
		if err != nil {
			return err
		}

		db, err := openSyncNowDB(cfg.DB)
		if err != nil {
			return err
		}

		store := gormstore.New(db)
		worker := scheduler.NewReconcileWorker(store, cfg.Sync, cfg.Sync.AvatarMarkers)

		log.Info().Msg("running one manual reconciliation tick")

		return worker.RunTick(context.Background())
	},
}

func openSyncNowDB(dbCfg config.DB) (*gorm.DB, error) {
	if dbCfg.GormEngine == "postgres" {
		return gorm.Open(gormpostgres.Open(dsn.CreatePostgres(dbCfg)), &gorm.Config{})
	}

	return gorm.Open(gormmysql.Open(dsn.CreateMySQL(dbCfg)), &gorm.Config{})
}
