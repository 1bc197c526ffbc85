// Package daemon composes the storage, sync, and web layers into the
// running service.
package daemon

import (
	"context"
	"fmt"

	"github.com/gofiber/storage"
	sessionmysql "github.com/gofiber/storage/mysql/v2"
	sessionpostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/config"
	"github.com/lariatlabs/dirsync/internal/db/dsn"
	"github.com/lariatlabs/dirsync/internal/db/models"
	"github.com/lariatlabs/dirsync/internal/directory/gormstore"
	"github.com/lariatlabs/dirsync/internal/scheduler"
	"github.com/lariatlabs/dirsync/internal/web"
	"github.com/lariatlabs/dirsync/internal/web/session"
)

// enginePostgres is the only GormEngine value the scheduled driver supports:
// the riverpgxv5 driver only speaks Postgres.
const enginePostgres = "postgres"

// Daemon represents the main application daemon.
type Daemon struct {
	webService  web.Service
	riverClient *river.Client[pgx.Tx]
	addr        string
}

// Start starts the Daemon's web service and, if configured, its River client.
func (d *Daemon) Start() error {
	if d.riverClient != nil {
		if err := d.riverClient.Start(context.Background()); err != nil {
			return fmt.Errorf("starting river client: %w", err)
		}
	}

	return d.webService.Start(d.addr)
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	var (
		db             *gorm.DB
		sessionStorage storage.Storage
		err            error
	)

	if cfg.DB.GormEngine == enginePostgres {
		db, err = gorm.Open(gormpostgres.Open(dsn.CreatePostgres(cfg.DB)), &gorm.Config{})
		sessionStorage = sessionpostgres.New(sessionpostgres.Config{
			ConnectionURI: dsn.CreatePostgres(cfg.DB),
			Table:         "sessions",
		})
	} else {
		db, err = gorm.Open(gormmysql.Open(dsn.CreateMySQL(cfg.DB)), &gorm.Config{})
		sessionStorage = sessionmysql.New(sessionmysql.Config{
			ConnectionURI: dsn.CreateMySQL(cfg.DB),
			Table:         "sessions",
		})
	}

	if err != nil {
		panic("failed to connect database")
	}

	if err = db.AutoMigrate(
		&models.Team{},
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.AuthenticationProvider{},
		&models.User{},
		&models.UserAuthentication{},
		&models.Group{},
		&models.UserGroup{},
		&models.GroupMapping{},
		&models.SyncRun{},
	); err != nil {
		panic("failed to migrate database")
	}

	seed(cfg, db)

	session.Init(sessionStorage)

	d := &Daemon{webService: *web.New(cfg, db), addr: fmt.Sprintf(":%d", cfg.Webserver.Port)}

	if cfg.Sync.Enabled {
		if cfg.DB.GormEngine != enginePostgres {
			log.Warn().Msg("directory sync is enabled but GormEngine is not postgres; " +
				"the scheduled driver requires the riverpgxv5 driver, skipping")
		} else {
			d.riverClient = initScheduler(context.Background(), cfg, db)
		}
	}

	return d
}

// initScheduler wires the Postgres-backed River client running the
// scheduled directory reconciliation job on an hourly cadence.
func initScheduler(ctx context.Context, cfg *config.Config, db *gorm.DB) *river.Client[pgx.Tx] {
	pool, err := pgxpool.New(ctx, dsn.CreatePostgres(cfg.DB))
	if err != nil {
		log.Error().Err(err).Msg("failed to create river connection pool, scheduled driver disabled")
		return nil
	}

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to create river migrator, scheduled driver disabled")
		return nil
	}

	if _, err = migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		log.Error().Err(err).Msg("failed to run river migrations, scheduled driver disabled")
		return nil
	}

	store := gormstore.New(db)
	worker := scheduler.NewReconcileWorker(store, cfg.Sync, cfg.Sync.AvatarMarkers)

	workers := river.NewWorkers()
	river.AddWorker(workers, worker)

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 1},
		},
		Workers: workers,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create river client, scheduled driver disabled")
		return nil
	}

	riverClient.PeriodicJobs().Add(
		river.NewPeriodicJob(
			river.PeriodicInterval(scheduler.TickInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return scheduler.ReconcileArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	)

	return riverClient
}
