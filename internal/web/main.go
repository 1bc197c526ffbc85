// Package web wires the Status API: a JSON-only Fiber application exposing
// operator login/logout and the read-only reconciliation status report.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/auth"
	"github.com/lariatlabs/dirsync/internal/config"
	fiberlogger "github.com/lariatlabs/dirsync/internal/logger/adapter/fiber"
	authmw "github.com/lariatlabs/dirsync/internal/web/middleware/auth"

	"github.com/lariatlabs/dirsync/internal/web/handler/login"
	"github.com/lariatlabs/dirsync/internal/web/handler/logout"
	"github.com/lariatlabs/dirsync/internal/web/handler/status"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
	authService  *auth.Service
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	doneFiber := make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber

	return nil
}

// WaitShutdown waits for graceful shutdown of the service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: waiting %d seconds before stopping the http server",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		if err := s.App.Shutdown(); err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	app := fiber.New(fiber.Config{
		ReadBufferSize: 8192,
		AppName:        "dirsync",
		CaseSensitive:  true,
		Prefork:        false,
	})

	authService := auth.NewService(db)

	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:            cfg.Log,
		CheckAliveURI:     "/healthz",
		CacheControlError: "max-age=0",
	}))
	app.Use(authmw.Middleware)
	app.Use(auth.AddPermissionsToLocals(authService))

	service := &Service{
		cfg:         cfg,
		App:         app,
		db:          db,
		authService: authService,
	}

	if err := login.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize login handler")
	}

	if err := logout.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logout handler")
	}

	if err := status.Handler.Init(app, cfg, db, authService); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize status handler")
	}

	return service
}
