// Package status implements the Status API's read-only reporting endpoints:
// an unauthenticated liveness probe and a permission-gated view of the most
// recent reconciliation run per AuthenticationProvider binding.
package status

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/auth"
	"github.com/lariatlabs/dirsync/internal/config"
	"github.com/lariatlabs/dirsync/internal/db/models"
	"github.com/lariatlabs/dirsync/internal/web/handler"
)

// HealthzPath is the unauthenticated liveness probe route.
const HealthzPath = "/healthz"

// MetricsPath exposes the process's Prometheus registry, including the
// directory_sync_total counter the scheduled driver reports into.
const MetricsPath = "/metrics"

// SyncStatusPath reports the most recent SyncRun per binding.
const SyncStatusPath = "/admin/sync/status"

// Service is the status handler service.
type Service struct {
	handler.Service
	db *gorm.DB
}

// Handler is the status handler.
var Handler = Service{}

// Init initializes the status handler and its routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) error {
	if app == nil || cfg == nil || db == nil || authService == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db

	app.Get(HealthzPath, s.Healthz)
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	app.Get(SyncStatusPath, auth.RequirePermission(authService, auth.PermSyncRead), s.SyncStatus)

	return nil
}

// Healthz reports liveness with no authentication required.
func (s *Service) Healthz(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// runSummary is one binding's most recent reconciliation outcome.
type runSummary struct {
	AuthenticationProviderID string `json:"authenticationProviderId"`
	TeamID                   string `json:"teamId"`
	Created                  int    `json:"created"`
	Updated                  int    `json:"updated"`
	Suspended                int    `json:"suspended"`
	Reactivated              int    `json:"reactivated"`
	Unchanged                int    `json:"unchanged"`
	AddedToGroup             int    `json:"addedToGroup"`
	Errors                   string `json:"errors,omitempty"`
	StartedAt                string `json:"startedAt"`
	FinishedAt               string `json:"finishedAt"`
}

// SyncStatus returns the most recent SyncRun for every binding that has run
// at least once, most recently finished first.
func (s *Service) SyncStatus(c *fiber.Ctx) error {
	var runs []models.SyncRun

	// One SyncRun row per (binding, tick); the latest per binding is the
	// row with the greatest ID for that binding, since rows are append-only.
	err := s.db.WithContext(c.Context()).
		Where("id IN (?)", s.db.Model(&models.SyncRun{}).
			Select("MAX(id)").
			Group("authentication_provider_id"),
		).
		Order("finished_at DESC").
		Find(&runs).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load sync status"})
	}

	out := make([]runSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, runSummary{
			AuthenticationProviderID: r.AuthenticationProviderID,
			TeamID:                   r.TeamID,
			Created:                  r.Created,
			Updated:                  r.Updated,
			Suspended:                r.Suspended,
			Reactivated:              r.Reactivated,
			Unchanged:                r.Unchanged,
			AddedToGroup:             r.AddedToGroup,
			Errors:                   r.Errors,
			StartedAt:                r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			FinishedAt:               r.FinishedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"bindings": out})
}
