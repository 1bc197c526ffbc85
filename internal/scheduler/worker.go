// Package scheduler implements the Scheduled Driver: a River periodic job
// that, once an hour, enumerates the AuthenticationProvider bindings this
// replica owns, builds one IdP Admin Client, fetches a single snapshot,
// and reconciles each owned binding against it sequentially. Grounded on
// the pack's own River usage in internal/jobs/notification_cleanup.go —
// the teacher itself has no background job system.
package scheduler

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog/log"

	"github.com/lariatlabs/dirsync/internal/config"
	"github.com/lariatlabs/dirsync/internal/db/models"
	"github.com/lariatlabs/dirsync/internal/directory"
	"github.com/lariatlabs/dirsync/internal/idp"
	"github.com/lariatlabs/dirsync/internal/reconcile"
)

// TickInterval is the fixed cron-style cadence of the scheduled driver.
const TickInterval = time.Hour

// maxLoggedErrors bounds how many of a SyncReport's error strings are
// logged verbatim per binding, per tick.
const maxLoggedErrors = 10

// BindingLister is the narrow, scheduler-only slice of gormstore.Store the
// worker depends on. The engine's own directory.Store never enumerates
// bindings, so this stays a separate interface rather than growing that one.
type BindingLister interface {
	ListEnabledBindings(ctx context.Context, providerName string) ([]models.AuthenticationProvider, error)
}

// RunRecorder persists one SyncRun after a Reconcile call returns. Kept
// separate from directory.Store for the same reason as BindingLister.
type RunRecorder interface {
	SaveSyncRun(ctx context.Context, run *models.SyncRun) error
}

// ClientFactory builds a fresh IdP Admin Client for one tick. Injectable
// so tests can point the worker at an httptest.Server without touching
// real OAuth2 config.
type ClientFactory func(cfg config.Sync) *idp.Client

// DefaultClientFactory builds a production idp.Client from Sync config.
func DefaultClientFactory(cfg config.Sync) *idp.Client {
	return idp.New(idp.Config{
		AdminURL:     cfg.AdminURL,
		Realm:        cfg.Realm,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
}

// ReconcileArgs is the River job kind driving one scheduled tick. It
// carries no per-invocation data — the tick is a full sweep of every
// binding this replica owns, driven entirely by config and the database.
type ReconcileArgs struct{}

// Kind implements river.JobArgs.
func (ReconcileArgs) Kind() string { return "directory_reconcile" }

// InsertOpts matches the two-attempt, background-priority contract this
// package's docs specify for the scheduled driver.
func (ReconcileArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 2,
		Priority:    river.PriorityLow,
	}
}

// ReconcileWorker runs one scheduled tick.
type ReconcileWorker struct {
	river.WorkerDefaults[ReconcileArgs]

	store   directory.Store
	binding BindingLister
	runs    RunRecorder

	syncCfg       config.Sync
	newClient     ClientFactory
	replicaCount  int
	replicaIndex  int
	batchSize     int
	avatarMarkers []string
	clock         reconcile.Clock
}

// NewReconcileWorker builds a worker bound to one Store implementation
// that also satisfies BindingLister and RunRecorder (gormstore.Store does).
func NewReconcileWorker[S interface {
	directory.Store
	BindingLister
	RunRecorder
}](store S, syncCfg config.Sync, avatarMarkers []string) *ReconcileWorker {
	replicaCount := syncCfg.ReplicaCount
	if replicaCount <= 0 {
		replicaCount = 1
	}

	batchSize := syncCfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &ReconcileWorker{
		store:         store,
		binding:       store,
		runs:          store,
		syncCfg:       syncCfg,
		newClient:     DefaultClientFactory,
		replicaCount:  replicaCount,
		replicaIndex:  syncCfg.ReplicaIndex,
		batchSize:     batchSize,
		avatarMarkers: avatarMarkers,
	}
}

// ownsBinding reports whether providerID falls in this replica's
// partition window: fnv32(providerID) % replicaCount == replicaIndex.
func ownsBinding(providerID string, replicaCount, replicaIndex int) bool {
	h := fnv.New32a()
	_, _ = h.Write([]byte(providerID))

	return int(h.Sum32())%replicaCount == replicaIndex
}

// Work runs one scheduled tick via River. The body lives in RunTick so the
// "sync-now" CLI command can drive the identical logic without a River job
// envelope.
func (w *ReconcileWorker) Work(ctx context.Context, _ *river.Job[ReconcileArgs]) error {
	return w.RunTick(ctx)
}

// RunTick enumerates owned bindings, builds one IdP client, runs
// testConnection, fetches one snapshot, and reconciles each binding against
// that same snapshot sequentially. One binding's failure never aborts the
// rest. Shared by the periodic River job and the manual "sync-now" command.
func (w *ReconcileWorker) RunTick(ctx context.Context) error {
	if !w.syncCfg.Enabled {
		log.Debug().Msg("directory sync disabled, skipping tick")
		return nil
	}

	allBindings, err := w.binding.ListEnabledBindings(ctx, "oidc")
	if err != nil {
		return fmt.Errorf("listing enabled bindings: %w", err)
	}

	owned := make([]models.AuthenticationProvider, 0, len(allBindings))

	for _, b := range allBindings {
		if ownsBinding(b.ID, w.replicaCount, w.replicaIndex) {
			owned = append(owned, b)
		}
	}

	if len(owned) == 0 {
		log.Debug().Int("replica", w.replicaIndex).Msg("no bindings owned this tick")
		return nil
	}

	client := w.newClient(w.syncCfg)

	if !client.TestConnection(ctx) {
		log.Warn().Msg("idp admin client failed connectivity probe, aborting tick")
		return nil
	}

	raw, err := client.FetchEnabledUsers(ctx, w.batchSize)
	if err != nil {
		log.Warn().Err(err).Msg("fetching idp snapshot failed, aborting tick")
		return nil
	}

	snapshot, normErrs := reconcile.Normalize(raw)
	for _, e := range normErrs {
		log.Warn().Str("stage", "normalize").Msg(e)
	}

	engine := reconcile.New(w.store, w.clock)

	for _, binding := range owned {
		w.reconcileOneBinding(ctx, engine, binding, snapshot)
	}

	return nil
}

func (w *ReconcileWorker) reconcileOneBinding(
	ctx context.Context, engine *reconcile.Engine, binding models.AuthenticationProvider, snapshot []reconcile.SyncUser,
) {
	opts := reconcile.Options{
		DefaultGroupID:   binding.SyncDefaultGroupID,
		DefaultGroupName: binding.SyncDefaultGroupName,
		IdPAvatarMarkers: w.avatarMarkers,
	}

	started := time.Now()
	report := engine.Reconcile(ctx, binding.TeamID, binding.ID, snapshot, opts)
	finished := time.Now()

	logEvent := log.Info().
		Str("binding", binding.ID).
		Str("team", binding.TeamID).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("suspended", report.Suspended).
		Int("reactivated", report.Reactivated).
		Int("unchanged", report.Unchanged).
		Int("addedToGroup", report.AddedToGroup)

	shown := report.Errors
	if len(shown) > maxLoggedErrors {
		shown = shown[:maxLoggedErrors]
	}

	for _, e := range shown {
		logEvent = logEvent.Str("error", e)
	}

	logEvent.Msg("reconciled binding")

	observeReport(binding.ID, report)

	run := &models.SyncRun{
		AuthenticationProviderID: binding.ID,
		TeamID:                   binding.TeamID,
		Created:                  report.Created,
		Updated:                  report.Updated,
		Suspended:                report.Suspended,
		Reactivated:              report.Reactivated,
		Unchanged:                report.Unchanged,
		AddedToGroup:             report.AddedToGroup,
		Errors:                   joinErrors(report.Errors),
		StartedAt:                started,
		FinishedAt:               finished,
	}

	if err := w.runs.SaveSyncRun(ctx, run); err != nil {
		log.Error().Err(err).Str("binding", binding.ID).Msg("failed to persist sync run")
	}
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "\n"
		}

		out += e
	}

	return out
}
