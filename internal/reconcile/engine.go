package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lariatlabs/dirsync/internal/db/models"
	"github.com/lariatlabs/dirsync/internal/directory"
)

// Clock is the time source the engine uses for suspension timestamps.
// Tests substitute a fixed clock; production wires time.Now.
type Clock func() time.Time

// Engine reconciles a directory.Store against IdP snapshots. It never
// panics or returns an error from Reconcile: every recoverable failure is
// appended to the returned SyncReport's Errors slice, per the taxonomy in
// the package's error handling design.
type Engine struct {
	store directory.Store
	now   Clock
}

// New builds an Engine over store. now defaults to time.Now when nil.
func New(store directory.Store, now Clock) *Engine {
	if now == nil {
		now = time.Now
	}

	return &Engine{store: store, now: now}
}

// Reconcile computes and applies the minimal set of mutations needed to
// bring the User population scoped to teamID in line with snapshot for
// the authProviderID binding, and returns a summary. See package doc and
// the state machine described in the component design for the exact
// per-user branching.
func (e *Engine) Reconcile(
	ctx context.Context, teamID, authProviderID string, snapshot []SyncUser, opts Options,
) *SyncReport {
	report := &SyncReport{}

	if len(snapshot) == 0 {
		report.addError("Provider returned empty user list - sync aborted to prevent mass suspension")
		return report
	}

	team, err := e.store.FindTeam(ctx, teamID)
	if err != nil {
		report.addError(fmt.Sprintf("Team %s not found", teamID))
		return report
	}

	authProvider, err := e.store.FindAuthProvider(ctx, authProviderID)
	if err != nil {
		report.addError(fmt.Sprintf("Authentication provider %s not found", authProviderID))
		return report
	}

	byProviderID := make(map[string]SyncUser, len(snapshot))
	byLowerEmail := make(map[string]SyncUser, len(snapshot))

	for _, u := range snapshot {
		byProviderID[u.ProviderID] = u

		if u.Email != "" {
			byLowerEmail[strings.ToLower(u.Email)] = u
		}
	}

	defaultGroup := e.resolveDefaultGroup(ctx, team.ID, opts)

	processed := make(map[string]struct{}, len(snapshot))

	e.reconcilePhase1(ctx, team, authProvider, byProviderID, processed, opts.IdPAvatarMarkers, report)
	e.reconcilePhase2(ctx, team, authProvider, snapshot, processed, byLowerEmail, defaultGroup, opts.IdPAvatarMarkers, report)

	return report
}

// reconcilePhase1 walks existing authentications for the binding and
// either matches, updates/reactivates, or suspends the linked user. It
// must run before reconcilePhase2 so a snapshot entry already linked
// never falls through to the create path.
func (e *Engine) reconcilePhase1(
	ctx context.Context,
	team *models.Team,
	authProvider *models.AuthenticationProvider,
	byProviderID map[string]SyncUser,
	processed map[string]struct{},
	avatarMarkers []string,
	report *SyncReport,
) {
	existing, err := e.store.FindAuthenticationsByProvider(ctx, authProvider.ID, team.ID)
	if err != nil {
		report.addError(fmt.Sprintf("Failed to load existing authentications: %s", err.Error()))
		return
	}

	for _, row := range existing {
		auth, user := row.Auth, row.User
		processed[auth.ProviderID] = struct{}{}

		snapUser, isMatch := byProviderID[auth.ProviderID]
		if isMatch {
			e.reconcileMatch(ctx, user, snapUser, avatarMarkers, report)
			continue
		}

		e.reconcileOrphan(ctx, user, report)
	}
}

// reconcileMatch applies the attribute diff and independent reactivation
// to a user whose providerId is still present in the snapshot.
func (e *Engine) reconcileMatch(
	ctx context.Context, user models.User, snap SyncUser, avatarMarkers []string, report *SyncReport,
) {
	err := e.store.WithTransaction(ctx, func(ctx context.Context, tx directory.Store) error {
		attrs, changed := diffAttrs(user, snap, avatarMarkers)
		if attrs != (directory.UserAttrs{}) {
			if err := tx.UpdateUser(ctx, user.ID, attrs); err != nil {
				return err
			}
		}

		if user.SuspendedAt != nil {
			if err := tx.ClearSuspension(ctx, user.ID); err != nil {
				return err
			}

			report.Reactivated++
		}

		if changed {
			report.Updated++
		} else {
			report.Unchanged++
		}

		return nil
	})
	if err != nil {
		report.addError(fmt.Sprintf("Failed to update user %s: %s", user.Email, err.Error()))
	}
}

// reconcileOrphan handles a locally linked user whose providerId is
// absent from the current snapshot: suspend it, unless it is already
// suspended.
func (e *Engine) reconcileOrphan(ctx context.Context, user models.User, report *SyncReport) {
	if user.SuspendedAt != nil {
		report.Unchanged++
		return
	}

	err := e.store.WithTransaction(ctx, func(ctx context.Context, tx directory.Store) error {
		return tx.SuspendUser(ctx, user.ID, nil, e.now())
	})
	if err != nil {
		report.addError(fmt.Sprintf("Failed to suspend user %s: %s", user.Email, err.Error()))
		return
	}

	report.Suspended++
}

// reconcilePhase2 walks snapshot entries whose providerId was not already
// linked in phase 1, and either links them to an existing invited user
// (matched by case-insensitive email) or creates a new user outright.
func (e *Engine) reconcilePhase2(
	ctx context.Context,
	team *models.Team,
	authProvider *models.AuthenticationProvider,
	snapshot []SyncUser,
	processed map[string]struct{},
	byLowerEmail map[string]SyncUser,
	defaultGroup *models.Group,
	avatarMarkers []string,
	report *SyncReport,
) {
	_ = byLowerEmail // matching is re-derived per entry against the store, not the snapshot index

	for _, snap := range snapshot {
		if _, done := processed[snap.ProviderID]; done {
			continue
		}

		if snap.Email == "" {
			report.addError(fmt.Sprintf("Skipping user %s: no email address", snap.ProviderID))
			continue
		}

		existing, err := e.store.FindUserByEmailCI(ctx, team.ID, snap.Email)
		if err != nil && !errors.Is(err, directory.ErrUserNotFound) {
			report.addError(fmt.Sprintf("Failed to create user %s: %s", snap.Email, err.Error()))
			continue
		}

		if existing != nil {
			e.linkExistingUser(ctx, *existing, authProvider.ID, snap, avatarMarkers, report)
			continue
		}

		e.createUser(ctx, team, authProvider.ID, snap, defaultGroup, report)
	}
}

// linkExistingUser handles the "invited user" case: an email-only local
// User with no Authentication for this binding yet.
func (e *Engine) linkExistingUser(
	ctx context.Context,
	user models.User,
	authProviderID string,
	snap SyncUser,
	avatarMarkers []string,
	report *SyncReport,
) {
	err := e.store.WithTransaction(ctx, func(ctx context.Context, tx directory.Store) error {
		if err := tx.CreateAuthentication(ctx, &models.UserAuthentication{
			AuthenticationProviderID: authProviderID,
			ProviderID:               snap.ProviderID,
			UserID:                   user.ID,
			Scopes:                   "",
		}); err != nil {
			return err
		}

		attrs, changed := diffAttrs(user, snap, avatarMarkers)
		if attrs != (directory.UserAttrs{}) {
			if err := tx.UpdateUser(ctx, user.ID, attrs); err != nil {
				return err
			}
		}

		reactivated := false
		if user.SuspendedAt != nil {
			if err := tx.ClearSuspension(ctx, user.ID); err != nil {
				return err
			}

			reactivated = true
			report.Reactivated++
		}

		switch {
		case changed:
			report.Updated++
		case !reactivated:
			report.Unchanged++
		}

		return nil
	})
	if err != nil {
		report.addError(fmt.Sprintf("Failed to update user %s: %s", user.Email, err.Error()))
	}
}

// createUser handles the "no match at all" case: a brand new local User.
// It uses team.DefaultRoleID, resolving the well-known "member" role when
// that is zero, per the fallback documented on models.Team.
func (e *Engine) createUser(
	ctx context.Context,
	team *models.Team,
	authProviderID string,
	snap SyncUser,
	defaultGroup *models.Group,
	report *SyncReport,
) {
	err := e.store.WithTransaction(ctx, func(ctx context.Context, tx directory.Store) error {
		roleID := team.DefaultRoleID
		if roleID == 0 {
			role, err := tx.FindRoleByName(ctx, models.RoleNameMember)
			if err != nil {
				return fmt.Errorf("resolving default role: %w", err)
			}

			roleID = role.ID
		}

		userID, err := tx.CreateUser(ctx, &models.User{
			TeamID:     team.ID,
			Active:     true,
			Email:      snap.Email,
			Name:       snap.Name,
			AvatarURL:  snap.AvatarURL,
			RoleID:     roleID,
			AuthSource: models.AuthSourceOIDC,
		})
		if err != nil {
			return err
		}

		if err := tx.CreateAuthentication(ctx, &models.UserAuthentication{
			AuthenticationProviderID: authProviderID,
			ProviderID:               snap.ProviderID,
			UserID:                   userID,
			Scopes:                   "",
		}); err != nil {
			return err
		}

		if defaultGroup != nil {
			if err := tx.CreateGroupMembership(ctx, userID, defaultGroup.ID, models.GroupPermissionMember); err != nil {
				return err
			}

			report.AddedToGroup++
		}

		return nil
	})
	if err != nil {
		report.addError(fmt.Sprintf("Failed to create user %s: %s", snap.Email, err.Error()))
		return
	}

	report.Created++
}

// resolveDefaultGroup looks up the binding's configured default group.
// A group that cannot be resolved by either id or name is not fatal — it
// is simply treated as absent. The engine never logs, and the scheduled
// driver does not log an unresolved default group either.
func (e *Engine) resolveDefaultGroup(ctx context.Context, teamID string, opts Options) *models.Group {
	if opts.DefaultGroupID != nil {
		g, err := e.store.FindGroupByIDInTeam(ctx, teamID, *opts.DefaultGroupID)
		if err == nil {
			return g
		}
	}

	if opts.DefaultGroupName != "" {
		g, err := e.store.FindGroupByNameInTeam(ctx, teamID, opts.DefaultGroupName)
		if err == nil {
			return g
		}
	}

	return nil
}

// diffAttrs computes the User attribute changes an IdP snapshot record
// implies, per the rules:
//   - name: replaced when the IdP value is non-empty and differs exactly.
//   - email: replaced when the IdP value is non-empty and differs by any
//     character, including a pure case change — the stored email always
//     ends up holding the IdP-supplied casing. A pure case change is
//     written but not reported as a change.
//   - avatarUrl: replaced only when the IdP value is non-empty AND the
//     existing avatar is empty or is recognizably IdP-sourced.
//
// The returned attrs hold every field to write; the bool reports whether
// any attribute changed beyond the letter case of the email.
func diffAttrs(user models.User, snap SyncUser, idpAvatarMarkers []string) (directory.UserAttrs, bool) {
	var (
		attrs   directory.UserAttrs
		changed bool
	)

	if snap.Name != "" && snap.Name != user.Name {
		attrs.Name = snap.Name
		changed = true
	}

	if snap.Email != "" && snap.Email != user.Email {
		attrs.Email = snap.Email
		if !strings.EqualFold(snap.Email, user.Email) {
			changed = true
		}
	}

	if snap.AvatarURL != "" && avatarReplaceable(user.AvatarURL, idpAvatarMarkers) {
		attrs.AvatarURL = snap.AvatarURL
		changed = true
	}

	return attrs, changed
}

func avatarReplaceable(existing string, markers []string) bool {
	if existing == "" {
		return true
	}

	for _, marker := range markers {
		if marker != "" && strings.Contains(existing, marker) {
			return true
		}
	}

	return false
}
