package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lariatlabs/dirsync/internal/db/models"
	"github.com/lariatlabs/dirsync/internal/directory/memstore"
)

const testTeamID = "team-1"

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// newFixture seeds a team and an authentication-provider binding and
// returns the store plus the binding id, ready for Reconcile.
func newFixture(t *testing.T) (*memstore.Store, string) {
	t.Helper()

	store := memstore.New()
	store.SeedTeam(models.Team{ID: testTeamID, Name: "Acme", DefaultRoleID: 1})
	store.SeedAuthProvider(models.AuthenticationProvider{ID: "provider-1", TeamID: testTeamID, Name: "oidc", Enabled: true})

	return store, "provider-1"
}

func TestReconcile_Scenario1_CreatesTwoNewUsers(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	snapshot := []SyncUser{
		{ProviderID: "g1", Email: "a@x.com", Name: "A"},
		{ProviderID: "g2", Email: "b@x.com", Name: "B"},
	}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Suspended)
	assert.Empty(t, report.Errors)

	users := store.UsersInTeam(testTeamID)
	require.Len(t, users, 2)

	for _, u := range users {
		auths := store.AuthenticationsForUser(u.ID)
		require.Len(t, auths, 1)
		assert.Contains(t, []string{"g1", "g2"}, auths[0].ProviderID)
	}
}

func TestReconcile_Scenario2_UpdatesChangedName(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	userID := store.SeedUser(models.User{TeamID: testTeamID, Email: "u@x.com", Name: "Old", Active: true})
	store.SeedAuthentication(models.UserAuthentication{AuthenticationProviderID: providerID, ProviderID: "g1", UserID: userID})

	snapshot := []SyncUser{{ProviderID: "g1", Email: "u@x.com", Name: "New"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Created)

	u, ok := store.User(userID)
	require.True(t, ok)
	assert.Equal(t, "New", u.Name)
}

func TestReconcile_Scenario3_IdenticalSnapshotIsUnchanged(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	userID := store.SeedUser(models.User{TeamID: testTeamID, Email: "u@x.com", Name: "Same", Active: true})
	store.SeedAuthentication(models.UserAuthentication{AuthenticationProviderID: providerID, ProviderID: "g1", UserID: userID})

	snapshot := []SyncUser{{ProviderID: "g1", Email: "u@x.com", Name: "Same"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Updated)
}

func TestReconcile_Scenario4_OrphanSuspendedAndNewCreated(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	userID := store.SeedUser(models.User{TeamID: testTeamID, Email: "u@x.com", Name: "U", Active: true})
	store.SeedAuthentication(models.UserAuthentication{AuthenticationProviderID: providerID, ProviderID: "g1", UserID: userID})

	snapshot := []SyncUser{{ProviderID: "g2", Email: "other@x.com", Name: "O"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 1, report.Suspended)
	assert.Equal(t, 1, report.Created)

	u, ok := store.User(userID)
	require.True(t, ok)
	assert.NotNil(t, u.SuspendedAt)
}

func TestReconcile_Scenario5_ReactivatesSuspendedUser(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	suspendedAt := time.Now().Add(-time.Hour)
	userID := store.SeedUser(models.User{TeamID: testTeamID, Email: "u@x.com", Name: "U", Active: true, SuspendedAt: &suspendedAt})
	store.SeedAuthentication(models.UserAuthentication{AuthenticationProviderID: providerID, ProviderID: "g1", UserID: userID})

	snapshot := []SyncUser{{ProviderID: "g1", Email: "u@x.com", Name: "U"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 1, report.Reactivated)

	u, ok := store.User(userID)
	require.True(t, ok)
	assert.Nil(t, u.SuspendedAt)
}

func TestReconcile_Scenario6_LinksInvitedUserByEmail(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	userID := store.SeedUser(models.User{TeamID: testTeamID, Email: "invited@x.com", Name: "Old Name", Active: true})

	snapshot := []SyncUser{{ProviderID: "g1", Email: "invited@x.com", Name: "Invited"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)

	auths := store.AuthenticationsForUser(userID)
	require.Len(t, auths, 1)
	assert.Equal(t, "g1", auths[0].ProviderID)
}

func TestReconcile_Scenario7_EmptySnapshotAborts(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	userID := store.SeedUser(models.User{TeamID: testTeamID, Email: "u@x.com", Name: "U", Active: true})
	store.SeedAuthentication(models.UserAuthentication{AuthenticationProviderID: providerID, ProviderID: "g1", UserID: userID})

	report := engine.Reconcile(context.Background(), testTeamID, providerID, []SyncUser{}, Options{})

	assert.Equal(t, 0, report.Suspended)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "empty user list")

	u, ok := store.User(userID)
	require.True(t, ok)
	assert.Nil(t, u.SuspendedAt)
}

func TestReconcile_Scenario8_DropsRecordWithoutEmail(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	raw := []RawUser{
		{ID: "g1", Username: "nomail", Email: "", Enabled: true},
		{ID: "g2", Email: "v@x.com", FirstName: "V", Enabled: true},
	}

	normalized, normErrs := Normalize(raw)
	require.Len(t, normErrs, 1)
	assert.Contains(t, normErrs[0], "no email address")

	report := engine.Reconcile(context.Background(), testTeamID, providerID, normalized, Options{})

	assert.Equal(t, 1, report.Created)

	users := store.UsersInTeam(testTeamID)
	require.Len(t, users, 1)
	assert.Equal(t, "v@x.com", users[0].Email)
}

func TestReconcile_CaseInsensitiveEmailMatchesExistingUser(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	store.SeedUser(models.User{TeamID: testTeamID, Email: "test@example.com", Name: "Test", Active: true})

	snapshot := []SyncUser{{ProviderID: "g1", Email: "TEST@EXAMPLE.COM", Name: "Test"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Unchanged)

	users := store.UsersInTeam(testTeamID)
	require.Len(t, users, 1)
	assert.Equal(t, "TEST@EXAMPLE.COM", users[0].Email)
}

func TestReconcile_UnknownTeamReturnsError(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	report := engine.Reconcile(context.Background(), "no-such-team", providerID, []SyncUser{{ProviderID: "g1", Email: "a@x.com"}}, Options{})

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "Team")
	assert.Contains(t, report.Errors[0], "not found")
}

func TestReconcile_UnknownAuthProviderReturnsError(t *testing.T) {
	store, _ := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	report := engine.Reconcile(context.Background(), testTeamID, "no-such-provider", []SyncUser{{ProviderID: "g1", Email: "a@x.com"}}, Options{})

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "Authentication provider")
	assert.Contains(t, report.Errors[0], "not found")
}

func TestReconcile_NewUserAddedToDefaultGroup(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	store.SeedGroup(models.Group{ID: 1, TeamID: testTeamID, Name: "Everyone", Source: models.GroupSourceLocal})

	snapshot := []SyncUser{{ProviderID: "g1", Email: "new@x.com", Name: "New"}}
	groupID := uint(1)

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{DefaultGroupID: &groupID})

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.AddedToGroup)

	users := store.UsersInTeam(testTeamID)
	require.Len(t, users, 1)
	assert.True(t, store.IsMember(users[0].ID, 1))
}

func TestReconcile_UnresolvableDefaultGroupIsIgnoredNotFatal(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	snapshot := []SyncUser{{ProviderID: "g1", Email: "new@x.com", Name: "New"}}
	groupID := uint(999)

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{DefaultGroupID: &groupID})

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.AddedToGroup)
	assert.Empty(t, report.Errors)
}

func TestReconcile_AvatarOnlyReplacedWhenEmptyOrIdPSourced(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	userID := store.SeedUser(models.User{
		TeamID: testTeamID, Email: "u@x.com", Name: "U", Active: true,
		AvatarURL: "https://uploads.example.com/custom.png",
	})
	store.SeedAuthentication(models.UserAuthentication{AuthenticationProviderID: providerID, ProviderID: "g1", UserID: userID})

	snapshot := []SyncUser{{ProviderID: "g1", Email: "u@x.com", Name: "U", AvatarURL: "https://idp.example.com/avatar.png"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 1, report.Unchanged)

	u, ok := store.User(userID)
	require.True(t, ok)
	assert.Equal(t, "https://uploads.example.com/custom.png", u.AvatarURL)
}

func TestReconcile_AvatarReplacedWhenExistingIsIdPSourced(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	userID := store.SeedUser(models.User{
		TeamID: testTeamID, Email: "u@x.com", Name: "U", Active: true,
		AvatarURL: "https://idp.example.com/old-avatar.png",
	})
	store.SeedAuthentication(models.UserAuthentication{AuthenticationProviderID: providerID, ProviderID: "g1", UserID: userID})

	snapshot := []SyncUser{{ProviderID: "g1", Email: "u@x.com", Name: "U", AvatarURL: "https://idp.example.com/new-avatar.png"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot,
		Options{IdPAvatarMarkers: []string{"idp.example.com"}})

	assert.Equal(t, 1, report.Updated)

	u, ok := store.User(userID)
	require.True(t, ok)
	assert.Equal(t, "https://idp.example.com/new-avatar.png", u.AvatarURL)
}

func TestReconcile_CreateUserFallsBackToMemberRoleWhenTeamDefaultIsZero(t *testing.T) {
	store := memstore.New()
	store.SeedTeam(models.Team{ID: testTeamID, Name: "Acme", DefaultRoleID: 0})
	store.SeedAuthProvider(models.AuthenticationProvider{ID: "provider-1", TeamID: testTeamID, Name: "oidc", Enabled: true})
	store.SeedRole(models.Role{ID: 7, Name: models.RoleNameMember})

	engine := New(store, fixedClock(time.Now()))

	snapshot := []SyncUser{{ProviderID: "g1", Email: "new@x.com", Name: "New"}}

	report := engine.Reconcile(context.Background(), testTeamID, "provider-1", snapshot, Options{})

	require.Equal(t, 1, report.Created)
	require.Empty(t, report.Errors)

	users := store.UsersInTeam(testTeamID)
	require.Len(t, users, 1)
	assert.Equal(t, uint(7), users[0].RoleID)
}

func TestReconcile_Idempotence(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	snapshot := []SyncUser{
		{ProviderID: "g1", Email: "a@x.com", Name: "A"},
		{ProviderID: "g2", Email: "b@x.com", Name: "B"},
	}

	first := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})
	require.Equal(t, 2, first.Created)

	second := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 0, second.Suspended)
	assert.Equal(t, 0, second.Reactivated)
	assert.Equal(t, 2, second.Unchanged)
}

func TestReconcile_Totality(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	userID := store.SeedUser(models.User{TeamID: testTeamID, Email: "existing@x.com", Name: "Existing", Active: true})
	store.SeedAuthentication(models.UserAuthentication{AuthenticationProviderID: providerID, ProviderID: "gExisting", UserID: userID})

	snapshot := []SyncUser{
		{ProviderID: "gExisting", Email: "existing@x.com", Name: "Existing"},
		{ProviderID: "gNew", Email: "new@x.com", Name: "New"},
	}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	total := report.Created + report.Updated + report.Unchanged + report.Suspended + report.Reactivated
	assert.GreaterOrEqual(t, total, len(snapshot))
}

func TestReconcile_NoCrossTenantLeakage(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	otherTeamID := "team-2"
	store.SeedTeam(models.Team{ID: otherTeamID, Name: "Other", DefaultRoleID: 1})
	otherUserID := store.SeedUser(models.User{TeamID: otherTeamID, Email: "u@x.com", Name: "Other Team User", Active: true})

	snapshot := []SyncUser{{ProviderID: "g1", Email: "u@x.com", Name: "Changed"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})

	assert.Equal(t, 1, report.Created)

	otherUser, ok := store.User(otherUserID)
	require.True(t, ok)
	assert.Equal(t, "Other Team User", otherUser.Name)
}

func TestReconcile_AuthenticationUniqueness(t *testing.T) {
	store, providerID := newFixture(t)
	engine := New(store, fixedClock(time.Now()))

	snapshot := []SyncUser{{ProviderID: "g1", Email: "a@x.com", Name: "A"}}

	report := engine.Reconcile(context.Background(), testTeamID, providerID, snapshot, Options{})
	require.Equal(t, 1, report.Created)

	users := store.UsersInTeam(testTeamID)
	require.Len(t, users, 1)

	auths := store.AuthenticationsForUser(users[0].ID)
	require.Len(t, auths, 1)

	seen := map[string]bool{}
	for _, a := range auths {
		key := a.AuthenticationProviderID + "/" + a.ProviderID
		assert.False(t, seen[key], "duplicate (authenticationProviderId, providerId) pair")
		seen[key] = true
	}
}
