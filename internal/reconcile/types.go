// Package reconcile implements the directory reconciliation engine: given
// a snapshot of a provider's enabled users, it computes and applies the
// minimal set of local mutations (create, link, update, suspend,
// reactivate) needed to bring the directory in line, and returns a
// SyncReport summarizing what happened. See Engine.Reconcile.
package reconcile

// SyncUser is a normalized snapshot record — the engine's only input
// besides the binding under test. Normalize (component B) is responsible
// for producing these from raw IdP payloads; the engine treats them as
// already-validated except for a defence-in-depth empty-email check.
type SyncUser struct {
	// ProviderID is the IdP-assigned external subject id. Never empty.
	ProviderID string
	// Email is the user's email address. Empty means the record was
	// supposed to have been dropped upstream by Normalize; the engine
	// still guards against it.
	Email string
	// Name is the composed display name.
	Name string
	// AvatarURL is the user's avatar image URL, if the IdP supplied one.
	AvatarURL string
}

// Options configures one reconciliation call.
type Options struct {
	// DefaultGroupID, when non-nil, is the group newly created users are
	// added to. Takes precedence over DefaultGroupName.
	DefaultGroupID *uint
	// DefaultGroupName is used to resolve a default group by name when
	// DefaultGroupID is nil. A group that cannot be resolved by either
	// field is ignored, never fatal; nothing is logged for it.
	DefaultGroupName string
	// IdPAvatarMarkers are substrings that mark an existing avatar URL as
	// IdP-sourced and therefore safe to overwrite. See the attribute diff
	// rules on diffAttrs.
	IdPAvatarMarkers []string
}

// SyncReport is the total, structured summary of one Engine.Reconcile
// call. Every snapshot entry processed without error adds at least one to
// the counts (two when it is both updated and reactivated), and every
// linked user absent from the snapshot adds one; entries that are skipped
// or fail add to Errors instead. See Totality in the package tests.
type SyncReport struct {
	Created      int
	Updated      int
	Suspended    int
	Reactivated  int
	Unchanged    int
	AddedToGroup int
	Errors       []string
}

func (r *SyncReport) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}
