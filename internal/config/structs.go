package config

import (
	"time"

	"github.com/lariatlabs/dirsync/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Auth      Auth
	Sync      Sync
}

// Webserver implement webserver settings.
type Webserver struct {
	BrowseStatic        bool    // enable static file browsing (for development purposes only)
	CacheEnabled        bool    // true = enable cache, false = disable cache
	CleanPath           bool    // use clean path middleware to allow multi slash requests
	DisableRecover      bool    // disable recover middleware
	Domain              string  // domain name for the webserver
	Port                int     `validate:"required,gt=0"` // listening port for the webserver
	ShutDownTime        int     // wait time for shutdown
	URL                 string  `validate:"required,url"` // base url for the webserver
	CookieEncryptionKey string  // encryption key for cookies
	Argon2Salt          string  // salt for argon2 hashing
	Session             Session // session settings
}

// Auth groups configuration for operators authenticating against the
// Status API. It has nothing to do with directory sync: sync-provisioned
// users are never authenticated through this configuration.
type Auth struct {
	// OperatorTeamID scopes local/LDAP operator accounts to one team.
	OperatorTeamID string
	// OperatorDefaultRoleID is assigned to operators provisioned on first LDAP login.
	OperatorDefaultRoleID uint
	LocalDB               LocalDBAuth
	LDAP                  LDAPAuth
}

// LocalDBAuth toggles username/password authentication against the local database.
type LocalDBAuth struct {
	Enabled bool
}

// LDAPAuth mirrors internal/auth.LDAPConfig for TOML/env configuration.
type LDAPAuth struct {
	Enabled          bool
	Host             string
	Port             int
	UseSSL           bool
	UseTLS           bool
	SkipVerify       bool
	BindDN           string
	BindPassword     string
	BaseDN           string
	UserFilter       string
	GroupBaseDN      string
	GroupFilter      string
	GroupMemberAttr  string
	UsernameAttr     string
	EmailAttr        string
	FirstNameAttr    string
	LastNameAttr     string
	GroupNameAttr    string
	Timeout          int
	SearchAttributes []string
}

// Sync configures the IdP Admin Client and Scheduled Driver. Unlike the
// rest of Config, these fields are populated from discrete environment
// variables (see LoadSyncConfig) rather than the TOML file, matching the
// external interface named in the spec this service implements.
type Sync struct {
	// Enabled is the master switch for the scheduled driver.
	Enabled bool
	// AdminURL is the IdP base URL, no trailing slash.
	AdminURL string `validate:"required_if=Enabled true"`
	// Realm is the IdP realm name.
	Realm string `validate:"required_if=Enabled true"`
	// ClientID/ClientSecret are the service-account credentials used for
	// the client-credentials grant. They are passed to the token request
	// as configured; empty values do not fall back to any other credentials.
	ClientID     string
	ClientSecret string
	// ReplicaCount and ReplicaIndex drive the deterministic partitioning
	// of AuthenticationProvider bindings across replicas of this service.
	ReplicaCount int
	ReplicaIndex int
	// BatchSize is the page size used when paginating enabled users.
	BatchSize int
	// AvatarMarkers are case-sensitive substrings that mark an AvatarURL
	// as IdP-sourced (vs. operator-set), gating whether directory sync is
	// allowed to overwrite it. Empty means directory sync only ever fills
	// an empty AvatarURL, never replaces one already set.
	AvatarMarkers []string
}
