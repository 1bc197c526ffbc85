// Command dirsync reconciles a local, per-team user directory against an
// external identity provider's OIDC-compatible admin API. It ships as a
// single binary exposing a "start" subcommand (web status API plus the
// hourly scheduled reconciliation driver) and a "sync-now" subcommand for
// running one manual tick from a shell.
package main
