// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dirsync",
	Short: "dirsync reconciles application accounts against an identity provider",
	Long: `dirsync is a directory reconciliation service. It keeps a per-team
directory of users in sync with an identity provider's OIDC-compatible admin
API, adding newly created users to an optional default group, running as a
scheduled background job or on demand.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
