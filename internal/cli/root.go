// Package cli implements the settled command-line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nexapay/settled/internal/api"
	"github.com/nexapay/settled/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "settled",
	Short: "Merchant settlement (payout) ledger daemon",
	Long: `settled tracks how much of a merchant's processed revenue is withdrawable,
accepts withdrawal requests against that balance, and carries each request
through an admin-reviewed lifecycle to payment. Balances are derived from the
finalized transaction feed and the settlement history; every status change
goes through a compare-and-swap and leaves an immutable audit entry.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(),
		"Path to the TOML configuration file")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (daemon.Config, error) {
	return daemon.LoadConfig(configPath)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".settled", "config.toml")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the settled version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "settled %s\n", api.Version)
	},
}
