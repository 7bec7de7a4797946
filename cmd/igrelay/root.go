package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igrelay",
	Short: "Relay new Instagram posts into Telegram chats",
	Long: `igrelay watches a set of Instagram accounts and forwards every new post
to the Telegram chats configured for it.

Features:
  - Incremental forwarding: only posts newer than the last seen one are sent
  - Albums arrive as a single Telegram media group with one caption
  - Captions are truncated to fit Telegram limits, optionally with a post link
  - Secure bot token storage using the system keychain
  - Automatic retry with exponential backoff on transient API errors
  - Free proxy discovery for restrictive networks

The actual downloading is delegated to an external scraper command; igrelay
orchestrates it, tracks what is new and handles delivery.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .igrelay.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`igrelay {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
