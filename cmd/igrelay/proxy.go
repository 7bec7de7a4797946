package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igrelay/pkg/config"
	"igrelay/pkg/logger"
	"igrelay/pkg/proxy"
)

var (
	// Proxy command flags
	proxyRandom bool
	proxyTries  int
)

// proxyCmd represents the proxy command
var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Discover working HTTPS proxies",
	Long: `Discover working HTTPS proxies from a public listing.

Candidates are scraped from the listing page, filtered to elite
HTTPS-capable entries and probed against an echo endpoint. The first
working proxy is printed to stdout, ready for HTTPS_PROXY.`,
}

// proxyFindCmd represents the proxy find command
var proxyFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Find one working proxy",
	Example: `  # Scan candidates in listing order
  igrelay proxy find

  # Probe up to 20 random candidates instead
  igrelay proxy find --random --tries 20

  # Use it for the scraper
  export HTTPS_PROXY=$(igrelay proxy find)`,
	RunE: runProxyFind,
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.AddCommand(proxyFindCmd)

	proxyFindCmd.Flags().BoolVar(&proxyRandom, "random", false, "probe random candidates instead of listing order")
	proxyFindCmd.Flags().IntVar(&proxyTries, "tries", 0, "random candidates to probe (default from config)")
}

func runProxyFind(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	_ = cfg.LoadFromEnv()
	cfg.Logging.Level = logLevel

	logger.Initialize(cfg.Logging.LoggerConfig())
	log := logger.GetLogger()

	finder := proxy.NewFinder(&cfg.Proxy, log)

	candidates, err := finder.ParseCandidates()
	if err != nil {
		return fmt.Errorf("failed to fetch proxy candidates: %w", err)
	}
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stderr, "No proxy candidates found")
		os.Exit(1)
	}

	var (
		found proxy.Candidate
		ok    bool
	)
	if proxyRandom {
		tries := proxyTries
		if tries <= 0 {
			tries = cfg.Proxy.MaxTries
		}
		found, ok = finder.RandomValid(candidates, tries)
	} else {
		found, ok = finder.FirstValid(candidates)
	}

	if !ok {
		fmt.Fprintln(os.Stderr, "No working proxy found")
		os.Exit(1)
	}

	fmt.Println(found.URL)
	return nil
}
