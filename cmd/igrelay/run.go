package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"igrelay/pkg/aggregator"
	"igrelay/pkg/auth"
	"igrelay/pkg/bot"
	"igrelay/pkg/caption"
	"igrelay/pkg/config"
	"igrelay/pkg/dispatch"
	"igrelay/pkg/logger"
	"igrelay/pkg/metadata"
	"igrelay/pkg/ratelimit"
	"igrelay/pkg/scraper"
	"igrelay/pkg/store"
	"igrelay/pkg/telegram"
)

var (
	// Run command flags
	setupMode     bool
	testMode      bool
	singleRunMode bool
	tempDir       string
	scrapePeriod  time.Duration
	scrapeLimit   int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the relay",
	Long: `Run the relay over all configured accounts.

Without flags the relay loops forever: it sleeps the configured period,
asks the scraper for new posts, forwards anything newer than the last seen
post of each account and trims the media directories back down.

Modes:
  --setup      prime the media directories without delivering anything,
               so the next run only forwards posts published after now
  --test       wipe the media directories, fetch one post per account and
               deliver it, verifying the whole pipeline end to end
  --singlerun  perform exactly one cycle and exit (useful under cron)`,
	Example: `  # Run forever
  igrelay run

  # First-time setup
  igrelay run --setup

  # Verify the pipeline works
  igrelay run --test

  # One cycle, e.g. from cron
  igrelay run --singlerun`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&setupMode, "setup", false, "prime media directories without delivering")
	runCmd.Flags().BoolVar(&testMode, "test", false, "run an end-to-end delivery test")
	runCmd.Flags().BoolVar(&singleRunMode, "singlerun", false, "perform one cycle and exit")
	runCmd.Flags().StringVar(&tempDir, "temp-dir", "", "media working directory")
	runCmd.Flags().DurationVar(&scrapePeriod, "period", 0, "sleep between cycles")
	runCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "posts fetched per account and cycle")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Initialize(cfg.Logging.LoggerConfig())
	log := logger.GetLogger()
	log.WithField("version", version).Info("igrelay starting")

	if cfg.Telegram.Token == "" {
		log.Error("no bot token configured")
		fmt.Fprintln(os.Stderr, "No Telegram bot token found.")
		fmt.Fprintln(os.Stderr, "\nStore one securely with:")
		fmt.Fprintln(os.Stderr, "  igrelay auth login")
		fmt.Fprintln(os.Stderr, "\nOr set the environment variable:")
		fmt.Fprintln(os.Stderr, "  export IGRELAY_BOT_TOKEN=123456789:...")
		os.Exit(1)
	}

	mode := bot.ModeLoop
	switch {
	case setupMode:
		mode = bot.ModeSetup
	case testMode:
		mode = bot.ModeTest
	case singleRunMode:
		mode = bot.ModeSingleRun
	}

	st, err := store.New(cfg.Scraper.TempDir, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create media directory")
	}

	captions := metadata.NewFileSource(st, log)
	grouper := aggregator.New(st, captions, log)

	client := telegram.NewClient(&cfg.Telegram, log)
	limiter := ratelimit.NewFixedDelay(cfg.Telegram.SendDelay)
	dispatcher := dispatch.New(client, cfg, limiter, caption.Options{
		MaxLength:   cfg.Caption.MaxLength,
		Tail:        cfg.Caption.Tail,
		IncludeLink: cfg.Caption.IncludeLink,
	}, log)

	scr := scraper.NewCommandScraper(&cfg.Scraper, st, cfg.Usernames(), log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := bot.New(cfg, st, grouper, dispatcher, scr, log)
	if err := relay.Run(ctx, mode); err != nil {
		log.WithError(err).Error("relay failed")
		return err
	}

	return nil
}

// loadConfig loads the full configuration, pulling the bot token from the
// credential manager when neither the environment nor the config file
// carries one.
func loadConfig() (*config.Config, error) {
	flags := make(map[string]interface{})
	if tempDir != "" {
		flags["temp-dir"] = tempDir
	}
	if scrapePeriod > 0 {
		flags["period"] = scrapePeriod
	}
	if scrapeLimit > 0 {
		flags["limit"] = scrapeLimit
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	if os.Getenv("IGRELAY_BOT_TOKEN") == "" {
		if manager, err := auth.NewManager(); err == nil {
			if token, err := manager.Token(); err == nil {
				flags["token"] = token
			}
		}
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
