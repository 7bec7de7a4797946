package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igrelay/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igrelay configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IGRELAY_*)
  - .env file
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.igrelay.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration merged from all sources.

The bot token is masked for security.`,
	Run: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".igrelay.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(os.Stderr, "Configuration file already exists: %s\n", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# igrelay Configuration File
#
# You can also use environment variables prefixed with IGRELAY_
# For example: IGRELAY_BOT_TOKEN, IGRELAY_SCRAPE_PERIOD

# Telegram delivery settings
telegram:
  # Bot token from @BotFather. Prefer 'igrelay auth login' or the
  # IGRELAY_BOT_TOKEN environment variable over putting it here.
  token: ""

  # Bot API endpoint; change only for a self-hosted Bot API server
  api_base_url: "https://api.telegram.org"

  # Timeout for a single API request
  request_timeout: 30s

  # Pause after each successful send so chats are not flooded
  send_delay: 2s

  # Upper bound on API calls per minute
  messages_per_minute: 20

  # Retries for transient API failures
  max_retries: 3

# Tracked accounts and their destination chats.
# Group and channel IDs are negative numbers.
accounts:
  - username: "natgeo"
    chat_ids:
      - "-1001234567890"
  - username: "nasa"
    chat_ids:
      - "-1001234567890"
      - "-1009876543210"

# Caption formatting
caption:
  # Telegram caps media captions at 1024 characters
  max_length: 1024

  # Appended when a caption is cut off
  tail: "..."

  # Append a link to the original post
  include_link: false

# External scraper collaborator and cycle loop
scraper:
  # Command invoked once per account and cycle
  command: "instagram-scraper"

  # Extra arguments prepended to every invocation
  args: []

  # Media working directory
  temp_dir: "tmp"

  # Posts fetched per account and cycle
  limit: 5

  # Sleep between cycles
  period: 1h

# Free proxy discovery (igrelay proxy find)
proxy:
  listing_url: "https://free-proxy-list.net"
  probe_url: "https://httpbin.org/ip"
  timeout: 5s
  max_tries: 10

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path; rotated automatically
  file: "logs/igrelay.log"

  # Maximum log file size in MB before rotation
  max_size: 2

  # Rotated files to keep
  max_backups: 2

  # Compress rotated files
  compress: false
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create configuration file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file and add your tracked accounts and chat IDs")
	fmt.Println("2. Store your bot token with 'igrelay auth login'")
	fmt.Println("3. Run 'igrelay config validate' to check the configuration")
	fmt.Println("4. Verify delivery with 'igrelay run --test'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Mask the token for display
	displayCfg := *cfg
	if displayCfg.Telegram.Token != "" {
		if len(displayCfg.Telegram.Token) > 8 {
			displayCfg.Telegram.Token = displayCfg.Telegram.Token[:4] + "..." + displayCfg.Telegram.Token[len(displayCfg.Telegram.Token)-4:]
		} else {
			displayCfg.Telegram.Token = "***"
		}
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to format configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (IGRELAY_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (auto-detected)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		// Try to find config file in common locations
		possiblePaths := []string{
			".igrelay.yaml",
			".igrelay.yml",
			filepath.Join(os.Getenv("HOME"), ".igrelay.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "igrelay", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			fmt.Fprintln(os.Stderr, "No configuration file found. Specify one with --config")
			os.Exit(1)
		}
	}

	fmt.Println("Validating configuration: " + configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	warnings := []string{}
	errors := []string{}

	if cfg.Telegram.Token == "" {
		warnings = append(warnings, "bot token not configured; use 'igrelay auth login' or IGRELAY_BOT_TOKEN")
	}

	// Check paths
	if err := os.MkdirAll(cfg.Scraper.TempDir, 0755); err != nil {
		errors = append(errors, fmt.Sprintf("cannot create media directory: %v", err))
	}
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(errors) > 0 {
		fmt.Fprintln(os.Stderr, "Configuration has errors:")
		for _, err := range errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		fmt.Println("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	fmt.Println("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Tracked accounts: %d\n", len(cfg.Accounts))
	fmt.Printf("  Media directory: %s\n", cfg.Scraper.TempDir)
	fmt.Printf("  Cycle period: %s\n", cfg.Scraper.Period)
	fmt.Printf("  Posts per cycle: %d\n", cfg.Scraper.Limit)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
