package scraper

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"igrelay/pkg/config"
	"igrelay/pkg/logger"
	"igrelay/pkg/store"
)

// Options control one scraper invocation.
type Options struct {
	// MaxPerAccount caps how many posts are fetched per account.
	MaxPerAccount int
	// LatestOnly restricts the fetch to posts newer than what is already
	// on disk.
	LatestOnly bool
}

// Scraper populates each tracked account's directory with any not-yet-present
// media files and refreshes the account's metadata record. The relay only
// ever observes its side effects on the media store.
type Scraper interface {
	Execute(ctx context.Context, opts Options) error
}

// CommandScraper invokes an external scraper binary once per account.
// A failing account is logged and skipped; it never aborts the cycle.
type CommandScraper struct {
	command   string
	baseArgs  []string
	store     *store.Store
	usernames []string
	logger    logger.Logger
}

// NewCommandScraper creates a scraper collaborator from the scraper config
// section and the tracked account list.
func NewCommandScraper(cfg *config.ScraperConfig, st *store.Store, usernames []string, log logger.Logger) *CommandScraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &CommandScraper{
		command:   cfg.Command,
		baseArgs:  cfg.Args,
		store:     st,
		usernames: usernames,
		logger:    log,
	}
}

// Execute runs the scraper for every tracked account.
func (s *CommandScraper) Execute(ctx context.Context, opts Options) error {
	for _, username := range s.usernames {
		if err := s.scrapeAccount(ctx, username, opts); err != nil {
			s.logger.ErrorWithFields("scrape failed for account", map[string]interface{}{
				"username": username,
				"error":    err.Error(),
			})
		}
	}
	return nil
}

// scrapeAccount runs one scraper invocation for a single account
func (s *CommandScraper) scrapeAccount(ctx context.Context, username string, opts Options) error {
	args := make([]string, 0, len(s.baseArgs)+8)
	args = append(args, s.baseArgs...)
	args = append(args, username,
		"--destination", s.store.AccountDir(username),
		"--media-metadata",
	)
	if opts.MaxPerAccount > 0 {
		args = append(args, "--maximum", strconv.Itoa(opts.MaxPerAccount))
	}
	if opts.LatestOnly {
		args = append(args, "--latest")
	}

	s.logger.DebugWithFields("invoking scraper", map[string]interface{}{
		"username": username,
		"command":  s.command,
	})

	cmd := exec.CommandContext(ctx, s.command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("scraper command failed: %w (output: %s)", err, truncateOutput(output))
	}

	s.logger.DebugWithFields("scraper finished", map[string]interface{}{
		"username": username,
	})

	return nil
}

// truncateOutput bounds scraper output included in error messages
func truncateOutput(output []byte) string {
	const limit = 400
	if len(output) > limit {
		return string(output[:limit]) + "..."
	}
	return string(output)
}
