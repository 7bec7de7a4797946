package bot

import (
	"context"
	"fmt"
	"time"

	"igrelay/pkg/aggregator"
	"igrelay/pkg/config"
	"igrelay/pkg/dispatch"
	"igrelay/pkg/logger"
	"igrelay/pkg/models"
	"igrelay/pkg/scraper"
	"igrelay/pkg/store"
)

// RunMode selects how the relay executes.
type RunMode int

const (
	// ModeLoop runs scrape-and-forward cycles forever, sleeping the
	// configured period before each one.
	ModeLoop RunMode = iota
	// ModeSingleRun performs exactly one cycle and exits.
	ModeSingleRun
	// ModeTest wipes the media directories, fetches one post per account
	// and delivers it, verifying the whole pipeline end to end.
	ModeTest
	// ModeSetup primes the media directories without delivering anything,
	// so the next cycle starts from a clean watermark.
	ModeSetup
)

// String returns the mode name used in logs and flag descriptions.
func (m RunMode) String() string {
	switch m {
	case ModeLoop:
		return "loop"
	case ModeSingleRun:
		return "singlerun"
	case ModeTest:
		return "test"
	case ModeSetup:
		return "setup"
	default:
		return "unknown"
	}
}

// Bot drives the relay: it runs the scraper, reconstructs new media items
// above each account's watermark and hands them to the dispatcher.
type Bot struct {
	cfg        *config.Config
	store      *store.Store
	grouper    *aggregator.Grouper
	dispatcher *dispatch.Dispatcher
	scraper    scraper.Scraper
	logger     logger.Logger
}

// New creates a bot from its collaborators.
func New(cfg *config.Config, st *store.Store, grouper *aggregator.Grouper, dispatcher *dispatch.Dispatcher, scr scraper.Scraper, log logger.Logger) *Bot {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Bot{
		cfg:        cfg,
		store:      st,
		grouper:    grouper,
		dispatcher: dispatcher,
		scraper:    scr,
		logger:     log,
	}
}

// Run executes the bot in the given mode. In loop mode it only returns when
// the context is cancelled.
func (b *Bot) Run(ctx context.Context, mode RunMode) error {
	b.logger.InfoWithFields("starting relay", map[string]interface{}{
		"mode":     mode.String(),
		"accounts": len(b.cfg.Accounts),
	})

	switch mode {
	case ModeSetup:
		return b.setup(ctx)
	case ModeTest:
		return b.test(ctx)
	case ModeSingleRun:
		return b.cycle(ctx)
	default:
		return b.loop(ctx)
	}
}

// loop sleeps the configured period, then runs a cycle, forever. A failing
// or panicking cycle is logged and the loop carries on; one bad cycle must
// never take the relay down.
func (b *Bot) loop(ctx context.Context) error {
	for {
		b.logger.InfoWithFields("sleeping until next cycle", map[string]interface{}{
			"period": b.cfg.Scraper.Period.String(),
		})

		select {
		case <-ctx.Done():
			b.logger.Info("relay stopping")
			return nil
		case <-time.After(b.cfg.Scraper.Period):
		}

		b.safeCycle(ctx)
	}
}

// safeCycle runs one cycle, containing errors and panics
func (b *Bot) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorWithFields("cycle panicked", map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
			})
		}
	}()

	if err := b.cycle(ctx); err != nil {
		b.logger.WithError(err).Error("cycle failed")
	}
}

// cycle performs one scrape-and-forward pass over all tracked accounts.
// Watermarks are captured before the scrape so everything that lands above
// them counts as new.
func (b *Bot) cycle(ctx context.Context) error {
	watermarks := b.snapshotWatermarks()

	opts := scraper.Options{
		MaxPerAccount: b.cfg.Scraper.Limit,
		LatestOnly:    true,
	}
	if err := b.scraper.Execute(ctx, opts); err != nil {
		return fmt.Errorf("scrape pass failed: %w", err)
	}

	b.forwardAll(watermarks)
	return nil
}

// setup primes the media directories so the first real cycle has a
// watermark to compare against. Nothing is delivered.
func (b *Bot) setup(ctx context.Context) error {
	b.logger.Info("priming media directories")

	opts := scraper.Options{MaxPerAccount: 1}
	if err := b.scraper.Execute(ctx, opts); err != nil {
		return fmt.Errorf("setup scrape failed: %w", err)
	}

	for _, username := range b.cfg.Usernames() {
		b.store.Cleanup(username, false)
	}

	b.logger.Info("setup complete; the newest post of each account is now the watermark")
	return nil
}

// test resets every account directory, fetches one post per account and
// pushes it through the full delivery path.
func (b *Bot) test(ctx context.Context) error {
	b.logger.Info("running end-to-end delivery test")

	for _, username := range b.cfg.Usernames() {
		b.store.Cleanup(username, true)
	}

	opts := scraper.Options{MaxPerAccount: 1}
	if err := b.scraper.Execute(ctx, opts); err != nil {
		return fmt.Errorf("test scrape failed: %w", err)
	}

	// Directories were wiped, so there is no watermark and everything
	// fetched is delivered.
	b.forwardAll(make(map[string]*models.MediaFile))
	return nil
}

// snapshotWatermarks records the newest media file of each account
func (b *Bot) snapshotWatermarks() map[string]*models.MediaFile {
	watermarks := make(map[string]*models.MediaFile, len(b.cfg.Accounts))
	for _, username := range b.cfg.Usernames() {
		latest, err := b.store.Latest(username)
		if err != nil {
			b.logger.WarnWithFields("failed to read watermark", map[string]interface{}{
				"username": username,
				"error":    err.Error(),
			})
			continue
		}
		watermarks[username] = latest
	}
	return watermarks
}

// forwardAll groups and delivers new media for every account, then trims
// each directory back down to its watermark. A failing account never blocks
// the others.
func (b *Bot) forwardAll(watermarks map[string]*models.MediaFile) {
	for _, username := range b.cfg.Usernames() {
		items, err := b.grouper.Group(username, watermarks[username])
		if err != nil {
			b.logger.ErrorWithFields("failed to group media", map[string]interface{}{
				"username": username,
				"error":    err.Error(),
			})
			continue
		}

		if len(items) == 0 {
			b.logger.InfoWithFields("no new posts", map[string]interface{}{
				"username": username,
			})
		} else {
			b.logger.InfoWithFields("forwarding new posts", map[string]interface{}{
				"username": username,
				"items":    len(items),
			})
			for _, item := range items {
				b.dispatcher.Deliver(item)
			}
		}

		b.store.Cleanup(username, false)
	}
}
