package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"igrelay/pkg/aggregator"
	"igrelay/pkg/caption"
	"igrelay/pkg/config"
	"igrelay/pkg/dispatch"
	"igrelay/pkg/ratelimit"
	"igrelay/pkg/scraper"
	"igrelay/pkg/store"
	"igrelay/pkg/telegram"
)

// recordingSender implements telegram.Sender and counts deliveries
type recordingSender struct {
	photos int
	videos int
	albums int
}

func (r *recordingSender) SendPhoto(chatID string, file telegram.InputFile, caption string) error {
	r.photos++
	return nil
}

func (r *recordingSender) SendVideo(chatID string, file telegram.InputFile, caption string) error {
	r.videos++
	return nil
}

func (r *recordingSender) SendMediaGroup(chatID string, media []telegram.InputMedia) error {
	r.albums++
	return nil
}

func (r *recordingSender) total() int {
	return r.photos + r.videos + r.albums
}

// scriptedScraper drops predefined files into account directories, standing
// in for the external scraper process
type scriptedScraper struct {
	store *store.Store
	drops map[string][]string // username -> file names per Execute call
	runs  int
}

func (s *scriptedScraper) Execute(ctx context.Context, opts scraper.Options) error {
	s.runs++
	for username, names := range s.drops {
		dir := s.store.AccountDir(username)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		for _, name := range names {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
				return err
			}
		}
	}
	return nil
}

func newTestBot(t *testing.T, sender telegram.Sender, scr scraper.Scraper, st *store.Store) (*Bot, *config.Config) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Telegram.Token = "123456789:TESTTOKEN"
	cfg.Telegram.SendDelay = 0
	cfg.Accounts = []config.AccountConfig{
		{Username: "natgeo", ChatIDs: []string{"chat1"}},
	}

	grouper := aggregator.New(st, nil, nil)
	dispatcher := dispatch.New(sender, cfg, ratelimit.NewFixedDelay(0), caption.Options{
		MaxLength: 1024,
		Tail:      "...",
	}, nil)

	return New(cfg, st, grouper, dispatcher, scr, nil), cfg
}

func seedFile(t *testing.T, st *store.Store, username, name string, modTime time.Time) {
	t.Helper()
	dir := st.AccountDir(username)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
}

func TestSingleRunDeliversAboveWatermark(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// The previous cycle left one file behind as the watermark
	seedFile(t, st, "natgeo", "old111.0.jpg", time.Now().Add(-time.Hour))

	sender := &recordingSender{}
	scr := &scriptedScraper{store: st, drops: map[string][]string{
		"natgeo": {"new222.0.jpg"},
	}}
	relay, _ := newTestBot(t, sender, scr, st)

	if err := relay.Run(context.Background(), ModeSingleRun); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if scr.runs != 1 {
		t.Errorf("Expected 1 scrape pass, got %d", scr.runs)
	}
	if sender.photos != 1 || sender.total() != 1 {
		t.Errorf("Expected exactly 1 photo delivery, got %+v", sender)
	}

	// The directory is trimmed back to a single watermark file
	entries, err := os.ReadDir(st.AccountDir("natgeo"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 file after cleanup, got %d", len(entries))
	}
}

func TestSingleRunNothingNew(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	seedFile(t, st, "natgeo", "old111.0.jpg", time.Now().Add(-time.Hour))

	sender := &recordingSender{}
	scr := &scriptedScraper{store: st} // drops nothing
	relay, _ := newTestBot(t, sender, scr, st)

	if err := relay.Run(context.Background(), ModeSingleRun); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if sender.total() != 0 {
		t.Errorf("Expected no deliveries, got %+v", sender)
	}
}

func TestSingleRunDeliversAlbum(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	seedFile(t, st, "natgeo", "old111.0.jpg", time.Now().Add(-time.Hour))

	sender := &recordingSender{}
	scr := &scriptedScraper{store: st, drops: map[string][]string{
		"natgeo": {"new222.0.jpg", "new222.1.jpg", "new222.2.mp4"},
	}}
	relay, _ := newTestBot(t, sender, scr, st)

	if err := relay.Run(context.Background(), ModeSingleRun); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if sender.albums != 1 || sender.total() != 1 {
		t.Errorf("Expected exactly 1 album delivery, got %+v", sender)
	}
}

func TestSetupDeliversNothing(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	sender := &recordingSender{}
	scr := &scriptedScraper{store: st, drops: map[string][]string{
		"natgeo": {"abc123.0.jpg"},
	}}
	relay, _ := newTestBot(t, sender, scr, st)

	if err := relay.Run(context.Background(), ModeSetup); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if sender.total() != 0 {
		t.Errorf("Expected no deliveries during setup, got %+v", sender)
	}

	// The fetched post survives as the watermark
	latest, err := st.Latest("natgeo")
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil {
		t.Error("Expected a watermark after setup")
	}
}

func TestTestModeWipesAndDelivers(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Stale state from earlier runs must not suppress the test delivery
	seedFile(t, st, "natgeo", "stale0.0.jpg", time.Now().Add(-2*time.Hour))

	sender := &recordingSender{}
	scr := &scriptedScraper{store: st, drops: map[string][]string{
		"natgeo": {"abc123.0.jpg"},
	}}
	relay, _ := newTestBot(t, sender, scr, st)

	if err := relay.Run(context.Background(), ModeTest); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if sender.total() != 1 {
		t.Errorf("Expected exactly 1 test delivery, got %+v", sender)
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	sender := &recordingSender{}
	scr := &scriptedScraper{store: st}
	relay, cfg := newTestBot(t, sender, scr, st)
	cfg.Scraper.Period = time.Hour // the loop sleeps before its first cycle

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- relay.Run(ctx, ModeLoop)
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not stop after context cancellation")
	}

	if scr.runs != 0 {
		t.Errorf("Expected no cycles before the first period elapsed, got %d", scr.runs)
	}
}

func TestRunModeString(t *testing.T) {
	tests := []struct {
		mode     RunMode
		expected string
	}{
		{ModeLoop, "loop"},
		{ModeSingleRun, "singlerun"},
		{ModeTest, "test"},
		{ModeSetup, "setup"},
	}
	for _, test := range tests {
		if got := test.mode.String(); got != test.expected {
			t.Errorf("RunMode(%d).String() = %q, want %q", test.mode, got, test.expected)
		}
	}
}
