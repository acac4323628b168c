package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/mfeltz/footprint/internal/config"
	"github.com/mfeltz/footprint/internal/store"
	"github.com/mfeltz/footprint/pkg/analytics"
	"github.com/mfeltz/footprint/pkg/publish"
	"github.com/mfeltz/footprint/pkg/source"
	"github.com/mfeltz/footprint/pkg/syncer"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildRegistry(cfg *config.Config) *source.Registry {
	reg := source.NewRegistry()

	if cfg.Sources.Readwise.Enabled {
		reg.Register(source.NewReadwise(cfg.Sources.Readwise.Token))
	}
	if cfg.Sources.Foursquare.Enabled {
		reg.Register(source.NewFoursquare(cfg.Sources.Foursquare.Token))
	}
	if cfg.Sources.GitHub.Enabled {
		reg.Register(source.NewGitHubActivity(cfg.Sources.GitHub.Token, cfg.Sources.GitHub.Username))
	}
	if cfg.Sources.Hardcover.Enabled {
		reg.Register(source.NewHardcover(cfg.Sources.Hardcover.Token))
	}
	if cfg.Sources.Letterboxd.Enabled {
		reg.Register(source.NewLetterboxd(cfg.Sources.Letterboxd.ExportDir))
	}
	if cfg.Sources.Overcast.Enabled {
		reg.Register(source.NewOvercast(cfg.Sources.Overcast.ExportPath))
	}
	if cfg.Sources.Strong.Enabled {
		reg.Register(source.NewStrong(cfg.Sources.Strong.ExportPath))
	}
	if cfg.Sources.Feeds.Enabled {
		feeds := make([]source.Feed, len(cfg.Sources.Feeds.Feeds))
		for i, f := range cfg.Sources.Feeds.Feeds {
			feeds[i] = source.Feed{Name: f.Name, URL: f.URL}
		}
		reg.Register(source.NewFeeds(feeds))
	}

	return reg
}

// selectAdapters narrows the registry to the requested source names, or
// returns every registered adapter when none are requested.
func selectAdapters(reg *source.Registry, wanted []string) ([]source.Adapter, error) {
	if len(wanted) == 0 {
		return reg.Adapters(), nil
	}

	var adapters []source.Adapter
	for _, name := range wanted {
		name = strings.ToLower(strings.TrimSpace(name))
		a, ok := reg.Get(source.Type(name))
		if !ok {
			return nil, fmt.Errorf("unknown or disabled source: %s", name)
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// openStores opens one store per adapter. The caller closes them.
func openStores(dir string, adapters []source.Adapter) (map[source.Type]*store.Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	stores := make(map[source.Type]*store.Store, len(adapters))
	for _, a := range adapters {
		st, err := store.Open(dir, a.Name())
		if err != nil {
			closeStores(stores)
			return nil, err
		}
		stores[a.Name()] = st
	}
	return stores, nil
}

func closeStores(stores map[source.Type]*store.Store) {
	for _, st := range stores {
		st.Close()
	}
}

func runSync(ctx context.Context, wanted []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	adapters, err := selectAdapters(buildRegistry(cfg), wanted)
	if err != nil {
		return err
	}
	if len(adapters) == 0 {
		return fmt.Errorf("no sources enabled")
	}

	stores, err := openStores(cfg.Data.Dir, adapters)
	if err != nil {
		return err
	}
	defer closeStores(stores)

	backoff, err := time.ParseDuration(cfg.Sync.Backoff)
	if err != nil {
		backoff = 0
	}
	coord := &syncer.Coordinator{MaxAttempts: cfg.Sync.MaxAttempts, Backoff: backoff}

	failures := 0
	for _, a := range adapters {
		fmt.Fprintf(os.Stderr, "syncing %s...\n", a.Name())
		stats, err := coord.Sync(ctx, stores[a.Name()], a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
			failures++
			continue
		}
		fmt.Fprintf(os.Stderr, "  %d records in %d batches\n", stats.Records, stats.Batches)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d sources failed", failures, len(adapters))
	}
	return nil
}

func runAnalyze(ctx context.Context, wanted []string, month string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	adapters, err := selectAdapters(buildRegistry(cfg), wanted)
	if err != nil {
		return err
	}
	if len(adapters) == 0 {
		return fmt.Errorf("no sources enabled")
	}

	stores, err := openStores(cfg.Data.Dir, adapters)
	if err != nil {
		return err
	}
	defer closeStores(stores)

	failures := 0
	for _, a := range adapters {
		fmt.Fprintf(os.Stderr, "analyzing %s...\n", a.Name())
		st := stores[a.Name()]

		if month != "" {
			if _, err := analytics.Analyze(ctx, st, a, month); err != nil {
				fmt.Fprintf(os.Stderr, "  error: %v\n", err)
				failures++
				continue
			}
			fmt.Fprintf(os.Stderr, "  %s done\n", month)
			continue
		}

		months, err := analytics.AnalyzeAll(ctx, st, a)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
			failures++
			continue
		}
		fmt.Fprintf(os.Stderr, "  %d months done\n", len(months))
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d sources failed", failures, len(adapters))
	}
	return nil
}

func runPublish(ctx context.Context, month string, dryRun bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg := buildRegistry(cfg)
	adapters := reg.Adapters()
	if len(adapters) == 0 {
		return fmt.Errorf("no sources enabled")
	}

	stores, err := openStores(cfg.Data.Dir, adapters)
	if err != nil {
		return err
	}
	defer closeStores(stores)

	var tx *publish.Transaction
	if !dryRun {
		if err := cfg.Blog.Validate(); err != nil {
			return err
		}
		client := publish.NewGitHubClient(cfg.Blog.Token, cfg.Blog.Owner, cfg.Blog.Repo)
		tx = publish.NewTransaction(client, cfg.Blog.Branch)
	}

	pub := publish.NewPublisher(reg, stores, tx)

	if month == "" {
		month, err = pub.LatestYearMonth(ctx)
		if err != nil {
			return err
		}
		if month == "" {
			return fmt.Errorf("no analysis data found; run 'footprint analyze' first")
		}
	}

	if dryRun {
		m, err := pub.BuildManifest(ctx, month)
		if err != nil {
			return err
		}
		for _, e := range m.Entries {
			fmt.Printf("--- %s ---\n%s\n", e.Path, e.Content)
		}
		return nil
	}

	fmt.Fprintf(os.Stderr, "publishing %s...\n", month)
	sha, err := pub.Publish(ctx, month)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  committed %s\n", sha)
	return nil
}

func runStatus(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	adapters := buildRegistry(cfg).Adapters()
	if len(adapters) == 0 {
		fmt.Println("no sources enabled")
		return nil
	}

	stores, err := openStores(cfg.Data.Dir, adapters)
	if err != nil {
		return err
	}
	defer closeStores(stores)

	ok := color.New(color.FgGreen).SprintFunc()
	stale := color.New(color.FgYellow).SprintFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tRECORDS\tLAST SYNC\tCURSOR")
	for _, a := range adapters {
		st := stores[a.Name()]

		n, err := st.CountRecords(ctx)
		if err != nil {
			return err
		}

		state, err := st.SyncStateRow(ctx)
		if err != nil {
			return err
		}

		lastSync := stale("never")
		cursor := "-"
		if state != nil {
			if state.LastSyncedAt.Valid {
				lastSync = ok(state.LastSyncedAt.Time.Format(time.RFC3339))
			}
			if state.Cursor != "" {
				cursor = state.Cursor
			}
		}

		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", a.Name(), n, lastSync, cursor)
	}
	return w.Flush()
}
