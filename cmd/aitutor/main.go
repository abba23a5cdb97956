// Command aitutor is a terminal front end for the sync layer: it loads
// the dashboard, lists sections with progress, and prints the
// recommended next topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/mikol1980/aitutor/pkg/api"
	"github.com/mikol1980/aitutor/pkg/config"
	"github.com/mikol1980/aitutor/pkg/controller"
	"github.com/mikol1980/aitutor/pkg/dashboard"
	"github.com/mikol1980/aitutor/pkg/otel"
	"github.com/mikol1980/aitutor/pkg/prefs"
	"github.com/mikol1980/aitutor/pkg/store"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("aitutor %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger); err != nil {
		logger.Error("aitutor failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName:    "aitutor",
		ServiceVersion: version,
		UseStdout:      cfg.TraceStdout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(ctx) }()

	kv := openStorage(ctx, cfg, logger)
	if c, ok := kv.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}

	client := api.NewClient(cfg.APIBaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout()}),
		api.WithAuthToken(cfg.APIToken),
		api.WithValidation(),
	)

	p := prefs.New(ctx, store.NewScope(kv, "prefs"), nil, prefs.WithLogger(logger))
	logger.Info("preferences loaded",
		"theme", p.Preferences().Theme,
		"audio_enabled", p.Preferences().AudioEnabled,
	)

	engine := dashboard.NewEngine(client, store.NewScope(kv, "dashboard"),
		controller.WithLogger(logger))
	engine.Load(ctx)

	st := engine.State()
	if st.Status == controller.StatusError {
		return fmt.Errorf("%s: %s", st.Err.Code, st.Err.Message)
	}
	render(os.Stdout, st.Data)
	return nil
}

// openStorage opens the configured SQLite file, falling back to the
// in-memory store when the file cannot be opened.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) store.KV {
	if cfg.StoragePath == "" {
		return store.NewMemory()
	}
	kv, err := store.OpenSQLite(ctx, cfg.StoragePath)
	if err != nil {
		logger.Warn("local storage unavailable, continuing in memory",
			"path", cfg.StoragePath, "error", err)
		return store.NewMemory()
	}
	return kv
}

func render(w io.Writer, data dashboard.Data) {
	if data.IsEmpty {
		fmt.Fprintln(w, "No sections available yet.")
		return
	}
	for _, s := range data.Sections {
		total := s.Progress.Completed + s.Progress.InProgress + s.Progress.NotStarted
		fmt.Fprintf(w, "%-30s %3d%% (%d/%d topics completed)\n",
			s.Title, s.Progress.PercentCompleted, s.Progress.Completed, total)
	}
	if data.LastSession != nil {
		title := "(untitled)"
		if data.LastSession.TopicTitle != nil {
			title = *data.LastSession.TopicTitle
		}
		fmt.Fprintf(w, "\nLast session: %s\n", title)
	}
	if data.Recommended != nil {
		fmt.Fprintf(w, "\nNext up: %s (%s)\n", data.Recommended.TopicTitle, data.Recommended.SectionTitle)
	}
}
