// Package cli implements the etfctl subcommands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"EtfSentinel/internal/cache"
	"EtfSentinel/internal/collector"
	"EtfSentinel/internal/config"
	"EtfSentinel/internal/logger"
	"EtfSentinel/internal/model"
	"EtfSentinel/internal/tracker"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	plain      = flag.Bool("plain", false, "Print raw Markdown instead of rendering it for the terminal")
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&importCmd{}, "portfolio")
	c.Register(&adjustCmd{}, "portfolio")
	c.Register(&exportCmd{}, "portfolio")
	c.Register(&removeCmd{}, "portfolio")

	c.Register(&summaryCmd{}, "reports")
	c.Register(&driftCmd{}, "reports")
	c.Register(&historyCmd{}, "reports")

	c.Register(&refreshCmd{}, "prices")
}

// session is the state shared by every subcommand: the cache and the tracker restored from it.
type session struct {
	cfg     *config.Config
	store   cache.Cache
	tracker *tracker.Manager
	log     zerolog.Logger
}

func (s *session) Close() error { return s.store.Close() }

// open builds the session of a command. Tests replace it.
var open = openSession

// stdout receives the command output. Tests replace it.
var stdout io.Writer = os.Stdout

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: true})

	store, err := cache.NewSQLiteCache(cfg.Database.SQLitePath, log)
	if err != nil {
		return nil, err
	}

	src := cfg.Sources
	col := collector.NewCollector(map[model.DataSource]collector.Fetcher{
		model.SourceBorsaItaliana: collector.NewBorsaItalianaFetcher(src.BorsaItaliana.BaseURL, src.BorsaItaliana.Token, cfg.Proxy),
		model.SourceJustETF:       collector.NewJustETFFetcher(src.JustETF.BaseURL, cfg.Proxy),
	}, store, log)
	col.MaxAge = src.MaxAge

	tm := tracker.NewManager(store, col, log)
	if _, err := tm.Load(); err != nil {
		store.Close()
		return nil, err
	}
	return &session{cfg: cfg, store: store, tracker: tm, log: log}, nil
}

// withSession opens the session, runs fn and closes the session, mapping errors to an exit status.
func withSession(ctx context.Context, fn func(*session) error) subcommands.ExitStatus {
	s, err := open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening the portfolio cache: %v\n", err)
		return subcommands.ExitFailure
	}
	defer s.Close()

	if err := fn(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// printMarkdown renders md for the terminal, or prints it as is with -plain.
func printMarkdown(md string) {
	if *plain {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := glamour.RenderWithEnvironmentConfig(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}

// parseDate parses the -d flag, today when empty.
func parseDate(s string) (model.Date, error) {
	if s == "" {
		return model.Today(), nil
	}
	return model.ParseDate(s)
}
