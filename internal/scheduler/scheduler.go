package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"EtfSentinel/internal/cache"
	"EtfSentinel/internal/model"
	"EtfSentinel/internal/notifier"
	"EtfSentinel/internal/strategy"
	"EtfSentinel/internal/tracker"
)

// Scheduler manages all cron tasks and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Tracker  *tracker.Manager
	Notifier notifier.Notifier
	Cache    cache.Cache
	Ctx      context.Context

	log zerolog.Logger
	now func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, tm *tracker.Manager, n notifier.Notifier, store cache.Cache, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Tracker:  tm,
		Notifier: n,
		Cache:    store,
		Ctx:      ctx,
		log:      log.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
	}
}

// RegisterAll registers the price refresh and drift check tasks.
func (s *Scheduler) RegisterAll(refreshCron, driftCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	if _, err := s.Cron.AddFunc(driftCron, s.driftCheck); err != nil {
		return fmt.Errorf("register drift task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("tasks", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	s.log.Info().Msg("running price refresh")
	if err := s.Tracker.RefreshPrices(s.Ctx, false); err != nil {
		if errors.Is(err, tracker.ErrNoPortfolio) {
			s.log.Info().Msg("no portfolio loaded, refresh skipped")
			return
		}
		s.log.Error().Err(err).Msg("price refresh incomplete")
		s.trySend(fmt.Sprintf("❌ Price refresh incomplete: %v", err))
	}
}

// RunDriftCheckNow executes the drift check immediately.
func (s *Scheduler) RunDriftCheckNow() {
	s.driftCheck()
}

func (s *Scheduler) driftCheck() {
	s.log.Info().Msg("running drift check")
	r, err := s.Tracker.Report(model.DateOf(s.now()))
	if err != nil {
		s.log.Info().Err(err).Msg("drift check skipped")
		return
	}

	snap := cache.SnapshotOf(r, s.now())
	if err := s.Cache.RecordDrift(snap); err != nil {
		s.log.Error().Err(err).Msg("record drift snapshot")
	}

	s.log.Info().
		Float64("asset_class_drift", snap.AssetClassMaxDrift).
		Float64("country_drift", snap.CountryMaxDrift).
		Float64("max_drift", snap.MaxDrift).
		Bool("breached", snap.Breached).
		Msg("drift checked")
	if snap.Breached {
		s.trySend(notifier.FormatDriftAlert(r))
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	name, _, _ := strings.Cut(fields[0], "@")
	args := fields[1:]

	switch name {
	case "/summary":
		r, err := s.Tracker.Report(model.DateOf(s.now()))
		if err != nil {
			return "❌ " + err.Error()
		}
		return notifier.FormatSummary(r)
	case "/drift", "/drift_country":
		strat, err := strategy.ParseStrategy(strings.Join(args, " "))
		if err != nil {
			return "❌ " + err.Error()
		}
		r, err := s.Tracker.Report(model.DateOf(s.now()))
		if err != nil {
			return "❌ " + err.Error()
		}
		if name == "/drift_country" {
			return notifier.FormatDriftReport("Countries", r.CountryDrift, strat)
		}
		return notifier.FormatDriftReport("Asset classes", r.AssetClassDrift, strat)
	case "/refresh":
		if err := s.Tracker.RefreshPrices(ctx, true); err != nil {
			return "⚠️ " + err.Error()
		}
		return "✅ Prices refreshed"
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
