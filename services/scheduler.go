package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/repositories"
	"github.com/robfig/cron/v3"
)

const DefaultImportSchedule = "0 */6 * * *"

// ImportScheduler periodically imports fixtures for every team linked to the feed.
// A cycle that fires while the previous one is still running is skipped entirely.
type ImportScheduler struct {
	cron     *cron.Cron
	teams    repositories.TeamRepository
	fixtures FixtureService
	timeout  time.Duration
	running  atomic.Bool
	logger   *slog.Logger
}

type ImportSchedulerConfig struct {
	Schedule string
	Location *time.Location
	// Timeout bounds one full sweep; zero means no limit.
	Timeout time.Duration
}

func NewImportScheduler(cfg ImportSchedulerConfig, teams repositories.TeamRepository, fixtures FixtureService, logger *slog.Logger) (*ImportScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	spec := cfg.Schedule
	if spec == "" {
		spec = DefaultImportSchedule
	}

	s := &ImportScheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{logger: logger})),
		teams:    teams,
		fixtures: fixtures,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid import schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *ImportScheduler) Start() {
	s.logger.Info("fixture import scheduler started")
	s.cron.Start()
}

// Stop prevents further cycles; the returned context is done once a running cycle has finished.
func (s *ImportScheduler) Stop() context.Context {
	s.logger.Info("fixture import scheduler stopping")
	return s.cron.Stop()
}

func (s *ImportScheduler) tick() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.RunOnce(ctx)
}

// RunOnce imports every feed-linked team one after another. It reports false when another
// sweep was already running and nothing was done.
func (s *ImportScheduler) RunOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.WarnContext(ctx, "fixture import sweep still running, skipping cycle")
		return false
	}
	defer s.running.Store(false)

	teams, err := s.teams.ListWithFeed(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "listing feed-linked teams failed", slog.Any("error", err))
		return true
	}

	var failed int
	for _, team := range teams {
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "fixture import sweep aborted", slog.Any("error", ctx.Err()))
			break
		}
		if _, err := s.fixtures.ImportTeamFixtures(ctx, team.ID); err != nil {
			failed++
			s.logger.ErrorContext(ctx, "scheduled fixture import failed",
				slog.Int("team_id", team.ID),
				slog.Any("error", err),
			)
		}
	}
	s.logger.InfoContext(ctx, "fixture import sweep finished",
		slog.Int("teams", len(teams)),
		slog.Int("failed", failed),
	)
	return true
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
