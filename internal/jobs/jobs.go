// Package jobs runs the periodic maintenance tasks: the presence sweep and idle archiving.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSweepSpec   = "@every 1m"
	DefaultArchiveSpec = "@hourly"
	runTimeout         = 30 * time.Second
)

type PresenceSweeper interface {
	SweepStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type IdleArchiver interface {
	ArchiveIdle(ctx context.Context, idleFor time.Duration) (int, error)
}

type Options struct {
	PresenceStale time.Duration
	IdleArchive   time.Duration
	SweepSpec     string
	ArchiveSpec   string
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  PresenceSweeper
	archiver IdleArchiver
	opts     Options
	logger   *slog.Logger
}

// New registers both jobs. A zero IdleArchive disables archiving.
func New(log *slog.Logger, sweeper PresenceSweeper, archiver IdleArchiver, opts Options) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.SweepSpec == "" {
		opts.SweepSpec = DefaultSweepSpec
	}
	if opts.ArchiveSpec == "" {
		opts.ArchiveSpec = DefaultArchiveSpec
	}
	s := &Scheduler{
		sweeper:  sweeper,
		archiver: archiver,
		opts:     opts,
		logger:   log.With(slog.String("service", "jobs")),
	}
	cronLog := cronLogger{logger: s.logger}
	s.cron = cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)))

	if sweeper != nil && opts.PresenceStale > 0 {
		if _, err := s.cron.AddFunc(opts.SweepSpec, func() { s.SweepPresence(context.Background()) }); err != nil {
			return nil, fmt.Errorf("schedule presence sweep: %w", err)
		}
	}
	if archiver != nil && opts.IdleArchive > 0 {
		if _, err := s.cron.AddFunc(opts.ArchiveSpec, func() { s.ArchiveIdle(context.Background()) }); err != nil {
			return nil, fmt.Errorf("schedule idle archive: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("jobs started", slog.Int("entries", len(s.cron.Entries())))
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SweepPresence marks users with a stale heartbeat offline.
func (s *Scheduler) SweepPresence(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	n, err := s.sweeper.SweepStale(ctx, s.opts.PresenceStale)
	if err != nil {
		s.logger.Error("presence sweep failed", slog.Any("error", err))
		return 0
	}
	return n
}

// ArchiveIdle archives active conversations without recent activity.
func (s *Scheduler) ArchiveIdle(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	n, err := s.archiver.ArchiveIdle(ctx, s.opts.IdleArchive)
	if err != nil {
		s.logger.Error("idle archive failed", slog.Any("error", err))
		return 0
	}
	if n > 0 {
		s.logger.Info("idle conversations archived", slog.Int("count", n))
	}
	return n
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
