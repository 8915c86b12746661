// Package cachegc periodically sweeps the on-disk pipeline cache,
// deleting files older than a configured age by access time, excluding
// a configurable preserve-glob set (spec §4.12). It is grounded on
// go-co-op/gocron/v2's scheduler (named a pack dependency of
// inful-docbuilder) driving a walk-and-delete sweep in the teacher's
// no-retries, log-and-continue failure style.
package cachegc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/sevigo/locomote-server/internal/globset"
	"github.com/sevigo/locomote-server/internal/metrics"
)

// DefaultInterval is the sweep cadence spec §4.12 names as the default.
const DefaultInterval = time.Hour

// Sweeper deletes cache files older than MaxAge (by access time) under
// Root, except paths matching Preserve.
type Sweeper struct {
	Root     string
	MaxAge   time.Duration
	Preserve *globset.Set
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Recorder

	scheduler gocron.Scheduler
}

// New creates a Sweeper. preserveGlobs may be empty (nothing is
// preserved). interval of 0 defaults to DefaultInterval.
func New(root string, maxAge time.Duration, preserveGlobs []string, interval time.Duration, rec *metrics.Recorder, logger *slog.Logger) (*Sweeper, error) {
	preserve, err := globset.NewSet(preserveGlobs)
	if err != nil {
		return nil, fmt.Errorf("cachegc: preserve globs: %w", err)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		Root:     root,
		MaxAge:   maxAge,
		Preserve: preserve,
		Interval: interval,
		Logger:   logger,
		Metrics:  rec,
	}, nil
}

// Start schedules recurring sweeps and runs until Stop is called.
func (s *Sweeper) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("cachegc: create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.Interval),
		gocron.NewTask(s.runSweep),
	)
	if err != nil {
		return fmt.Errorf("cachegc: schedule sweep: %w", err)
	}
	s.scheduler = scheduler
	scheduler.Start()
	return nil
}

// Stop halts the scheduler, waiting for an in-flight sweep to finish.
func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}

func (s *Sweeper) runSweep() {
	deleted, err := s.Sweep()
	if err != nil {
		s.Logger.Error("cache gc sweep failed", "error", err)
		if s.Metrics != nil {
			s.Metrics.IncGCError()
		}
		return
	}
	s.Logger.Info("cache gc sweep complete", "deleted", deleted)
}

// Sweep walks Root once, deleting every regular file older than MaxAge
// by access time that doesn't match Preserve. It returns the count of
// files deleted; individual deletion failures are logged and counted
// but don't abort the walk — per spec, "failures logged; no retries".
func (s *Sweeper) Sweep() (int, error) {
	cutoff := time.Now().Add(-s.MaxAge)
	deleted := 0

	err := filepath.WalkDir(s.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			s.Logger.Warn("cache gc: walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.Root, path)
		if relErr == nil && s.Preserve.Matches(rel) {
			return nil
		}

		atime, err := accessTime(path)
		if err != nil {
			s.Logger.Warn("cache gc: stat failed", "path", path, "error", err)
			if s.Metrics != nil {
				s.Metrics.IncGCError()
			}
			return nil
		}
		if atime.After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			s.Logger.Warn("cache gc: delete failed", "path", path, "error", err)
			if s.Metrics != nil {
				s.Metrics.IncGCError()
			}
			return nil
		}
		deleted++
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("cachegc: walk %s: %w", s.Root, err)
	}
	if s.Metrics != nil {
		s.Metrics.IncGCDeleted(deleted)
	}
	return deleted, nil
}

// SweepOnce runs a single sweep outside the scheduler, for a CLI
// operator command or a manual invalidation trigger.
func (s *Sweeper) SweepOnce(_ context.Context) (int, error) {
	return s.Sweep()
}
