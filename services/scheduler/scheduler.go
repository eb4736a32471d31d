package schedsvc

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/darasa/core"
)

// StaleReleaser returns submissions stuck in grading to pending.
type StaleReleaser interface {
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Scheduler runs the periodic maintenance jobs.
type Scheduler struct {
	cron       *cron.Cron
	releaser   StaleReleaser
	logger     core.Logger
	staleAfter time.Duration
	jobTimeout time.Duration
}

// New schedules the stale sweep. Submissions are only released once grading.staleAfter is past
// grading.timeout, so an in-flight oracle call is never taken over.
func New(releaser StaleReleaser, conf *core.Config, logger core.Logger) (*Scheduler, error) {
	if conf.Grading.StaleAfter <= conf.Grading.Timeout {
		return nil, errors.Errorf(
			"grading.staleAfter (%s) must be greater than grading.timeout (%s)",
			conf.Grading.StaleAfter, conf.Grading.Timeout,
		)
	}
	s := &Scheduler{
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger}))),
		releaser:   releaser,
		logger:     logger,
		staleAfter: conf.Grading.StaleAfter,
		jobTimeout: conf.Grading.Timeout,
	}
	interval := conf.Grading.SweepInterval
	if interval <= 0 {
		return nil, errors.Errorf("invalid sweep interval %s", interval)
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), s.SweepStale); err != nil {
		return nil, errors.Wrap(err, "scheduling stale sweep")
	}
	return s, nil
}

// SweepStale releases the submissions stuck in grading.
func (s *Scheduler) SweepStale() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	if _, err := s.releaser.ReleaseStale(ctx, s.staleAfter); err != nil {
		s.logger.Error("sweeping stale submissions", "error", err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
