// Package jobs runs the periodic report and retention tasks next to the
// pipeline. They share the store and nothing else.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Vovarama1992/faq-bot-bridge/internal/chat"
)

type Store interface {
	Stats(ctx context.Context, since time.Time) (chat.Stats, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Reporter interface {
	SendDailyReport(ctx context.Context, stats chat.Stats) error
}

// CleanupSpec runs the retention job every Sunday at 02:00.
const CleanupSpec = "0 2 * * 0"

// ReportSpec is the daily report schedule at hour:00.
func ReportSpec(hour int) string {
	return fmt.Sprintf("0 %d * * *", hour)
}

type Options struct {
	Store         Store
	Reporter      Reporter
	ReportHour    int
	Location      *time.Location // schedule time zone, defaults to time.Local
	RetentionDays int
	TaskTimeout   time.Duration
	Now           func() time.Time
	Log           *zap.Logger
}

type Scheduler struct {
	store         Store
	reporter      Reporter
	reportSpec    string
	cleanupSpec   string
	location      *time.Location
	retentionDays int
	taskTimeout   time.Duration
	now           func() time.Time
	log           *zap.Logger
}

func New(o Options) *Scheduler {
	s := &Scheduler{
		store:         o.Store,
		reporter:      o.Reporter,
		reportSpec:    ReportSpec(o.ReportHour),
		cleanupSpec:   CleanupSpec,
		location:      o.Location,
		retentionDays: o.RetentionDays,
		taskTimeout:   o.TaskTimeout,
		now:           o.Now,
		log:           o.Log,
	}
	if s.retentionDays <= 0 {
		s.retentionDays = 90
	}
	if s.taskTimeout <= 0 {
		s.taskTimeout = 2 * time.Minute
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Run blocks until ctx is done, firing the daily report and the weekly
// cleanup on their cron schedules. Jobs still running at shutdown see a
// cancelled context and are waited for.
func (s *Scheduler) Run(ctx context.Context) error {
	c, err := s.cron(ctx)
	if err != nil {
		return err
	}

	c.Start()
	for _, e := range c.Entries() {
		s.log.Debug("job scheduled", zap.Int("entry", int(e.ID)), zap.Time("next", e.Next))
	}

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) cron(ctx context.Context) (*cron.Cron, error) {
	logger := cronLogger{s.log.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.reportSpec, s.job(ctx, "daily-report", s.RunReport)); err != nil {
		return nil, fmt.Errorf("schedule report %q: %w", s.reportSpec, err)
	}
	cleanup := func(ctx context.Context) error {
		_, err := s.RunCleanup(ctx)
		return err
	}
	if _, err := c.AddFunc(s.cleanupSpec, s.job(ctx, "cleanup", cleanup)); err != nil {
		return nil, fmt.Errorf("schedule cleanup %q: %w", s.cleanupSpec, err)
	}
	return c, nil
}

func (s *Scheduler) job(ctx context.Context, name string, task func(context.Context) error) func() {
	log := s.log.With(zap.String("job", name))
	return func() {
		tctx, cancel := context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
		if err := task(tctx); err != nil {
			log.Error("job failed", zap.Error(err))
		}
	}
}

// cronLogger routes cron's own messages into zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// RunReport mails the stats of the trailing 24 hours.
func (s *Scheduler) RunReport(ctx context.Context) error {
	stats, err := s.store.Stats(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("report stats: %w", err)
	}
	if err := s.reporter.SendDailyReport(ctx, stats); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	return nil
}

// RunCleanup deletes conversations and analytics older than the retention period.
func (s *Scheduler) RunCleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	s.log.Info("old data cleaned up", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	return n, nil
}
