package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"sn-go/internal/sn"
)

// Reconciler runs one follow graph reconciliation pass.
type Reconciler interface {
	ReconcileGraph(ctx context.Context) (*sn.GraphReport, error)
}

// Scheduler runs graph reconciliation on a cron schedule. A pass that is
// still running when the next one is due causes that one to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler parses spec (standard five-field cron or descriptors such as
// "@every 1h") and registers the reconciliation job.
func NewScheduler(r Reconciler, spec string, logger sn.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = sn.NewNopLogger()
	}
	cl := cronLogger{l: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.AddFunc(spec, func() {
		report, err := r.ReconcileGraph(ctx)
		if err != nil {
			logger.Error("scheduled reconciliation failed", "error", err)
			return
		}
		logger.Info("scheduled reconciliation finished", "users", report.UsersScanned,
			"repairs", report.FollowingAdded+report.FollowingRemoved+report.FollowersRemoved)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, ctx: ctx, cancel: cancel}, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels a running pass and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// cronLogger adapts sn.Logger to cron.Logger.
type cronLogger struct {
	l sn.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
