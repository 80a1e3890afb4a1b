// Package scheduler runs the catalogue reconciler on a cron schedule and on demand,
// allowing one run at a time across every replica that shares the lock.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tradi/internal/cache"
	"tradi/internal/reconciler"
)

// ErrRunInProgress is returned by RunOnce while another run holds the lock.
var ErrRunInProgress = errors.New("catalogue sync already running")

// Runner performs one catalogue reconciliation.
type Runner interface {
	Run(ctx context.Context) (*reconciler.Result, error)
}

// Locker grants exclusive runs. unlock is only set when acquired is true.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), acquired bool, err error)
}

// ChangeHook is called after a run that modified the catalogue.
type ChangeHook func(ctx context.Context, result *reconciler.Result)

// Scheduler triggers the Runner.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	locker Locker
	spec   string
	hooks  []ChangeHook
	log    *zap.SugaredLogger
}

// New creates a scheduler firing on spec (standard cron or "@every 5m").
// A nil locker serialises runs inside this process only.
func New(runner Runner, locker Locker, spec string, log *zap.SugaredLogger) *Scheduler {
	if locker == nil {
		locker = &cache.LocalLock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cl := cronLogger{log}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner: runner,
		locker: locker,
		spec:   spec,
		log:    log,
	}
}

// OnChange registers a hook. Hooks must be registered before Start.
func (s *Scheduler) OnChange(hook ChangeHook) {
	s.hooks = append(s.hooks, hook)
}

// RunOnce runs the reconciler now unless a run is already in progress.
func (s *Scheduler) RunOnce(ctx context.Context) (*reconciler.Result, error) {
	unlock, acquired, err := s.locker.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer unlock()

	result, err := s.runner.Run(ctx)
	if err != nil {
		return nil, err
	}
	if result.Changed() {
		for _, hook := range s.hooks {
			hook(ctx, result)
		}
	}
	return result, nil
}

func (s *Scheduler) tick() {
	result, err := s.RunOnce(context.Background())
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Infow("Catalogue sync skipped, another run holds the lock")
	case err != nil:
		// Retried on the next tick.
		s.log.Errorw("Catalogue sync failed", "error", err)
	default:
		s.log.Infow("Catalogue sync finished",
			"listed", result.Listed,
			"deactivated", result.Deactivated,
			"reactivated", result.Reactivated,
			"assets_created", result.AssetsCreated,
			"pairs_created", result.PairsCreated,
			"duration", result.Duration,
		)
	}
}

// Start schedules the sync. An empty spec leaves the scheduler idle.
func (s *Scheduler) Start() error {
	if s.spec == "" {
		s.log.Infow("Catalogue scheduler disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("invalid catalogue schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.log.Infow("Catalogue scheduler started", "schedule", s.spec)
	return nil
}

// Stop halts the schedule and returns a context that is done once a running sync finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
