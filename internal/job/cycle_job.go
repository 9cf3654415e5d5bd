package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crypto-trading-agent/internal/engine"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrCycleInProgress = errors.New("a cycle is already running")

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type CycleRunner interface {
	RunCycle(ctx context.Context, in engine.CycleInput) engine.CycleResult
}

// CycleObserver receives every finished cycle.
type CycleObserver interface {
	ObserveCycle(result engine.CycleResult, took time.Duration)
}

type Status struct {
	Running      bool       `json:"running"`
	Schedule     string     `json:"schedule"`
	Cycles       int        `json:"cycles"`
	LastCycleAt  *time.Time `json:"last_cycle_at,omitempty"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
	LastErrors   []string   `json:"last_errors"`
	LastWarnings []string   `json:"last_warnings"`
}

// CycleJob triggers engine cycles on a cron schedule. Cycles never
// overlap, whether started by the schedule or by RunNow.
type CycleJob struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	runner   CycleRunner
	schedule string
	observer CycleObserver

	mu     sync.Mutex
	base   context.Context
	cron   *cron.Cron
	cancel context.CancelFunc

	runMu  sync.Mutex
	stateM sync.RWMutex
	cycles int
	last   *engine.CycleResult
}

func NewCycleJob(tracer trace.Tracer, logger *zap.Logger, runner CycleRunner, schedule string) (*CycleJob, error) {
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("parse cycle schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleJob{tracer: tracer, logger: logger, runner: runner, schedule: schedule}, nil
}

func (j *CycleJob) SetObserver(o CycleObserver) {
	j.observer = o
}

// Start schedules cycles until Stop is called or ctx is done. Starting a
// running job is a no-op.
func (j *CycleJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}
	j.base = ctx

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithChain(cron.Recover(cronLogger{j.logger}), cron.SkipIfStillRunning(cronLogger{j.logger})),
	)
	if _, err := c.AddFunc(j.schedule, func() { j.scheduled(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule cycle: %w", err)
	}
	c.Start()
	j.cron = c
	j.cancel = cancel

	go func() {
		<-runCtx.Done()
		j.stop(c)
	}()
	j.logger.Info("cycle job started", zap.String("schedule", j.schedule))
	return nil
}

// Resume starts the job again with the context of the last Start.
func (j *CycleJob) Resume() error {
	j.mu.Lock()
	base := j.base
	j.mu.Unlock()
	if base == nil || base.Err() != nil {
		base = context.Background()
	}
	return j.Start(base)
}

// Stop cancels an in-flight cycle at its next checkpoint and waits for it.
func (j *CycleJob) Stop() {
	j.mu.Lock()
	c := j.cron
	j.mu.Unlock()
	j.stop(c)
}

func (j *CycleJob) stop(c *cron.Cron) {
	if c == nil {
		return
	}
	j.mu.Lock()
	if j.cron != c {
		j.mu.Unlock()
		return
	}
	cancel := j.cancel
	j.cron, j.cancel = nil, nil
	j.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	j.logger.Info("cycle job stopped")
}

func (j *CycleJob) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cron != nil
}

func (j *CycleJob) scheduled(ctx context.Context) {
	if _, err := j.RunNow(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
		j.logger.Error("scheduled cycle failed", zap.Error(err))
	}
}

// RunNow runs one cycle immediately. It fails with ErrCycleInProgress when
// another cycle holds the engine.
func (j *CycleJob) RunNow(ctx context.Context) (engine.CycleResult, error) {
	if !j.runMu.TryLock() {
		return engine.CycleResult{}, ErrCycleInProgress
	}
	defer j.runMu.Unlock()

	ctx, span := j.tracer.Start(ctx, "cycle-job.run")
	defer span.End()

	started := time.Now()
	result := j.runner.RunCycle(ctx, engine.CycleInput{})
	if j.observer != nil {
		j.observer.ObserveCycle(result, time.Since(started))
	}
	span.SetAttributes(
		attribute.Int("analyses", len(result.Analyses)),
		attribute.Int("errors", len(result.Errors)),
	)

	j.stateM.Lock()
	j.cycles++
	j.last = &result
	j.stateM.Unlock()

	if result.Cancelled {
		return result, context.Cause(ctx)
	}
	return result, nil
}

func (j *CycleJob) Status() Status {
	st := Status{Schedule: j.schedule, LastErrors: []string{}, LastWarnings: []string{}}

	j.mu.Lock()
	if j.cron != nil {
		st.Running = true
		if entries := j.cron.Entries(); len(entries) > 0 && !entries[0].Next.IsZero() {
			next := entries[0].Next.UTC()
			st.NextRunAt = &next
		}
	}
	j.mu.Unlock()

	j.stateM.RLock()
	defer j.stateM.RUnlock()
	st.Cycles = j.cycles
	if j.last != nil {
		at := j.last.CycleAt
		st.LastCycleAt = &at
		st.LastErrors = j.last.ErrorStrings()
		st.LastWarnings = append(st.LastWarnings, j.last.Warnings...)
	}
	return st
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
