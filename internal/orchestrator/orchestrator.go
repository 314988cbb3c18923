// Package orchestrator tracks whether the assistant service is reachable,
// routes analysis to it when it is, and falls back to the local rule tables
// when it is not. It owns the recurring health check.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hpungsan/jarvis/internal/assistant"
	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/triage"
)

// State is the believed reachability of the assistant service.
type State int32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "CONNECTED"
	}
	return "DISCONNECTED"
}

// Remote is the subset of the assistant client the orchestrator drives.
type Remote interface {
	Configured() bool
	Health(ctx context.Context) error
	Analyze(ctx context.Context, content, captureType string) (*assistant.AnalyzeResponse, error)
	Sync(ctx context.Context, data any) (*assistant.SyncResponse, error)
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State      string     `json:"state"`
	Connected  bool       `json:"connected"`
	Configured bool       `json:"configured"`
	LastSync   *time.Time `json:"last_sync,omitempty"`
}

// Orchestrator is safe for concurrent use. Start and Stop bound the lifetime
// of its background work.
type Orchestrator struct {
	remote   Remote
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	state    atomic.Int32
	lastSync atomic.Int64 // unix nanos, 0 = never
	checking atomic.Bool

	mu      sync.Mutex
	sched   *cron.Cron
	cancel  context.CancelFunc
	stopped bool
	syncs   sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source used for lastSync.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithInterval sets the health check period.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithAssumeConnected starts in the Connected state instead of waiting for the
// first successful health check.
func WithAssumeConnected(v bool) Option {
	return func(o *Orchestrator) {
		if v {
			o.state.Store(int32(Connected))
		}
	}
}

// New creates an orchestrator in the Disconnected state unless
// WithAssumeConnected is given.
func New(remote Remote, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		remote:   remote,
		logger:   slog.Default(),
		now:      time.Now,
		interval: config.DefaultHealthIntervalSecs * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current connectivity state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// LastSync returns the time of the last successful remote analyze or sync.
func (o *Orchestrator) LastSync() (time.Time, bool) {
	n := o.lastSync.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

// Status reports connectivity, configuration and last sync.
func (o *Orchestrator) Status() Status {
	st := o.State()
	s := Status{
		State:      st.String(),
		Connected:  st == Connected,
		Configured: o.remote.Configured(),
	}
	if t, ok := o.LastSync(); ok {
		s.LastSync = &t
	}
	return s
}

// Analyze classifies content. When connected it asks the assistant service
// and returns its answer verbatim; any failure marks the service unreachable
// and the local rule tables answer instead. It never fails.
func (o *Orchestrator) Analyze(ctx context.Context, content string) *triage.Result {
	return o.AnalyzeType(ctx, content, "")
}

// AnalyzeType is Analyze with the capture type forwarded to the assistant
// service. An empty type sends assistant.DefaultCaptureType.
func (o *Orchestrator) AnalyzeType(ctx context.Context, content, captureType string) *triage.Result {
	if captureType == "" {
		captureType = assistant.DefaultCaptureType
	}
	if o.State() == Connected {
		resp, err := o.remote.Analyze(ctx, content, captureType)
		if err == nil {
			o.markSynced()
			return &triage.Result{
				Analysis:    *resp.Analysis,
				Suggestions: resp.Suggestions,
				Source:      triage.SourceRemote,
			}
		}
		o.setState(Disconnected, "analyze", err)
	}
	return triage.Analyze(content)
}

// Sync pushes data to the assistant service in the background. Errors are
// logged and otherwise dropped. Calls after Stop are ignored.
func (o *Orchestrator) Sync(ctx context.Context, data any) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		o.logger.Debug("sync dropped after stop")
		return
	}
	o.syncs.Add(1)
	o.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	go func() {
		defer o.syncs.Done()
		if _, err := o.SyncNow(bg, data); err != nil {
			o.logger.Warn("background sync failed", "error", err)
		}
	}()
}

// SyncNow pushes data and waits for the answer. Unlike Sync, failures are
// returned.
func (o *Orchestrator) SyncNow(ctx context.Context, data any) (*assistant.SyncResponse, error) {
	resp, err := o.remote.Sync(ctx, data)
	if err != nil {
		o.setState(Disconnected, "sync", err)
		return nil, err
	}
	o.markSynced()
	return resp, nil
}

// CheckHealth probes the service and updates the state. ran is false when a
// check was already in flight and this call was skipped.
func (o *Orchestrator) CheckHealth(ctx context.Context) (st State, ran bool) {
	if !o.checking.CompareAndSwap(false, true) {
		o.logger.Debug("health check skipped, previous still running")
		return o.State(), false
	}
	defer o.checking.Store(false)

	if err := o.remote.Health(ctx); err != nil {
		o.setState(Disconnected, "health", err)
	} else {
		o.setState(Connected, "health", nil)
	}
	return o.State(), true
}

// Start runs one health check immediately and schedules the rest every
// interval until Stop or ctx is done.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.sched != nil || o.stopped {
		o.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	logger := cronLogger{o.logger}
	sched := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	sched.Schedule(cron.Every(o.interval), cron.FuncJob(func() {
		o.CheckHealth(runCtx)
	}))
	o.sched = sched
	o.cancel = cancel
	o.syncs.Add(1)
	o.mu.Unlock()

	o.logger.Info("health poller started", "interval", o.interval.String())
	go func() {
		defer o.syncs.Done()
		o.CheckHealth(runCtx)
	}()
	sched.Start()

	go func() {
		<-runCtx.Done()
		o.Stop()
	}()
}

// Stop halts the health poller and waits for running checks and
// outstanding background syncs. It is safe to call more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	sched, cancel := o.sched, o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sched != nil {
		<-sched.Stop().Done()
	}
	o.syncs.Wait()
}

func (o *Orchestrator) markSynced() {
	o.lastSync.Store(o.now().UnixNano())
}

func (o *Orchestrator) setState(next State, op string, cause error) {
	prev := State(o.state.Swap(int32(next)))
	if prev == next {
		if cause != nil {
			o.logger.Debug("assistant call failed", "op", op, "error", cause)
		}
		return
	}
	if cause != nil {
		o.logger.Warn("assistant unreachable, using local triage", "op", op, "error", cause)
		return
	}
	o.logger.Info("assistant reachable", "op", op, "state", next.String())
}
