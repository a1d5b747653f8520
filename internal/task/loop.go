package task

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval is the progress sampling period while running.
const DefaultPollInterval = 16 * time.Millisecond

// Loop feeds events to an Orchestrator one at a time. While the phase is
// Running it injects Tick events at a fixed period; worker commands run on
// their own goroutines and post their result back to the queue.
type Loop struct {
	orch    *Orchestrator
	period  time.Duration
	events  chan Event
	observe func(Snapshot)
	logger  *slog.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithPollInterval sets the tick period used while running.
func WithPollInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.period = d
		}
	}
}

// WithObserver registers fn to receive a snapshot after every handled event.
// fn runs on the loop goroutine and may call Send.
func WithObserver(fn func(Snapshot)) LoopOption {
	return func(l *Loop) { l.observe = fn }
}

// WithLoopLogger sets the logger.
func WithLoopLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// NewLoop creates an event loop around orch.
func NewLoop(orch *Orchestrator, opts ...LoopOption) *Loop {
	l := &Loop{
		orch:   orch,
		period: DefaultPollInterval,
		events: make(chan Event, 64),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Send enqueues an event. It blocks while the queue is full.
func (l *Loop) Send(ev Event) {
	l.events <- ev
}

// Run processes events until ctx is done. It returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
	)
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		var ev Event
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev = <-l.events:
		case <-tickC:
			ev = Tick{}
		}

		if cmd := l.orch.Handle(ev); cmd != nil {
			go l.runWorker(ctx, cmd)
		}

		// The poller only exists while running
		running := l.orch.Phase() == PhaseRunning
		switch {
		case running && ticker == nil:
			ticker = time.NewTicker(l.period)
			tickC = ticker.C
		case !running && ticker != nil:
			ticker.Stop()
			ticker, tickC = nil, nil
		}

		if l.observe != nil {
			l.observe(l.orch.Snapshot())
		}
	}
}

func (l *Loop) runWorker(ctx context.Context, cmd Cmd) {
	ev := cmd()
	select {
	case l.events <- ev:
	case <-ctx.Done():
		if done, ok := ev.(WorkerDone); ok {
			done.Table.Release()
		}
		l.logger.Warn("worker result dropped after shutdown")
	}
}
