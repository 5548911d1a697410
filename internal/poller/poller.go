package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jgivc/browsersync/internal/common"
	"github.com/jgivc/browsersync/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	pollKey        = "poll"
	defaultTimeout = 30 * time.Second
)

// BrowserModel is what a poller needs from the browser view it refreshes.
type BrowserModel interface {
	Refresh(ctx context.Context, silent bool) error
	IsListPollingEnabled() bool
	HasDir() bool
	SelectionOutOfScope() bool
	DataLoadError() error
}

type ConnectionMonitor interface {
	HasConnectionProblem() bool
}

type PollFunc func(ctx context.Context) error

type Option func(*Poller)

// WithPollFunc replaces the default silent refresh of the model.
func WithPollFunc(fn PollFunc) Option {
	return func(p *Poller) {
		p.pollFn = fn
	}
}

// WithTimeout limits a single poll.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Poller periodically refreshes one browser model. At most one poll runs at
// a time; callers arriving during a poll get its result.
type Poller struct {
	model   BrowserModel
	conn    ConnectionMonitor
	pollFn  PollFunc
	timeout time.Duration

	interval   atomic.Int64
	reset      chan struct{}
	group      singleflight.Group
	pollingNow atomic.Bool
	started    atomic.Bool
	destroyed  atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	log *slog.Logger
}

func New(model BrowserModel, conn ConnectionMonitor, interval time.Duration, log *slog.Logger, opts ...Option) *Poller {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Poller{
		model:   model,
		conn:    conn,
		timeout: defaultTimeout,
		reset:   make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     log.With(slog.String("item", "Poller")),
	}
	p.pollFn = p.refresh
	p.interval.Store(int64(max(interval, 0)))

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Poller) refresh(ctx context.Context) error {
	return p.model.Refresh(ctx, true)
}

func (p *Poller) IsPollingEnabled() bool {
	if p.conn != nil && p.conn.HasConnectionProblem() {
		return false
	}

	return p.model.IsListPollingEnabled() &&
		p.model.HasDir() &&
		!p.model.SelectionOutOfScope() &&
		p.model.DataLoadError() == nil
}

func (p *Poller) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// EffectiveInterval is zero while polling is disabled.
func (p *Poller) EffectiveInterval() time.Duration {
	if !p.IsPollingEnabled() {
		return 0
	}

	return p.Interval()
}

// SetInterval reschedules the pending wait only when d differs from the
// current interval. Zero parks the loop.
func (p *Poller) SetInterval(d time.Duration) {
	d = max(d, 0)
	if time.Duration(p.interval.Swap(int64(d))) == d {
		return
	}

	p.log.Debug("Set interval", slog.Duration("interval", d))

	select {
	case p.reset <- struct{}{}:
	default:
	}
}

func (p *Poller) IsPollingNow() bool {
	return p.pollingNow.Load()
}

func (p *Poller) IsDestroyed() bool {
	return p.destroyed.Load()
}

// ExecutePoll runs a poll or joins the one in flight.
func (p *Poller) ExecutePoll(ctx context.Context) error {
	if p.IsDestroyed() {
		return common.ErrPollerDestroyed
	}

	ch := p.group.DoChan(pollKey, func() (any, error) {
		p.pollingNow.Store(true)
		defer p.pollingNow.Store(false)

		pctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		defer cancel()

		err := p.pollFn(pctx)
		metrics.RecordPoll(err)

		return nil, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.RecordSharedPoll()
		}

		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the polling loop until Stop or until ctx is done.
func (p *Poller) Start(ctx context.Context) {
	if p.IsDestroyed() || !p.started.CompareAndSwap(false, true) {
		return
	}

	context.AfterFunc(ctx, p.Stop)

	go p.run()
}

func (p *Poller) run() {
	defer close(p.done)

	p.log.Debug("Started", slog.Duration("interval", p.Interval()))

	for {
		select {
		case <-p.reset:
		default:
		}

		var (
			timer *time.Timer
			tick  <-chan time.Time
		)
		if interval := p.Interval(); interval > 0 {
			timer = time.NewTimer(interval)
			tick = timer.C
		}

		select {
		case <-p.ctx.Done():
			stopTimer(timer)
			p.log.Debug("Stopped")

			return
		case <-p.reset:
			stopTimer(timer)
		case <-tick:
			if !p.IsPollingEnabled() {
				continue
			}

			err := p.ExecutePoll(p.ctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, common.ErrPollerDestroyed) {
				p.log.Warn("Poll failed", slog.Any("error", err))
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Stop cancels the pending timer and a running poll. A stopped poller never
// polls again.
func (p *Poller) Stop() {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}

	p.cancel()

	if p.started.Load() {
		<-p.done
	}
}
