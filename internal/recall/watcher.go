package recall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jgivc/browsersync/internal/entity"
	"github.com/jgivc/browsersync/internal/loop"
	"github.com/jgivc/browsersync/internal/metrics"
)

type Mode string

const (
	// ModeState polls fine-grained progress and reloads info when needed.
	ModeState Mode = "state"
	// ModeInfo polls only the coarse info. Used when the state is not
	// served to this client.
	ModeInfo Mode = "info"

	StopReasonFinished  = "finished"
	StopReasonInfoError = "info_error"
	StopReasonUnwatched = "unwatched"
)

type RecallSource interface {
	GetRecallInfo(ctx context.Context, gri string) (*entity.RecallInfo, error)
	GetRecallState(ctx context.Context, gri string) (*entity.RecallState, error)
}

type Snapshot struct {
	RecallRootGRI string              `json:"recallRootGri" yaml:"recall_root_gri"`
	Mode          Mode                `json:"mode" yaml:"mode"`
	Running       bool                `json:"running" yaml:"running"`
	StopReason    string              `json:"stopReason,omitempty" yaml:"stop_reason,omitempty"`
	Info          *entity.RecallInfo  `json:"info,omitempty" yaml:"info,omitempty"`
	State         *entity.RecallState `json:"state,omitempty" yaml:"state,omitempty"`
}

// Watcher follows one recall process until it finishes, an info reload
// fails or it is stopped.
type Watcher struct {
	gri      string
	source   RecallSource
	interval time.Duration
	timeout  time.Duration

	mu         sync.RWMutex
	mode       Mode
	running    bool
	stopReason string
	info       *entity.RecallInfo
	state      *entity.RecallState

	cancel context.CancelFunc
	done   chan struct{}

	log *slog.Logger
}

func NewWatcher(source RecallSource, gri string, interval, timeout time.Duration, log *slog.Logger) *Watcher {
	return &Watcher{
		gri:      gri,
		source:   source,
		interval: interval,
		timeout:  timeout,
		mode:     ModeState,
		done:     make(chan struct{}),
		log:      log.With(slog.String("item", "RecallWatcher"), slog.String("gri", gri)),
	}
}

func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.running = true
	w.cancel = cancel
	w.mu.Unlock()

	go func() {
		defer close(w.done)

		_, err := loop.Start(ctx, ModeState, w.tick)

		reason := StopReasonFinished
		switch {
		case errors.Is(err, context.Canceled):
			reason = StopReasonUnwatched
		case err != nil:
			reason = StopReasonInfoError
			w.log.Warn("Watcher stopped", slog.Any("error", err))
		}

		w.mu.Lock()
		w.running = false
		w.stopReason = reason
		w.mu.Unlock()

		metrics.RecordRecallWatcherStop(reason)
		w.log.Debug("Stopped", slog.String("reason", reason))
	}()
}

// Stop cancels the watcher and waits for it. Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.RLock()
	cancel := w.cancel
	w.mu.RUnlock()

	if cancel == nil {
		return
	}

	cancel()
	<-w.done
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return Snapshot{
		RecallRootGRI: w.gri,
		Mode:          w.mode,
		Running:       w.running,
		StopReason:    w.stopReason,
		Info:          w.info,
		State:         w.state,
	}
}

func (w *Watcher) tick(ctx context.Context, mode Mode) (Mode, loop.Next) {
	info, err := w.reloadInfo(ctx)
	if err != nil {
		return mode, loop.Break(err)
	}
	if info.IsFinished() {
		return mode, loop.Break(nil)
	}

	if mode != ModeState {
		return mode, loop.Continue(w.interval)
	}

	prev := w.Snapshot().State
	state, err := w.reloadState(ctx)
	if err != nil {
		w.log.Info("Recall state unavailable, switching to info mode", slog.Any("error", err))
		w.setMode(ModeInfo)

		return ModeInfo, loop.Continue(w.interval)
	}

	if needsInfoReload(info, prev, state) {
		info, err = w.reloadInfo(ctx)
		if err != nil {
			return mode, loop.Break(err)
		}
		if info.IsFinished() {
			return mode, loop.Break(nil)
		}
	}

	return mode, loop.Continue(w.interval)
}

// needsInfoReload is true when the state shows progress the info does not
// know about yet, or when the state has just processed every file.
func needsInfoReload(info *entity.RecallInfo, prev, state *entity.RecallState) bool {
	if !info.IsStarted() && state.HasProgress() {
		return true
	}

	return state.AllFilesProcessed(info) && !prev.AllFilesProcessed(info)
}

func (w *Watcher) reloadInfo(ctx context.Context) (*entity.RecallInfo, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	info, err := w.source.GetRecallInfo(ctx, w.gri)
	if err != nil {
		return nil, fmt.Errorf("cannot reload recall info: %w", err)
	}

	w.mu.Lock()
	w.info = info
	w.mu.Unlock()

	return info, nil
}

func (w *Watcher) reloadState(ctx context.Context) (*entity.RecallState, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	state, err := w.source.GetRecallState(ctx, w.gri)
	if err != nil {
		return nil, fmt.Errorf("cannot reload recall state: %w", err)
	}

	w.mu.Lock()
	w.state = state
	w.mu.Unlock()

	return state, nil
}

func (w *Watcher) setMode(mode Mode) {
	w.mu.Lock()
	w.mode = mode
	w.mu.Unlock()
}

func (w *Watcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, w.timeout)
}
