package recall

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jgivc/browsersync/internal/common"
	"github.com/jgivc/browsersync/internal/config"
	"github.com/jgivc/browsersync/internal/metrics"
)

type entry struct {
	tokens  map[string]struct{}
	watcher *Watcher
}

// Manager shares one watcher per recall root between all its observers.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	newWatcher func(gri string) *Watcher

	ctx    context.Context
	cancel context.CancelFunc

	log *slog.Logger
}

func NewManager(source RecallSource, cfg *config.RecallConfig, log *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
		log:     log.With(slog.String("service", "RecallManager")),
	}
	m.newWatcher = func(gri string) *Watcher {
		return NewWatcher(source, gri, cfg.Interval, cfg.Timeout, log)
	}

	return m
}

// WatchRecall subscribes to the recall rooted at gri and returns the token
// to unsubscribe with. Fails once the manager is stopped.
func (m *Manager) WatchRecall(gri string) (string, error) {
	token := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return "", fmt.Errorf("cannot watch recall %s: %w", gri, common.ErrRecallManagerStopped)
	}

	e, exists := m.entries[gri]
	if !exists {
		e = &entry{
			tokens:  make(map[string]struct{}),
			watcher: m.newWatcher(gri),
		}
		m.entries[gri] = e
		e.watcher.Start(m.ctx)

		m.log.Debug("Watcher started", slog.String("gri", gri))
		metrics.SetRecallWatchersActive(len(m.entries))
	}

	e.tokens[token] = struct{}{}

	return token, nil
}

// UnwatchRecall drops one subscription. Unknown tokens are ignored. The
// watcher is stopped with the last subscription.
func (m *Manager) UnwatchRecall(gri, token string) {
	m.mu.Lock()

	e, exists := m.entries[gri]
	if !exists {
		m.mu.Unlock()

		return
	}

	delete(e.tokens, token)
	if len(e.tokens) > 0 {
		m.mu.Unlock()

		return
	}

	delete(m.entries, gri)
	metrics.SetRecallWatchersActive(len(m.entries))
	m.mu.Unlock()

	e.watcher.Stop()
	m.log.Debug("Watcher destroyed", slog.String("gri", gri))
}

func (m *Manager) Status(gri string) (Snapshot, error) {
	m.mu.Lock()
	e, exists := m.entries[gri]
	m.mu.Unlock()

	if !exists {
		return Snapshot{}, fmt.Errorf("recall %s is not watched: %w", gri, common.ErrRecallNotFoundError)
	}

	return e.watcher.Snapshot(), nil
}

// Snapshots returns the state of every watched recall sorted by root.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	watchers := make([]*Watcher, 0, len(m.entries))
	for _, e := range m.entries {
		watchers = append(watchers, e.watcher)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(watchers))
	for _, w := range watchers {
		out = append(out, w.Snapshot())
	}

	slices.SortFunc(out, func(a, b Snapshot) int {
		return strings.Compare(a.RecallRootGRI, b.RecallRootGRI)
	})

	return out
}

func (m *Manager) Subscribers(gri string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, exists := m.entries[gri]; exists {
		return len(e.tokens)
	}

	return 0
}

// Stop destroys all watchers. Later subscriptions are refused.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.cancel()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.watcher.Stop()
	}

	metrics.SetRecallWatchersActive(0)
}
