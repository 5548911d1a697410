package record

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/jgivc/browsersync/internal/entity"
	"github.com/jgivc/browsersync/internal/metrics"
)

type RecordUnloader interface {
	Unload(ctx context.Context, gri string) error
}

// Registry counts which consumers use which file records and unloads a
// record from the store once nobody uses it.
//
// A record being unloaded cannot be attached again until its unload has
// finished, so an unload never removes a record that has a dependent.
type Registry struct {
	mu         sync.Mutex
	unloaded   *sync.Cond
	dependents map[string]map[entity.ConsumerID]struct{}
	used       map[entity.ConsumerID]map[string]struct{}
	unloading  map[string]struct{}
	store      RecordUnloader
	log        *slog.Logger
}

func NewRegistry(store RecordUnloader, log *slog.Logger) *Registry {
	r := &Registry{
		dependents: make(map[string]map[entity.ConsumerID]struct{}),
		used:       make(map[entity.ConsumerID]map[string]struct{}),
		unloading:  make(map[string]struct{}),
		store:      store,
		log:        log.With(slog.String("item", "RecordRegistry")),
	}
	r.unloaded = sync.NewCond(&r.mu)

	return r
}

// SetFiles replaces the set of files used by the consumer. Files kept across
// the replacement are never released in between.
func (r *Registry) SetFiles(ctx context.Context, consumer entity.ConsumerID, gris ...string) {
	next := make(map[string]struct{}, len(gris))
	for _, gri := range gris {
		if gri != "" {
			next[gri] = struct{}{}
		}
	}

	r.mu.Lock()
	for r.anyUnloading(next) {
		r.unloaded.Wait()
	}

	var released []string
	for gri := range r.used[consumer] {
		if _, keep := next[gri]; !keep {
			if r.detach(consumer, gri) {
				released = append(released, gri)
			}
		}
	}

	for gri := range next {
		deps, exists := r.dependents[gri]
		if !exists {
			deps = make(map[entity.ConsumerID]struct{})
			r.dependents[gri] = deps
		}
		deps[consumer] = struct{}{}
	}

	if len(next) > 0 {
		r.used[consumer] = next
	} else {
		delete(r.used, consumer)
	}
	r.markUnloading(released)
	metrics.SetRecordsRegistered(len(r.dependents))
	r.mu.Unlock()

	r.unload(ctx, released)
}

// RemoveFiles drops the given files from the consumer, or all of its files
// when none are given.
func (r *Registry) RemoveFiles(ctx context.Context, consumer entity.ConsumerID, gris ...string) {
	r.mu.Lock()
	if len(gris) == 0 {
		for gri := range r.used[consumer] {
			gris = append(gris, gri)
		}
	}

	var released []string
	for _, gri := range gris {
		if r.detach(consumer, gri) {
			released = append(released, gri)
		}
	}
	r.markUnloading(released)
	metrics.SetRecordsRegistered(len(r.dependents))
	r.mu.Unlock()

	r.unload(ctx, released)
}

// detach must be called with the lock held. Reports whether the file lost its
// last dependent.
func (r *Registry) detach(consumer entity.ConsumerID, gri string) bool {
	if files, ok := r.used[consumer]; ok {
		delete(files, gri)
		if len(files) == 0 {
			delete(r.used, consumer)
		}
	}

	deps, ok := r.dependents[gri]
	if !ok {
		return false
	}

	if _, ok := deps[consumer]; !ok {
		return false
	}

	delete(deps, consumer)
	if len(deps) > 0 {
		return false
	}

	delete(r.dependents, gri)

	return true
}

// anyUnloading must be called with the lock held.
func (r *Registry) anyUnloading(gris map[string]struct{}) bool {
	for gri := range gris {
		if _, ok := r.unloading[gri]; ok {
			return true
		}
	}

	return false
}

// markUnloading must be called with the lock held.
func (r *Registry) markUnloading(gris []string) {
	for _, gri := range gris {
		r.unloading[gri] = struct{}{}
	}
}

func (r *Registry) unload(ctx context.Context, gris []string) {
	slices.Sort(gris)

	for _, gri := range gris {
		err := r.store.Unload(ctx, gri)
		metrics.RecordUnload(err)

		r.mu.Lock()
		delete(r.unloading, gri)
		r.unloaded.Broadcast()
		r.mu.Unlock()

		if err != nil {
			r.log.Error("Cannot unload record", slog.String("gri", gri), slog.Any("error", err))

			continue
		}

		r.log.Debug("Unload record", slog.String("gri", gri))
	}
}

// GetRegisteredFiles returns sorted GRIs of files with at least one dependent.
func (r *Registry) GetRegisteredFiles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	gris := make([]string, 0, len(r.dependents))
	for gri := range r.dependents {
		gris = append(gris, gri)
	}
	slices.Sort(gris)

	return gris
}

func (r *Registry) Dependents(gri string) []entity.ConsumerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	consumers := make([]entity.ConsumerID, 0, len(r.dependents[gri]))
	for c := range r.dependents[gri] {
		consumers = append(consumers, c)
	}
	slices.Sort(consumers)

	return consumers
}
