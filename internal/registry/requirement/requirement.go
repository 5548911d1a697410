package requirement

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/jgivc/browsersync/internal/entity"
	"github.com/jgivc/browsersync/internal/metrics"
)

// Registry keeps the file requirements declared by every consumer and tells
// the fetch layer which attributes are in use.
type Registry struct {
	mu   sync.RWMutex
	reqs map[entity.ConsumerID][]*entity.FileRequirement
	log  *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		reqs: make(map[entity.ConsumerID][]*entity.FileRequirement),
		log:  log.With(slog.String("item", "RequirementRegistry")),
	}
}

// SetRequirements replaces everything the consumer declared before. Passing
// no requirements deregisters the consumer.
func (r *Registry) SetRequirements(consumer entity.ConsumerID, reqs ...*entity.FileRequirement) {
	list := make([]*entity.FileRequirement, 0, len(reqs))
	for _, req := range reqs {
		if req != nil {
			list = append(list, req)
		}
	}

	if len(list) == 0 {
		r.DeregisterRequirements(consumer)

		return
	}

	r.mu.Lock()
	r.reqs[consumer] = list
	metrics.SetRequirementConsumers(len(r.reqs))
	r.mu.Unlock()

	r.log.Debug("Set requirements", slog.String("consumer", string(consumer)), slog.Int("count", len(list)))
}

func (r *Registry) DeregisterRequirements(consumer entity.ConsumerID) {
	r.mu.Lock()
	_, exists := r.reqs[consumer]
	delete(r.reqs, consumer)
	if exists {
		metrics.SetRequirementConsumers(len(r.reqs))
	}
	r.mu.Unlock()

	if exists {
		r.log.Debug("Deregister requirements", slog.String("consumer", string(consumer)))
	}
}

// FindAttrsRequirement returns the sorted union of properties of all
// requirements matching at least one of the queries.
func (r *Registry) FindAttrsRequirement(queries ...*entity.FileQuery) []string {
	attrs := make(map[string]struct{})

	r.mu.RLock()
	for _, list := range r.reqs {
		for _, req := range list {
			for _, q := range queries {
				if q == nil || !req.Matches(q) {
					continue
				}

				for _, p := range req.Properties() {
					attrs[p] = struct{}{}
				}

				break
			}
		}
	}
	r.mu.RUnlock()

	result := make([]string, 0, len(attrs))
	for p := range attrs {
		result = append(result, p)
	}
	slices.Sort(result)

	return result
}

// GetRequirements returns a snapshot of the registry.
func (r *Registry) GetRequirements() map[entity.ConsumerID][]*entity.FileRequirement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[entity.ConsumerID][]*entity.FileRequirement, len(r.reqs))
	for consumer, list := range r.reqs {
		snapshot[consumer] = slices.Clone(list)
	}

	return snapshot
}
