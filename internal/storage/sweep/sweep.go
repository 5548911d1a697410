package sweep

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jgivc/browsersync/internal/common"
)

const (
	defaultWorkers = 4
)

type RecordStore interface {
	Keys(ctx context.Context) ([]string, error)
	Unload(ctx context.Context, gri string) error
}

type RegisteredFiles interface {
	GetRegisteredFiles() []string
}

// Sweeper unloads stored records that no consumer depends on, such as
// records left by a previous run or fetched by a one-off file request.
type Sweeper struct {
	running atomic.Bool
	store   RecordStore
	reg     RegisteredFiles
	workers int
	log     *slog.Logger
}

func NewSweeper(store RecordStore, reg RegisteredFiles, workers int, log *slog.Logger) *Sweeper {
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Sweeper{
		store:   store,
		reg:     reg,
		workers: workers,
		log:     log.With(slog.String("item", "Sweeper")),
	}
}

// Sweep returns the number of unloaded records. Only one sweep runs at a
// time.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, common.ErrSweepAlreadyRunning
	}
	defer s.running.Store(false)

	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, err
	}

	registered := make(map[string]struct{})
	for _, gri := range s.reg.GetRegisteredFiles() {
		registered[gri] = struct{}{}
	}

	var stale []string
	for _, gri := range keys {
		if _, exists := registered[gri]; !exists {
			stale = append(stale, gri)
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}

	in := make(chan string, len(stale))
	for _, gri := range stale {
		in <- gri
	}
	close(in)

	var (
		wg       sync.WaitGroup
		unloaded atomic.Int64
	)
	workers := min(s.workers, len(stale))
	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go s.worker(ctx, n, in, &unloaded, &wg)
	}
	wg.Wait()

	s.log.Info("Sweep done", slog.Int("stale", len(stale)), slog.Int64("unloaded", unloaded.Load()))

	return int(unloaded.Load()), ctx.Err()
}

func (s *Sweeper) worker(ctx context.Context, n int, in chan string, unloaded *atomic.Int64, wg *sync.WaitGroup) {
	defer wg.Done()

	log := s.log.With(slog.Int("worker_id", n))

	for gri := range in {
		select {
		case <-ctx.Done():
			log.Info("Interrupted")

			return
		default:
		}

		if err := s.store.Unload(ctx, gri); err != nil {
			log.Error("Cannot unload record", slog.String("gri", gri), slog.Any("error", err))

			continue
		}

		unloaded.Add(1)
	}
}
