package recall

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jgivc/browsersync/internal/common"
	"github.com/jgivc/browsersync/internal/config"
	"github.com/jgivc/browsersync/internal/entity"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu         sync.Mutex
	info       entity.RecallInfo
	infoErr    error
	state      entity.RecallState
	stateErr   error
	infoCalls  int
	stateCalls int
}

func (s *fakeSource) GetRecallInfo(ctx context.Context, gri string) (*entity.RecallInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.infoCalls++
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	info := s.info

	return &info, nil
}

func (s *fakeSource) GetRecallState(ctx context.Context, gri string) (*entity.RecallState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateCalls++
	if s.stateErr != nil {
		return nil, s.stateErr
	}
	state := s.state

	return &state, nil
}

func (s *fakeSource) update(fn func(s *fakeSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s)
}

func (s *fakeSource) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.infoCalls, s.stateCalls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestWatcher(src *fakeSource) *Watcher {
	return NewWatcher(src, "file.cm9vdA.instance:private", time.Millisecond, time.Second, testLogger())
}

func TestTickReloadsInfo(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name      string
		info      entity.RecallInfo
		prev      *entity.RecallState
		state     entity.RecallState
		infoCalls int
	}{
		{
			name:      "no progress",
			info:      entity.RecallInfo{TotalFileCount: 10},
			infoCalls: 1,
		},
		{
			name:      "progress before start time",
			info:      entity.RecallInfo{TotalFileCount: 10},
			state:     entity.RecallState{FilesCopied: 1},
			infoCalls: 2,
		},
		{
			name:      "progress after start time",
			info:      entity.RecallInfo{StartTime: &now, TotalFileCount: 10},
			state:     entity.RecallState{FilesCopied: 1},
			infoCalls: 1,
		},
		{
			name:      "all files newly processed",
			info:      entity.RecallInfo{StartTime: &now, TotalFileCount: 10},
			prev:      &entity.RecallState{FilesCopied: 8},
			state:     entity.RecallState{FilesCopied: 8, FilesFailed: 2},
			infoCalls: 2,
		},
		{
			name:      "all files already processed",
			info:      entity.RecallInfo{StartTime: &now, TotalFileCount: 10},
			prev:      &entity.RecallState{FilesCopied: 10},
			state:     entity.RecallState{FilesCopied: 10},
			infoCalls: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{info: tc.info, state: tc.state}
			w := newTestWatcher(src)
			w.state = tc.prev

			mode, _ := w.tick(context.Background(), ModeState)
			require.Equal(t, ModeState, mode)

			infoCalls, stateCalls := src.calls()
			require.Equal(t, tc.infoCalls, infoCalls)
			require.Equal(t, 1, stateCalls)
		})
	}
}

func TestTickInfoModeSkipsState(t *testing.T) {
	src := &fakeSource{info: entity.RecallInfo{TotalFileCount: 10}}
	w := newTestWatcher(src)

	mode, _ := w.tick(context.Background(), ModeInfo)
	require.Equal(t, ModeInfo, mode)

	infoCalls, stateCalls := src.calls()
	require.Equal(t, 1, infoCalls)
	require.Zero(t, stateCalls)
}

func TestWatcherStopsWhenFinished(t *testing.T) {
	now := time.Now()
	src := &fakeSource{info: entity.RecallInfo{StartTime: &now, FinishTime: &now}}
	w := newTestWatcher(src)
	w.Start(context.Background())

	require.Eventually(t, func() bool { return !w.Snapshot().Running }, time.Second, time.Millisecond)

	snap := w.Snapshot()
	require.Equal(t, StopReasonFinished, snap.StopReason)
	require.True(t, snap.Info.IsFinished())

	_, stateCalls := src.calls()
	require.Zero(t, stateCalls)
}

func TestWatcherStopsOnInfoError(t *testing.T) {
	src := &fakeSource{info: entity.RecallInfo{TotalFileCount: 10}}
	w := newTestWatcher(src)
	w.Start(context.Background())

	require.Eventually(t, func() bool {
		infoCalls, _ := src.calls()
		return infoCalls >= 2
	}, time.Second, time.Millisecond)
	require.True(t, w.Snapshot().Running)

	src.update(func(s *fakeSource) { s.infoErr = errors.New("backend down") })

	require.Eventually(t, func() bool { return !w.Snapshot().Running }, time.Second, time.Millisecond)
	require.Equal(t, StopReasonInfoError, w.Snapshot().StopReason)

	// stopped watcher never polls again
	infoCalls, _ := src.calls()
	time.Sleep(20 * time.Millisecond)
	after, _ := src.calls()
	require.Equal(t, infoCalls, after)
}

func TestWatcherDowngradesToInfoMode(t *testing.T) {
	src := &fakeSource{
		info:     entity.RecallInfo{TotalFileCount: 10},
		stateErr: common.ErrRecallStateUnavailable,
	}
	w := newTestWatcher(src)
	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool { return w.Snapshot().Mode == ModeInfo }, time.Second, time.Millisecond)

	// state becoming available again does not upgrade the watcher
	src.update(func(s *fakeSource) { s.stateErr = nil })

	require.Eventually(t, func() bool {
		infoCalls, _ := src.calls()
		return infoCalls >= 5
	}, time.Second, time.Millisecond)

	_, stateCalls := src.calls()
	require.Equal(t, 1, stateCalls)
	require.Equal(t, ModeInfo, w.Snapshot().Mode)
	require.True(t, w.Snapshot().Running)
}

func TestWatcherStop(t *testing.T) {
	src := &fakeSource{info: entity.RecallInfo{TotalFileCount: 10}}
	w := newTestWatcher(src)

	// not started
	w.Stop()

	w.Start(context.Background())
	w.Stop()
	w.Stop()

	snap := w.Snapshot()
	require.False(t, snap.Running)
	require.Equal(t, StopReasonUnwatched, snap.StopReason)
}

func newTestManager(src *fakeSource) (*Manager, *atomic.Int32) {
	m := NewManager(src, &config.RecallConfig{Interval: time.Millisecond, Timeout: time.Second}, testLogger())

	var created atomic.Int32
	factory := m.newWatcher
	m.newWatcher = func(gri string) *Watcher {
		created.Add(1)

		return factory(gri)
	}

	return m, &created
}

func TestManagerSharesWatcher(t *testing.T) {
	const gri = "file.cm9vdA.instance:private"

	src := &fakeSource{info: entity.RecallInfo{TotalFileCount: 10}}
	m, created := newTestManager(src)
	defer m.Stop()

	t1, err := m.WatchRecall(gri)
	require.NoError(t, err)
	t2, err := m.WatchRecall(gri)
	require.NoError(t, err)
	require.NotEqual(t, t1, t2)
	require.Equal(t, int32(1), created.Load())
	require.Equal(t, 2, m.Subscribers(gri))

	m.UnwatchRecall(gri, t1)
	snap, err := m.Status(gri)
	require.NoError(t, err)
	require.True(t, snap.Running)

	// unknown token and repeated unwatch are no-ops
	m.UnwatchRecall(gri, "unknown")
	m.UnwatchRecall(gri, t1)
	require.Equal(t, 1, m.Subscribers(gri))

	m.UnwatchRecall(gri, t2)
	_, err = m.Status(gri)
	require.ErrorIs(t, err, common.ErrRecallNotFoundError)
	require.Zero(t, m.Subscribers(gri))

	// a new subscription after destruction starts a new watcher
	t3, err := m.WatchRecall(gri)
	require.NoError(t, err)
	require.Equal(t, int32(2), created.Load())
	m.UnwatchRecall(gri, t3)
}

func TestManagerSeparateRoots(t *testing.T) {
	src := &fakeSource{info: entity.RecallInfo{TotalFileCount: 10}}
	m, created := newTestManager(src)
	defer m.Stop()

	_, err := m.WatchRecall("file.b.instance:private")
	require.NoError(t, err)
	_, err = m.WatchRecall("file.a.instance:private")
	require.NoError(t, err)
	require.Equal(t, int32(2), created.Load())

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	require.Equal(t, "file.a.instance:private", snaps[0].RecallRootGRI)
	require.Equal(t, "file.b.instance:private", snaps[1].RecallRootGRI)

	m.Stop()
	require.Empty(t, m.Snapshots())
}

func TestManagerUnwatchUnknownRoot(t *testing.T) {
	m, _ := newTestManager(&fakeSource{})
	defer m.Stop()

	m.UnwatchRecall("file.x.instance:private", "token")
	require.Empty(t, m.Snapshots())
}

func TestManagerWatchAfterStop(t *testing.T) {
	src := &fakeSource{info: entity.RecallInfo{TotalFileCount: 10}}
	m, created := newTestManager(src)
	m.Stop()

	token, err := m.WatchRecall("file.a.instance:private")
	require.ErrorIs(t, err, common.ErrRecallManagerStopped)
	require.Empty(t, token)
	require.Zero(t, created.Load())
	require.Empty(t, m.Snapshots())
	require.Zero(t, m.Subscribers("file.a.instance:private"))
}
