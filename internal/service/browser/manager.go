package browser

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
	"github.com/jgivc/browsersync/internal/entity"
	"github.com/jgivc/browsersync/internal/metrics"
	"github.com/jgivc/browsersync/internal/poller"
	"github.com/jgivc/browsersync/internal/util"
)

const (
	serviceName = "browser"
)

type OpenRequest struct {
	DirGRI    string `json:"dirGri"`
	ArchiveID string `json:"archiveId,omitempty"`
	// Attrs are the list columns the view shows for every child.
	Attrs          []string `json:"attrs,omitempty"`
	DisablePolling bool     `json:"disablePolling,omitempty"`
}

// Manager owns open browsers and their pollers.
type Manager struct {
	lister   FileLister
	reqs     RequirementRegistry
	files    FileRegistry
	archives poller.ArchiveSource
	conn     poller.ConnectionMonitor
	cfg      *config.PollerConfig

	mu       sync.RWMutex
	browsers map[string]*Browser

	ctx    context.Context
	cancel context.CancelFunc

	log *slog.Logger
}

func NewManager(lister FileLister, reqs RequirementRegistry, files FileRegistry, archives poller.ArchiveSource,
	conn poller.ConnectionMonitor, cfg *config.PollerConfig, log *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		lister:   lister,
		reqs:     reqs,
		files:    files,
		archives: archives,
		conn:     conn,
		cfg:      cfg,
		browsers: make(map[string]*Browser),
		ctx:      ctx,
		cancel:   cancel,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// Open registers a new browser, loads its listing and starts polling.
// Archive browsers without a dir open the archive root.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (string, error) {
	var archive *entity.Archive
	if req.ArchiveID != "" {
		var err error
		archive, err = m.archives.GetArchive(ctx, req.ArchiveID)
		if err != nil {
			m.log.Error("Cannot get archive", slog.String("archive_id", req.ArchiveID), slog.Any("error", err))

			return "", fmt.Errorf("cannot open archive browser: %w", err)
		}

		if req.DirGRI == "" {
			req.DirGRI = archive.RootDirGRI
		}
	}

	if _, err := util.FileIDFromGRI(req.DirGRI); err != nil {
		return "", fmt.Errorf("cannot open browser for %q: %w", req.DirGRI, err)
	}

	id := uuid.NewString()
	log := m.log.With(slog.String("browser_id", id))

	b := &Browser{
		id:          entity.ConsumerID(id),
		dirGRI:      req.DirGRI,
		archiveID:   req.ArchiveID,
		attrs:       entity.NewFileRequirement(entity.ParentIDQuery(req.DirGRI), req.Attrs...).Properties(),
		listPolling: !req.DisablePolling,
		lister:      m.lister,
		files:       m.files,
		log:         log,
	}

	if len(b.attrs) > 0 {
		m.reqs.SetRequirements(b.id, entity.NewFileRequirement(entity.ParentIDQuery(b.dirGRI), b.attrs...))
	}

	if err := b.Refresh(ctx, false); err != nil {
		b.close(ctx)
		m.reqs.DeregisterRequirements(b.id)
		m.log.Error("Cannot load browser", slog.String("dir_gri", b.dirGRI), slog.Any("error", err))

		return "", err
	}

	opts := []poller.Option{poller.WithTimeout(m.cfg.Timeout)}
	if archive != nil {
		ap := poller.NewArchivePoller(b, m.conn, m.archives, archive.ID,
			m.cfg.ArchiveFastInterval, m.cfg.ArchiveSlowInterval, log, opts...)
		ap.SetArchive(archive)
		b.poller = ap
		b.archive = ap.Archive
	} else {
		b.poller = poller.New(b, m.conn, m.cfg.Interval, log, opts...)
	}

	m.mu.Lock()
	m.browsers[id] = b
	metrics.SetBrowsersOpen(len(m.browsers))
	m.mu.Unlock()

	b.poller.Start(m.ctx)

	m.log.Info("Browser opened", slog.String("browser_id", id), slog.String("dir_gri", b.dirGRI))

	return id, nil
}

func (m *Manager) Get(id string) (*Browser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, exists := m.browsers[id]
	if !exists {
		return nil, fmt.Errorf("browser %s: %w", id, common.ErrBrowserNotFoundError)
	}

	return b, nil
}

// Refresh polls the browser now, joining a poll already in flight.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}

	return b.poller.ExecutePoll(ctx)
}

func (m *Manager) Select(id string, gris ...string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}

	b.Select(gris...)

	return nil
}

// Close stops the browser poller and releases its records and
// requirements.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	b, exists := m.browsers[id]
	if exists {
		delete(m.browsers, id)
		metrics.SetBrowsersOpen(len(m.browsers))
	}
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("browser %s: %w", id, common.ErrBrowserNotFoundError)
	}

	b.close(ctx)
	m.reqs.DeregisterRequirements(b.id)

	m.log.Info("Browser closed", slog.String("browser_id", id))

	return nil
}

func (m *Manager) CloseAll(ctx context.Context) {
	for _, id := range m.IDs() {
		if err := m.Close(ctx, id); err != nil {
			m.log.Debug("Browser already closed", slog.String("browser_id", id))
		}
	}
}

func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.browsers))
	for id := range m.browsers {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	slices.Sort(ids)

	return ids
}

func (m *Manager) Views() []View {
	m.mu.RLock()
	browsers := make([]*Browser, 0, len(m.browsers))
	for _, b := range m.browsers {
		browsers = append(browsers, b)
	}
	m.mu.RUnlock()

	views := make([]View, 0, len(browsers))
	for _, b := range browsers {
		views = append(views, b.View())
	}

	slices.SortFunc(views, func(a, b View) int {
		return strings.Compare(a.ID, b.ID)
	})

	return views
}

// Stop closes all browsers for shutdown.
func (m *Manager) Stop(ctx context.Context) {
	m.CloseAll(ctx)
	m.cancel()
}
