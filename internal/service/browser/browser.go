package browser

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jgivc/browsersync/internal/entity"
)

type FileLister interface {
	ListChildren(ctx context.Context, dirGRI string) ([]*entity.File, error)
}

type RequirementRegistry interface {
	SetRequirements(consumer entity.ConsumerID, reqs ...*entity.FileRequirement)
	DeregisterRequirements(consumer entity.ConsumerID)
}

type FileRegistry interface {
	SetFiles(ctx context.Context, consumer entity.ConsumerID, gris ...string)
	RemoveFiles(ctx context.Context, consumer entity.ConsumerID, gris ...string)
}

type listPoller interface {
	Start(ctx context.Context)
	Stop()
	ExecutePoll(ctx context.Context) error
	IsPollingEnabled() bool
	EffectiveInterval() time.Duration
	IsPollingNow() bool
}

// View is a point in time copy of a browser.
type View struct {
	ID             string          `json:"id" yaml:"id"`
	DirGRI         string          `json:"dirGri" yaml:"dir_gri"`
	ArchiveID      string          `json:"archiveId,omitempty" yaml:"archive_id,omitempty"`
	Attrs          []string        `json:"attrs" yaml:"attrs"`
	Items          []*entity.File  `json:"items" yaml:"-"`
	ItemCount      int             `json:"itemCount" yaml:"item_count"`
	Selected       []string        `json:"selected" yaml:"selected"`
	Error          string          `json:"error,omitempty" yaml:"error,omitempty"`
	PollingEnabled bool            `json:"pollingEnabled" yaml:"polling_enabled"`
	PollInterval   time.Duration   `json:"pollInterval" yaml:"poll_interval"`
	PollingNow     bool            `json:"pollingNow" yaml:"polling_now"`
	Archive        *entity.Archive `json:"archive,omitempty" yaml:"-"`
	UpdatedAt      time.Time       `json:"updatedAt" yaml:"updated_at"`
}

// Browser is one open directory view. It is the consumer that declares the
// list attributes it shows and the records it displays.
type Browser struct {
	id          entity.ConsumerID
	dirGRI      string
	archiveID   string
	attrs       []string
	listPolling bool

	lister FileLister
	files  FileRegistry

	// regMu orders record registration against close. It is held during
	// registry calls, mu never is.
	regMu  sync.Mutex
	closed bool

	mu        sync.RWMutex
	items     []*entity.File
	selected  []string
	loadErr   error
	updatedAt time.Time

	poller  listPoller
	archive func() *entity.Archive

	log *slog.Logger
}

func (b *Browser) ID() string {
	return string(b.id)
}

func (b *Browser) DirGRI() string {
	return b.dirGRI
}

// Refresh lists the directory and registers the listed records. A failed
// loud refresh is kept as the data load error, a silent one only returns it.
func (b *Browser) Refresh(ctx context.Context, silent bool) error {
	files, err := b.lister.ListChildren(ctx, b.dirGRI)

	b.regMu.Lock()
	defer b.regMu.Unlock()

	if b.closed {
		return nil
	}

	if err != nil {
		if !silent {
			b.mu.Lock()
			b.loadErr = err
			b.mu.Unlock()
		}

		return fmt.Errorf("cannot refresh browser %s: %w", b.id, err)
	}

	gris := make([]string, 0, len(files))
	for _, file := range files {
		gris = append(gris, file.GRI)
	}

	b.files.SetFiles(ctx, b.id, gris...)

	b.mu.Lock()
	b.items = files
	b.loadErr = nil
	b.updatedAt = time.Now()
	b.mu.Unlock()

	b.log.Debug("Refreshed", slog.Int("items", len(files)), slog.Bool("silent", silent))

	return nil
}

func (b *Browser) IsListPollingEnabled() bool {
	return b.listPolling
}

func (b *Browser) HasDir() bool {
	return b.dirGRI != ""
}

// SelectionOutOfScope is true when a selected file is not in the current
// listing.
func (b *Browser) SelectionOutOfScope() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, gri := range b.selected {
		if !slices.ContainsFunc(b.items, func(f *entity.File) bool { return f.GRI == gri }) {
			return true
		}
	}

	return false
}

func (b *Browser) DataLoadError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.loadErr
}

func (b *Browser) Select(gris ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.selected = slices.Clone(gris)
}

func (b *Browser) View() View {
	b.mu.RLock()
	v := View{
		ID:        string(b.id),
		DirGRI:    b.dirGRI,
		ArchiveID: b.archiveID,
		Attrs:     slices.Clone(b.attrs),
		Items:     slices.Clone(b.items),
		ItemCount: len(b.items),
		Selected:  slices.Clone(b.selected),
		UpdatedAt: b.updatedAt,
	}
	if b.loadErr != nil {
		v.Error = b.loadErr.Error()
	}
	b.mu.RUnlock()

	if b.poller != nil {
		v.PollingEnabled = b.poller.IsPollingEnabled()
		v.PollInterval = b.poller.EffectiveInterval()
		v.PollingNow = b.poller.IsPollingNow()
	}
	if b.archive != nil {
		v.Archive = b.archive()
	}

	return v
}

func (b *Browser) close(ctx context.Context) {
	if b.poller != nil {
		b.poller.Stop()
	}

	b.regMu.Lock()
	b.closed = true
	b.regMu.Unlock()

	b.files.RemoveFiles(ctx, b.id)
}
