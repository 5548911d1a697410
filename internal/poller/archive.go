package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jgivc/browsersync/internal/entity"
)

type ArchiveSource interface {
	GetArchive(ctx context.Context, id string) (*entity.Archive, error)
}

// ArchivePoller refreshes a browser showing archive contents and also
// reloads the archive, polling faster while the archive is being created or
// destroyed.
type ArchivePoller struct {
	*Poller

	source    ArchiveSource
	archiveID string
	fast      time.Duration
	slow      time.Duration
	archive   atomic.Pointer[entity.Archive]
}

func NewArchivePoller(model BrowserModel, conn ConnectionMonitor, source ArchiveSource, archiveID string,
	fast, slow time.Duration, log *slog.Logger, opts ...Option) *ArchivePoller {
	ap := &ArchivePoller{
		source:    source,
		archiveID: archiveID,
		fast:      fast,
		slow:      slow,
	}

	opts = append(opts, WithPollFunc(ap.poll))
	ap.Poller = New(model, conn, slow, log.With(slog.String("archive_id", archiveID)), opts...)

	return ap
}

func (ap *ArchivePoller) IntervalFor(state entity.ArchiveState) time.Duration {
	if state.IsTransient() {
		return ap.fast
	}

	return ap.slow
}

// Archive returns the last loaded archive or nil.
func (ap *ArchivePoller) Archive() *entity.Archive {
	return ap.archive.Load()
}

// SetArchive stores an archive loaded elsewhere and adjusts the interval to
// its state.
func (ap *ArchivePoller) SetArchive(archive *entity.Archive) {
	ap.archive.Store(archive)
	ap.SetInterval(ap.IntervalFor(archive.State))
}

func (ap *ArchivePoller) poll(ctx context.Context) error {
	var errs []error

	if err := ap.model.Refresh(ctx, true); err != nil {
		errs = append(errs, fmt.Errorf("cannot refresh list: %w", err))
	}

	archive, err := ap.source.GetArchive(ctx, ap.archiveID)
	if err != nil {
		errs = append(errs, fmt.Errorf("cannot reload archive %s: %w", ap.archiveID, err))
	} else if !ap.IsDestroyed() {
		ap.SetArchive(archive)
	}

	return errors.Join(errs...)
}
