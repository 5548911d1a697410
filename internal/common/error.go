package common

import "fmt"

var (
	ErrInvalidQuery           = fmt.Errorf("fileGri and parentId cannot be used together")
	ErrInvalidGRI             = fmt.Errorf("invalid gri")
	ErrFileNotFoundError      = fmt.Errorf("file not found")
	ErrNotADirectoryError     = fmt.Errorf("not a directory")
	ErrArchiveNotFoundError   = fmt.Errorf("archive not found")
	ErrRecallNotFoundError    = fmt.Errorf("recall not found")
	ErrRecallStateUnavailable = fmt.Errorf("recall state is not available")
	ErrBrowserNotFoundError   = fmt.Errorf("browser not found")
	ErrRecordNotFoundError    = fmt.Errorf("record not found")
	ErrPollerDestroyed        = fmt.Errorf("poller has been destroyed")
	ErrSweepAlreadyRunning    = fmt.Errorf("sweep has already started")
	ErrRecallManagerStopped   = fmt.Errorf("recall manager is stopped")
)
