package entity

import "time"

// RecallInfo is the coarse record of a recall process, available to every
// provider.
type RecallInfo struct {
	RecallRootGRI  string     `json:"recallRootGri" yaml:"recall_root_gri"`
	ArchiveID      string     `json:"archiveId" yaml:"archive_id"`
	StartTime      *time.Time `json:"startTime,omitempty" yaml:"start_time,omitempty"`
	FinishTime     *time.Time `json:"finishTime,omitempty" yaml:"finish_time,omitempty"`
	CancelTime     *time.Time `json:"cancelTime,omitempty" yaml:"cancel_time,omitempty"`
	TotalFileCount int64      `json:"totalFileCount" yaml:"total_file_count"`
	TotalByteSize  int64      `json:"totalByteSize" yaml:"total_byte_size"`
}

func (i *RecallInfo) IsFinished() bool {
	return i != nil && i.FinishTime != nil
}

func (i *RecallInfo) IsStarted() bool {
	return i != nil && i.StartTime != nil
}

// RecallState is the fine-grained progress, only served by the provider
// that executes the recall.
type RecallState struct {
	BytesCopied int64  `json:"bytesCopied" yaml:"bytes_copied"`
	FilesCopied int64  `json:"filesCopied" yaml:"files_copied"`
	FilesFailed int64  `json:"filesFailed" yaml:"files_failed"`
	LastError   string `json:"lastError,omitempty" yaml:"last_error,omitempty"`
}

func (s *RecallState) HasProgress() bool {
	return s != nil && (s.BytesCopied > 0 || s.FilesCopied > 0 || s.FilesFailed > 0)
}

// AllFilesProcessed tells whether every file of the recall has been copied
// or has failed.
func (s *RecallState) AllFilesProcessed(info *RecallInfo) bool {
	if s == nil || info == nil || info.TotalFileCount <= 0 {
		return false
	}

	return s.FilesCopied+s.FilesFailed >= info.TotalFileCount
}
