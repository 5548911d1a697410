package entity

import "time"

const (
	ArchiveStatePending            ArchiveState = "pending"
	ArchiveStateBuilding           ArchiveState = "building"
	ArchiveStateVerifying          ArchiveState = "verifying"
	ArchiveStatePreserved          ArchiveState = "preserved"
	ArchiveStateFailed             ArchiveState = "failed"
	ArchiveStateVerificationFailed ArchiveState = "verification_failed"
	ArchiveStateCancelling         ArchiveState = "cancelling"
	ArchiveStateCancelled          ArchiveState = "cancelled"
	ArchiveStateDeleting           ArchiveState = "deleting"
)

type ArchiveState string

func (s ArchiveState) IsCreating() bool {
	switch s {
	case ArchiveStatePending, ArchiveStateBuilding, ArchiveStateVerifying:
		return true
	}

	return false
}

func (s ArchiveState) IsDestroying() bool {
	return s == ArchiveStateCancelling || s == ArchiveStateDeleting
}

// IsTransient reports states that are expected to change soon.
func (s ArchiveState) IsTransient() bool {
	return s.IsCreating() || s.IsDestroying()
}

type Archive struct {
	ID              string       `json:"id" yaml:"id"`
	State           ArchiveState `json:"state" yaml:"state"`
	DatasetID       string       `json:"datasetId" yaml:"dataset_id"`
	RootDirGRI      string       `json:"rootDirGri" yaml:"root_dir_gri"`
	CreationTime    time.Time    `json:"creationTime" yaml:"creation_time"`
	Description     string       `json:"description" yaml:"description"`
	DescriptionHash string       `json:"descriptionHash" yaml:"description_hash"`
}
