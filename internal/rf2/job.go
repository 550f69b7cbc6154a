// Package rf2 implements the RF2 ingestion coordinator (§4.5): import
// job lifecycle, component factories wiring the persist buffers and
// patcher together, and the callback-driven archive-reading contract.
package rf2

import (
	"time"

	"github.com/google/uuid"
)

type ImportType string

const (
	ImportDelta    ImportType = "DELTA"
	ImportSnapshot ImportType = "SNAPSHOT"
	ImportFull     ImportType = "FULL"
)

type ImportStatus string

const (
	StatusWaitingForFile ImportStatus = "WAITING_FOR_FILE"
	StatusRunning        ImportStatus = "RUNNING"
	StatusCompleted      ImportStatus = "COMPLETED"
	StatusFailed         ImportStatus = "FAILED"
)

// Config is the configuration an import job is created with (§4.5).
type Config struct {
	Type                   ImportType
	BranchPath             string
	ModuleIDs              []string
	CreateCodeSystemVersion bool
	ClearEffectiveTimes    bool
	PatchReleaseVersion    *int
	InternalRelease        bool
}

// Job is a single import's mutable state, held in the process-wide
// registry with no persistence (§4.5, §9).
type Job struct {
	ID               uuid.UUID
	Config           Config
	Status           ImportStatus
	CreatedAt        time.Time
	MaxEffectiveTime *int
	Error            string
}

func NewJob(cfg Config) *Job {
	return &Job{
		ID:        uuid.New(),
		Config:    cfg,
		Status:    StatusWaitingForFile,
		CreatedAt: time.Now(),
	}
}
