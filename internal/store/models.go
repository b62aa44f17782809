package store

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle of a job.
type JobStatus string

const (
	JobRunning     JobStatus = "running"
	JobCompleted   JobStatus = "completed"
	JobInterrupted JobStatus = "interrupted"
	JobError       JobStatus = "error"
)

// FileStatus represents the lifecycle of a tracked file.
type FileStatus string

const (
	FilePending    FileStatus = "pending"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileError      FileStatus = "error"
)

var allFileStatuses = []FileStatus{FilePending, FileProcessing, FileCompleted, FileError}

// AllFileStatuses returns the ordered list of known file statuses.
func AllFileStatuses() []FileStatus {
	cp := make([]FileStatus, len(allFileStatuses))
	copy(cp, allFileStatuses)
	return cp
}

// ParseFileStatus converts a string into a known FileStatus.
func ParseFileStatus(value string) (FileStatus, bool) {
	normalized := FileStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case FilePending, FileProcessing, FileCompleted, FileError:
		return normalized, true
	default:
		return "", false
	}
}

// Job represents one end-to-end processing run over a file set.
type Job struct {
	ID             int64
	Name           string
	Status         JobStatus
	RootPath       string
	SettingsJSON   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	TotalFiles     int
	ProcessedFiles int
	ErrorFiles     int
}

// RemainingFiles reports how many files have not reached a terminal state.
func (j *Job) RemainingFiles() int {
	remaining := j.TotalFiles - j.ProcessedFiles - j.ErrorFiles
	if remaining < 0 {
		return 0
	}
	return remaining
}

// File represents one discovered input file tracked for a job.
type File struct {
	ID           int64
	JobID        int64
	Path         string
	Size         int64
	Type         string
	ModifiedAt   time.Time
	Status       FileStatus
	ErrorMessage string
	OwnerToken   string
	ProcessStart *time.Time
	ProcessEnd   *time.Time
}

// FileInfo describes a discovered file prior to registration.
type FileInfo struct {
	Path       string
	Size       int64
	Type       string
	ModifiedAt time.Time
}

// Result holds the per-file outcome written when a file completes.
type Result struct {
	EntityCount int
	Duration    time.Duration
}

// Entity is one detected item inside a completed file.
type Entity struct {
	Type  string
	Text  string
	Start int
	End   int
	Score float64
}

// FileFailure pairs a failed file path with its recorded message.
type FileFailure struct {
	Path    string
	Message string
}

// SnapshotFile bundles a file with its result and entities for export.
type SnapshotFile struct {
	File     File
	Result   *Result
	Entities []Entity
}
