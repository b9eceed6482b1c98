package domain

import (
	"io"
	"time"
)

type JobStatus string

const (
	StatusIdle       JobStatus = "idle"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition happens without a new upload.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the processing record of one upload batch.
type Job struct {
	ID          string        `json:"job_id"`
	Status      JobStatus     `json:"status"`
	Message     string        `json:"message"`
	Files       []string      `json:"files"`
	FailedFiles []FileFailure `json:"failed_files,omitempty"`
	ChunkCount  int           `json:"chunk_count"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IdleJob is the view reported before anything has been uploaded.
func IdleJob() Job {
	return Job{Status: StatusIdle, Files: []string{}}
}

type FileFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// JobSpec is the unit of background work handed to a dispatcher.
type JobSpec struct {
	JobID     string    `json:"job_id"`
	Files     []string  `json:"files"`
	CreatedAt time.Time `json:"created_at"`
}

// JobResult holds the pipeline outcome details saved alongside the status.
type JobResult struct {
	ChunkCount  int           `json:"chunk_count"`
	FailedFiles []FileFailure `json:"failed_files,omitempty"`
}

// JobUpdate is a status transition reported by a pipeline run.
type JobUpdate struct {
	JobID   string     `json:"job_id"`
	Status  JobStatus  `json:"status,omitempty"`
	Message string     `json:"message,omitempty"`
	Result  *JobResult `json:"result,omitempty"`
}

type UploadFile struct {
	Filename string
	Body     io.Reader
}

type Extraction struct {
	Text     string
	Failures []FileFailure
}
