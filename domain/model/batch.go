package model

import "time"

// BatchJob is a container to parse as part of a batch
type BatchJob struct {
	ID   string
	Path string
	Data []byte // parsed directly when non-nil, Path is then only a label
}

// BatchResult holds the outcome of one batch job
type BatchResult struct {
	JobID    string
	Path     string
	Project  *Project
	Status   Status
	Duration time.Duration
	Err      error
}
