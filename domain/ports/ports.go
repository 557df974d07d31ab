package ports

import (
	"context"

	"github.com/Skryldev/cpr-lab/domain/model"
)

// ProjectParser defines the main parsing interface
type ProjectParser interface {
	// Parse decodes one in-memory container
	Parse(data []byte, opts ...Option) (*model.Project, error)

	// ParseFile reads a container through the source provider and decodes it
	ParseFile(ctx context.Context, path string, opts ...Option) (*model.Project, error)

	// ParseBatch decodes many containers concurrently
	ParseBatch(ctx context.Context, jobs []model.BatchJob) (<-chan model.BatchResult, error)
}

// SourceProvider abstracts where container bytes come from
type SourceProvider interface {
	// ReadFile returns the full contents of a container
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)

	// Size returns file size in bytes
	Size(ctx context.Context, path string) (int64, error)
}

// Option is the functional option type
type Option func(*model.ParseOptions)

// WithName sets the project name, which the container does not store
func WithName(name string) Option {
	return func(o *model.ParseOptions) {
		o.Name = name
	}
}

// WithFileSize records the size of the source file
func WithFileSize(n int) Option {
	return func(o *model.ParseOptions) {
		if n > 0 {
			o.FileSize = n
		}
	}
}

// WithJobID labels progress updates for this parse
func WithJobID(id string) Option {
	return func(o *model.ParseOptions) {
		o.JobID = id
	}
}
