package cprlab

import (
	"context"
	"io"

	"github.com/Skryldev/cpr-lab/application/registry"
	"github.com/Skryldev/cpr-lab/application/usecase"
	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/domain/ports"
	"github.com/Skryldev/cpr-lab/infrastructure/export"
	"github.com/Skryldev/cpr-lab/infrastructure/storage"
	"github.com/Skryldev/cpr-lab/pkg/logger"
	"github.com/Skryldev/cpr-lab/pkg/progress"
	"github.com/Skryldev/cpr-lab/pkg/retry"
	"go.uber.org/zap"
)

// Re-export types for convenient use by callers
type (
	Project         = model.Project
	Track           = model.Track
	Send            = model.Send
	Marker          = model.Marker
	PluginInstance  = model.PluginInstance
	EQBlock         = model.EQBlock
	EQBand          = model.EQBand
	CompressorBlock = model.CompressorBlock
	Warning         = model.Warning
	Status          = model.Status
	BatchJob        = model.BatchJob
	BatchResult     = model.BatchResult
	ProgressUpdate  = progress.Update
	ProgressStage   = progress.Stage
	RegistryEntry   = registry.Entry
	ExportOption    = export.Option
)

// Re-export status and stage constants
const (
	StatusOK           = model.StatusOK
	StatusDegraded     = model.StatusDegraded
	StatusUnrecognized = model.StatusUnrecognized

	StageRead      = progress.StageRead
	StageScan      = progress.StageScan
	StageExtract   = progress.StageExtract
	StageInterpret = progress.StageInterpret
	StageBuild     = progress.StageBuild
	StageDone      = progress.StageDone

	SchemaV10 = export.SchemaV10
	SchemaV11 = export.SchemaV11
)

// Re-export option functions
var (
	WithName     = ports.WithName
	WithFileSize = ports.WithFileSize
	WithJobID    = ports.WithJobID

	WithSchemaVersion = export.WithSchemaVersion
	WithIndent        = export.WithIndent
)

// Config holds top-level configuration for the parser
type Config struct {
	// Logger is an optional custom logger. Uses production zap if nil.
	Logger *logger.Logger

	// ZapLogger allows passing a *zap.Logger directly
	ZapLogger *zap.Logger

	// ProgressCh is an optional channel for receiving progress updates
	ProgressCh chan<- ProgressUpdate

	// Workers sets the number of parallel batch workers (default: 4)
	Workers int

	// Entries adds or overrides plugin registry rows
	Entries []RegistryEntry

	// Source overrides where ParseFile and ParseBatch read from (default: local disk)
	Source ports.SourceProvider

	// MaxFileSize rejects larger files on the default local source; 0 means no limit
	MaxFileSize int64

	// RetryConfig overrides how transient read failures are retried
	RetryConfig *retry.Config
}

// Parser is the main entry point
type Parser struct {
	service *usecase.ProjectService
	log     *logger.Logger
}

// New creates a new Parser with the given configuration
func New(cfg Config) (*Parser, error) {
	log := cfg.Logger
	if log == nil && cfg.ZapLogger != nil {
		log = logger.FromZap(cfg.ZapLogger)
	}
	if log == nil {
		var err error
		log, err = logger.New(false)
		if err != nil {
			return nil, err
		}
	}

	source := cfg.Source
	if source == nil {
		source = &storage.LocalStorage{MaxSize: cfg.MaxFileSize}
	}

	var reporter progress.Reporter = progress.NoopReporter{}
	if cfg.ProgressCh != nil {
		reporter = progress.NewChannelReporter(cfg.ProgressCh)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	svc, err := usecase.NewProjectService(usecase.Config{
		Source:      source,
		Registry:    registry.New(cfg.Entries...),
		Reporter:    reporter,
		Logger:      log,
		Workers:     workers,
		RetryConfig: cfg.RetryConfig,
	})
	if err != nil {
		return nil, err
	}

	return &Parser{
		service: svc,
		log:     log,
	}, nil
}

// Parse decodes an in-memory container
func (p *Parser) Parse(data []byte, opts ...ports.Option) (*Project, error) {
	return p.service.Parse(data, opts...)
}

// ParseFile reads and decodes a single container
func (p *Parser) ParseFile(ctx context.Context, path string, opts ...ports.Option) (*Project, error) {
	return p.service.ParseFile(ctx, path, opts...)
}

// ParseBatch decodes multiple containers concurrently
func (p *Parser) ParseBatch(ctx context.Context, jobs []BatchJob) (<-chan BatchResult, error) {
	return p.service.ParseBatch(ctx, jobs)
}

// Register adds a plugin registry row after construction
func (p *Parser) Register(e RegistryEntry) {
	p.service.Registry().Register(e)
}

// Export writes a project as a StudioTrack JSON document
func (p *Parser) Export(w io.Writer, proj *Project, opts ...ExportOption) error {
	return export.Write(w, proj, opts...)
}

// ExportBatch writes batch results as one multi-project document
func (p *Parser) ExportBatch(w io.Writer, results []BatchResult, opts ...ExportOption) error {
	return export.WriteBatch(w, results, opts...)
}

// Close flushes the logger and releases resources
func (p *Parser) Close() {
	_ = p.log.Sync()
}
