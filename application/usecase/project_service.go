package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/cpr-lab/application/builder"
	"github.com/Skryldev/cpr-lab/application/pipeline"
	"github.com/Skryldev/cpr-lab/application/registry"
	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/domain/ports"
	"github.com/Skryldev/cpr-lab/infrastructure/cpr"
	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"github.com/Skryldev/cpr-lab/pkg/logger"
	"github.com/Skryldev/cpr-lab/pkg/progress"
	"github.com/Skryldev/cpr-lab/pkg/retry"
	"go.uber.org/zap"
)

// ProjectService is the main application service implementing ports.ProjectParser
type ProjectService struct {
	pipeline   *pipeline.Pipeline
	workerPool *pipeline.WorkerPool
	registry   *registry.Registry
	source     ports.SourceProvider
	reporter   progress.Reporter
	log        *logger.Logger
	retryCfg   retry.Config
}

// Config holds ProjectService configuration
type Config struct {
	Source   ports.SourceProvider
	Registry *registry.Registry
	Reporter progress.Reporter
	Logger   *logger.Logger
	Workers  int

	// RetryConfig governs source reads; defaults to retry.DefaultConfig
	RetryConfig *retry.Config
}

// NewProjectService creates a new ProjectService. Source may be nil when
// only in-memory parsing is needed.
func NewProjectService(cfg Config) (*ProjectService, error) {
	log := cfg.Logger
	if log == nil {
		var err error
		log, err = logger.New(false)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	// every update is also written to the debug log
	reporter := progress.NewMultiReporter(progress.NewLogReporter(log))
	if cfg.Reporter != nil {
		reporter.Add(cfg.Reporter)
	}

	reg := cfg.Registry
	if reg == nil {
		reg = registry.New()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	retryCfg := retry.DefaultConfig()
	if cfg.RetryConfig != nil {
		retryCfg = *cfg.RetryConfig
	}

	extractor := cpr.NewExtractor(cpr.ExtractorConfig{
		ChunkLimit: reg.ChunkLimit,
		Logger:     log,
	})
	p := pipeline.NewPipeline(extractor, builder.New(reg, log), log)
	wp := pipeline.NewWorkerPool(p, cfg.Source, workers, log).WithRetry(retryCfg)

	return &ProjectService{
		pipeline:   p,
		workerPool: wp,
		registry:   reg,
		source:     cfg.Source,
		reporter:   reporter,
		log:        log,
		retryCfg:   retryCfg,
	}, nil
}

// Registry returns the plugin registry the service interprets chunks with
func (s *ProjectService) Registry() *registry.Registry {
	return s.registry
}

// Parse decodes an in-memory container
func (s *ProjectService) Parse(data []byte, opts ...ports.Option) (*model.Project, error) {
	options := model.DefaultParseOptions()
	for _, o := range opts {
		o(options)
	}
	if options.FileSize == 0 {
		options.FileSize = len(data)
	}
	if options.JobID == "" {
		options.JobID = generateJobID(options.Name)
	}

	return s.pipeline.Run(&pipeline.Job{
		ID:       options.JobID,
		Name:     options.Name,
		Data:     data,
		FileSize: options.FileSize,
		Reporter: s.reporter,
		Log:      s.log,
	})
}

// ParseFile reads a container through the source provider and decodes it.
// The project is named after the file unless WithName overrides it.
func (s *ProjectService) ParseFile(ctx context.Context, path string, opts ...ports.Option) (*model.Project, error) {
	if s.source == nil {
		return nil, pkgerrors.NewValidationError("source", nil, "no source provider is configured")
	}
	exists, err := s.source.Exists(ctx, path)
	if err != nil {
		return nil, pkgerrors.NewIOError(path, "failed to check file", err)
	}
	if !exists {
		return nil, pkgerrors.NewValidationError("path", path, "file does not exist")
	}

	start := time.Now()
	id := generateJobID(path)
	s.reporter.Report(progress.Update{JobID: id, Stage: progress.StageRead, Message: path})
	ctx = logger.WithContext(ctx, s.log.With(zap.String("job_id", id)))
	data, err := pipeline.ReadSource(ctx, s.source, path, s.retryCfg)
	if err != nil {
		s.log.Error("failed to read container", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	all := append([]ports.Option{
		ports.WithName(pipeline.ProjectName(path)),
		ports.WithFileSize(len(data)),
		ports.WithJobID(id),
	}, opts...)

	proj, err := s.Parse(data, all...)
	if err != nil {
		return nil, err
	}
	s.log.Info("container parsed",
		zap.String("path", path),
		zap.String("status", string(proj.Status())),
		zap.Duration("duration", time.Since(start)),
	)
	return proj, nil
}

// ParseBatch parses multiple containers concurrently
func (s *ProjectService) ParseBatch(ctx context.Context, jobs []model.BatchJob) (<-chan model.BatchResult, error) {
	if len(jobs) == 0 {
		ch := make(chan model.BatchResult)
		close(ch)
		return ch, nil
	}

	s.log.Info("starting batch parse",
		zap.Int("job_count", len(jobs)),
	)

	return s.workerPool.Run(ctx, jobs, s.reporter)
}

func generateJobID(input string) string {
	return fmt.Sprintf("job-%d-%s", time.Now().UnixNano(), sanitize(input))
}

func sanitize(s string) string {
	if len(s) > 20 {
		s = s[len(s)-20:]
	}
	result := make([]byte, 0, len(s))
	for _, c := range []byte(s) {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}

var _ ports.ProjectParser = (*ProjectService)(nil)
