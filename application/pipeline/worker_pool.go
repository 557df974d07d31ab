package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/domain/ports"
	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"github.com/Skryldev/cpr-lab/pkg/logger"
	"github.com/Skryldev/cpr-lab/pkg/progress"
	"github.com/Skryldev/cpr-lab/pkg/retry"
	"go.uber.org/zap"
)

// WorkerPool parses many containers concurrently. Each parse is independent,
// so workers share nothing but the read-only pipeline.
type WorkerPool struct {
	pipeline *Pipeline
	source   ports.SourceProvider
	workers  int
	retry    retry.Config
	log      *logger.Logger
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(p *Pipeline, source ports.SourceProvider, workers int, log *logger.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WorkerPool{
		pipeline: p,
		source:   source,
		workers:  workers,
		retry:    retry.DefaultConfig(),
		log:      log,
	}
}

// WithRetry replaces the policy used when reading job files.
func (wp *WorkerPool) WithRetry(cfg retry.Config) *WorkerPool {
	wp.retry = cfg
	return wp
}

// Run parses batch jobs concurrently and sends results to the returned channel.
// The channel is closed when all jobs are complete. Once ctx is done, jobs
// not yet started are reported as canceled instead of parsed.
func (wp *WorkerPool) Run(ctx context.Context, jobs []model.BatchJob, reporter progress.Reporter) (<-chan model.BatchResult, error) {
	results := make(chan model.BatchResult, len(jobs))
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}

	go func() {
		defer close(results)

		var wg sync.WaitGroup
		semaphore := make(chan struct{}, wp.workers)

		for i, job := range jobs {
			if job.ID == "" {
				job.ID = jobID(i, job.Path)
			}
			if ctx.Err() != nil {
				results <- canceled(job, ctx.Err())
				continue
			}
			select {
			case <-ctx.Done():
				results <- canceled(job, ctx.Err())
				continue
			case semaphore <- struct{}{}:
			}

			wg.Add(1)
			go func(j model.BatchJob) {
				defer wg.Done()
				defer func() { <-semaphore }()

				results <- wp.processJob(ctx, j, reporter)
			}(job)
		}

		wg.Wait()
	}()

	return results, nil
}

func canceled(job model.BatchJob, cause error) model.BatchResult {
	err := &pkgerrors.CprLabError{
		Code:    pkgerrors.ErrCodeCanceled,
		Message: "batch canceled before job started",
		Cause:   cause,
	}
	return model.BatchResult{JobID: job.ID, Path: job.Path, Status: model.StatusOf(nil, err), Err: err}
}

func (wp *WorkerPool) processJob(ctx context.Context, job model.BatchJob, reporter progress.Reporter) model.BatchResult {
	start := time.Now()
	res := model.BatchResult{JobID: job.ID, Path: job.Path}

	log := wp.log.With(zap.String("job_id", job.ID))
	log.Info("processing batch job", zap.String("path", job.Path))

	data := job.Data
	if data == nil {
		reporter.Report(progress.Update{JobID: job.ID, Stage: progress.StageRead, Message: job.Path})
		var err error
		data, err = wp.read(logger.WithContext(ctx, log), job.Path)
		if err != nil {
			log.Error("batch job failed", zap.Error(err))
			res.Err = err
			res.Status = model.StatusOf(nil, err)
			res.Duration = time.Since(start)
			return res
		}
	}

	proj, err := wp.pipeline.Run(&Job{
		ID:       job.ID,
		Name:     ProjectName(job.Path),
		Data:     data,
		FileSize: len(data),
		Reporter: reporter,
		Log:      log,
	})
	if err != nil {
		log.Error("batch job failed", zap.Error(err))
	}
	res.Project = proj
	res.Err = err
	res.Status = model.StatusOf(proj, err)
	res.Duration = time.Since(start)
	return res
}

func (wp *WorkerPool) read(ctx context.Context, path string) ([]byte, error) {
	if wp.source == nil {
		return nil, pkgerrors.NewValidationError("source", nil, "job has no data and no source provider is configured")
	}
	return ReadSource(ctx, wp.source, path, wp.retry)
}

// ReadSource reads a container through source, retrying transient failures
// under cfg. Failed attempts are logged to the logger carried by ctx. Any
// failure is returned as an *IOError for path.
func ReadSource(ctx context.Context, source ports.SourceProvider, path string, cfg retry.Config) ([]byte, error) {
	if cfg.Retryable == nil {
		cfg.Retryable = Transient
	}
	log := logger.FromContext(ctx)
	var data []byte
	attempt := 0
	err := retry.Do(ctx, cfg, func() error {
		attempt++
		var err error
		data, err = source.ReadFile(ctx, path)
		if err != nil {
			log.Warn("read attempt failed",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		if _, ok := pkgerrors.As[*pkgerrors.IOError](err); ok {
			return nil, err
		}
		if _, ok := pkgerrors.As[*pkgerrors.ValidationError](err); ok {
			return nil, err
		}
		return nil, pkgerrors.NewIOError(path, "failed to read container", err)
	}
	return data, nil
}

// Transient reports whether a read error may succeed on another attempt.
// Missing files, permission problems, validation failures and context
// errors are permanent.
func Transient(err error) bool {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	if _, ok := pkgerrors.As[*pkgerrors.ValidationError](err); ok {
		return false
	}
	return true
}

// ProjectName derives a project name from a file path: the base name without
// its extension.
func ProjectName(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func jobID(i int, path string) string {
	if path != "" {
		return path
	}
	return "job-" + strconv.Itoa(i+1)
}
