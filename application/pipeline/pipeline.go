package pipeline

import (
	"time"

	"github.com/Skryldev/cpr-lab/application/builder"
	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/infrastructure/cpr"
	"github.com/Skryldev/cpr-lab/pkg/logger"
	"github.com/Skryldev/cpr-lab/pkg/progress"
	"go.uber.org/zap"
)

// Stage represents a single pipeline stage function
type Stage func(job *Job) error

// Job holds the state of a single parse
type Job struct {
	ID       string
	Name     string
	Data     []byte
	FileSize int
	Reporter progress.Reporter
	Log      *logger.Logger

	occurrences []cpr.Occurrence
	extraction  *cpr.Extraction
	chains      [][]builder.Interpreted
	project     *model.Project
}

// Pipeline runs scan, extract, interpret and build over one buffer
type Pipeline struct {
	extractor *cpr.Extractor
	builder   *builder.Builder
	stages    []namedStage
	log       *logger.Logger
}

type namedStage struct {
	name    progress.Stage
	percent float64
	stage   Stage
}

// NewPipeline creates a new parse pipeline
func NewPipeline(extractor *cpr.Extractor, b *builder.Builder, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	p := &Pipeline{
		extractor: extractor,
		builder:   b,
		log:       log,
	}
	p.stages = []namedStage{
		{progress.StageScan, 25, p.scan},
		{progress.StageExtract, 50, p.extract},
		{progress.StageInterpret, 75, p.interpret},
		{progress.StageBuild, 95, p.build},
	}
	return p
}

// Run executes every stage in order. The only error it returns is an
// unrecognized-format error; everything else is a warning on the project.
func (p *Pipeline) Run(job *Job) (*model.Project, error) {
	start := time.Now()
	log := job.Log
	if log == nil {
		log = p.log
	}

	for _, s := range p.stages {
		log.Debug("stage started", zap.String("job_id", job.ID), zap.String("stage", string(s.name)))
		if err := s.stage(job); err != nil {
			log.Info("container not recognized",
				zap.String("job_id", job.ID),
				zap.Int("size", len(job.Data)),
				zap.Error(err),
			)
			return nil, err
		}
		job.report(s.name, s.percent, "")
	}

	proj := job.project
	job.report(progress.StageDone, 100, string(proj.Status()))

	if n := len(proj.Warnings); n > 0 {
		log.Info("project parsed with warnings",
			zap.String("job_id", job.ID),
			zap.String("name", proj.Name),
			zap.Int("warnings", n),
			zap.Duration("duration", time.Since(start)),
		)
	} else {
		log.Debug("project parsed",
			zap.String("job_id", job.ID),
			zap.Int("tracks", proj.TrackCount()),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return proj, nil
}

func (p *Pipeline) scan(job *Job) error {
	job.occurrences = p.extractor.Scan(job.Data)
	return nil
}

func (p *Pipeline) extract(job *Job) error {
	x, err := p.extractor.ExtractFrom(job.Data, job.occurrences)
	if err != nil {
		return err
	}
	job.extraction = x
	return nil
}

func (p *Pipeline) interpret(job *Job) error {
	job.chains = p.builder.Interpret(job.extraction)
	return nil
}

func (p *Pipeline) build(job *Job) error {
	job.project = p.builder.Build(job.extraction, job.chains, builder.Meta{
		Name:     job.Name,
		FileSize: job.FileSize,
	})
	return nil
}

// report is a helper to emit progress updates
func (j *Job) report(stage progress.Stage, percent float64, msg string) {
	if j.Reporter == nil {
		return
	}
	j.Reporter.Report(progress.Update{
		JobID:   j.ID,
		Stage:   stage,
		Percent: percent,
		Message: msg,
	})
}
