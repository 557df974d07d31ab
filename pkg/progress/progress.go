package progress

import (
	"sync"
	"time"

	"github.com/Skryldev/cpr-lab/pkg/logger"
	"go.uber.org/zap"
)

// Stage represents a parse pipeline stage
type Stage string

const (
	StageRead      Stage = "read"
	StageScan      Stage = "scan"
	StageExtract   Stage = "extract"
	StageInterpret Stage = "interpret"
	StageBuild     Stage = "build"
	StageDone      Stage = "done"
)

// Update holds a progress update
type Update struct {
	JobID     string
	Stage     Stage
	Percent   float64
	Message   string
	Timestamp time.Time
}

// Reporter is the interface for progress reporting
type Reporter interface {
	Report(update Update)
}

// ChannelReporter sends updates to a channel
type ChannelReporter struct {
	ch chan<- Update
}

// NewChannelReporter creates a reporter that sends updates to ch
func NewChannelReporter(ch chan<- Update) *ChannelReporter {
	return &ChannelReporter{ch: ch}
}

func (r *ChannelReporter) Report(update Update) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	select {
	case r.ch <- update:
	default: // drop if the consumer is behind
	}
}

// MultiReporter fans out to multiple reporters
type MultiReporter struct {
	mu        sync.RWMutex
	reporters []Reporter
}

func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{reporters: reporters}
}

func (m *MultiReporter) Add(r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters = append(m.reporters, r)
}

func (m *MultiReporter) Report(update Update) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reporters {
		r.Report(update)
	}
}

// LogReporter writes updates to a logger at debug level
type LogReporter struct {
	log *logger.Logger
}

func NewLogReporter(l *logger.Logger) *LogReporter {
	if l == nil {
		l = logger.Nop()
	}
	return &LogReporter{log: l.Named("progress")}
}

func (r *LogReporter) Report(update Update) {
	r.log.Debug("stage reached",
		zap.String("job_id", update.JobID),
		zap.String("stage", string(update.Stage)),
		zap.Float64("percent", update.Percent),
		zap.String("message", update.Message),
	)
}

// Recorder keeps every update in memory, for tests and summaries
type Recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *Recorder) Report(update Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

// Updates returns a copy of the recorded updates
func (r *Recorder) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

// NoopReporter discards all updates
type NoopReporter struct{}

func (n NoopReporter) Report(_ Update) {}
