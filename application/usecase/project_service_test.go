package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Skryldev/cpr-lab/application/registry"
	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/domain/ports"
	"github.com/Skryldev/cpr-lab/internal/fixtures"
	"github.com/Skryldev/cpr-lab/internal/mocks"
	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"github.com/Skryldev/cpr-lab/pkg/logger"
	"github.com/Skryldev/cpr-lab/pkg/progress"
	"github.com/Skryldev/cpr-lab/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newService(t *testing.T, src ports.SourceProvider, rec progress.Reporter) *ProjectService {
	t.Helper()
	svc, err := NewProjectService(Config{
		Source:      src,
		Reporter:    rec,
		Logger:      logger.Nop(),
		Workers:     2,
		RetryConfig: &retry.Config{MaxAttempts: 3, Delay: time.Millisecond, Multiplier: 2},
	})
	require.NoError(t, err)
	return svc
}

func TestParseInMemory(t *testing.T) {
	data := fixtures.New().
		Version("Cubase 13.0.30").
		SampleRate(44100).
		Track("MAudioTrackEvent", "Vox").
		Plugin("CLA-76", fixtures.Param("Ratio", 4), fixtures.Param("Attack", 3)).
		Bytes()

	proj, err := newService(t, nil, nil).Parse(data, ports.WithName("demo"))
	require.NoError(t, err)

	assert.Equal(t, "demo", proj.Name)
	assert.Equal(t, "Cubase 13.0.30", proj.Version)
	assert.Equal(t, len(data), proj.FileSize)
	require.Len(t, proj.Tracks, 1)
	require.Len(t, proj.Tracks[0].Plugins, 1)

	cla := proj.Tracks[0].Plugins[0]
	assert.Equal(t, "Waves", cla.Vendor)
	require.NotNil(t, cla.Compressor)
	assert.Equal(t, 4.0, *cla.Compressor.Ratio)
	assert.Equal(t, 3.0, *cla.Compressor.Attack)
}

func TestParseUnrecognized(t *testing.T) {
	proj, err := newService(t, nil, nil).Parse([]byte("RIFF....WAVEfmt "))
	assert.Nil(t, proj)
	assert.ErrorIs(t, err, pkgerrors.ErrUnrecognizedFormat)
	assert.Equal(t, model.StatusUnrecognized, model.StatusOf(proj, err))
}

func TestParseFile(t *testing.T) {
	src := &mocks.MockSourceProvider{Files: map[string][]byte{
		"/sessions/Ballad.cpr": fixtures.Project("MAudioTrackEvent", "MGroupChannelTrackEvent"),
	}}
	rec := &progress.Recorder{}

	proj, err := newService(t, src, rec).ParseFile(context.Background(), "/sessions/Ballad.cpr")
	require.NoError(t, err)
	assert.Equal(t, "Ballad", proj.Name)
	assert.Equal(t, 2, proj.TrackCount())

	updates := rec.Updates()
	require.NotEmpty(t, updates)
	assert.Equal(t, progress.StageRead, updates[0].Stage)
	assert.Equal(t, progress.StageDone, updates[len(updates)-1].Stage)
	for _, u := range updates {
		assert.Equal(t, updates[0].JobID, u.JobID)
	}
}

func TestProgressIsLoggedAndForwarded(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rec := &progress.Recorder{}
	svc, err := NewProjectService(Config{Reporter: rec, Logger: logger.FromZap(zap.New(core))})
	require.NoError(t, err)

	_, err = svc.Parse(fixtures.Project("MAudioTrackEvent"))
	require.NoError(t, err)

	updates := rec.Updates()
	require.NotEmpty(t, updates)
	logged := logs.FilterLoggerName("progress").All()
	require.Len(t, logged, len(updates))
	assert.Equal(t, string(progress.StageDone), logged[len(logged)-1].ContextMap()["stage"])
}

func TestParseFileNameOverride(t *testing.T) {
	src := &mocks.MockSourceProvider{Files: map[string][]byte{
		"a.cpr": fixtures.Project("MAudioTrackEvent"),
	}}
	proj, err := newService(t, src, nil).ParseFile(context.Background(), "a.cpr", ports.WithName("Album Mix"))
	require.NoError(t, err)
	assert.Equal(t, "Album Mix", proj.Name)
}

func TestParseFileErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		src := &mocks.MockSourceProvider{}
		_, err := newService(t, src, nil).ParseFile(context.Background(), "gone.cpr")
		_, ok := pkgerrors.As[*pkgerrors.ValidationError](err)
		assert.True(t, ok)
		assert.Empty(t, src.Reads())
	})

	t.Run("read failure", func(t *testing.T) {
		boom := errors.New("disk on fire")
		src := &mocks.MockSourceProvider{
			Files: map[string][]byte{"x.cpr": nil},
			ReadFileFunc: func(context.Context, string) ([]byte, error) {
				return nil, boom
			},
		}
		_, err := newService(t, src, nil).ParseFile(context.Background(), "x.cpr")
		ioErr, ok := pkgerrors.As[*pkgerrors.IOError](err)
		require.True(t, ok)
		assert.Equal(t, "x.cpr", ioErr.Path)
		assert.ErrorIs(t, err, boom)
		assert.Len(t, src.Reads(), 3)
	})

	t.Run("transient failure recovers", func(t *testing.T) {
		calls := 0
		src := &mocks.MockSourceProvider{
			Files: map[string][]byte{"y.cpr": nil},
			ReadFileFunc: func(context.Context, string) ([]byte, error) {
				calls++
				if calls == 1 {
					return nil, errors.New("stale handle")
				}
				return fixtures.Project("MAudioTrackEvent"), nil
			},
		}
		proj, err := newService(t, src, nil).ParseFile(context.Background(), "y.cpr")
		require.NoError(t, err)
		assert.Equal(t, 1, proj.TrackCount())
		assert.Equal(t, 2, calls)
	})

	t.Run("no source", func(t *testing.T) {
		_, err := newService(t, nil, nil).ParseFile(context.Background(), "x.cpr")
		_, ok := pkgerrors.As[*pkgerrors.ValidationError](err)
		assert.True(t, ok)
	})
}

func TestParseBatch(t *testing.T) {
	src := &mocks.MockSourceProvider{Files: map[string][]byte{
		"one.cpr": fixtures.Project("MAudioTrackEvent"),
		"two.cpr": []byte("not a project"),
	}}
	svc := newService(t, src, nil)

	ch, err := svc.ParseBatch(context.Background(), []model.BatchJob{{Path: "one.cpr"}, {Path: "two.cpr"}})
	require.NoError(t, err)

	byPath := map[string]model.BatchResult{}
	for r := range ch {
		byPath[r.Path] = r
	}
	require.Len(t, byPath, 2)
	assert.Equal(t, model.StatusOK, byPath["one.cpr"].Status)
	assert.Equal(t, "one", byPath["one.cpr"].Project.Name)
	assert.Equal(t, model.StatusUnrecognized, byPath["two.cpr"].Status)
}

func TestParseBatchEmpty(t *testing.T) {
	ch, err := newService(t, nil, nil).ParseBatch(context.Background(), nil)
	require.NoError(t, err)
	_, open := <-ch
	assert.False(t, open)
}

func TestCustomRegistryEntry(t *testing.T) {
	reg := registry.New(registry.Entry{
		Name:   "House Comp",
		Vendor: "In-House",
		Compressor: &registry.CompressorKeys{
			Threshold: registry.Keys{"Thr"},
		},
	})
	svc, err := NewProjectService(Config{Registry: reg, Logger: logger.Nop()})
	require.NoError(t, err)
	assert.Same(t, reg, svc.Registry())

	data := fixtures.New().
		Track("MAudioTrackEvent", "Bass").
		Plugin("House Comp Stereo", fixtures.Param("Thr", -12)).
		Bytes()
	proj, err := svc.Parse(data)
	require.NoError(t, err)

	p := proj.Tracks[0].Plugins[0]
	assert.Equal(t, "In-House", p.Vendor)
	require.NotNil(t, p.Compressor)
	assert.Equal(t, -12.0, *p.Compressor.Threshold)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b_cpr", sanitize("a/b.cpr"))
	assert.Len(t, sanitize("/a/very/long/path/to/some/project.cpr"), 20)
}
