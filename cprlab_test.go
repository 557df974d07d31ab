package cprlab

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Skryldev/cpr-lab/application/registry"
	"github.com/Skryldev/cpr-lab/internal/fixtures"
	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

func newParser(t *testing.T, cfg Config) *Parser {
	t.Helper()
	if cfg.Logger == nil && cfg.ZapLogger == nil {
		cfg.ZapLogger = zap.NewNop()
	}
	p, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestParseFileAndExport(t *testing.T) {
	data := fixtures.New().
		Version("Cubase 14.0.10").
		SampleRate(48000).
		Tempo(128).
		TimeSignature(4, 4).
		Track("MAudioTrackEvent", "Drums").
		Plugin("Pro-Q 3", fixtures.Param("Band 1 Frequency", 100), fixtures.Param("Band 1 Gain", -3)).
		Bytes()
	path := writeFile(t, t.TempDir(), "Club Mix.cpr", data)

	updates := make(chan ProgressUpdate, 64)
	p := newParser(t, Config{ProgressCh: updates})

	proj, err := p.ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Club Mix", proj.Name)
	assert.Equal(t, StatusOK, proj.Status())

	var buf bytes.Buffer
	require.NoError(t, p.Export(&buf, proj))
	out := buf.Bytes()

	assert.Equal(t, "Club Mix", gjson.GetBytes(out, "project.name").String())
	assert.Equal(t, int64(48000), gjson.GetBytes(out, "project.sample_rate").Int())
	assert.Equal(t, 128.0, gjson.GetBytes(out, "project.tempo_bpm").Float())
	assert.Equal(t, "4/4", gjson.GetBytes(out, "project.time_signature").String())
	assert.Equal(t, "FabFilter", gjson.GetBytes(out, "tracks.0.signal_chain.0.vendor").String())
	assert.Equal(t, 100.0, gjson.GetBytes(out, "tracks.0.signal_chain.0.eq.bands.0.freq_hz").Float())
	assert.Equal(t, -3.0, gjson.GetBytes(out, "tracks.0.signal_chain.0.eq.bands.0.gain_db").Float())

	close(updates)
	var stages []ProgressStage
	for u := range updates {
		stages = append(stages, u.Stage)
	}
	require.NotEmpty(t, stages)
	assert.Equal(t, StageRead, stages[0])
	assert.Equal(t, StageDone, stages[len(stages)-1])
}

func TestParseBatchAndExport(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.cpr", fixtures.Project("MAudioTrackEvent", "MFXChannelTrackEvent"))
	junk := writeFile(t, dir, "junk.cpr", []byte("this is not a project"))

	p := newParser(t, Config{Workers: 2})
	ch, err := p.ParseBatch(context.Background(), []BatchJob{{Path: good}, {Path: junk}})
	require.NoError(t, err)

	var results []BatchResult
	for r := range ch {
		results = append(results, r)
	}
	require.Len(t, results, 2)

	var buf bytes.Buffer
	require.NoError(t, p.ExportBatch(&buf, results, WithSchemaVersion(SchemaV10)))
	out := buf.Bytes()
	assert.Equal(t, int64(1), gjson.GetBytes(out, "project_count").Int())
	assert.Len(t, gjson.GetBytes(out, "projects").Array(), 2)
}

func TestParseUnrecognized(t *testing.T) {
	p := newParser(t, Config{})
	proj, err := p.Parse([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Nil(t, proj)
	assert.ErrorIs(t, err, pkgerrors.ErrUnrecognizedFormat)
}

func TestMaxFileSize(t *testing.T) {
	path := writeFile(t, t.TempDir(), "big.cpr", fixtures.Project("MAudioTrackEvent"))
	p := newParser(t, Config{MaxFileSize: 8})

	_, err := p.ParseFile(context.Background(), path)
	_, ok := pkgerrors.As[*pkgerrors.ValidationError](err)
	assert.True(t, ok)
}

func TestRegisterEntry(t *testing.T) {
	p := newParser(t, Config{Entries: []RegistryEntry{{Name: "Glue", Vendor: "Acme"}}})
	p.Register(RegistryEntry{
		Name:       "Squash",
		Vendor:     "Acme",
		Compressor: &registry.CompressorKeys{Ratio: registry.Keys{"R"}},
	})

	data := fixtures.New().
		Track("MAudioTrackEvent", "Bus").
		Plugin("Glue").
		Plugin("Squash", fixtures.Param("R", 8)).
		Bytes()
	proj, err := p.Parse(data, WithName("bus"))
	require.NoError(t, err)

	plugins := proj.Tracks[0].Plugins
	require.Len(t, plugins, 2)
	assert.Equal(t, "Acme", plugins[0].Vendor)
	require.NotNil(t, plugins[1].Compressor)
	assert.Equal(t, 8.0, *plugins[1].Compressor.Ratio)
}

func TestNonFiniteXMLValueStillExports(t *testing.T) {
	doc := `<?xml version="1.0"?><Preset name="Pro-C 2">` +
		`<Param name="Mix" value="NaN"/><Param name="Threshold" value="-18"/></Preset>`
	data := fixtures.New().
		Version("Cubase 14.0.10").
		Track("MAudioTrackEvent", "Vox").
		XMLPlugin(doc).
		Bytes()

	p := newParser(t, Config{})
	proj, err := p.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, proj.Status())

	var buf bytes.Buffer
	require.NoError(t, p.Export(&buf, proj))
	out := buf.Bytes()

	plugin := gjson.GetBytes(out, "tracks.0.signal_chain.0")
	assert.Equal(t, "Pro-C 2", plugin.Get("plugin_name").String())
	assert.Equal(t, -18.0, plugin.Get("compressor.threshold_db").Float())
	assert.False(t, plugin.Get("parameters.Mix").Exists())
	assert.Equal(t, "degraded", gjson.GetBytes(out, "status").String())
	assert.Equal(t, "<?xml", gjson.GetBytes(out, "warnings.0.marker").String())
	assert.Contains(t, gjson.GetBytes(out, "warnings.0.reason").String(), "Mix")
}
