package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Skryldev/cpr-lab/domain/model"
	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func sampleProject() *model.Project {
	return &model.Project{
		Name:          "Ballad",
		Version:       "Cubase 14.0.10",
		SampleRate:    model.Int(48000),
		Tempo:         model.Float(92.5),
		TimeSignature: &model.TimeSignature{Numerator: 6, Denominator: 8},
		Tracks: []model.Track{
			{
				Name:       "Vox",
				Type:       model.TrackAudio,
				OutputBus:  "Vocal Bus",
				Sends:      []model.Send{{Target: "Plate", LevelDB: -6.25, Enabled: true}},
				AudioFiles: []string{"vox_take3.wav"},
				Plugins: []model.PluginInstance{
					{
						Name:   "Pro-Q 3",
						Vendor: "FabFilter",
						Slot:   0,
						EQ: &model.EQBlock{Bands: []model.EQBand{
							{Enabled: true, Type: model.FilterLowCut, Frequency: model.Float(80.123456), Q: model.Float(0.707)},
							{Enabled: false, Type: model.FilterHighShelf, Frequency: model.Float(12000), Gain: model.Float(2.5)},
						}},
					},
					{
						Name:       "CLA-76",
						Vendor:     "Waves",
						Slot:       1,
						Bypassed:   true,
						Compressor: &model.CompressorBlock{Ratio: model.Float(4), Attack: model.Float(3)},
						Parameters: map[string]float64{"Input": 12},
					},
				},
			},
			{Name: "Plate", Type: model.TrackFX},
		},
		Markers:         []model.Marker{{ID: 1, Name: "Chorus"}},
		ReferencedAudio: []string{"vox_take3.wav"},
		Warnings:        []model.Warning{{Marker: "Plugin Name", Offset: 812, Reason: "plugin chunk outside any track"}},
	}
}

func TestMarshalV11(t *testing.T) {
	b, err := Marshal(sampleProject())
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(b))

	get := func(path string) gjson.Result { return gjson.GetBytes(b, path) }

	assert.Equal(t, "1.1", get("schema_version").String())
	assert.Equal(t, Source, get("source").String())
	assert.Equal(t, "Ballad", get("project.name").String())
	assert.Equal(t, "Cubase 14.0.10", get("project.cubase_version").String())
	assert.Equal(t, int64(48000), get("project.sample_rate").Int())
	assert.Equal(t, gjson.Null, get("project.bit_depth").Type)
	assert.Equal(t, 92.5, get("project.tempo_bpm").Float())
	assert.Equal(t, "6/8", get("project.time_signature").String())
	assert.Equal(t, "Chorus", get("project.markers.0.name").String())

	assert.Equal(t, "Vocal Bus", get("tracks.0.output_bus").String())
	assert.Equal(t, "Plate", get("tracks.0.sends.0.target").String())
	assert.Equal(t, -6.25, get("tracks.0.sends.0.level_db").Float())
	assert.Equal(t, "vox_take3.wav", get("tracks.0.audio_files.0").String())

	assert.Equal(t, "low_cut", get("tracks.0.signal_chain.0.eq.bands.0.type").String())
	assert.Equal(t, 80.123456, get("tracks.0.signal_chain.0.eq.bands.0.freq_hz").Float())
	assert.Equal(t, gjson.Null, get("tracks.0.signal_chain.0.eq.bands.0.gain_db").Type)
	assert.False(t, get("tracks.0.signal_chain.0.eq.bands.1.enabled").Bool())
	assert.Equal(t, gjson.Null, get("tracks.0.signal_chain.0.eq.bands.1.q").Type)
	assert.False(t, get("tracks.0.signal_chain.0.compressor").Exists())

	assert.True(t, get("tracks.0.signal_chain.1.bypassed").Bool())
	assert.Equal(t, int64(1), get("tracks.0.signal_chain.1.slot").Int())
	assert.Equal(t, 4.0, get("tracks.0.signal_chain.1.compressor.ratio").Float())
	assert.Equal(t, gjson.Null, get("tracks.0.signal_chain.1.compressor.threshold_db").Type)
	assert.Equal(t, 12.0, get("tracks.0.signal_chain.1.parameters.Input").Float())
	assert.False(t, get("tracks.0.signal_chain.1.eq").Exists())

	assert.True(t, get("tracks.1.signal_chain").IsArray())
	assert.Empty(t, get("tracks.1.signal_chain").Array())
	assert.False(t, get("tracks.1.output_bus").Exists())

	assert.Equal(t, int64(2), get("summary.total_tracks").Int())
	assert.Equal(t, int64(2), get("summary.total_plugins").Int())
	assert.Equal(t, int64(1), get("summary.audio_tracks").Int())
	assert.Equal(t, int64(1), get("summary.referenced_files").Int())

	assert.Equal(t, "degraded", get("status").String())
	assert.Equal(t, int64(812), get("warnings.0.offset").Int())
}

func TestMarshalV10OmitsRouting(t *testing.T) {
	b, err := Marshal(sampleProject(), WithSchemaVersion(SchemaV10))
	require.NoError(t, err)

	for _, path := range []string{
		"tracks.0.output_bus", "tracks.0.sends", "tracks.0.audio_files",
		"status", "warnings", "project.markers", "referenced_audio",
	} {
		assert.False(t, gjson.GetBytes(b, path).Exists(), path)
	}
	assert.Equal(t, "1.0", gjson.GetBytes(b, "schema_version").String())
	assert.Equal(t, "Pro-Q 3", gjson.GetBytes(b, "tracks.0.signal_chain.0.plugin_name").String())
}

func TestMarshalEmptyProject(t *testing.T) {
	b, err := Marshal(&model.Project{})
	require.NoError(t, err)

	assert.True(t, gjson.GetBytes(b, "tracks").IsArray())
	assert.Equal(t, gjson.Null, gjson.GetBytes(b, "project.sample_rate").Type)
	assert.Equal(t, gjson.Null, gjson.GetBytes(b, "project.time_signature").Type)
	assert.Equal(t, "ok", gjson.GetBytes(b, "status").String())
}

func TestMarshalErrors(t *testing.T) {
	_, err := Marshal(sampleProject(), WithSchemaVersion("2.0"))
	_, ok := pkgerrors.As[*pkgerrors.ValidationError](err)
	assert.True(t, ok)

	_, err = Marshal(nil)
	_, ok = pkgerrors.As[*pkgerrors.ValidationError](err)
	assert.True(t, ok)
}

func TestWriteIndent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleProject(), WithIndent("  ")))

	out := buf.String()
	assert.Contains(t, out, "\n  \"schema_version\": \"1.1\"")
	assert.Equal(t, byte('\n'), out[len(out)-1])
}

func TestBatch(t *testing.T) {
	boom := errors.New("read failed")
	results := []model.BatchResult{
		{Path: "a.cpr", Project: sampleProject(), Status: model.StatusDegraded},
		{Path: "b.cpr", Err: boom, Status: model.StatusUnrecognized},
		{Path: "c.cpr", Project: &model.Project{Name: "c"}, Status: model.StatusOK},
	}

	doc, err := Batch(results)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, doc.ProjectCount)
	require.Len(t, doc.Projects, 3)

	var buf bytes.Buffer
	require.NoError(t, WriteBatch(&buf, results))
	b := buf.Bytes()

	assert.Equal(t, ExportVersion, gjson.GetBytes(b, "export_version").String())
	assert.Equal(t, int64(2), gjson.GetBytes(b, "project_count").Int())
	assert.Equal(t, "Ballad", gjson.GetBytes(b, "projects.0.project.name").String())
	assert.Equal(t, "b.cpr", gjson.GetBytes(b, "projects.1.path").String())
	assert.Equal(t, "read failed", gjson.GetBytes(b, "projects.1.error").String())
	assert.Equal(t, "unrecognized", gjson.GetBytes(b, "projects.1.status").String())
	assert.Equal(t, "c", gjson.GetBytes(b, "projects.2.project.name").String())
}

func TestBatchAllSucceeded(t *testing.T) {
	doc, err := Batch([]model.BatchResult{{Path: "a.cpr", Project: &model.Project{}}})
	assert.NoError(t, err)
	assert.Equal(t, 1, doc.ProjectCount)
}
