package cpr

import (
	"testing"

	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/internal/fixtures"
	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"github.com/Skryldev/cpr-lab/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func extract(t *testing.T, data []byte) *Extraction {
	t.Helper()
	x, err := NewExtractor(ExtractorConfig{}).Extract(data)
	require.NoError(t, err)
	return x
}

func TestExtractUnrecognized(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("RIFF....WAVEfmt plain audio, no project markers"),
	} {
		t.Run(name, func(t *testing.T) {
			x, err := NewExtractor(ExtractorConfig{}).Extract(data)
			assert.Nil(t, x)
			assert.ErrorIs(t, err, pkgerrors.ErrUnrecognizedFormat)
		})
	}
}

func TestExtractGlobals(t *testing.T) {
	data := fixtures.New().
		Version("Cubase 14.0.10").
		SampleRate(48000).
		BitDepth(24).
		Tempo(128.5).
		TimeSignature(7, 8).
		Bytes()

	x := extract(t, data)
	assert.Equal(t, "Cubase 14.0.10", x.Version)
	require.NotNil(t, x.SampleRate)
	assert.Equal(t, 48000, *x.SampleRate)
	require.NotNil(t, x.BitDepth)
	assert.Equal(t, 24, *x.BitDepth)
	require.NotNil(t, x.Tempo)
	assert.Equal(t, 128.5, *x.Tempo)
	require.NotNil(t, x.TimeSignature)
	assert.Equal(t, model.TimeSignature{Numerator: 7, Denominator: 8}, *x.TimeSignature)
	assert.Empty(t, x.Warnings)
}

func TestExtractSampleRateIOBigEndian(t *testing.T) {
	x := extract(t, fixtures.New().SampleRateIO(96000).Bytes())
	require.NotNil(t, x.SampleRate)
	assert.Equal(t, 96000, *x.SampleRate)
}

func TestExtractFirstGlobalWinsAndConflictIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	e := NewExtractor(ExtractorConfig{Logger: logger.FromZap(zap.New(core))})

	data := fixtures.New().SampleRate(44100).SampleRate(48000).Bytes()
	x, err := e.Extract(data)
	require.NoError(t, err)

	assert.Equal(t, 44100, *x.SampleRate)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "SampleRate", logs.All()[0].ContextMap()["marker"])
}

func TestExtractTruncatedTempo(t *testing.T) {
	b := fixtures.New().Version("Cubase 13.0.0")
	at := b.Len()
	data := b.TruncatedTempo().Bytes()

	x := extract(t, data)
	assert.Nil(t, x.Tempo)
	require.Len(t, x.Warnings, 1)
	assert.Equal(t, "TempoEvent", x.Warnings[0].Marker)
	assert.Equal(t, at, x.Warnings[0].Offset)
}

func TestExtractTruncatedSendReportsMarkerOffset(t *testing.T) {
	b := fixtures.New().Track("MAudioTrackEvent", "Keys")
	at := b.Len()
	data := b.Raw([]byte("SendSlot\x00\x00\x00")).Bytes()

	x := extract(t, data)
	assert.Empty(t, x.Tracks[0].Sends)
	require.Len(t, x.Warnings, 1)
	assert.Equal(t, "SendSlot", x.Warnings[0].Marker)
	assert.Equal(t, at, x.Warnings[0].Offset)
}

func TestExtractImplausibleTempo(t *testing.T) {
	x := extract(t, fixtures.New().Version("Cubase 12.0.0").Tempo(5000).Bytes())
	assert.Nil(t, x.Tempo)
	require.Len(t, x.Warnings, 1)
	assert.Equal(t, "implausible tempo", x.Warnings[0].Reason())
}

func TestExtractTracksInOffsetOrder(t *testing.T) {
	data := fixtures.Project("MAudioTrackEvent", "MGroupChannelTrackEvent", "MMidiTrackEvent")

	x := extract(t, data)
	require.Len(t, x.Tracks, 3)
	assert.Equal(t, model.TrackAudio, x.Tracks[0].Type)
	assert.Equal(t, model.TrackGroup, x.Tracks[1].Type)
	assert.Equal(t, model.TrackMIDI, x.Tracks[2].Type)
	assert.Equal(t, "Track A", x.Tracks[0].Name)
	assert.Equal(t, "Track C", x.Tracks[2].Name)

	for i := 1; i < len(x.Tracks); i++ {
		assert.Equal(t, x.Tracks[i].Start, x.Tracks[i-1].End)
	}
	assert.Equal(t, len(data), x.Tracks[2].End)
}

func TestExtractLatin1Names(t *testing.T) {
	data := fixtures.New().
		Track("MAudioTrackEvent", "Gesang Männer").
		ProjectMarker("Refrain Ä").
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks, 1)
	assert.Equal(t, "Gesang Männer", x.Tracks[0].Name)
	assert.Equal(t, []model.Marker{{ID: 1, Name: "Refrain Ä"}}, x.Markers)
}

func TestExtractUnnamedTrackFallsBack(t *testing.T) {
	data := fixtures.New().
		Track("MAudioTrackEvent", "").
		WideFilename("kick.wav").
		Track("MFXChannelTrackEvent", "").
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks, 2)
	assert.Equal(t, "Audio 1", x.Tracks[0].Name)
	assert.Equal(t, "FX 2", x.Tracks[1].Name)
}

func TestExtractWideFilenameInTrack(t *testing.T) {
	data := fixtures.New().
		Version("Cubase 14.0.10").
		Filename("before.wav").
		Track("MAudioTrackEvent", "Kick").
		WideFilename("kick.wav").
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks, 1)
	require.Len(t, x.Tracks[0].AudioFiles, 1)
	assert.Equal(t, "kick.wav", x.Tracks[0].AudioFiles[0].Text)

	require.Len(t, x.Filenames, 2)
	assert.Equal(t, "before.wav", x.Filenames[0].Text)
}

func TestExtractBinaryPlugin(t *testing.T) {
	data := fixtures.New().
		Track("MAudioTrackEvent", "Vocals").
		Plugin("SSL Native Channel Strip 2",
			fixtures.Vendor("Solid State Logic"),
			fixtures.Slot(2),
			fixtures.Bypass(true),
			fixtures.Param("Comp Threshold", -18),
			fixtures.Param("Comp Ratio", 4),
		).
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks, 1)
	require.Len(t, x.Tracks[0].Plugins, 1)

	p := x.Tracks[0].Plugins[0]
	assert.Equal(t, "SSL Native Channel Strip 2", p.Name)
	assert.Equal(t, "Solid State Logic", p.Vendor)
	require.NotNil(t, p.Slot)
	assert.Equal(t, 2, *p.Slot)
	assert.True(t, p.Bypassed)

	body, ok := p.Body.(*BinaryChunk)
	require.True(t, ok)
	assert.Equal(t, []Param{{Key: "Comp Threshold", Value: -18}, {Key: "Comp Ratio", Value: 4}}, body.Params)
}

func TestExtractSkipsBuiltinComponents(t *testing.T) {
	data := fixtures.New().
		Track("MAudioTrackEvent", "Bass").
		Plugin("Standard Panner", fixtures.Param("Pan", 0)).
		Plugin("Pro-C 2", fixtures.Param("Threshold", -20)).
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks[0].Plugins, 1)
	assert.Equal(t, "Pro-C 2", x.Tracks[0].Plugins[0].Name)
}

func TestExtractSkipsBuiltinPresetDocument(t *testing.T) {
	panner := `<?xml version="1.0"?><Preset><Param name="Ratio" value="8"/></Preset>`
	data := fixtures.New().
		Track("MAudioTrackEvent", "Bass").
		Plugin("Pro-C 2", fixtures.Param("Threshold", -20)).
		Plugin("Standard Panner").
		XMLPlugin(panner).
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks[0].Plugins, 1)
	assert.Equal(t, "Pro-C 2", x.Tracks[0].Plugins[0].Name)
	assert.Empty(t, x.Warnings)
}

func TestExtractKeepsNamedDocumentAfterBuiltin(t *testing.T) {
	doc := `<?xml version="1.0"?><Preset name="CLA-2A"><Param name="Peak Reduction" value="40"/></Preset>`
	data := fixtures.New().
		Track("MAudioTrackEvent", "Bass").
		Plugin("Standard Panner").
		XMLPlugin(doc).
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks[0].Plugins, 1)
	assert.Equal(t, "CLA-2A", x.Tracks[0].Plugins[0].Name)
}

func TestExtractChunkLimit(t *testing.T) {
	data := fixtures.New().
		Track("MAudioTrackEvent", "Bass").
		Plugin("Tiny", fixtures.Param("Early", 1), make([]byte, 64), fixtures.Param("Late", 2)).
		Bytes()

	e := NewExtractor(ExtractorConfig{ChunkLimit: func(name string) int {
		if name == "Tiny" {
			return 64
		}
		return 0
	}})
	x, err := e.Extract(data)
	require.NoError(t, err)

	body := x.Tracks[0].Plugins[0].Body.(*BinaryChunk)
	require.Len(t, body.Params, 1)
	assert.Equal(t, "Early", body.Params[0].Key)
}

func TestExtractOrphanPlugin(t *testing.T) {
	data := fixtures.New().
		Version("Cubase 14.0.10").
		Plugin("Pro-Q 3", fixtures.Param("Band 1 Frequency", 100)).
		Track("MAudioTrackEvent", "Late").
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Orphans, 1)
	assert.Empty(t, x.Tracks[0].Plugins)
	require.Len(t, x.Warnings, 1)
	assert.Equal(t, "Plugin Name", x.Warnings[0].Marker)
}

func TestExtractXMLPlugin(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>` +
		`<Preset name="CLA-76"><Vendor>Waves</Vendor><Slot>1</Slot>` +
		`<PresetData Setup="SETUP_A"><Parameters Type="RealWorld">3 5 * 7</Parameters></PresetData>` +
		`</Preset>`
	data := fixtures.New().
		Track("MAudioTrackEvent", "Drums").
		XMLPlugin(doc).
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks[0].Plugins, 1)

	p := x.Tracks[0].Plugins[0]
	assert.Equal(t, "CLA-76", p.Name)
	assert.Equal(t, "Waves", p.Vendor)
	require.NotNil(t, p.Slot)
	assert.Equal(t, 1, *p.Slot)

	body, ok := p.Body.(*XMLChunk)
	require.True(t, ok)
	require.Len(t, body.RealWorld, 4)
	assert.Equal(t, 3.0, *body.RealWorld[0])
	assert.Nil(t, body.RealWorld[2])
	assert.Equal(t, 7.0, *body.RealWorld[3])
}

func TestExtractXMLRejectsNonFiniteValues(t *testing.T) {
	doc := `<?xml version="1.0"?><Preset name="Pro-C 2">` +
		`<Param name="Mix" value="NaN"/><Param name="Ratio" value="4"/>` +
		`<Band Gain="+Inf"/><Ceiling>-inf</Ceiling>` +
		`<PresetData Setup="SETUP_A"><Parameters Type="RealWorld">1 Inf 3</Parameters></PresetData>` +
		`</Preset>`
	b := fixtures.New().Track("MAudioTrackEvent", "Mix Bus")
	at := b.Len() + len("PresetChunkXMLTree") + 2
	data := b.XMLPlugin(doc).Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks[0].Plugins, 1)

	body, ok := x.Tracks[0].Plugins[0].Body.(*XMLChunk)
	require.True(t, ok)
	assert.Equal(t, []Param{{Key: "Ratio", Value: 4}}, XMLParams(body.Doc))
	require.Len(t, body.RealWorld, 3)
	assert.Nil(t, body.RealWorld[1])
	assert.Equal(t, 3.0, *body.RealWorld[2])

	require.Len(t, x.Warnings, 4)
	for _, w := range x.Warnings {
		assert.Equal(t, "<?xml", w.Marker)
		assert.Equal(t, at, w.Offset)
		assert.Contains(t, w.Reason(), "non-finite value")
	}
}

func TestExtractUnbalancedXMLIsDropped(t *testing.T) {
	data := fixtures.New().
		Track("MAudioTrackEvent", "Drums").
		XMLPlugin(`<?xml version="1.0"?><Preset name="Broken"><Param name="a" value="1"/>`).
		Bytes()

	x := extract(t, data)
	assert.Empty(t, x.Tracks[0].Plugins)
	require.Len(t, x.Warnings, 1)
	assert.Equal(t, "<?xml", x.Warnings[0].Marker)
}

func TestXMLParams(t *testing.T) {
	doc := `<?xml version="1.0"?>` +
		`<Preset name="Pro-Q 3" version="3">` +
		`<Param name="Band 1 Frequency" value="120.5"/>` +
		`<Band index="2" Gain="-3"/>` +
		`<Output>1.5</Output><Label>text</Label>` +
		`</Preset>`
	data := append([]byte(doc), 0)
	end, err := balancedEnd(data, 0)
	require.NoError(t, err)
	assert.Equal(t, len(doc), end)

	chunk, bad, err := parseXMLChunk(data, 0, end)
	require.NoError(t, err)
	assert.Empty(t, bad)
	params := XMLParams(chunk.Body.(*XMLChunk).Doc)
	assert.Equal(t, []Param{
		{Key: "Band 1 Frequency", Value: 120.5},
		{Key: "index", Value: 2},
		{Key: "Gain", Value: -3},
		{Key: "Output", Value: 1.5},
	}, params)
}

func TestExtractRoutingAndSends(t *testing.T) {
	data := fixtures.New().
		Track("MAudioTrackEvent", "Guitar").
		OutputBus("Stereo Out").
		Send("FX Reverb", -6.5, true).
		Send("FX Delay", -12, false).
		Track("MFXChannelTrackEvent", "FX Reverb").
		Bytes()

	x := extract(t, data)
	require.Len(t, x.Tracks, 2)
	assert.Equal(t, "Stereo Out", x.Tracks[0].OutputBus)
	assert.Equal(t, []model.Send{
		{Target: "FX Reverb", LevelDB: -6.5, Enabled: true},
		{Target: "FX Delay", LevelDB: -12, Enabled: false},
	}, x.Tracks[0].Sends)
	assert.Empty(t, x.Tracks[1].Sends)
}

func TestExtractProjectMarkers(t *testing.T) {
	data := fixtures.New().
		Version("Cubase 14.0.10").
		ProjectMarker("Chorus").
		ProjectMarker("Bridge").
		Bytes()

	x := extract(t, data)
	assert.Equal(t, []model.Marker{{ID: 1, Name: "Chorus"}, {ID: 2, Name: "Bridge"}}, x.Markers)
}
