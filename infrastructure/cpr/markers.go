package cpr

import (
	"encoding/binary"

	"github.com/Skryldev/cpr-lab/domain/model"
)

// Kind is the structural role of a marker
type Kind int

const (
	KindTrack Kind = iota + 1
	KindVersion
	KindSampleRate
	KindBitDepth
	KindTempo
	KindTimeSignature
	KindPluginName
	KindPresetXML
	KindXMLStart
	KindOutputBus
	KindSend
	KindProjectMarker

	// chunk-internal fields, only scanned inside a binary plugin chunk
	KindParam
	KindSlot
	KindBypass
	KindVendor
)

// Encoding describes how the value behind a marker is stored
type Encoding int

const (
	ValueNone Encoding = iota
	ValueCString
	ValueInt32
	ValueFloat64
	ValueInt32Pair
	ValueByte
)

// Marker is one row of the format table
type Marker struct {
	Name      string
	Kind      Kind
	TrackType model.TrackType

	// Value layout. Offset counts from the end of the match, or from its
	// start when FromStart is set.
	Value     Encoding
	Offset    int
	FromStart bool
	Order     binary.ByteOrder
	MaxLen    int

	Since string
}

// Bytes returns the literal searched for
func (m Marker) Bytes() []byte { return []byte(m.Name) }

// Global reports whether the marker carries project-wide metadata.
func (m Marker) Global() bool {
	switch m.Kind {
	case KindVersion, KindSampleRate, KindBitDepth, KindTempo, KindTimeSignature:
		return true
	}
	return false
}

// Fingerprint reports whether an occurrence of the marker identifies the
// container format.
func (m Marker) Fingerprint() bool {
	return m.Kind == KindTrack || m.Global()
}

// Table is a versioned set of marker rows. New format revisions add rows.
type Table struct {
	Revision string
	Markers  []Marker
	Fields   []Marker
}

// Rows returns the markers of the given kinds, in table order.
func (t Table) Rows(kinds ...Kind) []Marker {
	var out []Marker
	for _, m := range t.Markers {
		for _, k := range kinds {
			if m.Kind == k {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

var (
	le = binary.LittleEndian
	be = binary.BigEndian
)

func trackRow(name string, tt model.TrackType) Marker {
	return Marker{Name: name, Kind: KindTrack, TrackType: tt, Since: "cpr/1"}
}

func versionRow(name string) Marker {
	return Marker{Name: name, Kind: KindVersion, Value: ValueCString, FromStart: true, MaxLen: 50, Since: "cpr/1"}
}

// DefaultTable is the marker table for the project revisions seen so far.
var DefaultTable = Table{
	Revision: "cpr/1",
	Markers: []Marker{
		trackRow("MAudioTrackEvent", model.TrackAudio),
		trackRow("MInstrumentTrackEvent", model.TrackInstrument),
		trackRow("MSamplerTrackEvent", model.TrackInstrument),
		trackRow("MMidiTrackEvent", model.TrackMIDI),
		trackRow("MFXChannelTrackEvent", model.TrackFX),
		trackRow("MGroupChannelTrackEvent", model.TrackGroup),
		trackRow("MVCATrackEvent", model.TrackVCA),
		trackRow("MMixerTrackEvent", model.TrackMaster),
		trackRow("MFolderTrackEvent", model.TrackFolder),

		versionRow("Cubase 15"),
		versionRow("Cubase 14"),
		versionRow("Cubase 13"),
		versionRow("Cubase 12"),
		versionRow("Cubase 11"),
		versionRow("Cubase 10"),
		versionRow("Cubase 9"),
		versionRow("Nuendo 13"),
		versionRow("Nuendo 12"),

		{Name: "SampleRate", Kind: KindSampleRate, Value: ValueInt32, Offset: 1, Order: le, Since: "cpr/1"},
		{Name: "SRateForAudioIO", Kind: KindSampleRate, Value: ValueInt32, Offset: 1, Order: be, Since: "cpr/1"},
		{Name: "Record Format", Kind: KindBitDepth, Value: ValueInt32, Offset: 1, Order: le, Since: "cpr/1"},
		{Name: "TempoEvent", Kind: KindTempo, Value: ValueFloat64, Offset: 0, Order: le, Since: "cpr/1"},
		{Name: "TimeSignatureEvent", Kind: KindTimeSignature, Value: ValueInt32Pair, Offset: 0, Order: le, Since: "cpr/1"},

		{Name: "Plugin Name", Kind: KindPluginName, Value: ValueCString, Offset: 1, MaxLen: 64, Since: "cpr/1"},
		{Name: "PresetChunkXMLTree", Kind: KindPresetXML, Since: "cpr/1"},
		{Name: "<?xml", Kind: KindXMLStart, Since: "cpr/1"},

		{Name: "OutputBus", Kind: KindOutputBus, Value: ValueCString, Offset: 1, MaxLen: 64, Since: "cpr/1"},
		{Name: "SendSlot", Kind: KindSend, Offset: 1, Order: le, Since: "cpr/1"},
		{Name: "MMarkerEvent", Kind: KindProjectMarker, Since: "cpr/1"},
	},
	Fields: []Marker{
		{Name: "Param\x00", Kind: KindParam, Order: le, Since: "cpr/1"},
		{Name: "Slot\x00", Kind: KindSlot, Value: ValueInt32, Order: le, Since: "cpr/1"},
		{Name: "Bypass\x00", Kind: KindBypass, Value: ValueByte, Since: "cpr/1"},
		{Name: "Vendor\x00", Kind: KindVendor, Value: ValueCString, MaxLen: 64, Since: "cpr/1"},
	},
}

// Sample rates and bit depths a project can legitimately carry
var (
	knownSampleRates = map[int]bool{
		22050: true, 32000: true, 44100: true, 48000: true, 88200: true,
		96000: true, 176400: true, 192000: true, 352800: true, 384000: true,
	}
	knownBitDepths = map[int]bool{8: true, 16: true, 24: true, 32: true, 64: true}
)

const (
	minTempo = 20.0
	maxTempo = 999.0
)

// Built-in channel components that appear under a plugin marker but are not
// user inserts.
var builtinPlugins = map[string]bool{
	"Standard Panner":        true,
	"Stereo Combined Panner": true,
	"Input Filter":           true,
	"EQ":                     true,
	"Mono Panner":            true,
	"Surround Panner":        true,
	"Sampler Track":          true,
}

// AudioExtensions are the file suffixes recognized as audio references
var AudioExtensions = []string{"wav", "mp3", "flac", "aiff", "aif", "ogg", "m4a"}
