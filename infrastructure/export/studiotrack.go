// Package export renders parsed projects in the StudioTrack JSON schema.
//
// Values are written exactly as decoded. Missing metadata and plugin fields
// are null rather than a default, so a consumer can tell "not stored" from zero.
package export

import (
	"io"

	json "github.com/goccy/go-json"

	"github.com/Skryldev/cpr-lab/domain/model"
	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
)

// Schema versions. 1.1 adds routing, audio files, markers, status and warnings.
const (
	SchemaV10 = "1.0"
	SchemaV11 = "1.1"

	// ExportVersion labels the multi-project batch document
	ExportVersion = "1.0"

	Source = "cpr-lab"
)

type options struct {
	version string
	indent  string
}

// Option configures an export
type Option func(*options)

// WithSchemaVersion selects the document shape; "1.1" is the default.
func WithSchemaVersion(v string) Option {
	return func(o *options) {
		if v != "" {
			o.version = v
		}
	}
}

// WithIndent pretty-prints the output using indent for each level.
func WithIndent(indent string) Option {
	return func(o *options) {
		o.indent = indent
	}
}

func apply(opts []Option) (*options, error) {
	o := &options{version: SchemaV11}
	for _, fn := range opts {
		fn(o)
	}
	switch o.version {
	case SchemaV10, SchemaV11:
		return o, nil
	}
	return nil, pkgerrors.NewValidationError("schema_version", o.version, "unsupported schema version")
}

// Document is one exported project
type Document struct {
	SchemaVersion   string    `json:"schema_version"`
	Source          string    `json:"source"`
	Project         Header    `json:"project"`
	Tracks          []Track   `json:"tracks"`
	Summary         Summary   `json:"summary"`
	ReferencedAudio []string  `json:"referenced_audio,omitempty"`
	Status          string    `json:"status,omitempty"`
	Warnings        []Warning `json:"warnings,omitempty"`
}

type Header struct {
	Name          string   `json:"name"`
	CubaseVersion string   `json:"cubase_version"`
	SampleRate    *int     `json:"sample_rate"`
	BitDepth      *int     `json:"bit_depth"`
	TempoBPM      *float64 `json:"tempo_bpm"`
	TimeSignature *string  `json:"time_signature"`
	Markers       []Marker `json:"markers,omitempty"`
}

type Marker struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Track struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	OutputBus   string   `json:"output_bus,omitempty"`
	Sends       []Send   `json:"sends,omitempty"`
	AudioFiles  []string `json:"audio_files,omitempty"`
	SignalChain []Plugin `json:"signal_chain"`
}

type Send struct {
	Target  string  `json:"target"`
	LevelDB float64 `json:"level_db"`
	Enabled bool    `json:"enabled"`
}

type Plugin struct {
	PluginName string             `json:"plugin_name"`
	Vendor     string             `json:"vendor"`
	Bypassed   bool               `json:"bypassed"`
	Slot       int                `json:"slot"`
	EQ         *EQ                `json:"eq,omitempty"`
	Compressor *Compressor        `json:"compressor,omitempty"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
}

type EQ struct {
	Bands []Band `json:"bands"`
}

type Band struct {
	Enabled bool     `json:"enabled"`
	Type    string   `json:"type"`
	FreqHz  *float64 `json:"freq_hz"`
	GainDB  *float64 `json:"gain_db"`
	Q       *float64 `json:"q"`
}

type Compressor struct {
	ThresholdDB *float64 `json:"threshold_db"`
	Ratio       *float64 `json:"ratio"`
	AttackMs    *float64 `json:"attack_ms"`
	ReleaseMs   *float64 `json:"release_ms"`
	KneeDB      *float64 `json:"knee_db"`
	MakeupDB    *float64 `json:"makeup_db"`
}

type Summary struct {
	TotalTracks     int `json:"total_tracks"`
	TotalPlugins    int `json:"total_plugins"`
	AudioTracks     int `json:"audio_tracks"`
	ReferencedFiles int `json:"referenced_files"`
}

type Warning struct {
	Marker string `json:"marker"`
	Offset int    `json:"offset"`
	Reason string `json:"reason"`
}

// ToDocument converts a project into the selected schema shape.
func ToDocument(p *model.Project, opts ...Option) (*Document, error) {
	o, err := apply(opts)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, pkgerrors.NewValidationError("project", nil, "project is nil")
	}
	return document(p, o.version), nil
}

func document(p *model.Project, version string) *Document {
	v11 := version == SchemaV11

	doc := &Document{
		SchemaVersion: version,
		Source:        Source,
		Project: Header{
			Name:          p.Name,
			CubaseVersion: p.Version,
			SampleRate:    p.SampleRate,
			BitDepth:      p.BitDepth,
			TempoBPM:      p.Tempo,
		},
		Tracks: make([]Track, 0, len(p.Tracks)),
		Summary: Summary{
			TotalTracks:     p.TrackCount(),
			TotalPlugins:    p.PluginCount(),
			AudioTracks:     p.AudioTrackCount(),
			ReferencedFiles: len(p.ReferencedAudio),
		},
	}
	if p.TimeSignature != nil {
		s := p.TimeSignature.String()
		doc.Project.TimeSignature = &s
	}

	for _, t := range p.Tracks {
		tr := Track{
			Name:        t.Name,
			Type:        string(t.Type),
			SignalChain: make([]Plugin, 0, len(t.Plugins)),
		}
		if v11 {
			tr.OutputBus = t.OutputBus
			for _, s := range t.Sends {
				tr.Sends = append(tr.Sends, Send{Target: s.Target, LevelDB: s.LevelDB, Enabled: s.Enabled})
			}
			tr.AudioFiles = t.AudioFiles
		}
		for _, pl := range t.Plugins {
			tr.SignalChain = append(tr.SignalChain, plugin(pl))
		}
		doc.Tracks = append(doc.Tracks, tr)
	}

	if v11 {
		for _, m := range p.Markers {
			doc.Project.Markers = append(doc.Project.Markers, Marker{ID: m.ID, Name: m.Name})
		}
		doc.ReferencedAudio = p.ReferencedAudio
		doc.Status = string(p.Status())
		for _, w := range p.Warnings {
			doc.Warnings = append(doc.Warnings, Warning{Marker: w.Marker, Offset: w.Offset, Reason: w.Reason})
		}
	}
	return doc
}

func plugin(pl model.PluginInstance) Plugin {
	out := Plugin{
		PluginName: pl.Name,
		Vendor:     pl.Vendor,
		Bypassed:   pl.Bypassed,
		Slot:       pl.Slot,
		Parameters: pl.Parameters,
	}
	if pl.EQ != nil && len(pl.EQ.Bands) > 0 {
		out.EQ = &EQ{Bands: make([]Band, 0, len(pl.EQ.Bands))}
		for _, b := range pl.EQ.Bands {
			out.EQ.Bands = append(out.EQ.Bands, Band{
				Enabled: b.Enabled,
				Type:    string(b.Type),
				FreqHz:  b.Frequency,
				GainDB:  b.Gain,
				Q:       b.Q,
			})
		}
	}
	if c := pl.Compressor; !c.Empty() {
		out.Compressor = &Compressor{
			ThresholdDB: c.Threshold,
			Ratio:       c.Ratio,
			AttackMs:    c.Attack,
			ReleaseMs:   c.Release,
			KneeDB:      c.Knee,
			MakeupDB:    c.Makeup,
		}
	}
	return out
}

// Marshal encodes a project as a StudioTrack document.
func Marshal(p *model.Project, opts ...Option) ([]byte, error) {
	o, err := apply(opts)
	if err != nil {
		return nil, err
	}
	doc, err := ToDocument(p, opts...)
	if err != nil {
		return nil, err
	}
	return encode(doc, o.indent)
}

// Write encodes a project to w followed by a newline.
func Write(w io.Writer, p *model.Project, opts ...Option) error {
	b, err := Marshal(p, opts...)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func encode(v any, indent string) ([]byte, error) {
	if indent != "" {
		return json.MarshalIndent(v, "", indent)
	}
	return json.Marshal(v)
}
