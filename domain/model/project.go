package model

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// TrackType classifies a track or mixer channel
type TrackType string

const (
	TrackAudio      TrackType = "audio"
	TrackInstrument TrackType = "instrument"
	TrackMIDI       TrackType = "midi"
	TrackFX         TrackType = "fx"
	TrackGroup      TrackType = "group"
	TrackVCA        TrackType = "vca"
	TrackMaster     TrackType = "master"
	TrackFolder     TrackType = "folder"
)

// Title returns the display form used for generated track names.
func (t TrackType) Title() string {
	switch t {
	case TrackMIDI:
		return "MIDI"
	case TrackFX:
		return "FX"
	case TrackVCA:
		return "VCA"
	case "":
		return "Track"
	}
	s := string(t)
	return string(s[0]-'a'+'A') + s[1:]
}

// TimeSignature is a meter such as 4/4 or 6/8
type TimeSignature struct {
	Numerator   int
	Denominator int
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Numerator, ts.Denominator)
}

// Project is the root of a parsed container file.
//
// Optional metadata is a nil pointer when the source bytes did not carry a
// usable value; it is never filled with a default.
type Project struct {
	Name          string
	Version       string
	SampleRate    *int
	BitDepth      *int
	Tempo         *float64
	TimeSignature *TimeSignature

	Tracks          []Track
	Markers         []Marker
	ReferencedAudio []string

	FileSize int
	Warnings []Warning
}

// Track is one track or mixer channel with its insert chain
type Track struct {
	Name       string
	Type       TrackType
	Index      int
	OutputBus  string
	Sends      []Send
	AudioFiles []string
	Plugins    []PluginInstance
}

// Send is an auxiliary path from a track to a bus
type Send struct {
	Target  string
	LevelDB float64
	Enabled bool
}

// Marker is a named project position marker
type Marker struct {
	ID   int
	Name string
}

// Status reports how completely a project was decoded.
func (p *Project) Status() Status {
	if p == nil {
		return StatusUnrecognized
	}
	if len(p.Warnings) > 0 {
		return StatusDegraded
	}
	return StatusOK
}

// Err combines all parse warnings into a single error, or nil when the
// project parsed cleanly.
func (p *Project) Err() error {
	var err error
	for _, w := range p.Warnings {
		err = multierr.Append(err, w)
	}
	return err
}

func (p *Project) TrackCount() int { return len(p.Tracks) }

func (p *Project) PluginCount() int {
	n := 0
	for _, t := range p.Tracks {
		n += len(t.Plugins)
	}
	return n
}

func (p *Project) AudioTrackCount() int {
	n := 0
	for _, t := range p.Tracks {
		if t.Type == TrackAudio {
			n++
		}
	}
	return n
}

// TrackPlugin pairs a plugin with the track it sits on
type TrackPlugin struct {
	Track  *Track
	Plugin *PluginInstance
}

// AllPlugins lists every plugin in track order, then slot order.
func (p *Project) AllPlugins() []TrackPlugin {
	var out []TrackPlugin
	for i := range p.Tracks {
		t := &p.Tracks[i]
		for j := range t.Plugins {
			out = append(out, TrackPlugin{Track: t, Plugin: &t.Plugins[j]})
		}
	}
	return out
}

// PluginsByName groups AllPlugins by plugin display name.
func (p *Project) PluginsByName() map[string][]TrackPlugin {
	out := make(map[string][]TrackPlugin)
	for _, tp := range p.AllPlugins() {
		out[tp.Plugin.Name] = append(out[tp.Plugin.Name], tp)
	}
	return out
}

// PluginNames returns the distinct plugin names in sorted order.
func (p *Project) PluginNames() []string {
	byName := p.PluginsByName()
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
