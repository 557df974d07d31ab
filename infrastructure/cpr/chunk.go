package cpr

import (
	"github.com/Skryldev/cpr-lab/domain/model"
	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"github.com/beevik/etree"
)

// PluginChunk is the raw parameter region of one plugin instance
type PluginChunk struct {
	Name     string
	Vendor   string
	Slot     *int
	Bypassed bool
	Offset   int
	End      int
	Body     ChunkBody
}

// ChunkBody is either a *BinaryChunk or an *XMLChunk
type ChunkBody interface {
	chunkBody()
}

// Param is a named numeric value decoded from a chunk
type Param struct {
	Key   string
	Value float64
}

// BinaryChunk holds the parameter records found behind a plugin-name marker
type BinaryChunk struct {
	Params []Param
}

// XMLChunk holds an embedded preset document
type XMLChunk struct {
	Doc *etree.Document

	// RealWorld is the positional value list some vendors store instead of
	// named parameters; nil entries are unused slots ("*").
	RealWorld []*float64
}

func (*BinaryChunk) chunkBody() {}
func (*XMLChunk) chunkBody()    {}

// TrackRegion is the byte range owned by one track marker and everything
// attributed to it
type TrackRegion struct {
	Type       model.TrackType
	Marker     string
	Start      int
	End        int
	Name       string
	OutputBus  string
	Sends      []model.Send
	AudioFiles []TextRun
	Plugins    []PluginChunk
}

// Contains reports whether offset lies strictly inside the region.
func (r TrackRegion) Contains(offset int) bool {
	return offset > r.Start && offset < r.End
}

// Globals is project-wide metadata, each field nil when not recovered
type Globals struct {
	Version       string
	SampleRate    *int
	BitDepth      *int
	Tempo         *float64
	TimeSignature *model.TimeSignature
}

// Extraction is everything the extractor recovered from one buffer
type Extraction struct {
	Size int
	Globals
	Tracks    []TrackRegion
	Markers   []model.Marker
	Filenames []TextRun

	// Orphans are plugin chunks found before the first track marker
	Orphans []PluginChunk

	Warnings []*pkgerrors.DecodeError
}
