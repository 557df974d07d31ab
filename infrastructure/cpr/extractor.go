package cpr

import (
	"encoding/binary"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/Skryldev/cpr-lab/domain/model"
	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"github.com/Skryldev/cpr-lab/pkg/logger"
	"go.uber.org/zap"
)

const (
	// DefaultChunkLimit bounds a binary plugin chunk whose plugin declares no size
	DefaultChunkLimit = 64 << 10

	nameWindow = 500
)

// Extractor slices a scanned buffer into typed chunks
type Extractor struct {
	table      Table
	chunkLimit func(name string) int
	log        *logger.Logger
}

// ExtractorConfig holds configuration for the extractor
type ExtractorConfig struct {
	// Table defaults to DefaultTable
	Table Table

	// ChunkLimit returns the byte bound for a named plugin's binary chunk,
	// or 0 to use DefaultChunkLimit
	ChunkLimit func(name string) int

	Logger *logger.Logger
}

// NewExtractor creates a new chunk extractor
func NewExtractor(cfg ExtractorConfig) *Extractor {
	table := cfg.Table
	if len(table.Markers) == 0 {
		table = DefaultTable
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{
		table:      table,
		chunkLimit: cfg.ChunkLimit,
		log:        log.Named("extract"),
	}
}

// Table returns the marker table in use
func (e *Extractor) Table() Table { return e.table }

// Scan collects every marker occurrence of the extractor's table.
func (e *Extractor) Scan(data []byte) []Occurrence {
	return Collect(data, e.table.Markers)
}

// Recognized reports whether any occurrence fingerprints the container.
func Recognized(occ []Occurrence) bool {
	for _, o := range occ {
		if o.Marker.Fingerprint() {
			return true
		}
	}
	return false
}

// Extract scans data and partitions it. It fails only when the buffer is not
// recognizable as a project container at all.
func (e *Extractor) Extract(data []byte) (*Extraction, error) {
	return e.ExtractFrom(data, e.Scan(data))
}

// ExtractFrom partitions data using previously collected occurrences.
func (e *Extractor) ExtractFrom(data []byte, occ []Occurrence) (*Extraction, error) {
	if !Recognized(occ) {
		return nil, pkgerrors.NewUnrecognizedFormatError(len(data))
	}

	x := &Extraction{Size: len(data)}
	e.extractGlobals(data, occ, x)
	e.extractTracks(data, occ, x)
	e.extractPlugins(data, occ, x)
	e.extractFilenames(data, x)
	e.extractRouting(data, occ, x)
	e.extractMarkers(data, occ, x)
	return x, nil
}

func (e *Extractor) warn(x *Extraction, err error) {
	if de, ok := pkgerrors.As[*pkgerrors.DecodeError](err); ok {
		x.Warnings = append(x.Warnings, de)
		return
	}
	x.Warnings = append(x.Warnings, pkgerrors.WrapDecodeError("", 0, "decode failed", err))
}

// warnAt records err against the occurrence that produced it, so a short
// value window still reports where its marker starts.
func (e *Extractor) warnAt(x *Extraction, o Occurrence, err error) {
	if de, ok := pkgerrors.As[*pkgerrors.DecodeError](err); ok {
		at := *de
		at.Marker = o.Marker.Name
		at.Offset = o.Offset
		x.Warnings = append(x.Warnings, &at)
		return
	}
	x.Warnings = append(x.Warnings, pkgerrors.WrapDecodeError(o.Marker.Name, o.Offset, "decode failed", err))
}

// ── Global metadata ────────────────────────────────────────────────────

func (e *Extractor) extractGlobals(data []byte, occ []Occurrence, x *Extraction) {
	for _, o := range occ {
		if !o.Marker.Global() {
			continue
		}
		switch o.Marker.Kind {
		case KindVersion:
			v, err := ReadCString(data, o.ValueAt(), o.Marker.MaxLen, o.Marker.Name)
			if err != nil {
				e.warnAt(x, o, err)
				continue
			}
			if x.Version == "" {
				x.Version = v
			} else if v != x.Version {
				e.conflict(o, x.Version, v)
			}

		case KindSampleRate:
			v, err := readPlausibleInt(data, o, knownSampleRates, "sample rate")
			if err != nil {
				e.warnAt(x, o, err)
				continue
			}
			if x.SampleRate == nil {
				x.SampleRate = &v
			} else if v != *x.SampleRate {
				e.conflict(o, *x.SampleRate, v)
			}

		case KindBitDepth:
			v, err := readPlausibleInt(data, o, knownBitDepths, "bit depth")
			if err != nil {
				e.warnAt(x, o, err)
				continue
			}
			if x.BitDepth == nil {
				x.BitDepth = &v
			} else if v != *x.BitDepth {
				e.conflict(o, *x.BitDepth, v)
			}

		case KindTempo:
			v, err := ReadFloat64(data, o.ValueAt(), o.Marker.Order, o.Marker.Name)
			if err == nil && (v < minTempo || v > maxTempo) {
				err = pkgerrors.NewDecodeError(o.Marker.Name, o.Offset, "implausible tempo")
			}
			if err != nil {
				e.warnAt(x, o, err)
				continue
			}
			if x.Tempo == nil {
				x.Tempo = &v
			} else if v != *x.Tempo {
				e.conflict(o, *x.Tempo, v)
			}

		case KindTimeSignature:
			ts, err := readTimeSignature(data, o)
			if err != nil {
				e.warnAt(x, o, err)
				continue
			}
			if x.TimeSignature == nil {
				x.TimeSignature = &ts
			} else if ts != *x.TimeSignature {
				e.conflict(o, x.TimeSignature.String(), ts.String())
			}
		}
	}
}

func (e *Extractor) conflict(o Occurrence, kept, ignored interface{}) {
	e.log.Warn("conflicting metadata occurrence ignored",
		zap.String("marker", o.Marker.Name),
		zap.Int("offset", o.Offset),
		zap.Any("kept", kept),
		zap.Any("ignored", ignored),
	)
}

// readPlausibleInt reads the row's declared byte order first and the
// opposite order second, accepting whichever yields a known value.
func readPlausibleInt(data []byte, o Occurrence, known map[int]bool, what string) (int, error) {
	primary, err := ReadInt32(data, o.ValueAt(), o.Marker.Order, o.Marker.Name)
	if err != nil {
		return 0, err
	}
	if known[int(primary)] {
		return int(primary), nil
	}
	var other binary.ByteOrder = le
	if o.Marker.Order == le {
		other = be
	}
	swapped, _ := ReadInt32(data, o.ValueAt(), other, o.Marker.Name)
	if known[int(swapped)] {
		return int(swapped), nil
	}
	return 0, pkgerrors.NewDecodeError(o.Marker.Name, o.Offset, "implausible "+what)
}

func readTimeSignature(data []byte, o Occurrence) (model.TimeSignature, error) {
	num, err := ReadInt32(data, o.ValueAt(), o.Marker.Order, o.Marker.Name)
	if err != nil {
		return model.TimeSignature{}, err
	}
	den, err := ReadInt32(data, o.ValueAt()+4, o.Marker.Order, o.Marker.Name)
	if err != nil {
		return model.TimeSignature{}, err
	}
	if num < 1 || num > 64 || den < 1 || den > 64 || den&(den-1) != 0 {
		return model.TimeSignature{}, pkgerrors.NewDecodeError(o.Marker.Name, o.Offset, "implausible time signature")
	}
	return model.TimeSignature{Numerator: int(num), Denominator: int(den)}, nil
}

// ── Track regions ──────────────────────────────────────────────────────

func (e *Extractor) extractTracks(data []byte, occ []Occurrence, x *Extraction) {
	var starts []Occurrence
	for _, o := range occ {
		if o.Marker.Kind == KindTrack {
			starts = append(starts, o)
		}
	}
	for i, o := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1].Offset
		}
		r := TrackRegion{
			Type:   o.Marker.TrackType,
			Marker: o.Marker.Name,
			Start:  o.Offset,
			End:    end,
		}
		r.Name = nearbyName(data, o.End(), end)
		if r.Name == "" {
			r.Name = r.Type.Title() + " " + itoa(i+1)
		}
		x.Tracks = append(x.Tracks, r)
	}
}

// nearbyName returns the first UTF-16LE run after a marker that reads like a
// name rather than a file reference or another marker.
func nearbyName(data []byte, from, limit int) string {
	end := from + nameWindow
	if end > limit {
		end = limit
	}
	if from >= end {
		return ""
	}
	for _, run := range UTF16Runs(data[from:end], 2) {
		s := strings.TrimSpace(run.Text)
		if len(s) < 2 || len(s) > 80 || !hasLetter(s) || looksLikeFile(s) {
			continue
		}
		if strings.HasPrefix(s, "M") && strings.HasSuffix(s, "Event") {
			continue
		}
		return s
	}
	return ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func looksLikeFile(s string) bool {
	lower := strings.ToLower(s)
	for _, ext := range AudioExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}

// regionIndex returns the track region strictly containing offset, or -1.
func regionIndex(tracks []TrackRegion, offset int) int {
	i := sort.Search(len(tracks), func(i int) bool { return tracks[i].Start >= offset }) - 1
	if i >= 0 && tracks[i].Contains(offset) {
		return i
	}
	return -1
}

// ── Plugin chunks ──────────────────────────────────────────────────────

func isBoundary(k Kind) bool {
	switch k {
	case KindTrack, KindPluginName, KindPresetXML, KindXMLStart:
		return true
	}
	return false
}

func (e *Extractor) limitFor(name string) int {
	if e.chunkLimit != nil {
		if n := e.chunkLimit(name); n > 0 {
			return n
		}
	}
	return DefaultChunkLimit
}

func (e *Extractor) extractPlugins(data []byte, occ []Occurrence, x *Extraction) {
	consumed := 0
	for i, o := range occ {
		if o.Offset < consumed {
			continue
		}
		var (
			chunk PluginChunk
			ok    bool
		)
		switch o.Marker.Kind {
		case KindPluginName:
			chunk, ok = e.binaryChunk(data, occ, i, x)
			if !ok {
				if end := builtinPresetEnd(data, occ, i, chunk.Name); end > consumed {
					consumed = end
				}
			}
		case KindXMLStart:
			end, err := balancedEnd(data, o.Offset)
			if err != nil {
				e.warn(x, xmlDecodeError(o.Offset, "unbalanced XML chunk", err))
				continue
			}
			consumed = end
			var bad []*pkgerrors.DecodeError
			chunk, bad, err = parseXMLChunk(data, o.Offset, end)
			if err != nil {
				e.warn(x, xmlDecodeError(o.Offset, "malformed XML chunk", err))
				continue
			}
			x.Warnings = append(x.Warnings, bad...)
			ok = true
		}
		if !ok {
			continue
		}
		if r := regionIndex(x.Tracks, chunk.Offset); r >= 0 {
			x.Tracks[r].Plugins = append(x.Tracks[r].Plugins, chunk)
		} else {
			x.Orphans = append(x.Orphans, chunk)
			e.warn(x, pkgerrors.NewDecodeError(o.Marker.Name, o.Offset, "plugin chunk outside any track region"))
		}
	}
}

func (e *Extractor) binaryChunk(data []byte, occ []Occurrence, i int, x *Extraction) (PluginChunk, bool) {
	o := occ[i]
	bodyStart := o.End()
	name, err := ReadCString(data, o.ValueAt(), o.Marker.MaxLen, o.Marker.Name)
	if err != nil {
		e.warnAt(x, o, err)
		name = ""
	} else {
		name = strings.TrimSpace(name)
		bodyStart = o.ValueAt() + len(name) + 1
	}
	if builtinPlugins[name] {
		return PluginChunk{Name: name}, false
	}

	end := len(data)
	for _, next := range occ[i+1:] {
		if next.Offset > o.Offset && isBoundary(next.Marker.Kind) {
			end = next.Offset
			break
		}
	}
	if limit := o.Offset + e.limitFor(name); limit < end {
		end = limit
	}
	if bodyStart > end {
		bodyStart = end
	}

	chunk := PluginChunk{Name: name, Offset: o.Offset, End: end}
	body := &BinaryChunk{}
	e.decodeBinaryBody(data[bodyStart:end], bodyStart, &chunk, body, x)
	chunk.Body = body
	return chunk, true
}

// builtinPresetEnd returns the end of the preset document that belongs to
// the skipped built-in component at occ[i], or 0 when the next chunk is not
// one. A document naming another plugin is left for the sweep.
func builtinPresetEnd(data []byte, occ []Occurrence, i int, name string) int {
	for _, next := range occ[i+1:] {
		if next.Offset <= occ[i].Offset || !isBoundary(next.Marker.Kind) {
			continue
		}
		switch next.Marker.Kind {
		case KindPresetXML:
			continue
		case KindXMLStart:
			end, err := balancedEnd(data, next.Offset)
			if err != nil {
				return 0
			}
			doc, _, err := parseXMLChunk(data, next.Offset, end)
			if err != nil || (doc.Name != "" && !strings.EqualFold(doc.Name, name)) {
				return 0
			}
			return end
		}
		return 0
	}
	return 0
}

func (e *Extractor) decodeBinaryBody(body []byte, base int, chunk *PluginChunk, out *BinaryChunk, x *Extraction) {
	consumed := 0
	for _, f := range Collect(body, e.table.Fields) {
		if f.Offset < consumed {
			continue
		}
		at := f.End()
		switch f.Marker.Kind {
		case KindParam:
			n, err := ReadByte(body, at, "Param")
			if err != nil {
				e.warn(x, pkgerrors.NewDecodeError("Param", base+f.Offset, "truncated parameter record"))
				continue
			}
			keyEnd := at + 1 + int(n)
			if n == 0 || keyEnd+8 > len(body) {
				e.warn(x, pkgerrors.NewDecodeError("Param", base+f.Offset, "truncated parameter record"))
				continue
			}
			key := body[at+1 : keyEnd]
			if !printableRun(key) {
				e.warn(x, pkgerrors.NewDecodeError("Param", base+f.Offset, "non-printable parameter key"))
				continue
			}
			v, err := ReadFloat64(body, keyEnd, f.Marker.Order, "Param")
			if err != nil {
				e.warn(x, pkgerrors.NewDecodeError("Param", base+f.Offset, "bad parameter value"))
				continue
			}
			out.Params = append(out.Params, Param{Key: string(key), Value: v})
			consumed = keyEnd + 8

		case KindSlot:
			v, err := ReadInt32(body, at, f.Marker.Order, "Slot")
			if err != nil || v < 0 || v > 1023 {
				e.warn(x, pkgerrors.NewDecodeError("Slot", base+f.Offset, "bad slot index"))
				continue
			}
			if chunk.Slot == nil {
				s := int(v)
				chunk.Slot = &s
			}
			consumed = at + 4

		case KindBypass:
			b, err := ReadByte(body, at, "Bypass")
			if err != nil {
				e.warn(x, pkgerrors.NewDecodeError("Bypass", base+f.Offset, "truncated bypass flag"))
				continue
			}
			chunk.Bypassed = b != 0
			consumed = at + 1

		case KindVendor:
			s, err := ReadCString(body, at, f.Marker.MaxLen, "Vendor")
			if err != nil {
				e.warn(x, pkgerrors.NewDecodeError("Vendor", base+f.Offset, "bad vendor string"))
				continue
			}
			if chunk.Vendor == "" {
				chunk.Vendor = strings.TrimSpace(s)
			}
			consumed = at + len(s) + 1
		}
	}
}

func printableRun(b []byte) bool {
	for _, c := range b {
		if !printable(c) {
			return false
		}
	}
	return true
}

// ── Audio references ───────────────────────────────────────────────────

func (e *Extractor) extractFilenames(data []byte, x *Extraction) {
	runs, errs := FindFilenames(data)
	for _, err := range errs {
		x.Warnings = append(x.Warnings, err)
	}
	x.Filenames = runs
	for _, run := range runs {
		if r := regionIndex(x.Tracks, run.Offset); r >= 0 {
			x.Tracks[r].AudioFiles = append(x.Tracks[r].AudioFiles, run)
		}
	}
}

// ── Routing and sends ──────────────────────────────────────────────────

func (e *Extractor) extractRouting(data []byte, occ []Occurrence, x *Extraction) {
	for _, o := range occ {
		switch o.Marker.Kind {
		case KindOutputBus:
			r := regionIndex(x.Tracks, o.Offset)
			if r < 0 {
				continue
			}
			bus, err := ReadCString(data, o.ValueAt(), o.Marker.MaxLen, o.Marker.Name)
			if err != nil {
				e.warnAt(x, o, err)
				continue
			}
			if x.Tracks[r].OutputBus == "" {
				x.Tracks[r].OutputBus = strings.TrimSpace(bus)
			} else if bus != x.Tracks[r].OutputBus {
				e.conflict(o, x.Tracks[r].OutputBus, bus)
			}

		case KindSend:
			r := regionIndex(x.Tracks, o.Offset)
			if r < 0 {
				continue
			}
			send, err := readSend(data, o)
			if err != nil {
				e.warnAt(x, o, err)
				continue
			}
			x.Tracks[r].Sends = append(x.Tracks[r].Sends, send)
		}
	}
}

func readSend(data []byte, o Occurrence) (model.Send, error) {
	at := o.ValueAt()
	level, err := ReadFloat64(data, at, o.Marker.Order, o.Marker.Name)
	if err != nil {
		return model.Send{}, err
	}
	enabled, err := ReadByte(data, at+8, o.Marker.Name)
	if err != nil {
		return model.Send{}, err
	}
	target, err := ReadCString(data, at+9, 64, o.Marker.Name)
	if err != nil {
		return model.Send{}, err
	}
	return model.Send{Target: strings.TrimSpace(target), LevelDB: level, Enabled: enabled != 0}, nil
}

// ── Project markers ────────────────────────────────────────────────────

func (e *Extractor) extractMarkers(data []byte, occ []Occurrence, x *Extraction) {
	for _, o := range occ {
		if o.Marker.Kind != KindProjectMarker {
			continue
		}
		m := model.Marker{ID: len(x.Markers) + 1}
		m.Name = nearbyName(data, o.End(), len(data))
		if m.Name == "" {
			m.Name = "Marker " + itoa(m.ID)
		}
		x.Markers = append(x.Markers, m)
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
