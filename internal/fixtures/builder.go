// Package fixtures composes synthetic project containers for tests.
package fixtures

import (
	"bytes"
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/unicode"
)

var wide = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Builder appends marker records to an in-memory container
type Builder struct {
	buf bytes.Buffer
}

// Field is one record inside a binary plugin chunk
type Field []byte

func New() *Builder { return &Builder{} }

// Bytes returns a copy of the composed buffer.
func (b *Builder) Bytes() []byte {
	return append([]byte(nil), b.buf.Bytes()...)
}

// Len is the current buffer length, useful for computing expected offsets.
func (b *Builder) Len() int { return b.buf.Len() }

func (b *Builder) Raw(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

// Pad appends n filler bytes that decode to nothing.
func (b *Builder) Pad(n int) *Builder {
	b.buf.Write(make([]byte, n))
	return b
}

func (b *Builder) cstring(s string) {
	b.buf.WriteString(s)
	b.buf.WriteByte(0)
}

func (b *Builder) int32(v int32, order binary.ByteOrder) {
	var tmp [4]byte
	order.PutUint32(tmp[:], uint32(v))
	b.buf.Write(tmp[:])
}

func (b *Builder) float64(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.buf.Write(tmp[:])
}

// Wide encodes s as UTF-16LE.
func Wide(s string) []byte {
	out, err := wide.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return out
}

// Version writes a tool version string such as "Cubase 14.0.10".
func (b *Builder) Version(v string) *Builder {
	b.cstring(v)
	return b.Pad(4)
}

// Track writes a track marker followed by its UTF-16LE name. An empty name
// leaves the track unnamed.
func (b *Builder) Track(marker, name string) *Builder {
	b.buf.WriteString(marker)
	b.Pad(4)
	if name != "" {
		b.buf.Write(Wide(name))
		b.Pad(2)
	}
	return b.Pad(4)
}

func (b *Builder) SampleRate(rate int) *Builder {
	b.buf.WriteString("SampleRate")
	b.buf.WriteByte(0)
	b.int32(int32(rate), binary.LittleEndian)
	return b.Pad(4)
}

// SampleRateIO writes the big-endian audio I/O sample rate record.
func (b *Builder) SampleRateIO(rate int) *Builder {
	b.buf.WriteString("SRateForAudioIO")
	b.buf.WriteByte(0)
	b.int32(int32(rate), binary.BigEndian)
	return b.Pad(4)
}

func (b *Builder) BitDepth(bits int) *Builder {
	b.buf.WriteString("Record Format")
	b.buf.WriteByte(0)
	b.int32(int32(bits), binary.LittleEndian)
	return b.Pad(4)
}

func (b *Builder) Tempo(bpm float64) *Builder {
	b.buf.WriteString("TempoEvent")
	b.float64(bpm)
	return b.Pad(4)
}

// TruncatedTempo writes a tempo marker with fewer than eight value bytes and
// nothing after it. It must be the last record.
func (b *Builder) TruncatedTempo() *Builder {
	b.buf.WriteString("TempoEvent")
	b.buf.Write([]byte{0, 0, 0})
	return b
}

func (b *Builder) TimeSignature(num, den int) *Builder {
	b.buf.WriteString("TimeSignatureEvent")
	b.int32(int32(num), binary.LittleEndian)
	b.int32(int32(den), binary.LittleEndian)
	return b.Pad(4)
}

// Plugin writes a binary plugin chunk.
func (b *Builder) Plugin(name string, fields ...Field) *Builder {
	b.buf.WriteString("Plugin Name")
	b.buf.WriteByte(0)
	b.cstring(name)
	for _, f := range fields {
		b.buf.Write(f)
	}
	return b.Pad(4)
}

// XMLPlugin writes a preset tree preamble followed by doc.
func (b *Builder) XMLPlugin(doc string) *Builder {
	b.buf.WriteString("PresetChunkXMLTree")
	b.Pad(2)
	b.buf.WriteString(doc)
	return b.Pad(4)
}

func (b *Builder) OutputBus(name string) *Builder {
	b.buf.WriteString("OutputBus")
	b.buf.WriteByte(0)
	b.cstring(name)
	return b.Pad(4)
}

func (b *Builder) Send(target string, levelDB float64, enabled bool) *Builder {
	b.buf.WriteString("SendSlot")
	b.buf.WriteByte(0)
	b.float64(levelDB)
	if enabled {
		b.buf.WriteByte(1)
	} else {
		b.buf.WriteByte(0)
	}
	b.cstring(target)
	return b.Pad(4)
}

// Filename writes an 8-bit audio file reference.
func (b *Builder) Filename(name string) *Builder {
	b.cstring(name)
	return b.Pad(4)
}

// WideFilename writes a UTF-16LE audio file reference.
func (b *Builder) WideFilename(name string) *Builder {
	b.buf.Write(Wide(name))
	return b.Pad(4)
}

func (b *Builder) ProjectMarker(name string) *Builder {
	b.buf.WriteString("MMarkerEvent")
	b.Pad(4)
	b.buf.Write(Wide(name))
	return b.Pad(4)
}

// Param is a named float64 parameter record.
func Param(key string, v float64) Field {
	f := append([]byte("Param\x00"), byte(len(key)))
	f = append(f, key...)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	return append(f, tmp[:]...)
}

func Slot(n int) Field {
	f := []byte("Slot\x00")
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(int32(n)))
	return append(f, tmp[:]...)
}

func Bypass(on bool) Field {
	if on {
		return Field("Bypass\x00\x01")
	}
	return Field("Bypass\x00\x00")
}

func Vendor(name string) Field {
	return Field("Vendor\x00" + name + "\x00")
}

// Project composes a small valid container with the given track markers,
// each named after its position.
func Project(markers ...string) []byte {
	b := New().Version("Cubase 14.0.10").SampleRate(48000).Tempo(120)
	for i, m := range markers {
		b.Track(m, "Track "+string(rune('A'+i)))
	}
	return b.Bytes()
}
