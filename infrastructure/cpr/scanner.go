package cpr

import (
	"bytes"
	"encoding/binary"
	"iter"
	"math"
	"strconv"

	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
)

// Occurrence is one match of a marker in the buffer
type Occurrence struct {
	Marker Marker
	Offset int
}

// End is the offset just past the matched bytes
func (o Occurrence) End() int { return o.Offset + len(o.Marker.Name) }

// ValueAt is where the marker's value starts
func (o Occurrence) ValueAt() int {
	if o.Marker.FromStart {
		return o.Offset + o.Marker.Offset
	}
	return o.End() + o.Marker.Offset
}

// Scan yields every occurrence of every marker in ascending offset order.
// Occurrences at the same offset come out in table order. Each marker is
// searched on its own, so a match inside or next to another marker's match
// is still reported.
func Scan(data []byte, markers []Marker) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		next := make([]int, len(markers))
		for i, m := range markers {
			next[i] = indexFrom(data, m.Bytes(), 0)
		}
		for {
			best := -1
			for i, pos := range next {
				if pos < 0 {
					continue
				}
				if best < 0 || pos < next[best] {
					best = i
				}
			}
			if best < 0 {
				return
			}
			pos := next[best]
			next[best] = indexFrom(data, markers[best].Bytes(), pos+1)
			if !yield(Occurrence{Marker: markers[best], Offset: pos}) {
				return
			}
		}
	}
}

// Collect drains Scan into a slice for consumers that need look-ahead.
func Collect(data []byte, markers []Marker) []Occurrence {
	var out []Occurrence
	for occ := range Scan(data, markers) {
		out = append(out, occ)
	}
	return out
}

func indexFrom(data, sep []byte, from int) int {
	if len(sep) == 0 || from >= len(data) {
		return -1
	}
	i := bytes.Index(data[from:], sep)
	if i < 0 {
		return -1
	}
	return from + i
}

func window(data []byte, at, n int, marker string) ([]byte, error) {
	if at < 0 || n < 0 || at+n > len(data) {
		return nil, pkgerrors.NewDecodeError(marker, at, "truncated: need "+strconv.Itoa(n)+" bytes")
	}
	return data[at : at+n], nil
}

// ReadInt32 reads a signed 4-byte integer at the given offset.
func ReadInt32(data []byte, at int, order binary.ByteOrder, marker string) (int32, error) {
	b, err := window(data, at, 4, marker)
	if err != nil {
		return 0, err
	}
	return int32(order.Uint32(b)), nil
}

// ReadFloat64 reads an IEEE-754 double at the given offset.
func ReadFloat64(data []byte, at int, order binary.ByteOrder, marker string) (float64, error) {
	b, err := window(data, at, 8, marker)
	if err != nil {
		return 0, err
	}
	v := math.Float64frombits(order.Uint64(b))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, pkgerrors.NewDecodeError(marker, at, "not a finite number")
	}
	return v, nil
}

// ReadByte reads a single byte at the given offset.
func ReadByte(data []byte, at int, marker string) (byte, error) {
	b, err := window(data, at, 1, marker)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadCString reads printable ASCII up to a NUL terminator. The string must
// be terminated within max bytes and must not be empty. The result is a copy.
func ReadCString(data []byte, at, max int, marker string) (string, error) {
	if at < 0 || at >= len(data) {
		return "", pkgerrors.NewDecodeError(marker, at, "truncated: no string data")
	}
	end := at + max
	if end > len(data) {
		end = len(data)
	}
	for i := at; i < end; i++ {
		c := data[i]
		if c == 0 {
			if i == at {
				return "", pkgerrors.NewDecodeError(marker, at, "empty string")
			}
			return string(data[at:i]), nil
		}
		if c < 0x20 || c > 0x7e {
			return "", pkgerrors.NewDecodeError(marker, i, "non-printable byte in string")
		}
	}
	return "", pkgerrors.NewDecodeError(marker, at, "unterminated string")
}
