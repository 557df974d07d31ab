package cpr

import (
	"bytes"
	"errors"
	"sort"
	"strings"

	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextRun is a string recovered from the buffer
type TextRun struct {
	Offset int
	Text   string
	Wide   bool // stored as UTF-16LE
}

var (
	errOddLength = errors.New("odd byte length")
	errHighByte  = errors.New("non-zero high byte")

	utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

// DecodeUTF16LE decodes an interleaved run where every character byte is
// followed by a zero byte.
func DecodeUTF16LE(run []byte) (string, error) {
	if len(run)%2 != 0 {
		return "", errOddLength
	}
	for i := 1; i < len(run); i += 2 {
		if run[i] != 0 {
			return "", errHighByte
		}
	}
	out, _, err := transform.Bytes(utf16le.NewDecoder(), run)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func printable(c byte) bool { return c >= 0x20 && c <= 0x7e }

// nameByte accepts the low byte of a Latin-1 code unit in a UTF-16LE name.
func nameByte(c byte) bool { return c >= 0x20 && c != 0x7f }

func filenameByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '.', c == ' ':
		return true
	}
	return false
}

func alnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// UTF16Runs returns every interleaved run of at least min Latin-1
// characters, in offset order.
func UTF16Runs(data []byte, min int) []TextRun {
	var out []TextRun
	for i := 0; i+1 < len(data); {
		if !nameByte(data[i]) || data[i+1] != 0 {
			i++
			continue
		}
		j := i
		for j+1 < len(data) && nameByte(data[j]) && data[j+1] == 0 {
			j += 2
		}
		if (j-i)/2 >= min {
			if s, err := DecodeUTF16LE(data[i:j]); err == nil {
				out = append(out, TextRun{Offset: i, Text: s, Wide: true})
			}
		}
		i = j
	}
	return out
}

// FindFilenames recovers audio file references stored either as 8-bit text
// or as UTF-16LE. Occurrences that cannot be decoded are returned as errors
// and do not stop the scan.
func FindFilenames(data []byte) ([]TextRun, []*pkgerrors.DecodeError) {
	runs := findASCIIFilenames(data)
	wide, errs := findWideFilenames(data)
	runs = append(runs, wide...)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Offset < runs[j].Offset })
	return runs, errs
}

func matchExt(data []byte, at int) string {
	for _, ext := range AudioExtensions {
		end := at + len(ext)
		if end > len(data) || !bytes.EqualFold(data[at:end], []byte(ext)) {
			continue
		}
		if end < len(data) && alnum(data[end]) {
			continue
		}
		return ext
	}
	return ""
}

func findASCIIFilenames(data []byte) []TextRun {
	var out []TextRun
	floor := 0
	for i := 0; i < len(data); i++ {
		if data[i] != '.' {
			continue
		}
		ext := matchExt(data, i+1)
		if ext == "" {
			continue
		}
		start := i
		for start > floor && filenameByte(data[start-1]) {
			start--
		}
		end := i + 1 + len(ext)
		name := strings.TrimSpace(string(data[start:end]))
		floor = end
		if len(name) <= len(ext)+1 || strings.Trim(name[:len(name)-len(ext)-1], ". ") == "" {
			continue
		}
		out = append(out, TextRun{Offset: start, Text: name})
		i = end - 1
	}
	return out
}

func matchWideExt(data []byte, at int) string {
	for _, ext := range AudioExtensions {
		end := at + 2*len(ext)
		if end > len(data) {
			continue
		}
		ok := true
		for k := 0; k < len(ext); k++ {
			c := data[at+2*k]
			if c >= 'A' && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != ext[k] || data[at+2*k+1] != 0 {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if end+1 < len(data) && alnum(data[end]) && data[end+1] == 0 {
			continue
		}
		return ext
	}
	return ""
}

func findWideFilenames(data []byte) ([]TextRun, []*pkgerrors.DecodeError) {
	var (
		out   []TextRun
		errs  []*pkgerrors.DecodeError
		floor int
	)
	for i := 0; i+1 < len(data); i++ {
		if data[i] != '.' || data[i+1] != 0 {
			continue
		}
		ext := matchWideExt(data, i+2)
		if ext == "" {
			continue
		}
		// walk back over (char, 0) pairs to the start of the name
		start := i
		for start-2 >= floor && data[start-1] == 0 && filenameByte(data[start-2]) {
			start -= 2
		}
		end := i + 2 + 2*len(ext)
		floor = end
		if start == i {
			errs = append(errs, pkgerrors.NewDecodeError("utf16:"+ext, i, "no filename before extension"))
			i = end - 1
			continue
		}
		name, err := DecodeUTF16LE(data[start:end])
		if err != nil {
			errs = append(errs, pkgerrors.WrapDecodeError("utf16:"+ext, start, "malformed interleaved run", err))
			i = end - 1
			continue
		}
		name = strings.TrimSpace(name)
		if strings.Trim(name[:len(name)-len(ext)-1], ". ") != "" {
			out = append(out, TextRun{Offset: start, Text: name, Wide: true})
		}
		i = end - 1
	}
	return out, errs
}
