package cpr

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	pkgerrors "github.com/Skryldev/cpr-lab/pkg/errors"
	"github.com/beevik/etree"
)

var (
	errUnbalanced = errors.New("document ends before its root element closes")
	errNotFinite  = errors.New("not a finite number")
)

// balancedEnd returns the offset just past the closing tag of the root
// element of the document starting at start.
func balancedEnd(data []byte, start int) (int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data[start:]))
	depth := 0
	seenRoot := false
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			return 0, errUnbalanced
		}
		if err != nil {
			return 0, err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
			seenRoot = true
		case xml.EndElement:
			depth--
			if depth < 0 {
				return 0, errUnbalanced
			}
			if depth == 0 && seenRoot {
				return start + int(dec.InputOffset()), nil
			}
		}
	}
}

// parseXMLChunk decodes the document in data[start:end] into a plugin chunk.
// Values that parse as NaN or an infinity are dropped and reported.
func parseXMLChunk(data []byte, start, end int) (PluginChunk, []*pkgerrors.DecodeError, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data[start:end]); err != nil {
		return PluginChunk{}, nil, err
	}
	root := doc.Root()
	if root == nil {
		return PluginChunk{}, nil, errUnbalanced
	}

	var warnings []*pkgerrors.DecodeError
	bad := func(key string) {
		warnings = append(warnings, pkgerrors.NewDecodeError("<?xml", start, "non-finite value for "+key))
	}

	chunk := PluginChunk{
		Name:   xmlField(doc, "PluginName", "name", "Name"),
		Vendor: xmlField(doc, "Vendor", "vendor", "Vendor"),
		Offset: start,
		End:    end,
	}
	if s := xmlField(doc, "Slot", "slot", "Slot"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			chunk.Slot = &n
		}
	}
	switch strings.ToLower(xmlField(doc, "Bypass", "bypass", "Bypass")) {
	case "1", "true", "on", "yes":
		chunk.Bypassed = true
	}

	walkXMLParams(doc, bad)
	chunk.Body = &XMLChunk{Doc: doc, RealWorld: realWorld(doc, bad)}
	return chunk, warnings, nil
}

// xmlField reads a metadata value from an element anywhere in the document,
// falling back to attributes on the root element.
func xmlField(doc *etree.Document, element string, attrs ...string) string {
	if el := doc.FindElement("//" + element); el != nil {
		if s := strings.TrimSpace(el.Text()); s != "" {
			return s
		}
	}
	root := doc.Root()
	for _, a := range attrs {
		if s := strings.TrimSpace(root.SelectAttrValue(a, "")); s != "" {
			return s
		}
	}
	return ""
}

// xmlNumber parses a numeric attribute or text value. Out-of-range and
// NaN spellings report errNotFinite; any other failure means not a number.
func xmlNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && math.IsInf(v, 0) {
			return 0, errNotFinite
		}
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func realWorld(doc *etree.Document, bad func(key string)) []*float64 {
	el := doc.FindElement("//PresetData[@Setup='SETUP_A']/Parameters[@Type='RealWorld']")
	if el == nil {
		el = doc.FindElement("//Parameters[@Type='RealWorld']")
	}
	if el == nil {
		return nil
	}
	var out []*float64
	for i, tok := range strings.Fields(el.Text()) {
		if tok == "*" {
			out = append(out, nil)
			continue
		}
		v, err := xmlNumber(tok)
		if err != nil {
			if errors.Is(err, errNotFinite) {
				bad("RealWorld " + strconv.Itoa(i))
			}
			out = append(out, nil)
			continue
		}
		out = append(out, &v)
	}
	return out
}

// Reserved names carry chunk metadata rather than parameters
var xmlReserved = map[string]bool{
	"pluginname": true, "vendor": true, "slot": true, "bypass": true,
	"version": true, "setup": true, "type": true, "id": true,
}

// XMLParams lists the numeric parameters of a preset document in document
// order: name/value pairs, numeric attributes, and numeric leaf elements.
// Values that are not finite are skipped.
func XMLParams(doc *etree.Document) []Param {
	return walkXMLParams(doc, nil)
}

func walkXMLParams(doc *etree.Document, bad func(key string)) []Param {
	var out []Param
	add := func(key, raw string) bool {
		v, err := xmlNumber(raw)
		if err != nil {
			if bad != nil && errors.Is(err, errNotFinite) {
				bad(key)
			}
			return false
		}
		out = append(out, Param{Key: key, Value: v})
		return true
	}
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if xmlReserved[strings.ToLower(el.Tag)] {
			return
		}
		if name, raw, ok := namedParam(el); ok {
			add(name, raw)
		} else {
			for _, a := range el.Attr {
				if xmlReserved[strings.ToLower(a.Key)] || a.Space == "xmlns" || a.Key == "xmlns" {
					continue
				}
				add(a.Key, a.Value)
			}
		}
		children := el.ChildElements()
		if len(children) == 0 && !strings.EqualFold(el.SelectAttrValue("Type", ""), "RealWorld") {
			if text := strings.TrimSpace(el.Text()); text != "" {
				add(el.Tag, text)
			}
		}
		for _, c := range children {
			walk(c)
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return out
}

// namedParam reports a <Param name=".." value=".."/> style element. A value
// that is not a number leaves the element to the attribute walk.
func namedParam(el *etree.Element) (name, raw string, ok bool) {
	name = el.SelectAttrValue("name", el.SelectAttrValue("Name", ""))
	raw = el.SelectAttrValue("value", el.SelectAttrValue("Value", ""))
	if name == "" || raw == "" {
		return "", "", false
	}
	if _, err := xmlNumber(raw); err != nil && !errors.Is(err, errNotFinite) {
		return "", "", false
	}
	return name, raw, true
}

func xmlDecodeError(offset int, reason string, err error) *pkgerrors.DecodeError {
	return pkgerrors.WrapDecodeError("<?xml", offset, reason, err)
}
