package registry

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/infrastructure/cpr"
)

// Generic classifies parameters of unknown plugins by key substrings.
// Compressor words take priority over EQ words, so "Makeup Gain" is read as
// compressor makeup rather than a band gain.
type Generic struct{}

var (
	compressorVocabulary = []struct {
		field Field
		words []string
	}{
		{FieldThreshold, []string{"threshold", "thresh"}},
		{FieldRatio, []string{"ratio"}},
		{FieldAttack, []string{"attack"}},
		{FieldRelease, []string{"release"}},
		{FieldKnee, []string{"knee"}},
		{FieldMakeup, []string{"makeup", "make-up"}},
	}
	eqVocabulary = []string{"freq", "gain", "band", "q", "width"}
)

type bandParts struct {
	freq, gain, q, shape, enabled *float64
	keys                          []cpr.Param
}

// Interpret implements Strategy.
func (Generic) Interpret(chunk cpr.PluginChunk) Interpretation {
	params, realWorld := chunkParams(chunk)

	var (
		out      Interpretation
		comp     model.CompressorBlock
		residual = make(map[string]float64)
		bands    = make(map[int]*bandParts)
	)
	keep := func(p cpr.Param) {
		if _, ok := residual[p.Key]; !ok {
			residual[p.Key] = p.Value
		}
	}

	for _, p := range params {
		kl := strings.ToLower(p.Key)
		if f, ok := compressorField(kl); ok {
			if getField(&comp, f) == nil {
				setField(&comp, f, p.Value)
			} else {
				keep(p)
			}
			continue
		}
		if !containsAny(kl, eqVocabulary) {
			keep(p)
			continue
		}
		n, ok := firstInt(kl)
		if !ok {
			keep(p)
			continue
		}
		b := bands[n]
		if b == nil {
			b = &bandParts{}
			bands[n] = b
		}
		if !b.assign(kl, p.Value) {
			keep(p)
			continue
		}
		b.keys = append(b.keys, p)
	}

	idx := make([]int, 0, len(bands))
	for n := range bands {
		idx = append(idx, n)
	}
	sort.Ints(idx)
	var eq []model.EQBand
	for _, n := range idx {
		b := bands[n]
		if b.freq == nil && b.gain == nil && b.q == nil {
			for _, p := range b.keys {
				keep(p)
			}
			continue
		}
		eq = append(eq, b.band())
	}

	for i, v := range realWorld {
		if v != nil {
			residual["RealWorld "+strconv.Itoa(i)] = *v
		}
	}

	if !comp.Empty() {
		out.Compressor = &comp
	}
	if len(eq) > 0 {
		out.EQ = &model.EQBlock{Bands: eq}
	}
	if len(residual) > 0 {
		out.Parameters = residual
	}
	return out
}

func compressorField(kl string) (Field, bool) {
	for _, v := range compressorVocabulary {
		if containsAny(kl, v.words) {
			return v.field, true
		}
	}
	return "", false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// firstInt returns the first run of decimal digits in s.
func firstInt(s string) (int, bool) {
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	return n, err == nil
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// assign stores a band value by the attribute its key names. It reports
// false when the key names no band attribute.
func (b *bandParts) assign(kl string, v float64) bool {
	slot := func(dst **float64) bool {
		if *dst != nil {
			return false
		}
		*dst = &v
		return true
	}
	switch {
	case strings.Contains(kl, "freq"):
		return slot(&b.freq)
	case strings.Contains(kl, "gain"):
		return slot(&b.gain)
	case strings.Contains(kl, "shape"), strings.Contains(kl, "type"):
		return slot(&b.shape)
	case strings.Contains(kl, "enable"), strings.Contains(kl, "active"), hasWord(kl, "on"):
		return slot(&b.enabled)
	case strings.Contains(kl, "width"), hasWord(kl, "q"):
		return slot(&b.q)
	}
	return false
}

func hasWord(s, w string) bool {
	for _, f := range words(s) {
		if f == w {
			return true
		}
	}
	return false
}

func (b *bandParts) band() model.EQBand {
	band := model.EQBand{Enabled: true, Type: model.FilterPeak, Frequency: b.freq, Gain: b.gain, Q: b.q}
	if b.shape != nil {
		band.Type = ShapeType(*b.shape)
	}
	if b.enabled != nil {
		band.Enabled = *b.enabled > 0.5
	}
	if !band.Type.HasQ() {
		band.Q = nil
	}
	return band
}
