package registry

import (
	"math"
	"strconv"
	"strings"

	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/infrastructure/cpr"
)

// Keys lists the historical spellings of one logical parameter, highest
// priority first
type Keys []string

// Field names a compressor setting
type Field string

const (
	FieldThreshold Field = "threshold"
	FieldRatio     Field = "ratio"
	FieldAttack    Field = "attack"
	FieldRelease   Field = "release"
	FieldKnee      Field = "knee"
	FieldMakeup    Field = "makeup"
)

// CompressorKeys maps each compressor field to its key variants
type CompressorKeys struct {
	Threshold Keys
	Ratio     Keys
	Attack    Keys
	Release   Keys
	Knee      Keys
	Makeup    Keys
}

// BandKeys describes one EQ band. Type is the fixed response shape; when
// empty the band reads it from a Shape key and defaults to peak.
type BandKeys struct {
	Type      model.FilterType
	Frequency Keys
	Gain      Keys
	Q         Keys
	Shape     Keys
	Enabled   Keys

	// Peaking switches a shelf band to a peak response when set
	Peaking Keys
}

// IndexedBands is a band template whose keys contain a "{n}" placeholder.
// Indices are tried upward from Start until two in a row are missing.
type IndexedBands struct {
	Start    int
	Template BandKeys
}

// Unused marks a value a positional layout does not store
const Unused = -1

// PositionalBand locates a band's values in a positional list. Every index
// must be set, Unused where the layout has no such value.
type PositionalBand struct {
	Type      model.FilterType
	Frequency int
	Gain      int
	Q         int

	// Enabled turns the band off when its value is 0.5 or below
	Enabled int

	// Peaking switches a shelf band to a peak response above 0.5
	Peaking int

	// FreqScale converts a stored frequency to Hz; 0 means 1
	FreqScale float64
}

// Positional is the layout of a preset stored as a bare value list
type Positional struct {
	Compressor map[Field]int
	Bands      []PositionalBand
	Parameters map[string]int

	// MinValues is the shortest list that carries the bands
	MinValues int

	// ThresholdGate reads the compressor values only when the stored
	// threshold is negative; zero means the section is off
	ThresholdGate bool
}

// Entry is a known plugin and how to read its parameters
type Entry struct {
	Name    string
	Aliases []string
	Vendor  string

	// ChunkLimit bounds the binary chunk in bytes; 0 uses the default
	ChunkLimit int

	Compressor *CompressorKeys
	Bands      []BandKeys
	Indexed    *IndexedBands
	Positional *Positional
}

const maxIndexedBands = 64

// Interpret decodes a chunk with the entry's key tables.
func (e *Entry) Interpret(chunk cpr.PluginChunk) Interpretation {
	params, realWorld := chunkParams(chunk)
	ps := newParamSet(params)

	out := Interpretation{Entry: e}
	comp := &model.CompressorBlock{}
	if e.Compressor != nil {
		e.Compressor.resolve(ps, comp)
	}

	var bands []model.EQBand
	for _, bk := range e.Bands {
		if b, ok := bk.resolve(ps); ok {
			bands = append(bands, b)
		}
	}
	if e.Indexed != nil {
		bands = append(bands, e.Indexed.resolve(ps)...)
	}

	residual := ps.rest()
	if e.Positional != nil && len(realWorld) > 0 {
		if len(bands) == 0 {
			bands = e.Positional.bands(realWorld)
		}
		if e.Positional.compressorOn(realWorld) {
			for f, i := range e.Positional.Compressor {
				if v := at(realWorld, i); v != nil && getField(comp, f) == nil {
					setField(comp, f, *v)
				}
			}
		}
		for name, i := range e.Positional.Parameters {
			if v := at(realWorld, i); v != nil {
				if residual == nil {
					residual = make(map[string]float64)
				}
				if _, ok := residual[name]; !ok {
					residual[name] = *v
				}
			}
		}
	}

	if !comp.Empty() {
		out.Compressor = comp
	}
	if len(bands) > 0 {
		out.EQ = &model.EQBlock{Bands: bands}
	}
	out.Parameters = residual
	return out
}

func (k *CompressorKeys) resolve(ps *paramSet, c *model.CompressorBlock) {
	c.Threshold = ps.take(k.Threshold)
	c.Ratio = ps.take(k.Ratio)
	c.Attack = ps.take(k.Attack)
	c.Release = ps.take(k.Release)
	c.Knee = ps.take(k.Knee)
	c.Makeup = ps.take(k.Makeup)
}

func (k BandKeys) resolve(ps *paramSet) (model.EQBand, bool) {
	freq := ps.take(k.Frequency)
	gain := ps.take(k.Gain)
	q := ps.take(k.Q)
	shape := ps.take(k.Shape)
	enabled := ps.take(k.Enabled)
	peaking := ps.take(k.Peaking)
	if freq == nil && gain == nil && q == nil && shape == nil && enabled == nil {
		return model.EQBand{}, false
	}

	band := model.EQBand{Enabled: true, Type: k.Type, Frequency: freq, Gain: gain, Q: q}
	switch {
	case shape != nil:
		band.Type = ShapeType(*shape)
	case band.Type == "":
		band.Type = model.FilterPeak
	}
	if peaking != nil && *peaking > 0.5 {
		band.Type = model.FilterPeak
	}
	if enabled != nil {
		band.Enabled = *enabled > 0.5
	}
	if !band.Type.HasQ() {
		band.Q = nil
	}
	return band, true
}

func (k BandKeys) expand(n int) BandKeys {
	idx := strconv.Itoa(n)
	sub := func(keys Keys) Keys {
		out := make(Keys, len(keys))
		for i, key := range keys {
			out[i] = strings.ReplaceAll(key, "{n}", idx)
		}
		return out
	}
	return BandKeys{
		Type:      k.Type,
		Frequency: sub(k.Frequency),
		Gain:      sub(k.Gain),
		Q:         sub(k.Q),
		Shape:     sub(k.Shape),
		Enabled:   sub(k.Enabled),
		Peaking:   sub(k.Peaking),
	}
}

func (ib *IndexedBands) resolve(ps *paramSet) []model.EQBand {
	var out []model.EQBand
	misses := 0
	for n := ib.Start; misses < 2 && n < ib.Start+maxIndexedBands; n++ {
		b, ok := ib.Template.expand(n).resolve(ps)
		if !ok {
			misses++
			continue
		}
		misses = 0
		out = append(out, b)
	}
	return out
}

func (p *Positional) bands(values []*float64) []model.EQBand {
	if len(values) < p.MinValues {
		return nil
	}
	var out []model.EQBand
	for _, pb := range p.Bands {
		b := model.EQBand{
			Enabled:   true,
			Type:      pb.Type,
			Frequency: scaled(at(values, pb.Frequency), pb.FreqScale),
			Gain:      at(values, pb.Gain),
			Q:         at(values, pb.Q),
		}
		if b.Frequency == nil && b.Gain == nil && b.Q == nil {
			continue
		}
		if v := at(values, pb.Enabled); v != nil {
			b.Enabled = *v > 0.5
		}
		if v := at(values, pb.Peaking); v != nil && *v > 0.5 {
			b.Type = model.FilterPeak
		}
		if !b.Type.HasQ() {
			b.Q = nil
		}
		out = append(out, b)
	}
	return out
}

func (p *Positional) compressorOn(values []*float64) bool {
	if !p.ThresholdGate {
		return true
	}
	i, ok := p.Compressor[FieldThreshold]
	if !ok {
		return true
	}
	v := at(values, i)
	return v != nil && *v < 0
}

func scaled(v *float64, factor float64) *float64 {
	if v == nil || factor == 0 {
		return v
	}
	s := *v * factor
	return &s
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) || values[i] == nil {
		return nil
	}
	v := *values[i]
	return &v
}

// ShapeType decodes a numeric band shape code.
func ShapeType(code float64) model.FilterType {
	if code != math.Trunc(code) {
		return model.FilterUnknown
	}
	switch int(code) {
	case 0:
		return model.FilterPeak
	case 1:
		return model.FilterLowShelf
	case 2:
		return model.FilterLowCut
	case 3:
		return model.FilterHighShelf
	case 4:
		return model.FilterHighCut
	case 5:
		return model.FilterNotch
	}
	return model.FilterUnknown
}

func getField(c *model.CompressorBlock, f Field) *float64 {
	switch f {
	case FieldThreshold:
		return c.Threshold
	case FieldRatio:
		return c.Ratio
	case FieldAttack:
		return c.Attack
	case FieldRelease:
		return c.Release
	case FieldKnee:
		return c.Knee
	case FieldMakeup:
		return c.Makeup
	}
	return nil
}

func setField(c *model.CompressorBlock, f Field, v float64) {
	switch f {
	case FieldThreshold:
		c.Threshold = &v
	case FieldRatio:
		c.Ratio = &v
	case FieldAttack:
		c.Attack = &v
	case FieldRelease:
		c.Release = &v
	case FieldKnee:
		c.Knee = &v
	case FieldMakeup:
		c.Makeup = &v
	}
}

// paramSet resolves key variants against a chunk's parameters and tracks
// which were consumed.
type paramSet struct {
	params []cpr.Param
	used   []bool
}

func newParamSet(params []cpr.Param) *paramSet {
	return &paramSet{params: params, used: make([]bool, len(params))}
}

func (s *paramSet) find(key string) int {
	for i, p := range s.params {
		if p.Key == key {
			return i
		}
	}
	for i, p := range s.params {
		if strings.EqualFold(p.Key, key) {
			return i
		}
	}
	return -1
}

// take returns the value of the first variant present and marks every
// parameter with that key consumed.
func (s *paramSet) take(keys Keys) *float64 {
	for _, k := range keys {
		i := s.find(k)
		if i < 0 {
			continue
		}
		v := s.params[i].Value
		for j, p := range s.params {
			if strings.EqualFold(p.Key, s.params[i].Key) {
				s.used[j] = true
			}
		}
		return &v
	}
	return nil
}

// rest returns the unconsumed parameters, first occurrence winning.
func (s *paramSet) rest() map[string]float64 {
	var out map[string]float64
	for i, p := range s.params {
		if s.used[i] {
			continue
		}
		if out == nil {
			out = make(map[string]float64)
		}
		if _, ok := out[p.Key]; !ok {
			out[p.Key] = p.Value
		}
	}
	return out
}

func chunkParams(chunk cpr.PluginChunk) ([]cpr.Param, []*float64) {
	switch body := chunk.Body.(type) {
	case *cpr.BinaryChunk:
		return body.Params, nil
	case *cpr.XMLChunk:
		return cpr.XMLParams(body.Doc), body.RealWorld
	}
	return nil, nil
}
