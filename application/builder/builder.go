// Package builder folds extracted chunks and their interpretations into the
// canonical project model.
package builder

import (
	"sort"
	"strings"

	"github.com/Skryldev/cpr-lab/application/registry"
	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/infrastructure/cpr"
	"github.com/Skryldev/cpr-lab/pkg/logger"
	"go.uber.org/zap"
)

// Interpreter reads the parameters of one plugin chunk
type Interpreter interface {
	Interpret(chunk cpr.PluginChunk) registry.Interpretation
}

// Interpreted is a plugin chunk with its reading and discovery position
type Interpreted struct {
	Chunk   cpr.PluginChunk
	Reading registry.Interpretation
	Ordinal int
}

// Meta carries caller-supplied project facts not found in the bytes
type Meta struct {
	Name     string
	FileSize int
}

// Builder assembles projects. It holds no per-parse state.
type Builder struct {
	interp Interpreter
	log    *logger.Logger
}

// New creates a builder. A nil interpreter uses a default registry.
func New(interp Interpreter, log *logger.Logger) *Builder {
	if interp == nil {
		interp = registry.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{interp: interp, log: log.Named("builder")}
}

// Interpret reads every plugin chunk of every track, merging a preset
// document into the binary chunk it directly follows.
func (b *Builder) Interpret(x *cpr.Extraction) [][]Interpreted {
	chains := make([][]Interpreted, len(x.Tracks))
	for i, t := range x.Tracks {
		var chain []Interpreted
		for j := 0; j < len(t.Plugins); j++ {
			c := t.Plugins[j]
			it := Interpreted{Chunk: c, Reading: b.interp.Interpret(c), Ordinal: len(chain)}
			if j+1 < len(t.Plugins) && companion(c, t.Plugins[j+1]) {
				next := t.Plugins[j+1]
				if next.Name == "" {
					next.Name = c.Name
				}
				it.absorb(next, b.interp.Interpret(next))
				j++
			}
			chain = append(chain, it)
		}
		chains[i] = chain
	}
	return chains
}

// companion reports whether next is the preset document of the binary
// chunk c: it must follow c and carry the same name or none.
func companion(c, next cpr.PluginChunk) bool {
	if _, ok := c.Body.(*cpr.BinaryChunk); !ok {
		return false
	}
	if _, ok := next.Body.(*cpr.XMLChunk); !ok {
		return false
	}
	if next.Name == "" {
		return true
	}
	name := registry.Normalize(c.Name)
	return name != "" && strings.EqualFold(name, registry.Normalize(next.Name))
}

// absorb fills what the binary chunk lacked from its preset document.
func (it *Interpreted) absorb(doc cpr.PluginChunk, r registry.Interpretation) {
	c := &it.Chunk
	if c.Name == "" {
		c.Name = doc.Name
	}
	if c.Vendor == "" {
		c.Vendor = doc.Vendor
	}
	if c.Slot == nil && doc.Slot != nil {
		s := *doc.Slot
		c.Slot = &s
	}
	c.Bypassed = c.Bypassed || doc.Bypassed

	own := &it.Reading
	if own.Entry == nil {
		own.Entry = r.Entry
	}
	if own.EQ == nil {
		own.EQ = r.EQ
	}
	switch {
	case own.Compressor == nil:
		own.Compressor = r.Compressor
	case r.Compressor != nil:
		mergeCompressor(own.Compressor, r.Compressor)
	}
	for k, v := range r.Parameters {
		if own.Parameters == nil {
			own.Parameters = make(map[string]float64)
		}
		if _, ok := own.Parameters[k]; !ok {
			own.Parameters[k] = v
		}
	}
}

func mergeCompressor(dst, src *model.CompressorBlock) {
	fill := func(d **float64, s *float64) {
		if *d == nil && s != nil {
			*d = s
		}
	}
	fill(&dst.Threshold, src.Threshold)
	fill(&dst.Ratio, src.Ratio)
	fill(&dst.Attack, src.Attack)
	fill(&dst.Release, src.Release)
	fill(&dst.Knee, src.Knee)
	fill(&dst.Makeup, src.Makeup)
}

// Build assembles the project. chains must come from Interpret on the same
// extraction.
func (b *Builder) Build(x *cpr.Extraction, chains [][]Interpreted, meta Meta) *model.Project {
	p := &model.Project{
		Name:     meta.Name,
		Version:  x.Version,
		FileSize: meta.FileSize,
	}
	if p.FileSize == 0 {
		p.FileSize = x.Size
	}
	if x.SampleRate != nil {
		p.SampleRate = model.Int(*x.SampleRate)
	}
	if x.BitDepth != nil {
		p.BitDepth = model.Int(*x.BitDepth)
	}
	if x.Tempo != nil {
		p.Tempo = model.Float(*x.Tempo)
	}
	if x.TimeSignature != nil {
		ts := *x.TimeSignature
		p.TimeSignature = &ts
	}

	p.Tracks = make([]model.Track, 0, len(x.Tracks))
	for i, region := range x.Tracks {
		var chain []Interpreted
		if i < len(chains) {
			chain = chains[i]
		}
		p.Tracks = append(p.Tracks, buildTrack(i, region, chain))
	}

	p.Markers = append([]model.Marker(nil), x.Markers...)
	p.ReferencedAudio = referencedAudio(x.Filenames)

	for _, w := range x.Warnings {
		p.Warnings = append(p.Warnings, model.Warning{Marker: w.Marker, Offset: w.Offset, Reason: w.Reason()})
	}
	sort.SliceStable(p.Warnings, func(i, j int) bool { return p.Warnings[i].Offset < p.Warnings[j].Offset })

	b.log.Debug("project built",
		zap.String("name", p.Name),
		zap.Int("tracks", p.TrackCount()),
		zap.Int("plugins", p.PluginCount()),
		zap.Int("warnings", len(p.Warnings)),
	)
	return p
}

func buildTrack(index int, r cpr.TrackRegion, chain []Interpreted) model.Track {
	t := model.Track{
		Name:      r.Name,
		Type:      r.Type,
		Index:     index,
		OutputBus: r.OutputBus,
		Sends:     append([]model.Send(nil), r.Sends...),
	}
	for _, f := range r.AudioFiles {
		t.AudioFiles = append(t.AudioFiles, f.Text)
	}

	type placed struct {
		plugin model.PluginInstance
		offset int
	}
	list := make([]placed, 0, len(chain))
	for _, it := range chain {
		list = append(list, placed{plugin: pluginInstance(it), offset: it.Chunk.Offset})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].plugin.Slot != list[j].plugin.Slot {
			return list[i].plugin.Slot < list[j].plugin.Slot
		}
		return list[i].offset < list[j].offset
	})
	for _, pl := range list {
		t.Plugins = append(t.Plugins, pl.plugin)
	}
	return t
}

func pluginInstance(it Interpreted) model.PluginInstance {
	c := it.Chunk
	slot := it.Ordinal
	if c.Slot != nil {
		slot = *c.Slot
	}
	return model.PluginInstance{
		Name:       c.Name,
		Vendor:     Vendor(c.Vendor, it.Reading.Entry, c.Name),
		Bypassed:   c.Bypassed,
		Slot:       slot,
		EQ:         it.Reading.EQ,
		Compressor: it.Reading.Compressor,
		Parameters: it.Reading.Parameters,
	}
}

func referencedAudio(runs []cpr.TextRun) []string {
	seen := make(map[string]bool, len(runs))
	var out []string
	for _, r := range runs {
		name := strings.ToLower(r.Text)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
