// Package registry maps plugin identities to parameter interpretation
// strategies.
package registry

import (
	"strings"
	"sync"

	"github.com/Skryldev/cpr-lab/domain/model"
	"github.com/Skryldev/cpr-lab/infrastructure/cpr"
)

// Interpretation is the structured reading of one plugin chunk
type Interpretation struct {
	// Entry is the known plugin that produced the reading, nil for generic
	Entry *Entry

	EQ         *model.EQBlock
	Compressor *model.CompressorBlock
	Parameters map[string]float64
}

// Strategy turns a raw plugin chunk into an Interpretation
type Strategy interface {
	Interpret(chunk cpr.PluginChunk) Interpretation
}

// Registry dispatches plugin chunks to a known entry or the generic strategy.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	exact   map[string]*Entry
	folded  map[string]*Entry
	generic Strategy
}

// New creates a registry holding the built-in entries followed by extra.
// Later entries replace earlier ones with the same name.
func New(extra ...Entry) *Registry {
	r := &Registry{
		exact:   make(map[string]*Entry),
		folded:  make(map[string]*Entry),
		generic: Generic{},
	}
	for _, e := range Builtin() {
		r.Register(e)
	}
	for _, e := range extra {
		r.Register(e)
	}
	return r
}

// Register adds an entry under its name and aliases.
func (r *Registry) Register(e Entry) {
	entry := &e
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range append([]string{e.Name}, e.Aliases...) {
		n := Normalize(name)
		if n == "" {
			continue
		}
		r.exact[n] = entry
		r.folded[strings.ToLower(n)] = entry
	}
}

// Lookup finds the entry for a plugin name: exact match on the normalized
// name first, then case-insensitive.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	n := Normalize(name)
	if n == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.exact[n]; ok {
		return e, true
	}
	e, ok := r.folded[strings.ToLower(n)]
	return e, ok
}

// Strategy returns the strategy that handles the named plugin.
func (r *Registry) Strategy(name string) Strategy {
	if e, ok := r.Lookup(name); ok {
		return e
	}
	return r.generic
}

// Interpret decodes a chunk with its plugin's strategy.
func (r *Registry) Interpret(chunk cpr.PluginChunk) Interpretation {
	return r.Strategy(chunk.Name).Interpret(chunk)
}

// ChunkLimit returns the binary chunk bound declared for the plugin, or 0.
func (r *Registry) ChunkLimit(name string) int {
	if e, ok := r.Lookup(name); ok {
		return e.ChunkLimit
	}
	return 0
}

var channelSuffixes = []string{" Mono/Stereo", " Stereo", " Mono"}

// Normalize trims a plugin name and drops a trailing channel layout.
func Normalize(name string) string {
	n := strings.TrimSpace(name)
	lower := strings.ToLower(n)
	for _, s := range channelSuffixes {
		if strings.HasSuffix(lower, strings.ToLower(s)) {
			return strings.TrimSpace(n[:len(n)-len(s)])
		}
	}
	return n
}
