package builder

import (
	"strings"

	"github.com/Skryldev/cpr-lab/application/registry"
)

var vendorPrefixes = []struct {
	prefix string
	vendor string
}{
	{"Waves", "Waves"},
	{"FabFilter", "FabFilter"},
	{"Steinberg", "Steinberg"},
	{"SSL", "Solid State Logic"},
	{"Universal Audio", "Universal Audio"},
	{"UAD", "Universal Audio"},
	{"iZotope", "iZotope"},
	{"Softube", "Softube"},
	{"Plugin Alliance", "Plugin Alliance"},
	{"Slate Digital", "Slate Digital"},
	{"Sonnox", "Sonnox"},
	{"Valhalla", "Valhalla DSP"},
	{"Tokyo Dawn", "Tokyo Dawn Labs"},
}

// Vendor picks a plugin's vendor: the value stored with the chunk, then the
// known plugin's vendor, then a guess from the name prefix. It returns ""
// when none applies.
func Vendor(stored string, entry *registry.Entry, name string) string {
	if v := strings.TrimSpace(stored); v != "" {
		return v
	}
	if entry != nil && entry.Vendor != "" {
		return entry.Vendor
	}
	n := strings.ToLower(strings.TrimSpace(name))
	for _, vp := range vendorPrefixes {
		if strings.HasPrefix(n, strings.ToLower(vp.prefix)) {
			return vp.vendor
		}
	}
	return ""
}
