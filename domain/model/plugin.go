package model

// FilterType is the response shape of an EQ band
type FilterType string

const (
	FilterPeak      FilterType = "peak"
	FilterLowShelf  FilterType = "low_shelf"
	FilterHighShelf FilterType = "high_shelf"
	FilterLowCut    FilterType = "low_cut"
	FilterHighCut   FilterType = "high_cut"
	FilterNotch     FilterType = "notch"
	FilterUnknown   FilterType = "unknown"
)

// HasQ reports whether the Q value is meaningful for the filter shape.
func (f FilterType) HasQ() bool {
	switch f {
	case FilterLowShelf, FilterHighShelf:
		return false
	}
	return true
}

// PluginInstance is one insert in a track's signal chain
type PluginInstance struct {
	Name     string
	Vendor   string
	Bypassed bool
	Slot     int

	EQ         *EQBlock
	Compressor *CompressorBlock

	// Parameters holds recognized values with no dedicated field
	Parameters map[string]float64
}

// EQBlock is the ordered band list of an equalizer
type EQBlock struct {
	Bands []EQBand
}

// EQBand is a single equalizer band. Nil values were not present in the source.
type EQBand struct {
	Enabled   bool
	Type      FilterType
	Frequency *float64 // Hz
	Gain      *float64 // dB
	Q         *float64
}

// CompressorBlock holds dynamics settings. A nil field means the plugin did
// not expose that setting, which is distinct from an explicit zero.
type CompressorBlock struct {
	Threshold *float64 // dB
	Ratio     *float64 // e.g. 4.0 for 4:1
	Attack    *float64 // ms
	Release   *float64 // ms
	Knee      *float64 // dB
	Makeup    *float64 // dB
}

// Empty reports whether no compressor field was recovered.
func (c *CompressorBlock) Empty() bool {
	return c == nil || (c.Threshold == nil && c.Ratio == nil && c.Attack == nil &&
		c.Release == nil && c.Knee == nil && c.Makeup == nil)
}

// Float returns a pointer to v for optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v for optional fields.
func Int(v int) *int { return &v }
