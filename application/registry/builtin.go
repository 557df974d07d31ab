package registry

import "github.com/Skryldev/cpr-lab/domain/model"

func sslBand(label string, t model.FilterType, withQ bool) BandKeys {
	b := BandKeys{
		Type:      t,
		Frequency: Keys{label + " Freq", "EQ " + label + " Freq"},
		Gain:      Keys{label + " Gain", "EQ " + label + " Gain"},
		Enabled:   Keys{label + " On"},
	}
	if withQ {
		b.Q = Keys{label + " Q", "EQ " + label + " Q"}
	} else {
		b.Peaking = Keys{label + " Bell"}
	}
	return b
}

// Builtin returns the known plugin table.
func Builtin() []Entry {
	return []Entry{
		{
			Name:    "SSL Channel Strip",
			Aliases: []string{"SSLChannel", "SSL Native Channel Strip 2", "SSL E-Channel", "SSL G-Channel"},
			Vendor:  "Solid State Logic",
			Compressor: &CompressorKeys{
				Threshold: Keys{"Comp Threshold", "CompThresh", "Threshold"},
				Ratio:     Keys{"Comp Ratio", "CompRatio", "Ratio"},
				Attack:    Keys{"Comp Attack", "CompAttack", "Attack"},
				Release:   Keys{"Comp Release", "CompRelease", "Release"},
				Makeup:    Keys{"Comp Makeup", "Output Trim"},
			},
			Bands: []BandKeys{
				sslBand("LF", model.FilterLowShelf, false),
				sslBand("LMF", model.FilterPeak, true),
				sslBand("HMF", model.FilterPeak, true),
				sslBand("HF", model.FilterHighShelf, false),
			},
			// the EQ section only exists in the longer channel layout
			Positional: &Positional{
				MinValues:     25,
				ThresholdGate: true,
				Compressor:    map[Field]int{FieldThreshold: 0, FieldRelease: 3},
				Bands: []PositionalBand{
					{Type: model.FilterLowShelf, Enabled: Unused, Peaking: Unused, Frequency: 15, Gain: 16, Q: Unused},
					{Type: model.FilterPeak, Enabled: Unused, Peaking: Unused, Frequency: 18, Gain: 19, Q: 17, FreqScale: 1000},
					{Type: model.FilterPeak, Enabled: Unused, Peaking: Unused, Frequency: 20, Gain: 22, Q: 21, FreqScale: 1000},
					{Type: model.FilterHighShelf, Enabled: Unused, Peaking: Unused, Frequency: 24, Gain: 23, Q: Unused, FreqScale: 1000},
				},
			},
		},
		{
			Name:    "SSLEQ",
			Aliases: []string{"SSL EQ"},
			Vendor:  "Waves",
			Bands: []BandKeys{
				sslBand("LF", model.FilterLowShelf, false),
				sslBand("LMF", model.FilterPeak, true),
				sslBand("HMF", model.FilterPeak, true),
				sslBand("HF", model.FilterHighShelf, false),
			},
			// LF and HF carry switches; HMF and HF store kHz
			Positional: &Positional{
				Bands: []PositionalBand{
					{Type: model.FilterLowShelf, Enabled: 0, Peaking: 1, Frequency: 2, Gain: 4, Q: Unused},
					{Type: model.FilterPeak, Enabled: Unused, Peaking: Unused, Frequency: 5, Gain: 8, Q: 9},
					{Type: model.FilterPeak, Enabled: Unused, Peaking: Unused, Frequency: 14, Gain: 13, Q: 10, FreqScale: 1000},
					{Type: model.FilterHighShelf, Enabled: 16, Peaking: Unused, Frequency: 18, Gain: 17, Q: Unused, FreqScale: 1000},
				},
				Parameters: map[string]int{"Output Trim": 19},
			},
		},
		{
			Name:       "Pro-Q 3",
			Aliases:    []string{"FabFilter Pro-Q 3", "Pro-Q 2", "FabFilter Pro-Q 2", "Pro-Q 4", "FabFilter Pro-Q 4"},
			Vendor:     "FabFilter",
			ChunkLimit: 128 << 10,
			Indexed: &IndexedBands{
				Start: 1,
				Template: BandKeys{
					Frequency: Keys{"Band {n} Freq", "Band {n} Frequency"},
					Gain:      Keys{"Band {n} Gain"},
					Q:         Keys{"Band {n} Q"},
					Shape:     Keys{"Band {n} Shape", "Band {n} Type"},
					Enabled:   Keys{"Band {n} Enabled", "Band {n} Used"},
				},
			},
		},
		{
			Name:    "Pro-C 2",
			Aliases: []string{"FabFilter Pro-C 2"},
			Vendor:  "FabFilter",
			Compressor: &CompressorKeys{
				Threshold: Keys{"Threshold"},
				Ratio:     Keys{"Ratio"},
				Attack:    Keys{"Attack"},
				Release:   Keys{"Release"},
				Knee:      Keys{"Knee"},
				Makeup:    Keys{"Output Level", "Gain"},
			},
		},
		{
			Name:    "CLA-76",
			Aliases: []string{"CLA76"},
			Vendor:  "Waves",
			Compressor: &CompressorKeys{
				Ratio:   Keys{"Ratio"},
				Attack:  Keys{"Attack"},
				Release: Keys{"Release"},
			},
			Positional: &Positional{
				Compressor: map[Field]int{FieldAttack: 2, FieldRelease: 3},
				Parameters: map[string]int{"Input": 0, "Output": 1},
			},
		},
		{
			Name:    "CLA-2A",
			Aliases: []string{"CLA2A"},
			Vendor:  "Waves",
			Compressor: &CompressorKeys{
				Threshold: Keys{"Peak Reduction", "PeakReduction"},
				Makeup:    Keys{"Output Gain", "Gain"},
			},
			Positional: &Positional{
				Compressor: map[Field]int{FieldThreshold: 0, FieldMakeup: 1},
			},
		},
		{
			Name:    "C1 comp",
			Aliases: []string{"C1Comp", "C1 Compressor"},
			Vendor:  "Waves",
			Compressor: &CompressorKeys{
				Threshold: Keys{"Threshold"},
				Ratio:     Keys{"Ratio"},
				Attack:    Keys{"Attack"},
				Release:   Keys{"Release"},
				Makeup:    Keys{"Makeup", "Gain"},
			},
			Positional: &Positional{
				Compressor: map[Field]int{FieldThreshold: 17, FieldRatio: 18, FieldAttack: 0},
			},
		},
		{
			Name:    "DeEsser",
			Aliases: []string{"Waves DeEsser"},
			Vendor:  "Waves",
			Positional: &Positional{
				Parameters: map[string]int{"Frequency": 0, "Threshold": 2},
			},
		},
		{
			Name:    "Compressor",
			Aliases: []string{"Steinberg Compressor"},
			Vendor:  "Steinberg",
			Compressor: &CompressorKeys{
				Threshold: Keys{"Threshold"},
				Ratio:     Keys{"Ratio"},
				Attack:    Keys{"Attack"},
				Release:   Keys{"Release"},
				Makeup:    Keys{"Make-Up", "MakeUp", "Makeup"},
			},
		},
	}
}
