package sitar

import (
	"math"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// SitarMode selects the tuning of the sitar network.
type SitarMode int

const (
	ModeSharp SitarMode = iota
	ModeMajor
	ModeMinor
	ModeExotic
)

var modeNames = [...]string{"sharp", "major", "minor", "exotic"}

func (m SitarMode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return modeNames[ModeSharp]
	}
	return modeNames[m]
}

// ParseSitarMode maps a mode name to its value. ok is false for unknown names.
func ParseSitarMode(s string) (SitarMode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if s == name {
			return SitarMode(i), true
		}
	}
	return ModeSharp, false
}

// Valid reports whether m is one of the declared modes.
func (m SitarMode) Valid() bool {
	return m >= ModeSharp && m <= ModeExotic
}

// ParameterSet holds every effect control.
type ParameterSet struct {
	Bass   float64
	Mid    float64
	Treble float64

	AmpGain  float64
	AmpTone  float64
	Master   float64
	Presence float64

	DriveAmount  float64
	DriveEnabled bool

	DelayTime     float64 // seconds
	DelayFeedback float64
	DelayMix      float64
	DelayEnabled  bool

	ReverbAmount float64

	SitarAmount float64
	SitarMode   SitarMode

	MonitorEnabled bool
}

// ParamID names one numeric control of a ParameterSet.
type ParamID int

const (
	ParamBass ParamID = iota
	ParamMid
	ParamTreble
	ParamAmpGain
	ParamAmpTone
	ParamMaster
	ParamPresence
	ParamDriveAmount
	ParamDelayTime
	ParamDelayFeedback
	ParamDelayMix
	ParamReverbAmount
	ParamSitarAmount

	// Switches and the mode share the change notification path.
	ParamDriveEnabled
	ParamDelayEnabled
	ParamMonitorEnabled
	ParamSitarMode
)

// Range is the declared valid interval of a numeric control.
type Range struct {
	Min, Max float64
}

// Clamp limits v to the range. NaN maps to Min.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.Min
	}
	return core.Clamp(v, r.Min, r.Max)
}

var paramRanges = map[ParamID]Range{
	ParamBass:          {0, 1},
	ParamMid:           {0, 1},
	ParamTreble:        {0, 1},
	ParamAmpGain:       {0, 6},
	ParamAmpTone:       {0, 1},
	ParamMaster:        {0, 1},
	ParamPresence:      {0, 1},
	ParamDriveAmount:   {0, 1},
	ParamDelayTime:     {0.02, 1.5},
	ParamDelayFeedback: {0, 0.9},
	ParamDelayMix:      {0, 1},
	ParamReverbAmount:  {0, 1},
	ParamSitarAmount:   {0, 1},
}

var paramNames = map[ParamID]string{
	ParamBass:           "bass",
	ParamMid:            "mid",
	ParamTreble:         "treble",
	ParamAmpGain:        "ampGain",
	ParamAmpTone:        "ampTone",
	ParamMaster:         "master",
	ParamPresence:       "presence",
	ParamDriveAmount:    "driveAmount",
	ParamDelayTime:      "delayTime",
	ParamDelayFeedback:  "delayFeedback",
	ParamDelayMix:       "delayMix",
	ParamReverbAmount:   "reverbAmount",
	ParamSitarAmount:    "sitarAmount",
	ParamDriveEnabled:   "driveEnabled",
	ParamDelayEnabled:   "delayEnabled",
	ParamMonitorEnabled: "monitorEnabled",
	ParamSitarMode:      "sitarMode",
}

// NumericParams lists the numeric controls in declaration order.
var NumericParams = []ParamID{
	ParamBass, ParamMid, ParamTreble,
	ParamAmpGain, ParamAmpTone, ParamMaster, ParamPresence,
	ParamDriveAmount,
	ParamDelayTime, ParamDelayFeedback, ParamDelayMix,
	ParamReverbAmount, ParamSitarAmount,
}

// RangeOf returns the declared range of a numeric control.
func RangeOf(id ParamID) (Range, bool) {
	r, ok := paramRanges[id]
	return r, ok
}

func (id ParamID) String() string {
	if s, ok := paramNames[id]; ok {
		return s
	}
	return "unknown"
}

// ParseParamID maps a control name ("ampGain") to its ID.
func ParseParamID(name string) (ParamID, bool) {
	for id, n := range paramNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// NewDefaultParams creates default parameters.
func NewDefaultParams() ParameterSet {
	return ParameterSet{
		Bass:           0.5,
		Mid:            0.5,
		Treble:         0.5,
		AmpGain:        1.5,
		AmpTone:        0.6,
		Master:         0.6,
		Presence:       0.5,
		DriveAmount:    0.4,
		DriveEnabled:   true,
		DelayTime:      0.35,
		DelayFeedback:  0.35,
		DelayMix:       0.25,
		DelayEnabled:   true,
		ReverbAmount:   0.25,
		SitarAmount:    0.5,
		SitarMode:      ModeSharp,
		MonitorEnabled: true,
	}
}

// Get returns a numeric control. Switches read as 0/1 and the mode as its index.
func (p *ParameterSet) Get(id ParamID) float64 {
	switch id {
	case ParamBass:
		return p.Bass
	case ParamMid:
		return p.Mid
	case ParamTreble:
		return p.Treble
	case ParamAmpGain:
		return p.AmpGain
	case ParamAmpTone:
		return p.AmpTone
	case ParamMaster:
		return p.Master
	case ParamPresence:
		return p.Presence
	case ParamDriveAmount:
		return p.DriveAmount
	case ParamDelayTime:
		return p.DelayTime
	case ParamDelayFeedback:
		return p.DelayFeedback
	case ParamDelayMix:
		return p.DelayMix
	case ParamReverbAmount:
		return p.ReverbAmount
	case ParamSitarAmount:
		return p.SitarAmount
	case ParamDriveEnabled:
		return boolToFloat(p.DriveEnabled)
	case ParamDelayEnabled:
		return boolToFloat(p.DelayEnabled)
	case ParamMonitorEnabled:
		return boolToFloat(p.MonitorEnabled)
	case ParamSitarMode:
		return float64(p.SitarMode)
	}
	return 0
}

// Set writes a control, clamping numeric values to their declared range.
// NaN selects the default. Switches treat any value >= 0.5 as on. Unknown
// IDs are ignored.
func (p *ParameterSet) Set(id ParamID, v float64) {
	if math.IsNaN(v) {
		d := NewDefaultParams()
		v = d.Get(id)
	}
	if r, ok := paramRanges[id]; ok {
		v = r.Clamp(v)
	}
	switch id {
	case ParamBass:
		p.Bass = v
	case ParamMid:
		p.Mid = v
	case ParamTreble:
		p.Treble = v
	case ParamAmpGain:
		p.AmpGain = v
	case ParamAmpTone:
		p.AmpTone = v
	case ParamMaster:
		p.Master = v
	case ParamPresence:
		p.Presence = v
	case ParamDriveAmount:
		p.DriveAmount = v
	case ParamDelayTime:
		p.DelayTime = v
	case ParamDelayFeedback:
		p.DelayFeedback = v
	case ParamDelayMix:
		p.DelayMix = v
	case ParamReverbAmount:
		p.ReverbAmount = v
	case ParamSitarAmount:
		p.SitarAmount = v
	case ParamDriveEnabled:
		p.DriveEnabled = v >= 0.5
	case ParamDelayEnabled:
		p.DelayEnabled = v >= 0.5
	case ParamMonitorEnabled:
		p.MonitorEnabled = v >= 0.5
	case ParamSitarMode:
		m := SitarMode(int(math.Round(v)))
		if !m.Valid() {
			m = ModeSharp
		}
		p.SitarMode = m
	}
}

// Clamped returns a copy with every numeric control inside its range.
func (p ParameterSet) Clamped() ParameterSet {
	for _, id := range NumericParams {
		p.Set(id, p.Get(id))
	}
	if !p.SitarMode.Valid() {
		p.SitarMode = ModeSharp
	}
	return p
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
