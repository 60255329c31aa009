package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-sitar/sitar"
)

// Decode turns an untyped settings payload (e.g. parsed JSON) into a full,
// clamped parameter set. It never fails: unknown keys are ignored and
// missing or malformed fields keep their defaults. Booleans may be given as
// bools, numbers or "true"/"false" strings; numbers may be strings.
func Decode(payload map[string]any) sitar.ParameterSet {
	p := sitar.NewDefaultParams()
	for key, raw := range payload {
		id, ok := sitar.ParseParamID(key)
		if !ok {
			continue
		}
		switch id {
		case sitar.ParamSitarMode:
			if m, ok := decodeMode(raw); ok {
				p.SitarMode = m
			}
		case sitar.ParamDriveEnabled, sitar.ParamDelayEnabled, sitar.ParamMonitorEnabled:
			if b, ok := decodeBool(raw); ok {
				p.Set(id, boolValue(b))
			}
		default:
			if v, ok := decodeNumber(raw); ok {
				p.Set(id, v)
			}
		}
	}
	return p.Clamped()
}

func decodeNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func decodeBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return false, false
	}
	if f, ok := decodeNumber(raw); ok {
		return f >= 0.5, true
	}
	return false, false
}

func decodeMode(raw any) (sitar.SitarMode, bool) {
	if s, ok := raw.(string); ok {
		return sitar.ParseSitarMode(s)
	}
	return sitar.ModeSharp, false
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Encode returns the payload form of p, keyed by control name.
func Encode(p sitar.ParameterSet) map[string]any {
	p = p.Clamped()
	out := make(map[string]any, len(sitar.NumericParams)+4)
	for _, id := range sitar.NumericParams {
		out[id.String()] = p.Get(id)
	}
	out[sitar.ParamDriveEnabled.String()] = p.DriveEnabled
	out[sitar.ParamDelayEnabled.String()] = p.DelayEnabled
	out[sitar.ParamMonitorEnabled.String()] = p.MonitorEnabled
	out[sitar.ParamSitarMode.String()] = p.SitarMode.String()
	return out
}

// Parse decodes a JSON object. Only malformed JSON is an error; field
// problems fall back to defaults as in Decode.
func Parse(b []byte) (sitar.ParameterSet, error) {
	var payload map[string]any
	if err := json.Unmarshal(b, &payload); err != nil {
		return sitar.NewDefaultParams(), fmt.Errorf("parse preset: %w", err)
	}
	return Decode(payload), nil
}

// Marshal encodes p as indented JSON.
func Marshal(p sitar.ParameterSet) ([]byte, error) {
	return json.MarshalIndent(Encode(p), "", "  ")
}

// LoadJSON loads a preset file.
func LoadJSON(path string) (sitar.ParameterSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return sitar.NewDefaultParams(), err
	}
	return Parse(b)
}

// SaveJSON writes p to path.
func SaveJSON(path string, p sitar.ParameterSet) error {
	b, err := Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
