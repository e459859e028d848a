package core

import (
	"encoding/json"
	"fmt"
)

// Default effect parameters, used when the catalog omits a value or gives a non-number.
const (
	DefaultBoostPercent     = 25.0
	DefaultReductionPercent = 50.0
	DefaultXPMultiplier     = 1.5
)

// EffectParams is the typed parameter set of one effect kind.
type EffectParams interface {
	EffectType() string
}

// BoostParams configures INFLUENCE_BOOST.
type BoostParams struct {
	BoostPercent float64 `json:"boostPercent" yaml:"boostPercent"`
}

func (BoostParams) EffectType() string { return EffectInfluenceBoost }

// ShieldParams configures INFLUENCE_REDUCTION.
type ShieldParams struct {
	ReductionPercent float64 `json:"reductionPercent" yaml:"reductionPercent"`
}

func (ShieldParams) EffectType() string { return EffectInfluenceReduction }

// XPMultiplierParams configures XP_MULTIPLIER.
type XPMultiplierParams struct {
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

func (XPMultiplierParams) EffectType() string { return EffectXPMultiplier }

// DecodeEffectParams turns a loosely-typed parameter map into the typed params
// for effectType. Missing or non-numeric values fall back to the defaults.
func DecodeEffectParams(effectType string, raw map[string]any) (EffectParams, error) {
	switch effectType {
	case EffectInfluenceBoost:
		return BoostParams{BoostPercent: numberParam(raw, "boostPercent", DefaultBoostPercent)}, nil
	case EffectInfluenceReduction:
		return ShieldParams{ReductionPercent: numberParam(raw, "reductionPercent", DefaultReductionPercent)}, nil
	case EffectXPMultiplier:
		return XPMultiplierParams{Multiplier: numberParam(raw, "multiplier", DefaultXPMultiplier)}, nil
	default:
		return nil, fmt.Errorf("unknown effect type %q: %w", effectType, ErrMalformedInput)
	}
}

// EncodeEffectParams flattens typed params back into a map, the inverse of DecodeEffectParams.
func EncodeEffectParams(p EffectParams) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func numberParam(raw map[string]any, key string, def float64) float64 {
	v, ok := raw[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}
