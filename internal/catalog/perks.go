// Package catalog reads the perk catalog and the world seed from YAML files.
package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sportsin/territory/pkg/core"
	"gopkg.in/yaml.v3"
)

// Duration accepts either whole seconds or a Go duration string ("90m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if value.Tag == "!!int" {
		secs, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

type perkFile struct {
	Perks []PerkSpec `yaml:"perks"`
}

// PerkSpec is one catalog entry as written in the file.
type PerkSpec struct {
	Code               string         `yaml:"code"`
	Name               string         `yaml:"name"`
	Description        string         `yaml:"description"`
	EffectType         string         `yaml:"effectType"`
	RequiredLevel      int            `yaml:"requiredLevel"`
	Duration           Duration       `yaml:"duration"`
	Cooldown           Duration       `yaml:"cooldown"`
	MaxActiveInstances int            `yaml:"maxActiveInstances"`
	Stackable          bool           `yaml:"stackable"`
	Params             map[string]any `yaml:"params"`
}

// Definition validates the entry and decodes its params.
func (s PerkSpec) Definition() (core.PerkDefinition, error) {
	code := strings.ToUpper(strings.TrimSpace(s.Code))
	if code == "" {
		return core.PerkDefinition{}, fmt.Errorf("perk without code: %w", core.ErrMalformedInput)
	}
	params, err := core.DecodeEffectParams(s.EffectType, s.Params)
	if err != nil {
		return core.PerkDefinition{}, fmt.Errorf("perk %s: %w", code, err)
	}
	if s.Duration <= 0 {
		return core.PerkDefinition{}, fmt.Errorf("perk %s: duration must be positive: %w", code, core.ErrMalformedInput)
	}
	if s.Cooldown < 0 {
		return core.PerkDefinition{}, fmt.Errorf("perk %s: negative cooldown: %w", code, core.ErrMalformedInput)
	}

	def := core.PerkDefinition{
		Code:               code,
		Name:               s.Name,
		Description:        s.Description,
		EffectType:         s.EffectType,
		RequiredLevel:      s.RequiredLevel,
		Duration:           time.Duration(s.Duration),
		Cooldown:           time.Duration(s.Cooldown),
		MaxActiveInstances: s.MaxActiveInstances,
		Stackable:          s.Stackable,
		Params:             params,
	}
	if def.Name == "" {
		def.Name = code
	}
	if def.RequiredLevel < 1 {
		def.RequiredLevel = 1
	}
	if def.MaxActiveInstances < 1 {
		def.MaxActiveInstances = 1
	}
	return def, nil
}

// LoadPerks reads a perk catalog. An empty path yields DefaultPerks.
func LoadPerks(path string) ([]core.PerkDefinition, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPerks(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading perk catalog: %w", err)
	}
	return ParsePerks(b)
}

// ParsePerks decodes a YAML perk catalog. Codes are upper-cased and must be unique.
func ParsePerks(b []byte) ([]core.PerkDefinition, error) {
	var f perkFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("perks.yaml: %w", err)
	}

	seen := make(map[string]bool, len(f.Perks))
	defs := make([]core.PerkDefinition, 0, len(f.Perks))
	for _, spec := range f.Perks {
		def, err := spec.Definition()
		if err != nil {
			return nil, fmt.Errorf("perks.yaml: %w", err)
		}
		if seen[def.Code] {
			return nil, fmt.Errorf("perks.yaml: duplicate perk %s: %w", def.Code, core.ErrMalformedInput)
		}
		seen[def.Code] = true
		defs = append(defs, def)
	}
	return defs, nil
}

// DefaultPerks is the built-in catalog: one perk per effect type.
func DefaultPerks() []core.PerkDefinition {
	return []core.PerkDefinition{
		{
			Code:               "INFLUENCE_BOOST",
			Name:               "Influence boost",
			Description:        "Raises your influence on the target point",
			EffectType:         core.EffectInfluenceBoost,
			RequiredLevel:      2,
			Duration:           time.Hour,
			Cooldown:           2 * time.Hour,
			MaxActiveInstances: 1,
			Params:             core.BoostParams{BoostPercent: core.DefaultBoostPercent},
		},
		{
			Code:               "SHIELD",
			Name:               "Shield",
			Description:        "Cuts the influence opponents gain on the target point",
			EffectType:         core.EffectInfluenceReduction,
			RequiredLevel:      3,
			Duration:           2 * time.Hour,
			Cooldown:           4 * time.Hour,
			MaxActiveInstances: 1,
			Params:             core.ShieldParams{ReductionPercent: core.DefaultReductionPercent},
		},
		{
			Code:               "XP_BOOST",
			Name:               "XP boost",
			Description:        "Multiplies the XP your team earns",
			EffectType:         core.EffectXPMultiplier,
			RequiredLevel:      1,
			Duration:           30 * time.Minute,
			Cooldown:           time.Hour,
			MaxActiveInstances: 2,
			Stackable:          true,
			Params:             core.XPMultiplierParams{Multiplier: core.DefaultXPMultiplier},
		},
	}
}
