// Package pattern generates synthetic mouse movement: lazy, restartable
// sequences of relative displacements following configurable shapes.
package pattern

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/bnema/btrelay/internal/logger"
)

// Pattern names accepted by the engine and the config file.
const (
	PatternCircle = "circle"
	PatternZigzag = "zigzag"
	PatternSquare = "square"
	PatternMix    = "mix"
	PatternRandom = "random"
)

// Param is a numeric pattern parameter: either a fixed scalar or a
// [min, max] range resolved to a concrete value once per movement cycle.
type Param struct {
	Min    float64
	Max    float64
	Ranged bool
}

// Fixed builds a scalar Param.
func Fixed(v float64) Param { return Param{Min: v, Max: v} }

// Range builds a [min, max] Param.
func Range(min, max float64) Param { return Param{Min: min, Max: max, Ranged: true} }

// UnmarshalTOML accepts either a number or a two-element array.
func (p *Param) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case int64:
		*p = Fixed(float64(val))
		return nil
	case float64:
		*p = Fixed(val)
		return nil
	case []interface{}:
		if len(val) != 2 {
			return fmt.Errorf("range parameter needs exactly [min, max], got %d elements", len(val))
		}
		min, err := toFloat(val[0])
		if err != nil {
			return err
		}
		max, err := toFloat(val[1])
		if err != nil {
			return err
		}
		if max < min {
			return fmt.Errorf("range parameter [%v, %v] has max below min", min, max)
		}
		*p = Range(min, max)
		return nil
	}
	return fmt.Errorf("parameter must be a number or [min, max] array, got %T", v)
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("range bound must be numeric, got %T", v)
}

// Resolve draws a concrete value from the parameter.
func (p Param) Resolve(rng *rand.Rand) float64 {
	if !p.Ranged {
		return p.Min
	}
	return p.Min + rng.Float64()*(p.Max-p.Min)
}

// ResolveInt draws an integer value, inclusive of both bounds.
func (p Param) ResolveInt(rng *rand.Rand) int {
	if !p.Ranged {
		return int(p.Min)
	}
	lo, hi := int(p.Min), int(p.Max)
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

// PatternConfig holds the parameters of one shape. Fields that do not
// apply to a shape are simply left unset in the file.
type PatternConfig struct {
	Radius             Param   `toml:"radius"`
	Width              Param   `toml:"width"`
	Height             Param   `toml:"height"`
	Size               Param   `toml:"size"`
	Steps              Param   `toml:"steps"`
	Delay              float64 `toml:"delay"`                // seconds between steps
	DurationPerPattern float64 `toml:"duration_per_pattern"` // mix only, seconds
}

// Config is the movement configuration, loaded once at startup.
type Config struct {
	DefaultPattern              string                   `toml:"default_pattern"`
	RandomPatternChangeInterval float64                  `toml:"random_pattern_change_interval"` // seconds
	Patterns                    map[string]PatternConfig `toml:"patterns"`
}

// Default returns the built-in movement configuration.
func Default() *Config {
	return &Config{
		DefaultPattern:              PatternRandom,
		RandomPatternChangeInterval: 20,
		Patterns: map[string]PatternConfig{
			PatternCircle: {
				Radius: Range(5, 20),
				Steps:  Range(20, 50),
				Delay:  0.05,
			},
			PatternZigzag: {
				Width:  Range(10, 30),
				Height: Range(5, 15),
				Steps:  Range(30, 60),
				Delay:  0.05,
			},
			PatternSquare: {
				Size:  Range(10, 25),
				Steps: Range(30, 60),
				Delay: 0.05,
			},
			PatternMix: {
				DurationPerPattern: 10,
				Delay:              0.05,
			},
		},
	}
}

// Load reads the movement configuration from path. A missing or
// malformed file is not fatal: the built-in defaults are used and the
// problem is logged once.
func Load(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Infof("Movement config %s not found, using built-in defaults", path)
		} else {
			logger.Warnf("Cannot read movement config %s: %v, using built-in defaults", path, err)
		}
		return Default()
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		logger.Errorf("Malformed movement config %s: %v, using built-in defaults", path, err)
		return Default()
	}

	cfg.fillDefaults(path)
	return cfg
}

// fillDefaults patches holes in a loaded config so the engine never has
// to deal with a partially specified file.
func (c *Config) fillDefaults(path string) {
	def := Default()

	switch c.DefaultPattern {
	case PatternCircle, PatternZigzag, PatternSquare, PatternMix, PatternRandom:
	case "":
		c.DefaultPattern = def.DefaultPattern
	default:
		logger.Warnf("Unknown default_pattern %q in %s, using %q", c.DefaultPattern, path, def.DefaultPattern)
		c.DefaultPattern = def.DefaultPattern
	}

	if c.RandomPatternChangeInterval <= 0 {
		c.RandomPatternChangeInterval = def.RandomPatternChangeInterval
	}
	if c.Patterns == nil {
		c.Patterns = map[string]PatternConfig{}
	}
	for name, defPattern := range def.Patterns {
		got, ok := c.Patterns[name]
		if !ok {
			c.Patterns[name] = defPattern
			continue
		}
		if got.Delay <= 0 {
			got.Delay = defPattern.Delay
		}
		if got.Steps == (Param{}) {
			got.Steps = defPattern.Steps
		}
		if name == PatternMix && got.DurationPerPattern <= 0 {
			got.DurationPerPattern = defPattern.DurationPerPattern
		}
		c.Patterns[name] = got
	}
}
