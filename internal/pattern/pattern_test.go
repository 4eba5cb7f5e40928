package pattern

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamUnmarshalScalarAndRange(t *testing.T) {
	var cfg struct {
		Fixed  Param `toml:"fixed"`
		Float  Param `toml:"float"`
		Spread Param `toml:"spread"`
		Mixed  Param `toml:"mixed"`
	}
	err := toml.Unmarshal([]byte(`
fixed = 12
float = 3.5
spread = [5, 20]
mixed = [0.5, 2]
`), &cfg)
	require.NoError(t, err)

	assert.Equal(t, Fixed(12), cfg.Fixed)
	assert.Equal(t, Fixed(3.5), cfg.Float)
	assert.Equal(t, Range(5, 20), cfg.Spread)
	assert.Equal(t, Range(0.5, 2), cfg.Mixed)
}

func TestParamUnmarshalRejectsBadValues(t *testing.T) {
	for name, doc := range map[string]string{
		"three elements": `p = [1, 2, 3]`,
		"inverted range": `p = [20, 5]`,
		"string bound":   `p = ["low", 5]`,
		"string scalar":  `p = "fast"`,
	} {
		t.Run(name, func(t *testing.T) {
			var cfg struct {
				P Param `toml:"p"`
			}
			assert.Error(t, toml.Unmarshal([]byte(doc), &cfg))
		})
	}
}

func TestParamResolve(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	assert.Equal(t, 7.0, Fixed(7).Resolve(rng))
	assert.Equal(t, 7, Fixed(7).ResolveInt(rng))

	for i := 0; i < 200; i++ {
		v := Range(5, 20).Resolve(rng)
		assert.GreaterOrEqual(t, v, 5.0)
		assert.LessOrEqual(t, v, 20.0)
	}

	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		n := Range(3, 5).ResolveInt(rng)
		assert.GreaterOrEqual(t, n, 3)
		assert.LessOrEqual(t, n, 5)
		seen[n] = true
	}
	assert.True(t, seen[3] && seen[5], "integer ranges are inclusive of both bounds")
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Equal(t, Default(), cfg)
}

func TestLoadMalformedFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movement.toml")
	require.NoError(t, os.WriteFile(path, []byte("default_pattern = ["), 0o644))
	assert.Equal(t, Default(), Load(path))
}

func TestLoadFillsPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movement.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_pattern = "circle"

[patterns.circle]
radius = 10
steps = 20
`), 0o644))

	cfg := Load(path)
	assert.Equal(t, PatternCircle, cfg.DefaultPattern)
	assert.Equal(t, 20.0, cfg.RandomPatternChangeInterval)
	assert.Equal(t, Fixed(10), cfg.Patterns[PatternCircle].Radius)
	assert.Equal(t, 0.05, cfg.Patterns[PatternCircle].Delay, "delay falls back to the built-in default")
	assert.Equal(t, Default().Patterns[PatternZigzag], cfg.Patterns[PatternZigzag], "unmentioned patterns keep their defaults")
}

func TestLoadRejectsUnknownDefaultPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movement.toml")
	require.NoError(t, os.WriteFile(path, []byte(`default_pattern = "spiral"`), 0o644))
	assert.Equal(t, PatternRandom, Load(path).DefaultPattern)
}

func fixedConfig(pattern string, pc PatternConfig) *Config {
	cfg := Default()
	cfg.DefaultPattern = pattern
	cfg.Patterns[pattern] = pc
	return cfg
}

func sumDeltas(c *Cycle) (int32, int32) {
	var x, y int32
	for step := 1; step <= c.Steps; step++ {
		dx, dy := c.Delta(step)
		x += dx
		y += dy
	}
	return x, y
}

func TestCircleCycleCloses(t *testing.T) {
	cfg := fixedConfig(PatternCircle, PatternConfig{
		Radius: Fixed(10), Steps: Fixed(20), Delay: 0.05,
	})
	eng := NewEngine(cfg, rand.New(rand.NewSource(1)))

	cycle := eng.NextCycle()
	require.Equal(t, PatternCircle, cycle.Pattern)
	require.Equal(t, 20, cycle.Steps)
	assert.Equal(t, 50*time.Millisecond, cycle.Delay)

	x, y := sumDeltas(cycle)
	assert.Zero(t, x, "circle returns to its starting point")
	assert.Zero(t, y)
}

func TestSquareCycleClosesAndMoves(t *testing.T) {
	cfg := fixedConfig(PatternSquare, PatternConfig{
		Size: Fixed(15), Steps: Fixed(40), Delay: 0.05,
	})
	cycle := NewEngine(cfg, rand.New(rand.NewSource(1))).NextCycle()

	x, y := sumDeltas(cycle)
	assert.Zero(t, x)
	assert.Zero(t, y)

	moved := false
	for step := 1; step <= cycle.Steps; step++ {
		if dx, dy := cycle.Delta(step); dx != 0 || dy != 0 {
			moved = true
			break
		}
	}
	assert.True(t, moved, "the cycle traces an actual path, not a fixed point")
}

func TestZigzagCycleSpansConfiguredExtent(t *testing.T) {
	cfg := fixedConfig(PatternZigzag, PatternConfig{
		Width: Fixed(20), Height: Fixed(6), Steps: Fixed(60), Delay: 0.05,
	})
	cycle := NewEngine(cfg, rand.New(rand.NewSource(1))).NextCycle()

	var x, y, maxX, maxY int32
	for step := 1; step <= cycle.Steps; step++ {
		dx, dy := cycle.Delta(step)
		x += dx
		y += dy
		if x > maxX {
			maxX = x
		}
		if y > maxY {
			maxY = y
		}
	}
	assert.Equal(t, int32(20), maxX)
	assert.Equal(t, int32(6), maxY)
	assert.GreaterOrEqual(t, y, int32(0), "zigzag only ever descends")
}

func TestCycleDeltasAreDeterministic(t *testing.T) {
	cfg := fixedConfig(PatternCircle, PatternConfig{
		Radius: Range(5, 20), Steps: Range(20, 50), Delay: 0.05,
	})
	cycle := NewEngine(cfg, rand.New(rand.NewSource(7))).NextCycle()

	for step := 1; step <= cycle.Steps; step++ {
		dx1, dy1 := cycle.Delta(step)
		dx2, dy2 := cycle.Delta(step)
		assert.Equal(t, dx1, dx2)
		assert.Equal(t, dy1, dy2)
	}
}

func TestRangedParametersResolveOncePerCycle(t *testing.T) {
	cfg := fixedConfig(PatternSquare, PatternConfig{
		Size: Range(10, 25), Steps: Range(30, 60), Delay: 0.05,
	})
	eng := NewEngine(cfg, rand.New(rand.NewSource(3)))

	for i := 0; i < 20; i++ {
		cycle := eng.NextCycle()
		assert.GreaterOrEqual(t, cycle.Steps, 30)
		assert.LessOrEqual(t, cycle.Steps, 60)
		x, y := sumDeltas(cycle)
		assert.Zero(t, x)
		assert.Zero(t, y)
	}
}

func TestRandomModeDrawsConcretePatterns(t *testing.T) {
	cfg := Default() // default_pattern = "random"
	eng := NewEngine(cfg, rand.New(rand.NewSource(9)))

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[eng.NextCycle().Pattern] = true
	}
	assert.Equal(t, map[string]bool{
		PatternCircle: true,
		PatternZigzag: true,
		PatternSquare: true,
	}, seen)
}

func TestRandomModeRestartsAfterChangeInterval(t *testing.T) {
	cfg := Default()
	cfg.RandomPatternChangeInterval = 20
	eng := NewEngine(cfg, rand.New(rand.NewSource(2)))

	clock := time.Unix(1000, 0)
	eng.now = func() time.Time { return clock }

	eng.NextCycle()
	assert.False(t, eng.ShouldRestart())

	clock = clock.Add(19 * time.Second)
	assert.False(t, eng.ShouldRestart())

	clock = clock.Add(time.Second)
	assert.True(t, eng.ShouldRestart(), "the interval elapsing forces a new draw even mid-cycle")

	eng.NextCycle()
	assert.False(t, eng.ShouldRestart(), "a new cycle resets the interval")
}

func TestFixedPatternNeverRestarts(t *testing.T) {
	cfg := fixedConfig(PatternCircle, PatternConfig{
		Radius: Fixed(10), Steps: Fixed(20), Delay: 0.05,
	})
	eng := NewEngine(cfg, rand.New(rand.NewSource(1)))
	clock := time.Unix(1000, 0)
	eng.now = func() time.Time { return clock }

	eng.NextCycle()
	clock = clock.Add(time.Hour)
	assert.False(t, eng.ShouldRestart())
}

func TestMixModeRotatesOnWallClock(t *testing.T) {
	cfg := Default()
	cfg.DefaultPattern = PatternMix
	eng := NewEngine(cfg, rand.New(rand.NewSource(1)))

	clock := time.Unix(1000, 0)
	eng.now = func() time.Time { return clock }

	assert.Equal(t, PatternCircle, eng.NextCycle().Pattern)

	clock = clock.Add(10 * time.Second)
	assert.Equal(t, PatternZigzag, eng.NextCycle().Pattern)

	clock = clock.Add(10 * time.Second)
	assert.Equal(t, PatternSquare, eng.NextCycle().Pattern)

	clock = clock.Add(10 * time.Second)
	assert.Equal(t, PatternCircle, eng.NextCycle().Pattern, "rotation wraps around")
}
