package pattern

import (
	"math"
	"math/rand"
	"time"

	"github.com/bnema/btrelay/internal/logger"
)

// Engine produces movement cycles. Each cycle resolves the active shape's
// ranged parameters once and then yields deterministic relative deltas.
// One engine serves one relay; it is not safe for concurrent use.
type Engine struct {
	cfg *Config
	rng *rand.Rand
	now func() time.Time

	// lastDraw is when the random mode last (re)drew a pattern, and
	// mixStart anchors the mix mode's wall-clock rotation.
	lastDraw time.Time
	mixStart time.Time
}

// NewEngine builds an engine over cfg, seeded from rng. A nil rng gets a
// time-seeded source.
func NewEngine(cfg *Config, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{cfg: cfg, rng: rng, now: time.Now}
}

// concrete shapes the random and mix modes rotate through.
var concretePatterns = []string{PatternCircle, PatternZigzag, PatternSquare}

// Cycle is one fully resolved pass of a shape. Deltas are pure functions
// of the resolved parameters, so replaying a cycle traces the same path.
type Cycle struct {
	Pattern string
	Steps   int
	Delay   time.Duration

	point func(step int) (x, y float64)
}

// Delta returns the rounded displacement from step-1 to step, for step in
// [1, Steps]. Rounding is applied to absolute positions before
// differencing, so the deltas telescope: closed shapes return exactly to
// their starting point regardless of step count.
func (c *Cycle) Delta(step int) (dx, dy int32) {
	px, py := c.point(step - 1)
	x, y := c.point(step)
	return int32(math.Round(x) - math.Round(px)), int32(math.Round(y) - math.Round(py))
}

// NextCycle resolves the next movement cycle. In random mode a new shape
// and fresh parameters are drawn at every cycle boundary; in mix mode the
// shape rotates on a wall-clock schedule.
func (e *Engine) NextCycle() *Cycle {
	name := e.cfg.DefaultPattern
	switch name {
	case PatternRandom:
		name = concretePatterns[e.rng.Intn(len(concretePatterns))]
		e.lastDraw = e.now()
	case PatternMix:
		name = e.mixPattern()
	}

	pc := e.cfg.Patterns[name]
	cycle := e.resolve(name, pc)
	logger.Debugf("Movement cycle: pattern=%s steps=%d delay=%s", cycle.Pattern, cycle.Steps, cycle.Delay)
	return cycle
}

// ShouldRestart reports whether the current cycle should be abandoned
// early. Only the random mode restarts mid-cycle, when the configured
// change interval has elapsed since the last draw.
func (e *Engine) ShouldRestart() bool {
	if e.cfg.DefaultPattern != PatternRandom {
		return false
	}
	interval := time.Duration(e.cfg.RandomPatternChangeInterval * float64(time.Second))
	return e.now().Sub(e.lastDraw) >= interval
}

func (e *Engine) mixPattern() string {
	if e.mixStart.IsZero() {
		e.mixStart = e.now()
	}
	duration := e.cfg.Patterns[PatternMix].DurationPerPattern
	if duration <= 0 {
		duration = 10
	}
	slot := int(e.now().Sub(e.mixStart).Seconds()/duration) % len(concretePatterns)
	return concretePatterns[slot]
}

func (e *Engine) resolve(name string, pc PatternConfig) *Cycle {
	steps := pc.Steps.ResolveInt(e.rng)
	if steps < 1 {
		steps = 1
	}
	delay := pc.Delay
	if name == PatternMix || delay <= 0 {
		delay = e.cfg.Patterns[PatternMix].Delay
	}
	if delay <= 0 {
		delay = 0.05
	}

	cycle := &Cycle{
		Pattern: name,
		Steps:   steps,
		Delay:   time.Duration(delay * float64(time.Second)),
	}

	switch name {
	case PatternCircle:
		radius := pc.Radius.Resolve(e.rng)
		cycle.point = circlePoint(radius, steps)
	case PatternZigzag:
		width := pc.Width.Resolve(e.rng)
		height := pc.Height.Resolve(e.rng)
		cycle.point = zigzagPoint(width, height, steps)
	default:
		size := pc.Size.Resolve(e.rng)
		cycle.point = squarePoint(size, steps)
	}
	return cycle
}

// circlePoint traces a full circle of the given radius, starting and
// ending at the rightmost point.
func circlePoint(radius float64, steps int) func(int) (float64, float64) {
	return func(step int) (float64, float64) {
		angle := 2 * math.Pi * float64(step) / float64(steps)
		return radius * math.Cos(angle), radius * math.Sin(angle)
	}
}

// zigzagPoint sweeps horizontally back and forth while descending, one
// row per horizontal pass.
func zigzagPoint(width, height float64, steps int) func(int) (float64, float64) {
	rows := int(height)
	if rows < 1 {
		rows = 1
	}
	stepsPerRow := steps / rows
	if stepsPerRow < 1 {
		stepsPerRow = 1
	}
	rowSpacing := 0.0
	if rows > 1 {
		rowSpacing = height / float64(rows-1)
	}
	return func(step int) (float64, float64) {
		row := step / stepsPerRow
		if row >= rows {
			row = rows - 1
		}
		progress := float64(step%stepsPerRow) / float64(stepsPerRow)
		if step/stepsPerRow >= rows {
			progress = 1
		}
		x := width * progress
		if row%2 == 1 {
			x = width * (1 - progress)
		}
		return x, float64(row) * rowSpacing
	}
}

// squarePoint traces the perimeter of an axis-aligned square clockwise
// from the top-left corner.
func squarePoint(size float64, steps int) func(int) (float64, float64) {
	return func(step int) (float64, float64) {
		// Position along the perimeter in [0, 4]; 4 is back at the start.
		t := 4 * float64(step) / float64(steps)
		if t >= 4 {
			return 0, 0
		}
		side := int(t)
		frac := t - float64(side)
		switch side {
		case 0:
			return size * frac, 0
		case 1:
			return size, size * frac
		case 2:
			return size * (1 - frac), size
		default:
			return 0, size * (1 - frac)
		}
	}
}
