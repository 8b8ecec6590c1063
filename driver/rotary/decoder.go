package rotary

import (
	"sync"
	"time"

	"olipi.org/clock"
	"olipi.org/input"
	"periph.io/x/conn/v3/gpio"
)

// KeyWindow is the debounce window of the keys a rotary encoder emits.
const KeyWindow = 10 * time.Millisecond

// Options tune both decoders.
type Options struct {
	// Divider is the number of detent steps per emitted key.
	Divider int
	Invert  bool
	// MinTick is the minimum spacing of emitted keys. Transitions closer
	// than half of it to the last emission are treated as bounce.
	MinTick time.Duration
	Clock   clock.Clock
}

// accumulator turns signed steps into KEY_UP and KEY_DOWN presses.
type accumulator struct {
	h        input.Handler
	opts     Options
	counter  int
	lastEmit time.Time
}

func newAccumulator(h input.Handler, opts Options) accumulator {
	if opts.Divider <= 0 {
		opts.Divider = 1
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real
	}
	return accumulator{h: h, opts: opts, lastEmit: opts.Clock.Now()}
}

// bouncing reports whether a transition at now is too close to the last
// emitted key to be real.
func (a *accumulator) bouncing(now time.Time) bool {
	return now.Sub(a.lastEmit) < a.opts.MinTick/2
}

func (a *accumulator) step(now time.Time, dir int) {
	if a.opts.Invert {
		dir = -dir
	}
	a.counter += dir
	if abs(a.counter) < a.opts.Divider || now.Sub(a.lastEmit) < a.opts.MinTick {
		return
	}
	key := "KEY_DOWN"
	if a.counter > 0 {
		key = "KEY_UP"
	}
	a.counter = 0
	a.lastEmit = now
	a.h.ProcessKey(key, "00", KeyWindow)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// EdgeDecoder decodes a quadrature encoder from edge events: on every
// change of channel A the direction follows from whether B differs from A.
type EdgeDecoder struct {
	mu    sync.Mutex
	acc   accumulator
	lastA gpio.Level
}

// NewEdgeDecoder returns a decoder whose channel A starts at level a.
func NewEdgeDecoder(h input.Handler, a gpio.Level, opts Options) *EdgeDecoder {
	return &EdgeDecoder{acc: newAccumulator(h, opts), lastA: a}
}

// Edge handles an edge on either channel, given the current levels of
// both.
func (d *EdgeDecoder) Edge(a, b gpio.Level) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a == d.lastA {
		return
	}
	now := d.acc.opts.Clock.Now()
	if d.acc.bouncing(now) {
		// Keep lastA so the settled level is seen as a transition.
		return
	}
	d.lastA = a
	dir := -1
	if b != a {
		dir = 1
	}
	d.acc.step(now, dir)
}

// transitions maps previous<<2|current Gray states to a step. Zero
// entries are either no change or an impossible double step.
var transitions = [16]int8{
	0, -1, 1, 0,
	1, 0, 0, -1,
	-1, 0, 0, 1,
	0, 1, -1, 0,
}

// GrayDecoder decodes a quadrature encoder from periodic samples of both
// channels.
type GrayDecoder struct {
	mu    sync.Mutex
	acc   accumulator
	state uint8
	// Invalid counts rejected double steps.
	Invalid int
}

func NewGrayDecoder(h input.Handler, a, b gpio.Level, opts Options) *GrayDecoder {
	return &GrayDecoder{acc: newAccumulator(h, opts), state: grayState(a, b)}
}

func grayState(a, b gpio.Level) uint8 {
	var s uint8
	if a {
		s |= 2
	}
	if b {
		s |= 1
	}
	return s
}

// Sample feeds the current channel levels.
func (d *GrayDecoder) Sample(a, b gpio.Level) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := grayState(a, b)
	if s == d.state {
		return
	}
	dir := transitions[d.state<<2|s]
	d.state = s
	if dir == 0 {
		d.Invalid++
		return
	}
	now := d.acc.opts.Clock.Now()
	if d.acc.bouncing(now) {
		return
	}
	d.acc.step(now, int(dir))
}
