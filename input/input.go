// Package input turns raw key triggers from the panel's input sources
// into a debounced, auto-repeating stream of logical key presses.
package input

import (
	"log"
	"strconv"
	"sync"
	"time"

	"olipi.org/clock"
	"olipi.org/notify"
)

// Handler is the engine surface used by input sources.
type Handler interface {
	// ProcessKey handles a raw trigger. repeatCode is the hexadecimal
	// repeat ordinal, "00" for an initial press.
	ProcessKey(key, repeatCode string, window time.Duration)
	// Press emits an initial press for key and starts auto-repeat
	// while held reports the input as held. It reports false if key
	// already has a repeat session.
	Press(key string, held Holder) bool
	// Release ends the repeat session of key, if any.
	Release(key string)
}

// Holder reports whether a physical input is still held.
type Holder interface {
	Held() bool
}

// HeldFunc adapts a function to a Holder.
type HeldFunc func() bool

func (f HeldFunc) Held() bool {
	return f()
}

// Default timings.
const (
	DebounceWindow = 150 * time.Millisecond
	RepeatInterval = 80 * time.Millisecond
	RepeatWindow   = 100 * time.Millisecond
)

type Options struct {
	Remap Remap
	Sink  notify.Sink
	Clock clock.Clock
	// Debounce is the window used when ProcessKey is given none.
	Debounce time.Duration
	// RepeatInterval is the delay between auto-repeat ticks.
	RepeatInterval time.Duration
	// RepeatWindow is the debounce window of presses and repeat ticks
	// emitted by Press.
	RepeatWindow time.Duration
	Debug        bool
}

type Engine struct {
	press func(key string)
	opts  Options

	mu       sync.Mutex
	closed   bool
	debounce map[string]*debounceEntry
	sessions map[string]*session
}

type debounceEntry struct {
	maxOrdinal uint64
	timer      clock.Timer
	// gen identifies the live timer; stale callbacks compare it.
	gen uint64
}

type session struct {
	key     string
	counter int
	held    Holder
	timer   clock.Timer
}

// New creates an engine delivering resolved presses to press.
func New(press func(key string), opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DebounceWindow
	}
	if opts.RepeatInterval <= 0 {
		opts.RepeatInterval = RepeatInterval
	}
	if opts.RepeatWindow <= 0 {
		opts.RepeatWindow = RepeatWindow
	}
	return &Engine{
		press:    press,
		opts:     opts,
		debounce: make(map[string]*debounceEntry),
		sessions: make(map[string]*session),
	}
}

func (e *Engine) ProcessKey(key, repeatCode string, window time.Duration) {
	mapped := e.opts.Remap.Lookup(key)
	ordinal, err := strconv.ParseUint(repeatCode, 16, 64)
	if err != nil {
		notify.Report(e.opts.Sink, "error process_key: %v", err)
		return
	}
	if window <= 0 {
		window = e.opts.Debounce
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	d, ok := e.debounce[mapped]
	if !ok {
		d = new(debounceEntry)
		e.debounce[mapped] = d
	}
	if ordinal == 0 {
		d.maxOrdinal = 0
	} else {
		d.maxOrdinal = max(d.maxOrdinal, ordinal)
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = e.opts.Clock.AfterFunc(window, func() {
		e.fire(mapped, d, gen)
	})
	if e.opts.Debug {
		log.Printf("debug: input: %s -> %s ordinal %d", key, mapped, ordinal)
	}
}

func (e *Engine) fire(key string, d *debounceEntry, gen uint64) {
	e.mu.Lock()
	live := !e.closed && d.gen == gen && e.debounce[key] == d
	if live {
		d.timer = nil
	}
	e.mu.Unlock()
	if live {
		e.press(key)
	}
}

// MaxOrdinal returns the highest repeat ordinal seen for the canonical
// key since its last initial press.
func (e *Engine) MaxOrdinal(key string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.debounce[key]; ok {
		return d.maxOrdinal
	}
	return 0
}

// Close cancels all pending presses and repeat sessions. Triggers after
// Close are ignored.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for k, d := range e.debounce {
		if d.timer != nil {
			d.timer.Stop()
		}
		delete(e.debounce, k)
	}
	for k, s := range e.sessions {
		if s.timer != nil {
			s.timer.Stop()
		}
		delete(e.sessions, k)
	}
}
