package gesture

import (
	"sync"
	"time"

	"olipi.org/clock"
)

// DefaultTimeout is how long the recognizer waits for further touches
// before treating a lone touch as a plain key press.
const DefaultTimeout = 300 * time.Millisecond

// Recognizer accumulates ring touches into a history and classifies it.
// A history that does not form a gesture before the timeout resolves to
// OnSingle if it holds exactly one pad and is dropped otherwise.
type Recognizer struct {
	Clock   clock.Clock
	Timeout time.Duration
	// OnGesture is called for every recognised gesture.
	OnGesture func(Gesture)
	// OnSingle is called when a lone touch resolves to a key press.
	OnSingle func(Pad)

	mu      sync.Mutex
	history []Pad
	matched bool
	timer   clock.Timer
	gen     uint64
}

// Touch records newly touched pads and returns the gesture they
// complete, if any.
func (r *Recognizer) Touch(pads ...Pad) (Gesture, bool) {
	r.mu.Lock()
	for _, p := range pads {
		if n := len(r.history); n == 0 || r.history[n-1] != p {
			r.history = append(r.history, p)
		}
	}
	r.cancel()
	g, ok := Detect(r.history)
	r.matched = ok
	if ok {
		r.history = r.history[:0]
	} else {
		r.arm()
	}
	r.mu.Unlock()
	if ok && r.OnGesture != nil {
		r.OnGesture(g)
	}
	return g, ok
}

// Release ends the wait early when a lone touch is released before the
// timeout.
func (r *Recognizer) Release() {
	r.mu.Lock()
	if len(r.history) != 1 || r.matched {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.resolve()
}

// History returns a copy of the pending touch history.
func (r *Recognizer) History() []Pad {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Pad(nil), r.history...)
}

// Reset drops the history and any pending timeout.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel()
	r.history = r.history[:0]
	r.matched = false
}

func (r *Recognizer) arm() {
	c := r.Clock
	if c == nil {
		c = clock.Real
	}
	d := r.Timeout
	if d <= 0 {
		d = DefaultTimeout
	}
	r.gen++
	gen := r.gen
	r.timer = c.AfterFunc(d, func() {
		r.mu.Lock()
		if r.gen != gen {
			r.mu.Unlock()
			return
		}
		r.timer = nil
		r.resolve()
	})
}

func (r *Recognizer) cancel() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
}

// resolve clears the history and dispatches a lone touch. It is called
// with r.mu held and releases it.
func (r *Recognizer) resolve() {
	single := len(r.history) == 1
	var pad Pad
	if single {
		pad = r.history[0]
	}
	r.history = r.history[:0]
	r.mu.Unlock()
	if single && r.OnSingle != nil {
		r.OnSingle(pad)
	}
}
