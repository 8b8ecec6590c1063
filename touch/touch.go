// Package touch turns a polled capacitive touch controller into key
// presses, with optional swipe and rotation gestures on a ring of five
// pads.
package touch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"olipi.org/clock"
	"olipi.org/gesture"
	"olipi.org/input"
	"olipi.org/notify"
)

// NumPads is the number of electrodes on the controller, including the
// proximity channel.
const NumPads = 13

// buttonPads is the number of electrodes usable as plain buttons; the
// last electrode is the proximity channel.
const buttonPads = 12

// Sensor is the polling contract of a touch controller.
type Sensor interface {
	// TouchStatusChanged reports whether an update may yield new
	// touches or releases.
	TouchStatusChanged() bool
	// UpdateAll refreshes the controller state.
	UpdateAll() error
	IsNewTouch(pad int) bool
	IsNewRelease(pad int) bool
	// Touched reports whether pad is currently touched.
	Touched(pad int) bool
}

// Device is a Sensor that the listener initialises and configures.
type Device interface {
	Sensor
	Begin() error
	SetThresholds(touch, release uint8) error
	SetPadTouchThreshold(pad int, v uint8) error
	SetPadReleaseThreshold(pad int, v uint8) error
}

// Diagnostics is implemented by sensors that expose raw electrode data.
type Diagnostics interface {
	Baseline(pad int) uint16
	Filtered(pad int) uint16
}

// Default timings.
const (
	PollInterval = 100 * time.Millisecond
	ErrorBackoff = 100 * time.Millisecond
	SettleDelay  = 500 * time.Millisecond
	// KeyWindow is the debounce window of gesture keys.
	KeyWindow = 100 * time.Millisecond
)

type Listener struct {
	Handler input.Handler
	Sink    notify.Sink
	Pads    map[int]Pad
	// TouchThreshold and ReleaseThreshold apply to pads without
	// overrides.
	TouchThreshold   uint8
	ReleaseThreshold uint8
	// Gestures routes the first five pads through gesture recognition.
	Gestures bool
	// EmitGestures delivers recognised gestures as keys named after
	// the gesture, such as SWIPE_RIGHT.
	EmitGestures   bool
	GestureTimeout time.Duration
	PollInterval   time.Duration
	// Settle is the delay before and after initialising the sensor.
	Settle time.Duration
	Clock  clock.Clock
	Debug  bool

	recognizer *gesture.Recognizer
}

// padHeld reports whether one electrode is still touched.
type padHeld struct {
	sensor Sensor
	pad    int
}

func (p padHeld) Held() bool {
	return p.sensor.Touched(p.pad)
}

func (l *Listener) key(pad int) string {
	if p, ok := l.Pads[pad]; ok {
		return p.Action
	}
	return fmt.Sprintf("PAD%d", pad)
}

// Run initialises dev and polls it until ctx is done. An initialisation
// failure is reported and returned; poll errors are reported and the
// loop continues after a back-off.
func (l *Listener) Run(ctx context.Context, dev Device) error {
	if !sleep(ctx, l.Settle) {
		return nil
	}
	if err := l.configure(dev); err != nil {
		notify.Report(l.Sink, "error: MPR121 init failed")
		return err
	}
	if !sleep(ctx, l.Settle) {
		return nil
	}
	l.setup(dev)
	defer l.recognizer.Reset()
	interval := l.PollInterval
	if interval <= 0 {
		interval = PollInterval
	}
	for {
		if err := l.poll(dev); err != nil {
			log.Printf("touch: %v", err)
			notify.Report(l.Sink, "error mpr121 listener")
			if !sleep(ctx, ErrorBackoff) {
				return nil
			}
		}
		if !sleep(ctx, interval) {
			return nil
		}
	}
}

func (l *Listener) configure(dev Device) error {
	if err := dev.Begin(); err != nil {
		return err
	}
	if err := dev.SetThresholds(l.TouchThreshold, l.ReleaseThreshold); err != nil {
		return err
	}
	for i := 0; i < NumPads; i++ {
		p := l.Pads[i]
		if p.TouchThreshold != nil {
			if err := dev.SetPadTouchThreshold(i, *p.TouchThreshold); err != nil {
				return err
			}
		}
		if p.ReleaseThreshold != nil {
			if err := dev.SetPadReleaseThreshold(i, *p.ReleaseThreshold); err != nil {
				return err
			}
		}
	}
	log.Printf("touch: listener started, touch=%d release=%d gestures=%v", l.TouchThreshold, l.ReleaseThreshold, l.Gestures)
	if l.Debug {
		l.dump(dev)
	}
	return nil
}

func (l *Listener) dump(dev Device) {
	diag, ok := dev.(Diagnostics)
	if !ok {
		return
	}
	if err := dev.UpdateAll(); err != nil {
		log.Printf("debug: touch: %v", err)
		return
	}
	for i := 0; i < NumPads; i++ {
		tth, rth := l.TouchThreshold, l.ReleaseThreshold
		if p := l.Pads[i]; p.TouchThreshold != nil {
			tth = *p.TouchThreshold
		}
		if p := l.Pads[i]; p.ReleaseThreshold != nil {
			rth = *p.ReleaseThreshold
		}
		base, filt := diag.Baseline(i), diag.Filtered(i)
		log.Printf("debug: touch: pad%d: %-15s touch=%3d rel=%3d base=%4d filt=%4d diff=%+5d",
			i, l.key(i), tth, rth, base, filt, int(filt)-int(base))
	}
}

// setup prepares the gesture recognizer for sensor s.
func (l *Listener) setup(s Sensor) {
	l.recognizer = &gesture.Recognizer{
		Clock:   l.Clock,
		Timeout: l.GestureTimeout,
		OnGesture: func(g gesture.Gesture) {
			if l.Debug {
				log.Printf("debug: touch: gesture %s", g)
			}
			if l.EmitGestures {
				l.Handler.ProcessKey(strings.ToUpper(g.String()), "00", KeyWindow)
			}
		},
		OnSingle: func(p gesture.Pad) {
			key := l.key(int(p))
			if l.Debug {
				log.Printf("debug: touch: single key %s", key)
			}
			l.Handler.Press(key, padHeld{s, int(p)})
		},
	}
}

// poll runs one iteration of the polling loop.
func (l *Listener) poll(s Sensor) error {
	if !s.TouchStatusChanged() {
		return nil
	}
	if err := s.UpdateAll(); err != nil {
		return err
	}
	first := 0
	if l.Gestures {
		l.pollRing(s)
		first = int(gesture.NumPads)
	}
	for i := first; i < buttonPads; i++ {
		key := l.key(i)
		switch {
		case s.IsNewTouch(i):
			if l.Debug {
				log.Printf("debug: touch: pad%d -> %s touched", i, key)
			}
			l.Handler.Press(key, padHeld{s, i})
		case s.IsNewRelease(i):
			if l.Debug {
				log.Printf("debug: touch: pad%d -> %s released", i, key)
			}
			l.Handler.Release(key)
		}
	}
	return nil
}

func (l *Listener) pollRing(s Sensor) {
	var touched, released []gesture.Pad
	for p := gesture.Up; p < gesture.NumPads; p++ {
		if s.IsNewTouch(int(p)) {
			touched = append(touched, p)
		}
		if s.IsNewRelease(int(p)) {
			released = append(released, p)
		}
	}
	for _, p := range released {
		l.Handler.Release(l.key(int(p)))
	}
	switch {
	case len(touched) > 0:
		l.recognizer.Touch(touched...)
	case len(released) > 0:
		l.recognizer.Release()
	}
}

// sleep waits for d or until ctx is done, reporting false in the latter
// case.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
