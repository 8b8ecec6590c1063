// Package buttons implements the push-button input source: active-low
// GPIO pins with pull-ups, one logical key per pin.
package buttons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"olipi.org/config"
	"olipi.org/input"
	"olipi.org/notify"
	"periph.io/x/conn/v3/gpio"
)

type Button struct {
	Key string
	Pin gpio.PinIn
}

// Edge is a debounced level change of a button.
type Edge struct {
	Button  Button
	Pressed bool
}

// DefaultBounce is the settle time of a button contact.
const DefaultBounce = 10 * time.Millisecond

// idleTimeout bounds edge waits so watchers observe cancellation.
const idleTimeout = 100 * time.Millisecond

// FromConfig returns the buttons of the buttons section, whose entries
// read KEY_NAME = <pin>. Pins that cannot be resolved are reported and
// skipped.
func FromConfig(cfg *config.Config, lookup func(name string) gpio.PinIn, sink notify.Sink) []Button {
	var btns []Button
	for _, k := range cfg.Keys("buttons") {
		key := strings.ToUpper(k)
		if !strings.HasPrefix(key, "KEY_") {
			continue
		}
		n, err := cfg.Int("buttons", k, -1)
		if err != nil || n < 0 {
			notify.Report(sink, "error gpio pin: %s: invalid pin %q", key, cfg.String("buttons", k, ""))
			continue
		}
		pin := lookup(fmt.Sprint(n))
		if pin == nil {
			notify.Report(sink, "error gpio pin: %s: no GPIO%d", key, n)
			continue
		}
		btns = append(btns, Button{Key: key, Pin: pin})
	}
	return btns
}

// Open configures the button pins and starts a watcher per pin, tracked
// by wg. The returned channel delivers edges until ctx is done. Pins that
// fail to configure are left out and their errors joined; the channel is
// valid even then.
func Open(ctx context.Context, wg *sync.WaitGroup, btns []Button, bounce time.Duration) (<-chan Edge, error) {
	var errs []error
	var active []Button
	for _, b := range btns {
		if err := b.Pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
			errs = append(errs, fmt.Errorf("buttons: %s: %w", b.Key, err))
			continue
		}
		active = append(active, b)
	}
	ch := make(chan Edge, len(active))
	for _, b := range active {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watch(ctx, b, bounce, ch)
		}()
	}
	return ch, errors.Join(errs...)
}

func watch(ctx context.Context, b Button, bounce time.Duration, ch chan<- Edge) {
	pressed := b.Pin.Read() == gpio.Low
	newPressed := pressed
	for ctx.Err() == nil {
		// Wait for edges, except if we're waiting for the contact
		// to settle.
		timeout := idleTimeout
		if newPressed != pressed {
			timeout = bounce
		}
		if b.Pin.WaitForEdge(timeout) {
			newPressed = b.Pin.Read() == gpio.Low
			continue
		}
		if newPressed == pressed {
			continue
		}
		pressed = newPressed
		select {
		case ch <- Edge{Button: b, Pressed: pressed}:
		case <-ctx.Done():
			return
		}
	}
}

// pinHeld reports whether an active-low button is still pressed.
type pinHeld struct {
	pin gpio.PinIn
}

func (p pinHeld) Held() bool {
	return p.pin.Read() == gpio.Low
}

// Dispatch forwards one edge to h: a press starts the key's repeat
// session, a release ends it.
func Dispatch(h input.Handler, e Edge) {
	if e.Pressed {
		h.Press(e.Button.Key, pinHeld{e.Button.Pin})
		return
	}
	h.Release(e.Button.Key)
}

// Serve dispatches edges until ctx is done or edges is closed.
func Serve(ctx context.Context, h input.Handler, edges <-chan Edge) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-edges:
			if !ok {
				return
			}
			Dispatch(h, e)
		}
	}
}
