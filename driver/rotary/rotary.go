// Package rotary implements the quadrature rotary encoder input source.
// Clockwise detents emit KEY_UP and counterclockwise detents KEY_DOWN.
package rotary

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"olipi.org/config"
	"olipi.org/input"
	"olipi.org/notify"
	"periph.io/x/conn/v3/gpio"
)

// Mode selects how the channels are observed.
type Mode string

const (
	// ModeEdge decodes edge interrupts with EdgeDecoder.
	ModeEdge Mode = "edge"
	// ModePoll samples both channels with GrayDecoder.
	ModePoll Mode = "poll"
)

type Config struct {
	PinA, PinB int
	Mode       Mode
	Options    Options
	// Bounce suppresses further edges on a channel for this long after
	// an accepted edge.
	Bounce time.Duration
	// PollInterval is the sampling period in poll mode.
	PollInterval time.Duration
}

// idleTimeout bounds edge waits so watchers observe cancellation.
const idleTimeout = 100 * time.Millisecond

// ParseConfig reads the rotary section. Malformed optional values are
// reported and replaced by their defaults; missing pins are an error.
func ParseConfig(cfg *config.Config, sink notify.Sink) (Config, error) {
	var c Config
	var err error
	if c.PinA, err = cfg.Int("rotary", "pin_a", -1); err != nil || c.PinA < 0 {
		return Config{}, fmt.Errorf("rotary: invalid pin_a %q", cfg.String("rotary", "pin_a", ""))
	}
	if c.PinB, err = cfg.Int("rotary", "pin_b", -1); err != nil || c.PinB < 0 {
		return Config{}, fmt.Errorf("rotary: invalid pin_b %q", cfg.String("rotary", "pin_b", ""))
	}
	report := func(err error) {
		if err != nil {
			log.Printf("rotary: %v", err)
		}
	}
	c.Options.Divider, err = cfg.Int("rotary", "rotary_divider", 2)
	report(err)
	c.Options.Invert, err = cfg.Bool("rotary", "rotary_invert", false)
	report(err)
	tick, err := cfg.Float("rotary", "rotary_min_tick_ms", 2)
	report(err)
	c.Options.MinTick = time.Duration(tick * float64(time.Millisecond))
	poll, err := cfg.Float("rotary", "rotary_min_poll_ms", 1)
	report(err)
	c.PollInterval = time.Duration(poll * float64(time.Millisecond))
	bounce, err := cfg.Int("rotary", "rotary_bouncetime_ms", 10)
	if err != nil {
		notify.Report(sink, "error: rotary_bouncetime_ms must be an integer, using 10ms")
	}
	c.Bounce = time.Duration(bounce) * time.Millisecond
	switch m := Mode(cfg.String("rotary", "mode", string(ModeEdge))); m {
	case ModeEdge, ModePoll:
		c.Mode = m
	default:
		return Config{}, fmt.Errorf("rotary: unknown mode %q", m)
	}
	return c, nil
}

// Run configures the encoder pins and decodes them until ctx is done.
func Run(ctx context.Context, h input.Handler, a, b gpio.PinIn, c Config) error {
	edge := gpio.BothEdges
	if c.Mode == ModePoll {
		edge = gpio.NoEdge
	}
	for _, p := range []gpio.PinIn{a, b} {
		if err := p.In(gpio.PullUp, edge); err != nil {
			return fmt.Errorf("rotary: %s: %w", p, err)
		}
	}
	log.Printf("rotary: start pins A=%s B=%s mode=%s divider=%d invert=%v", a, b, c.Mode, c.Options.Divider, c.Options.Invert)
	if c.Mode == ModePoll {
		Poll(ctx, a, b, NewGrayDecoder(h, a.Read(), b.Read(), c.Options), c.PollInterval)
		return nil
	}
	WatchEdges(ctx, a, b, NewEdgeDecoder(h, a.Read(), c.Options), c.Bounce)
	return nil
}

// WatchEdges feeds d from edges on a and b until ctx is done. The pins
// must already be configured for both edges.
func WatchEdges(ctx context.Context, a, b gpio.PinIn, d *EdgeDecoder, bounce time.Duration) {
	var wg sync.WaitGroup
	for _, p := range []gpio.PinIn{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last time.Time
			for ctx.Err() == nil {
				if !p.WaitForEdge(idleTimeout) {
					continue
				}
				now := time.Now()
				if now.Sub(last) < bounce {
					continue
				}
				last = now
				d.Edge(a.Read(), b.Read())
			}
		}()
	}
	wg.Wait()
}

// Poll samples a and b into d every interval until ctx is done.
func Poll(ctx context.Context, a, b gpio.PinIn, d *GrayDecoder, interval time.Duration) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.Sample(a.Read(), b.Read())
		}
	}
}
