// Package panel starts the input sources enabled in the configuration and
// merges them into one stream of logical key presses.
package panel

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"olipi.org/clock"
	"olipi.org/config"
	"olipi.org/driver/buttons"
	"olipi.org/driver/lirc"
	"olipi.org/driver/rotary"
	"olipi.org/gesture"
	"olipi.org/input"
	"olipi.org/notify"
	"olipi.org/touch"
	"periph.io/x/conn/v3/gpio"
)

// TouchDevice is an opened capacitive touch controller.
type TouchDevice interface {
	touch.Device
	io.Closer
}

// Hardware opens the peripherals behind the input sources. Nil fields
// mark the corresponding capability as unavailable.
type Hardware struct {
	// Init prepares the host drivers before any pin is used.
	Init func() error
	// Pin returns the GPIO named name, or nil.
	Pin func(name string) gpio.PinIn
	// OpenTouch opens the touch controller at addr on the I2C bus.
	OpenTouch func(bus string, addr uint16, irq gpio.PinIn) (TouchDevice, error)
	// OpenSerial opens the serial key console.
	OpenSerial func(dev string, baud int) (io.ReadCloser, error)
	// IRCommand overrides the lirc.command setting.
	IRCommand []string
	Clock     clock.Clock
}

// Panel is a running set of input sources.
type Panel struct {
	engine *input.Engine
	sink   notify.Sink
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start builds the key engine and launches every enabled input source in
// its own goroutine. It returns immediately; failures of a source are
// reported to sink and never affect the other sources.
func Start(cfg *config.Config, press func(key string), sink notify.Sink, hw Hardware) *Panel {
	debug := boolSetting(cfg, "settings", "debug", false)
	ctx, cancel := context.WithCancel(context.Background())
	p := &Panel{
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
		engine: input.New(press, input.Options{
			Remap:          input.RemapFromConfig(cfg),
			Sink:           sink,
			Clock:          hw.Clock,
			Debounce:       msSetting(cfg, "settings", "debounce_ms", input.DebounceWindow),
			RepeatInterval: msSetting(cfg, "settings", "repeat_interval_ms", input.RepeatInterval),
			RepeatWindow:   msSetting(cfg, "settings", "repeat_window_ms", input.RepeatWindow),
			Debug:          debug,
		}),
	}
	use := func(source string) bool {
		return boolSetting(cfg, "input", "use_"+source, false)
	}
	useRotary := use("rotary") && cfg.Has("rotary")
	useGPIO := use("buttons") || useRotary
	if (useGPIO || use("mpr121")) && hw.Init != nil {
		if err := hw.Init(); err != nil {
			log.Printf("panel: host init: %v", err)
			hw.Pin = nil
		}
	}
	if useGPIO && hw.Pin == nil {
		notify.Report(sink, "error: gpio missing")
	}
	if use("lirc") {
		p.startLIRC(cfg, hw, debug)
	}
	if use("serial") {
		p.startSerial(cfg, hw, debug)
	}
	if use("mpr121") {
		p.startTouch(cfg, hw, debug)
	}
	if use("buttons") {
		p.startButtons(cfg, hw)
	}
	if useRotary {
		p.startRotary(cfg, hw)
	}
	return p
}

// Close stops every input source and pending key timer, and waits for
// the sources to return.
func (p *Panel) Close() {
	p.cancel()
	p.wg.Wait()
	p.engine.Close()
}

// spawn runs f in a goroutine. A panic in f is reported instead of
// crashing the process.
func (p *Panel) spawn(name string, f func(ctx context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				notify.Report(p.sink, "error %s: %v", name, err)
			}
		}()
		if err := f(p.ctx); err != nil {
			log.Printf("panel: %s: %v", name, err)
		}
	}()
}

func (p *Panel) startLIRC(cfg *config.Config, hw Hardware, debug bool) {
	cmd := hw.IRCommand
	if len(cmd) == 0 {
		cmd = strings.Fields(cfg.String("lirc", "command", "irw"))
	}
	l := &lirc.Listener{Handler: p.engine, Sink: p.sink, Command: cmd, Debug: debug}
	p.spawn("lirc", l.Run)
}

func (p *Panel) startSerial(cfg *config.Config, hw Hardware, debug bool) {
	if hw.OpenSerial == nil {
		notify.Report(p.sink, "error: serial missing")
		return
	}
	dev := cfg.String("serial", "device", "")
	baud, err := cfg.Int("serial", "baud", lirc.DefaultBaud)
	if err != nil {
		log.Printf("panel: %v", err)
	}
	p.spawn("serial", func(ctx context.Context) error {
		port, err := hw.OpenSerial(dev, baud)
		if err != nil {
			notify.Report(p.sink, "error serial: %v", err)
			return err
		}
		defer port.Close()
		l := &lirc.Listener{Handler: p.engine, Sink: p.sink, Debug: debug}
		return l.Scan(ctx, port)
	})
}

func (p *Panel) startTouch(cfg *config.Config, hw Hardware, debug bool) {
	if hw.OpenTouch == nil {
		notify.Report(p.sink, "error: MPR121 init failed")
		return
	}
	addr, err := cfg.Int("mpr121", "i2c_address", 0x5a)
	if err != nil {
		log.Printf("panel: %v", err)
	}
	bus := cfg.String("mpr121", "i2c_bus", "")
	var irq gpio.PinIn
	if name := cfg.String("mpr121", "int_pin", ""); name != "" && hw.Pin != nil {
		if irq = hw.Pin(name); irq == nil {
			log.Printf("panel: mpr121: no interrupt pin %s, polling", name)
		}
	}
	l := &touch.Listener{
		Handler:          p.engine,
		Sink:             p.sink,
		Pads:             touch.ParsePads(cfg, p.sink),
		TouchThreshold:   threshold(cfg, "touch_threshold", 20),
		ReleaseThreshold: threshold(cfg, "release_threshold", 15),
		Gestures:         boolSetting(cfg, "mpr121", "use_gesture", false),
		EmitGestures:     boolSetting(cfg, "mpr121", "emit_gestures", true),
		GestureTimeout:   msSetting(cfg, "mpr121", "gesture_timeout_ms", gesture.DefaultTimeout),
		PollInterval:     msSetting(cfg, "mpr121", "poll_ms", touch.PollInterval),
		Settle:           touch.SettleDelay,
		Clock:            hw.Clock,
		Debug:            debug,
	}
	p.spawn("mpr121 listener", func(ctx context.Context) error {
		dev, err := hw.OpenTouch(bus, uint16(addr), irq)
		if err != nil {
			notify.Report(p.sink, "error: MPR121 init failed")
			return err
		}
		defer dev.Close()
		return l.Run(ctx, dev)
	})
}

func (p *Panel) startButtons(cfg *config.Config, hw Hardware) {
	bounce, err := cfg.Int("buttons", "buttons_bouncetime_ms", 10)
	if err != nil {
		log.Printf("panel: buttons_bouncetime_ms must be an integer, using 10ms")
	}
	if hw.Pin == nil {
		return
	}
	btns := buttons.FromConfig(cfg, hw.Pin, p.sink)
	edges, err := buttons.Open(p.ctx, &p.wg, btns, time.Duration(bounce)*time.Millisecond)
	if err != nil {
		notify.Report(p.sink, "error gpio pin: %v", err)
	}
	p.spawn("buttons", func(ctx context.Context) error {
		buttons.Serve(ctx, p.engine, edges)
		return nil
	})
}

func (p *Panel) startRotary(cfg *config.Config, hw Hardware) {
	if hw.Pin == nil {
		return
	}
	c, err := rotary.ParseConfig(cfg, p.sink)
	if err != nil {
		notify.Report(p.sink, "error rotary: %v", err)
		return
	}
	c.Options.Clock = hw.Clock
	a, b := hw.Pin(fmt.Sprint(c.PinA)), hw.Pin(fmt.Sprint(c.PinB))
	if a == nil || b == nil {
		notify.Report(p.sink, "error rotary: no GPIO%d or GPIO%d", c.PinA, c.PinB)
		return
	}
	p.spawn("rotary", func(ctx context.Context) error {
		if err := rotary.Run(ctx, p.engine, a, b, c); err != nil {
			notify.Report(p.sink, "error rotary: %v", err)
			return err
		}
		return nil
	})
}

func boolSetting(cfg *config.Config, section, key string, fallback bool) bool {
	v, err := cfg.Bool(section, key, fallback)
	if err != nil {
		log.Printf("panel: %v", err)
	}
	return v
}

// msSetting reads a millisecond duration.
func msSetting(cfg *config.Config, section, key string, fallback time.Duration) time.Duration {
	v, err := cfg.Int(section, key, int(fallback/time.Millisecond))
	if err != nil {
		log.Printf("panel: %v", err)
	}
	return time.Duration(v) * time.Millisecond
}

func threshold(cfg *config.Config, key string, fallback uint8) uint8 {
	v, err := cfg.Int("mpr121", key, int(fallback))
	if err == nil && (v < 0 || v > 255) {
		err = fmt.Errorf("mpr121.%s: %d out of range", key, v)
	}
	if err != nil {
		log.Printf("panel: %v", err)
		return fallback
	}
	return uint8(v)
}
