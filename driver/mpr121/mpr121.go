// Package mpr121 implements a periph.io driver for the MPR121 12-channel
// (13 with proximity) capacitive touch controller.
//
// Datasheet: https://www.nxp.com/docs/en/data-sheet/MPR121.pdf
package mpr121

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// NumElectrodes counts the twelve touch electrodes plus the proximity
// channel.
const NumElectrodes = 13

const DefaultAddress = 0x5a

const (
	_TS1    = 0x00
	_TS2    = 0x01
	_E0FDL  = 0x04
	_E0BV   = 0x1e
	_MHDR   = 0x2b
	_E0TTH  = 0x41
	_E0RTH  = 0x42
	_DTR    = 0x5b
	_AFE1   = 0x5c
	_AFE2   = 0x5d
	_ECR    = 0x5e
	_CTL0   = 0x73
	_ACCR0  = 0x7b
	_SRST   = 0x80
	_resetV = 0x63

	// AFE2 reads back this value after a soft reset.
	_AFE2Reset = 0x24
	// Over-current flag in TS2.
	_OVCF = 0x80
)

var (
	// ErrNotAcknowledged is returned by Begin when the controller does not
	// respond on the bus.
	ErrNotAcknowledged = errors.New("mpr121: device not acknowledging")
	ErrReadback        = errors.New("mpr121: register readback failed")
	ErrOvercurrent     = errors.New("mpr121: over-current flag set")
	ErrNotInitialized  = errors.New("mpr121: not initialized")
)

type register struct {
	addr, val byte
}

// defaults are the filter and AFE settings written by Begin, in order.
var defaults = []register{
	{_MHDR, 0x01}, {0x2c, 0x01}, {0x2d, 0x10}, {0x2e, 0x20}, // rising
	{0x2f, 0x01}, {0x30, 0x01}, {0x31, 0x10}, {0x32, 0x20}, // falling
	{0x33, 0x01}, {0x34, 0x10}, {0x35, 0xff}, // touched
	{0x36, 0x0f}, {0x37, 0x0f}, {0x38, 0x00}, {0x39, 0x00}, // proximity rising
	{0x3a, 0x01}, {0x3b, 0x01}, {0x3c, 0xff}, {0x3d, 0xff}, // proximity falling
	{0x3e, 0x00}, {0x3f, 0x00}, {0x40, 0x00}, // proximity touched
	{_DTR, 0x11},
	{_AFE1, 0xff},
	{_AFE2, 0x30},
	{_ACCR0, 0x00}, {0x7c, 0x00}, {0x7d, 0x00}, {0x7e, 0x00}, {0x7f, 0x00},
}

// Run mode with all 12 electrodes and baseline tracking enabled.
const defaultECR = 0xcc

const (
	DefaultTouchThreshold   = 40
	DefaultReleaseThreshold = 20
)

type Device struct {
	dev    *i2c.Dev
	irq    gpio.PinIn
	closer i2c.BusCloser

	mu       sync.Mutex
	inited   bool
	running  bool
	ecr      byte
	touch    uint16
	last     uint16
	filtered [NumElectrodes]uint16
	baseline [NumElectrodes]uint16
}

// New returns a device at addr on bus. irq is the optional active-low
// interrupt line; without it every poll reads the touch status.
func New(bus i2c.Bus, addr uint16, irq gpio.PinIn) (*Device, error) {
	if addr < 0x5a || addr > 0x5d {
		return nil, fmt.Errorf("mpr121: invalid I2C address %#x", addr)
	}
	return &Device{
		dev: &i2c.Dev{Bus: bus, Addr: addr},
		irq: irq,
	}, nil
}

// Open opens the named I2C bus ("" for the first available) and
// returns the device on it. Close releases the bus.
func Open(busName string, addr uint16, irq gpio.PinIn) (*Device, error) {
	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("mpr121: %w", err)
	}
	d, err := New(b, addr, irq)
	if err != nil {
		b.Close()
		return nil, err
	}
	d.closer = b
	return d, nil
}

func (d *Device) Close() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}

// Begin soft-resets the controller, checks it responds as an MPR121
// and applies the default configuration.
func (d *Device) Begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.irq != nil {
		if err := d.irq.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return fmt.Errorf("mpr121: irq: %w", err)
		}
	}
	d.running = false
	if err := d.write(_SRST, _resetV); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAcknowledged, err)
	}
	afe2, err := d.read(_AFE2)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAcknowledged, err)
	}
	if afe2 != _AFE2Reset {
		return fmt.Errorf("%w: AFE2 = %#x", ErrReadback, afe2)
	}
	ts2, err := d.read(_TS2)
	if err != nil {
		return fmt.Errorf("mpr121: %w", err)
	}
	if ts2&_OVCF != 0 {
		return ErrOvercurrent
	}
	for _, r := range defaults {
		if err := d.setRegister(r.addr, r.val); err != nil {
			return fmt.Errorf("mpr121: configure: %w", err)
		}
	}
	if err := d.setRegister(_ECR, defaultECR); err != nil {
		return fmt.Errorf("mpr121: configure: %w", err)
	}
	d.inited = true
	return d.setThresholds(-1, DefaultTouchThreshold, DefaultReleaseThreshold)
}

func (d *Device) write(reg, val byte) error {
	return d.dev.Tx([]byte{reg, val}, nil)
}

func (d *Device) read(reg byte) (byte, error) {
	var buf [1]byte
	if err := d.dev.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// setRegister writes a register, stopping the controller around writes
// that are only allowed in stop mode.
func (d *Device) setRegister(reg, val byte) error {
	if reg == _ECR {
		d.running = val&0x3f != 0
		return d.write(reg, val)
	}
	if reg >= _CTL0 || !d.running {
		return d.write(reg, val)
	}
	return d.stopped(func() error {
		return d.write(reg, val)
	})
}

// stopped runs f with the electrodes disabled and restores the previous
// run mode afterwards.
func (d *Device) stopped(f func() error) error {
	if !d.running {
		return f()
	}
	ecr, err := d.read(_ECR)
	if err != nil {
		return err
	}
	d.ecr = ecr
	if err := d.setRegister(_ECR, ecr&0xc0); err != nil {
		return err
	}
	ferr := f()
	if err := d.setRegister(_ECR, d.ecr); ferr == nil {
		ferr = err
	}
	return ferr
}

// SetThresholds sets the touch and release thresholds of every
// electrode.
func (d *Device) SetThresholds(touch, release uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setThresholds(-1, touch, release)
}

// SetPadTouchThreshold overrides the touch threshold of one electrode.
func (d *Device) SetPadTouchThreshold(pad int, v uint8) error {
	return d.setPadRegister(pad, _E0TTH, v)
}

// SetPadReleaseThreshold overrides the release threshold of one
// electrode.
func (d *Device) SetPadReleaseThreshold(pad int, v uint8) error {
	return d.setPadRegister(pad, _E0RTH, v)
}

func (d *Device) setPadRegister(pad int, base byte, v uint8) error {
	if pad < 0 || pad >= NumElectrodes {
		return fmt.Errorf("mpr121: invalid electrode %d", pad)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return ErrNotInitialized
	}
	return d.setRegister(base+byte(pad)<<1, v)
}

// setThresholds writes both thresholds of pad, or of all electrodes if
// pad is negative, in a single stop/run cycle.
func (d *Device) setThresholds(pad int, touch, release uint8) error {
	if !d.inited {
		return ErrNotInitialized
	}
	first, last := 0, NumElectrodes-1
	if pad >= 0 {
		first, last = pad, pad
	}
	return d.stopped(func() error {
		for i := first; i <= last; i++ {
			if err := d.write(_E0TTH+byte(i)<<1, touch); err != nil {
				return err
			}
			if err := d.write(_E0RTH+byte(i)<<1, release); err != nil {
				return err
			}
		}
		return nil
	})
}

// TouchStatusChanged reports whether the interrupt line signals new
// touch status. Without an interrupt line it always reports true.
func (d *Device) TouchStatusChanged() bool {
	if d.irq == nil {
		return true
	}
	return d.irq.Read() == gpio.Low
}

// UpdateAll reads the touch status, baseline and filtered data of all
// electrodes. Reading the status clears the interrupt.
func (d *Device) UpdateAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return ErrNotInitialized
	}
	var ts [2]byte
	if err := d.dev.Tx([]byte{_TS1}, ts[:]); err != nil {
		return fmt.Errorf("mpr121: touch status: %w", err)
	}
	if ts[1]&_OVCF != 0 {
		return ErrOvercurrent
	}
	d.last = d.touch
	d.touch = (uint16(ts[0]) | uint16(ts[1])<<8) & (1<<NumElectrodes - 1)

	var bv [NumElectrodes]byte
	if err := d.dev.Tx([]byte{_E0BV}, bv[:]); err != nil {
		return fmt.Errorf("mpr121: baseline: %w", err)
	}
	for i, v := range bv {
		d.baseline[i] = uint16(v) << 2
	}
	var fd [2 * NumElectrodes]byte
	if err := d.dev.Tx([]byte{_E0FDL}, fd[:]); err != nil {
		return fmt.Errorf("mpr121: filtered data: %w", err)
	}
	for i := range d.filtered {
		d.filtered[i] = (uint16(fd[2*i]) | uint16(fd[2*i+1])<<8) & 0x3ff
	}
	return nil
}

func bit(v uint16, pad int) bool {
	if pad < 0 || pad >= NumElectrodes {
		return false
	}
	return v&(1<<pad) != 0
}

// Touched reports whether pad was touched at the last update.
func (d *Device) Touched(pad int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return bit(d.touch, pad)
}

func (d *Device) IsNewTouch(pad int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !bit(d.last, pad) && bit(d.touch, pad)
}

func (d *Device) IsNewRelease(pad int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return bit(d.last, pad) && !bit(d.touch, pad)
}

// Baseline returns the 10-bit baseline value of pad.
func (d *Device) Baseline(pad int) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pad < 0 || pad >= NumElectrodes {
		return 0xffff
	}
	return d.baseline[pad]
}

// Filtered returns the 10-bit filtered electrode data of pad.
func (d *Device) Filtered(pad int) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pad < 0 || pad >= NumElectrodes {
		return 0xffff
	}
	return d.filtered[pad]
}
