package rotary

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"olipi.org/clock"
	"olipi.org/config"
	"olipi.org/input"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type keys struct {
	input.Handler
	mu   sync.Mutex
	keys []string
}

func (k *keys) ProcessKey(key, code string, window time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if code != "00" || window != KeyWindow {
		panic("unexpected key event")
	}
	k.keys = append(k.keys, key)
}

func (k *keys) get() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.keys...)
}

const (
	lo = gpio.Low
	hi = gpio.High
)

func TestEdgeDecoder(t *testing.T) {
	clk := clock.NewFake()
	h := new(keys)
	d := NewEdgeDecoder(h, lo, Options{Divider: 2, MinTick: 2 * time.Millisecond, Clock: clk})

	clk.Advance(10 * time.Millisecond)
	d.Edge(hi, lo)
	assert.Empty(t, h.get())
	// An edge on B alone does not move the counter.
	d.Edge(hi, hi)
	clk.Advance(10 * time.Millisecond)
	d.Edge(lo, hi)
	assert.Equal(t, []string{"KEY_UP"}, h.get())

	// Bounce right after an emission is ignored.
	d.Edge(hi, lo)
	clk.Advance(10 * time.Millisecond)
	d.Edge(hi, hi)
	clk.Advance(10 * time.Millisecond)
	d.Edge(lo, lo)
	assert.Equal(t, []string{"KEY_UP", "KEY_DOWN"}, h.get())
}

func TestEdgeDecoderInvert(t *testing.T) {
	clk := clock.NewFake()
	h := new(keys)
	d := NewEdgeDecoder(h, lo, Options{Divider: 1, Invert: true, Clock: clk})
	clk.Advance(time.Millisecond)
	d.Edge(hi, lo)
	assert.Equal(t, []string{"KEY_DOWN"}, h.get())
}

func TestEdgeDecoderMinTick(t *testing.T) {
	clk := clock.NewFake()
	h := new(keys)
	d := NewEdgeDecoder(h, lo, Options{Divider: 1, MinTick: 10 * time.Millisecond, Clock: clk})
	clk.Advance(20 * time.Millisecond)
	d.Edge(hi, lo)
	// Past the bounce guard but inside the tick spacing: counted, not
	// emitted.
	clk.Advance(6 * time.Millisecond)
	d.Edge(lo, hi)
	assert.Equal(t, []string{"KEY_UP"}, h.get())
	clk.Advance(6 * time.Millisecond)
	d.Edge(hi, lo)
	assert.Equal(t, []string{"KEY_UP", "KEY_UP"}, h.get())
}

func TestGrayDecoder(t *testing.T) {
	clk := clock.NewFake()
	h := new(keys)
	d := NewGrayDecoder(h, lo, lo, Options{Divider: 2, Clock: clk})
	for _, s := range [][2]gpio.Level{{hi, lo}, {hi, hi}, {lo, hi}, {lo, lo}} {
		clk.Advance(5 * time.Millisecond)
		d.Sample(s[0], s[1])
	}
	assert.Equal(t, []string{"KEY_UP", "KEY_UP"}, h.get())

	for _, s := range [][2]gpio.Level{{lo, hi}, {hi, hi}} {
		clk.Advance(5 * time.Millisecond)
		d.Sample(s[0], s[1])
	}
	assert.Equal(t, []string{"KEY_UP", "KEY_UP", "KEY_DOWN"}, h.get())

	// A double step cannot be decoded.
	d.Sample(lo, lo)
	assert.Equal(t, 1, d.Invalid)
	assert.Len(t, h.get(), 3)
}

func TestRunPoll(t *testing.T) {
	a := &gpiotest.Pin{N: "GPIO5"}
	b := &gpiotest.Pin{N: "GPIO6"}
	h := new(keys)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, h, a, b, Config{Mode: ModePoll, Options: Options{Divider: 1}, PollInterval: time.Millisecond})
	}()
	require.Eventually(t, func() bool { return a.Read() == hi && b.Read() == hi }, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Out(lo))
	require.Eventually(t, func() bool { return len(h.get()) == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, []string{"KEY_UP"}, h.get())
	cancel()
	require.NoError(t, <-done)
}

func TestRunEdgeRequiresEdges(t *testing.T) {
	a := &gpiotest.Pin{N: "GPIO5"}
	err := Run(context.Background(), new(keys), a, &gpiotest.Pin{N: "GPIO6"}, Config{Mode: ModeEdge})
	assert.Error(t, err)
}

type messages []string

func (m *messages) Show(text string) { *m = append(*m, text) }

func TestParseConfig(t *testing.T) {
	cfg, err := config.Parse(`
[rotary]
pin_a = 5
pin_b = "6"
rotary_divider = 4
rotary_invert = "yes"
rotary_min_tick_ms = 2.5
rotary_bouncetime_ms = "fast"
mode = "poll"
`)
	require.NoError(t, err)
	var msgs messages
	c, err := ParseConfig(cfg, &msgs)
	require.NoError(t, err)
	assert.Equal(t, 5, c.PinA)
	assert.Equal(t, 6, c.PinB)
	assert.Equal(t, ModePoll, c.Mode)
	assert.Equal(t, 4, c.Options.Divider)
	assert.True(t, c.Options.Invert)
	assert.Equal(t, 2500*time.Microsecond, c.Options.MinTick)
	assert.Equal(t, time.Millisecond, c.PollInterval)
	assert.Equal(t, 10*time.Millisecond, c.Bounce)
	assert.Len(t, msgs, 1)

	cfg, err = config.Parse("[rotary]\npin_a = 5\n")
	require.NoError(t, err)
	_, err = ParseConfig(cfg, nil)
	assert.Error(t, err)

	cfg, err = config.Parse("[rotary]\npin_a = 5\npin_b = 6\nmode = \"spin\"\n")
	require.NoError(t, err)
	_, err = ParseConfig(cfg, nil)
	assert.Error(t, err)
}
