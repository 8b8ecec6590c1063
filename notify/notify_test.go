package notify

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
	"olipi.org/clock"
)

func TestReportMulti(t *testing.T) {
	var a, b []string
	s := Multi(Func(func(m string) { a = append(a, m) }), nil, Func(func(m string) { b = append(b, m) }))
	Report(s, "error: %s missing", "lirc")
	assert.Equal(t, []string{"error: lirc missing"}, a)
	assert.Equal(t, a, b)
	// A nil sink only logs.
	Report(nil, "ignored")
}

func TestBannerExpiry(t *testing.T) {
	clk := clock.NewFake()
	b := &Banner{Clock: clk, Duration: time.Second}
	_, ok := b.Text()
	require.False(t, ok)
	b.Show("error: MPR121 init failed")
	txt, ok := b.Text()
	require.True(t, ok)
	assert.Equal(t, "error: MPR121 init failed", txt)
	clk.Advance(time.Second)
	_, ok = b.Text()
	assert.False(t, ok)
}

func TestBannerRender(t *testing.T) {
	clk := clock.NewFake()
	b := &Banner{Clock: clk}
	img := image.NewGray(image.Rect(0, 0, 128, 64))
	require.False(t, b.Render(img))
	b.Show("error: gpio missing on this host")
	require.True(t, b.Render(img))
	lit := 0
	for _, p := range img.Pix {
		if p > 0x80 {
			lit++
		}
	}
	assert.Positive(t, lit)
}

func TestWrap(t *testing.T) {
	face := basicfont.Face7x13
	lines := wrap("error lirc listener: broken pipe", face, 7*12)
	require.Greater(t, len(lines), 1)
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 12)
	}
}
