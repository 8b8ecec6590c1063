package notify

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"
	"time"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"olipi.org/clock"
)

// Banner keeps the most recent message visible for a while and renders
// it as a framed box for small panel displays.
type Banner struct {
	Clock    clock.Clock
	Duration time.Duration

	mu      sync.Mutex
	text    string
	expires time.Time
}

const defaultBannerDuration = 3 * time.Second

func (b *Banner) clock() clock.Clock {
	if b.Clock == nil {
		return clock.Real
	}
	return b.Clock
}

func (b *Banner) Show(text string) {
	d := b.Duration
	if d <= 0 {
		d = defaultBannerDuration
	}
	now := b.clock().Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	b.expires = now.Add(d)
}

// Text returns the active message, or false if it has expired.
func (b *Banner) Text() (string, bool) {
	now := b.clock().Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.text == "" || !now.Before(b.expires) {
		return "", false
	}
	return b.text, true
}

// Render draws the active message onto dst, centered vertically and
// word-wrapped to its width. It reports whether anything was drawn.
func (b *Banner) Render(dst draw.Image) bool {
	text, ok := b.Text()
	if !ok {
		return false
	}
	face := basicfont.Face7x13
	r := dst.Bounds()
	const margin = 4
	lines := wrap(text, face, r.Dx()-2*margin)
	lineHeight := face.Metrics().Height.Ceil()
	h := len(lines)*lineHeight + 2*margin
	box := image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+h)
	box = box.Add(image.Pt(0, (r.Dy()-h)/2)).Intersect(r)
	draw.Draw(dst, box, image.Black, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(r.Dx(), r.Dy(), dst, r)
	dasher := rasterx.NewDasher(r.Dx(), r.Dy(), scanner)
	dasher.SetStroke(fixed.I(1), 0, rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.ArcClip, nil, 0)
	dasher.SetColor(color.White)
	inset := box.Inset(1).Sub(r.Min)
	dasher.Start(rasterx.ToFixedP(float64(inset.Min.X), float64(inset.Min.Y)))
	dasher.Line(rasterx.ToFixedP(float64(inset.Max.X), float64(inset.Min.Y)))
	dasher.Line(rasterx.ToFixedP(float64(inset.Max.X), float64(inset.Max.Y)))
	dasher.Line(rasterx.ToFixedP(float64(inset.Min.X), float64(inset.Max.Y)))
	dasher.Stop(true)
	dasher.Draw()

	d := &font.Drawer{Dst: dst, Src: image.White, Face: face}
	y := box.Min.Y + margin + face.Metrics().Ascent.Ceil()
	for _, l := range lines {
		w := d.MeasureString(l).Ceil()
		d.Dot = fixed.P(box.Min.X+(box.Dx()-w)/2, y)
		d.DrawString(l)
		y += lineHeight
	}
	return true
}

func wrap(text string, face font.Face, width int) []string {
	var lines []string
	var cur string
	for _, w := range strings.Fields(text) {
		next := w
		if cur != "" {
			next = cur + " " + w
		}
		if cur != "" && font.MeasureString(face, next).Ceil() > width {
			lines = append(lines, cur)
			next = w
		}
		cur = next
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
