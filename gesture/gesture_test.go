package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"olipi.org/clock"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		seq  []Pad
		want Gesture
	}{
		{[]Pad{Left, Center, Right}, SwipeRight},
		{[]Pad{Right, Center, Left}, SwipeLeft},
		{[]Pad{Up, Center, Down}, SwipeDown},
		{[]Pad{Down, Center, Up}, SwipeUp},
		{[]Pad{Down, Left, Center, Right}, SwipeRight},
		{[]Pad{Up, Right, Down}, RotateClockwise},
		{[]Pad{Left, Up, Right}, RotateClockwise},
		{[]Pad{Up, Right, Center, Down}, RotateClockwise},
		{[]Pad{Up, Left, Down}, RotateCounterclockwise},
		{[]Pad{Right, Up, Left, Down}, RotateCounterclockwise},
		{[]Pad{Up, Down, Left}, None},
		{[]Pad{Up, Right}, None},
		{[]Pad{Center, Right}, None},
		{[]Pad{Left, Center}, None},
		{[]Pad{Left, Center, Up}, None},
		{nil, None},
	}
	for _, test := range tests {
		g, ok := Detect(test.seq)
		assert.Equal(t, test.want != None, ok, "%v", test.seq)
		assert.Equal(t, test.want, g, "%v", test.seq)
	}
}

func TestGestureNames(t *testing.T) {
	assert.Equal(t, "swipe_right", SwipeRight.String())
	assert.Equal(t, "rotate_counterclockwise", RotateCounterclockwise.String())
	assert.Equal(t, "CENTER", Center.String())
	assert.Equal(t, "pad7", Pad(7).String())
}

type recognizerTest struct {
	clk      *clock.Fake
	r        *Recognizer
	gestures []Gesture
	singles  []Pad
}

func newRecognizer() *recognizerTest {
	rt := &recognizerTest{clk: clock.NewFake()}
	rt.r = &Recognizer{
		Clock:     rt.clk,
		OnGesture: func(g Gesture) { rt.gestures = append(rt.gestures, g) },
		OnSingle:  func(p Pad) { rt.singles = append(rt.singles, p) },
	}
	return rt
}

func TestRecognizerSwipe(t *testing.T) {
	rt := newRecognizer()
	_, ok := rt.r.Touch(Left)
	require.False(t, ok)
	rt.clk.Advance(100 * time.Millisecond)
	rt.r.Touch(Center)
	rt.clk.Advance(100 * time.Millisecond)
	g, ok := rt.r.Touch(Right)
	require.True(t, ok)
	assert.Equal(t, SwipeRight, g)
	assert.Equal(t, []Gesture{SwipeRight}, rt.gestures)
	assert.Empty(t, rt.r.History())
	rt.clk.Advance(time.Second)
	assert.Empty(t, rt.singles)
}

func TestRecognizerDeduplicates(t *testing.T) {
	rt := newRecognizer()
	rt.r.Touch(Up)
	rt.r.Touch(Up)
	rt.r.Touch(Right, Right)
	assert.Equal(t, []Pad{Up, Right}, rt.r.History())
}

func TestRecognizerSingleFallback(t *testing.T) {
	rt := newRecognizer()
	rt.r.Touch(Down)
	rt.clk.Advance(DefaultTimeout - time.Millisecond)
	assert.Empty(t, rt.singles)
	rt.clk.Advance(time.Millisecond)
	assert.Equal(t, []Pad{Down}, rt.singles)
	assert.Empty(t, rt.r.History())
	rt.clk.Advance(time.Second)
	assert.Len(t, rt.singles, 1)
}

func TestRecognizerAmbiguousDropped(t *testing.T) {
	rt := newRecognizer()
	rt.r.Touch(Up)
	rt.r.Touch(Down)
	rt.clk.Advance(DefaultTimeout)
	assert.Empty(t, rt.singles)
	assert.Empty(t, rt.gestures)
	assert.Empty(t, rt.r.History())
}

func TestRecognizerTouchRestartsTimeout(t *testing.T) {
	rt := newRecognizer()
	rt.r.Touch(Up)
	rt.clk.Advance(200 * time.Millisecond)
	rt.r.Touch(Right)
	rt.clk.Advance(200 * time.Millisecond)
	assert.Equal(t, []Pad{Up, Right}, rt.r.History())
	rt.r.Touch(Down)
	assert.Equal(t, []Gesture{RotateClockwise}, rt.gestures)
}

func TestRecognizerReleaseResolvesEarly(t *testing.T) {
	rt := newRecognizer()
	rt.r.Touch(Left)
	rt.clk.Advance(50 * time.Millisecond)
	rt.r.Release()
	assert.Equal(t, []Pad{Left}, rt.singles)
	rt.clk.Advance(time.Second)
	assert.Len(t, rt.singles, 1)

	// Releases with no lone touch pending do nothing.
	rt.r.Release()
	rt.r.Touch(Up)
	rt.r.Touch(Left)
	rt.r.Release()
	assert.Len(t, rt.singles, 1)
	assert.Equal(t, []Pad{Up, Left}, rt.r.History())
}

func TestRecognizerReset(t *testing.T) {
	rt := newRecognizer()
	rt.r.Touch(Up)
	rt.r.Reset()
	rt.clk.Advance(time.Second)
	assert.Empty(t, rt.singles)
	assert.Zero(t, rt.clk.Pending())
}
