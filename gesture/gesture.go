// Package gesture recognises swipes and rotations on a ring of four
// directional capacitive pads around a center pad.
package gesture

import "fmt"

// Pad is an electrode index on the gesture ring.
type Pad int

const (
	Up Pad = iota
	Right
	Down
	Left
	Center
	// NumPads is the size of the gesture ring.
	NumPads
)

func (p Pad) String() string {
	switch p {
	case Up:
		return "UP"
	case Right:
		return "RIGHT"
	case Down:
		return "DOWN"
	case Left:
		return "LEFT"
	case Center:
		return "CENTER"
	default:
		return fmt.Sprintf("pad%d", int(p))
	}
}

type Gesture int

const (
	None Gesture = iota
	SwipeRight
	SwipeLeft
	SwipeDown
	SwipeUp
	RotateClockwise
	RotateCounterclockwise
)

func (g Gesture) String() string {
	switch g {
	case SwipeRight:
		return "swipe_right"
	case SwipeLeft:
		return "swipe_left"
	case SwipeDown:
		return "swipe_down"
	case SwipeUp:
		return "swipe_up"
	case RotateClockwise:
		return "rotate_clockwise"
	case RotateCounterclockwise:
		return "rotate_counterclockwise"
	default:
		return "none"
	}
}

// swipes maps the pads touched just before and after the center pad.
var swipes = map[[2]Pad]Gesture{
	{Left, Right}: SwipeRight,
	{Right, Left}: SwipeLeft,
	{Up, Down}:    SwipeDown,
	{Down, Up}:    SwipeUp,
}

// DetectSwipe looks for a directional pad, the center pad and the
// opposite directional pad in sequence. The first center touch must
// have a neighbour on both sides.
func DetectSwipe(seq []Pad) (Gesture, bool) {
	for i, p := range seq {
		if p != Center {
			continue
		}
		if i == 0 || i == len(seq)-1 {
			return None, false
		}
		g, ok := swipes[[2]Pad{seq[i-1], seq[i+1]}]
		return g, ok
	}
	return None, false
}

// DetectRotation reports a rotation when at least three directional
// pads, ignoring the center pad, were touched in consecutive ring order.
// Clockwise order is Up, Right, Down, Left.
func DetectRotation(seq []Pad) (Gesture, bool) {
	var ring []Pad
	for _, p := range seq {
		if p >= Up && p <= Left {
			ring = append(ring, p)
		}
	}
	if len(ring) < 3 {
		return None, false
	}
	switch {
	case stepsBy(ring, 1):
		return RotateClockwise, true
	case stepsBy(ring, 3):
		return RotateCounterclockwise, true
	}
	return None, false
}

// stepsBy reports whether every pad is step positions after its
// predecessor on the four-pad ring.
func stepsBy(ring []Pad, step Pad) bool {
	for i := 1; i < len(ring); i++ {
		if ring[i] != (ring[i-1]+step)%4 {
			return false
		}
	}
	return true
}

// Detect runs swipe detection, then rotation detection.
func Detect(seq []Pad) (Gesture, bool) {
	if g, ok := DetectSwipe(seq); ok {
		return g, true
	}
	return DetectRotation(seq)
}
