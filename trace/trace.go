// Package trace records the keys delivered by the panel to a file and
// plays them back, so a UI can be driven without input hardware.
//
// A trace is a sequence of CBOR arrays [offset, key], offset being the
// nanoseconds since the start of the recording.
package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"olipi.org/clock"
)

type Entry struct {
	_      struct{} `cbor:",toarray"`
	Offset time.Duration
	Key    string
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	encMode, decMode = em, dm
}

// Recorder appends delivered keys to a trace.
type Recorder struct {
	clock clock.Clock
	mu    sync.Mutex
	enc   *cbor.Encoder
	start time.Time
	err   error
}

func NewRecorder(w io.Writer, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.Real
	}
	return &Recorder{clock: clk, enc: encMode.NewEncoder(w), start: clk.Now()}
}

// Record appends key. After the first write error, Record does nothing
// and returns that error.
func (r *Recorder) Record(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	e := Entry{Offset: r.clock.Now().Sub(r.start), Key: key}
	if err := r.enc.Encode(e); err != nil {
		r.err = fmt.Errorf("trace: %w", err)
		log.Print(r.err)
	}
	return r.err
}

// Wrap returns a press callback that records each key before passing it
// to press.
func (r *Recorder) Wrap(press func(key string)) func(key string) {
	return func(key string) {
		// Record logs its first error; presses keep flowing.
		_ = r.Record(key)
		press(key)
	}
}

// Read decodes every entry of a trace.
func Read(rd io.Reader) ([]Entry, error) {
	dec := decMode.NewDecoder(rd)
	var entries []Entry
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, fmt.Errorf("trace: entry %d: %w", len(entries), err)
		}
		entries = append(entries, e)
	}
}

// Replay calls press for each entry at its recorded offset from the
// call to Replay. It returns early when ctx is done.
func Replay(ctx context.Context, entries []Entry, press func(key string)) error {
	start := time.Now()
	t := time.NewTimer(0)
	defer t.Stop()
	<-t.C
	for _, e := range entries {
		if d := e.Offset - time.Since(start); d > 0 {
			t.Reset(d)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		press(e.Key)
	}
	return nil
}
