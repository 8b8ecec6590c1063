// Package lirc implements the infrared remote input source. Key events are
// read as text lines from the LIRC irw client or from a serial console.
//
// Lines with four or more fields use the irw layout
// "<code> <repeat> <key> <remote>". Three field lines omit the code and
// read "<repeat> <key> <remote>", as written by the serial console
// firmware. Both layouts are accepted on either source.
package lirc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"olipi.org/input"
	"olipi.org/notify"
)

// KeyWindow is the debounce window of remote keys.
const KeyWindow = 150 * time.Millisecond

// readyTimeout bounds waits for output so cancellation is observed.
const readyTimeout = 100 * time.Millisecond

// Event is one decoded remote key line.
type Event struct {
	Key    string
	Repeat string
	Remote string
}

// ParseLine decodes a key line. irw prints
//
//	<code> <repeat> <key> <remote>
//
// and bare three field lines read <repeat> <key> <remote>. Lines with
// fewer fields are rejected.
func ParseLine(line string) (Event, bool) {
	f := strings.Fields(line)
	switch {
	case len(f) >= 4:
		f = f[1:]
	case len(f) < 3:
		return Event{}, false
	}
	return Event{Repeat: f[0], Key: strings.ToUpper(f[1]), Remote: f[2]}, true
}

// Listener feeds remote key lines into a Handler.
type Listener struct {
	Handler input.Handler
	Sink    notify.Sink
	// Command runs the line source, irw by default.
	Command []string
	Debug   bool
}

// Run starts the command and forwards its output until the command exits
// or ctx is done. Failures are reported and returned.
func (l *Listener) Run(ctx context.Context) error {
	err := l.run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		notify.Report(l.Sink, "error: lirc missing")
	default:
		notify.Report(l.Sink, "error lirc listener: %v", err)
	}
	return err
}

func (l *Listener) run(ctx context.Context) error {
	args := l.Command
	if len(args) == 0 {
		args = []string{"irw"}
	}
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("lirc: %w", err)
	}
	defer r.Close()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = w
	err = cmd.Start()
	w.Close()
	if err != nil {
		return fmt.Errorf("lirc: %w", err)
	}
	log.Printf("lirc: listening on %s", strings.Join(args, " "))
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	br := bufio.NewReader(r)
	for {
		if br.Buffered() == 0 {
			ready, err := waitReadable(r, readyTimeout)
			if err != nil {
				return fmt.Errorf("lirc: %w", err)
			}
			if ctx.Err() != nil {
				return nil
			}
			if !ready {
				continue
			}
		}
		line, err := br.ReadString('\n')
		if line != "" {
			l.handle(line)
		}
		if err == io.EOF {
			log.Printf("lirc: %s exited", args[0])
			return nil
		}
		if err != nil {
			return fmt.Errorf("lirc: %w", err)
		}
	}
}

func (l *Listener) handle(line string) {
	ev, ok := ParseLine(line)
	if !ok {
		if l.Debug {
			log.Printf("debug: lirc: skipping %q", strings.TrimSpace(line))
		}
		return
	}
	if l.Debug {
		log.Printf("debug: lirc: %s repeat %s from %s", ev.Key, ev.Repeat, ev.Remote)
	}
	l.Handler.ProcessKey(ev.Key, ev.Repeat, KeyWindow)
}
