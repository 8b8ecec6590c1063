package lirc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"time"

	"github.com/tarm/serial"
	"olipi.org/notify"
)

// DefaultBaud is the serial console line rate.
const DefaultBaud = 115200

// maxLine bounds a pending serial line. Longer lines are dropped up to
// their newline.
const maxLine = 256

// OpenSerial opens the serial key console at dev, or the first usable
// default device when dev is empty. Reads time out after 100ms.
func OpenSerial(dev string, baud int) (io.ReadCloser, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else if runtime.GOOS == "linux" {
		devices = append(devices, "/dev/ttyUSB0", "/dev/ttyACM0", "/dev/serial0")
	}
	if len(devices) == 0 {
		return nil, errors.New("lirc: no serial device specified")
	}
	var firstErr error
	for _, dev := range devices {
		c := &serial.Config{Name: dev, Baud: baud, ReadTimeout: readyTimeout}
		s, err := serial.OpenPort(c)
		if err == nil {
			log.Printf("lirc: serial console on %s at %d baud", dev, baud)
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("lirc: %w", firstErr)
}

// Scan forwards key lines read from r until ctx is done. Empty reads and
// io.EOF are read timeouts, not the end of the stream.
func (l *Listener) Scan(ctx context.Context, r io.Reader) error {
	var line []byte
	discard := false
	buf := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		line = append(line, buf[:n]...)
		for {
			i := bytes.IndexByte(line, '\n')
			if i < 0 {
				break
			}
			if !discard {
				l.handle(string(line[:i]))
			}
			discard = false
			line = line[i+1:]
		}
		if len(line) > maxLine {
			if l.Debug {
				log.Printf("debug: lirc: dropping serial line longer than %d bytes", maxLine)
			}
			line = line[:0]
			discard = true
		}
		switch {
		case err == io.EOF || (err == nil && n == 0):
			// Avoid spinning on readers without a timeout.
			time.Sleep(10 * time.Millisecond)
		case err != nil:
			notify.Report(l.Sink, "error lirc listener: %v", err)
			return fmt.Errorf("lirc: serial: %w", err)
		}
	}
	return nil
}
