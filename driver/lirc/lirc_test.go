package lirc

import (
	"context"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"olipi.org/input"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		ev   Event
		ok   bool
	}{
		{"000000037ff07bee 00 KEY_UP mceusb\n", Event{Key: "KEY_UP", Repeat: "00", Remote: "mceusb"}, true},
		{"0000 0a key_down mceusb extra", Event{Key: "KEY_DOWN", Repeat: "0a", Remote: "mceusb"}, true},
		{"01 KEY_OK remote", Event{Key: "KEY_OK", Repeat: "01", Remote: "remote"}, true},
		{"KEY_OK remote", Event{}, false},
		{"   ", Event{}, false},
	}
	for _, test := range tests {
		ev, ok := ParseLine(test.line)
		assert.Equal(t, test.ok, ok, test.line)
		assert.Equal(t, test.ev, ev, test.line)
	}
}

type call struct {
	key, repeat string
	window      time.Duration
}

type recorder struct {
	input.Handler
	mu    sync.Mutex
	calls []call
}

func (r *recorder) ProcessKey(key, repeat string, window time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{key, repeat, window})
}

func (r *recorder) get() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

type messages struct {
	mu   sync.Mutex
	msgs []string
}

func (m *messages) Show(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, text)
}

func TestListenerCommand(t *testing.T) {
	h := new(recorder)
	msgs := new(messages)
	l := &Listener{
		Handler: h,
		Sink:    msgs,
		Command: []string{"sh", "-c", `printf '0000 00 KEY_UP r\nbad line\n0000 01 key_up r\n'`},
	}
	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []call{
		{"KEY_UP", "00", KeyWindow},
		{"KEY_UP", "01", KeyWindow},
	}, h.get())
	assert.Empty(t, msgs.msgs)
}

func TestListenerCancel(t *testing.T) {
	l := &Listener{Handler: new(recorder), Command: []string{"sleep", "60"}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenerMissing(t *testing.T) {
	for _, name := range []string{"olipi-no-such-irw", "/nonexistent/irw"} {
		msgs := new(messages)
		l := &Listener{Handler: new(recorder), Sink: msgs, Command: []string{name}}
		assert.Error(t, l.Run(context.Background()))
		assert.Equal(t, []string{"error: lirc missing"}, msgs.msgs)
	}
}

func TestScan(t *testing.T) {
	h := new(recorder)
	l := &Listener{Handler: h}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	r := strings.NewReader("0 00 KEY_LEFT r\n0 00 KEY_RIGHT r\n0 01 KEY_RI")
	go func() { done <- l.Scan(ctx, r) }()
	require.Eventually(t, func() bool { return len(h.get()) == 2 }, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "KEY_RIGHT", h.get()[1].key)
}

func TestScanDropsOverlongLine(t *testing.T) {
	h := new(recorder)
	l := &Listener{Handler: h}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	long := "0 00 KEY_" + strings.Repeat("A", 2*maxLine) + " r\n"
	r := iotest.OneByteReader(strings.NewReader(long + "0 00 KEY_OK r\n"))
	go func() { done <- l.Scan(ctx, r) }()
	require.Eventually(t, func() bool { return len(h.get()) == 1 }, 5*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "KEY_OK", h.get()[0].key)
}

func TestOpenSerialMissing(t *testing.T) {
	_, err := OpenSerial("/nonexistent/ttyUSB9", 0)
	assert.Error(t, err)
}
