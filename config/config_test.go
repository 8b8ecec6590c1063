package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[Input]
use_buttons = true
use_lirc = "yes"

[buttons]
KEY_UP = 17
buttons_bouncetime_ms = "ten"

[mpr121]
i2c_address = "0x5B"
touch_threshold = 0x18

[rotary]
rotary_min_tick_ms = 2.5

[mpr121_pads]
pad0 = "KEY_UP,20,15"
pad4 = "KEY_OK,-,none"
`

func TestTypedGetters(t *testing.T) {
	c, err := Parse(sample)
	require.NoError(t, err)

	b, err := c.Bool("input", "USE_BUTTONS", false)
	require.NoError(t, err)
	assert.True(t, b)
	b, err = c.Bool("input", "use_lirc", false)
	require.NoError(t, err)
	assert.True(t, b)
	b, err = c.Bool("input", "use_rotary", false)
	require.NoError(t, err)
	assert.False(t, b)

	n, err := c.Int("buttons", "key_up", 0)
	require.NoError(t, err)
	assert.Equal(t, 17, n)
	n, err = c.Int("mpr121", "i2c_address", 0x5a)
	require.NoError(t, err)
	assert.Equal(t, 0x5b, n)
	n, err = c.Int("mpr121", "touch_threshold", 20)
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	n, err = c.Int("buttons", "buttons_bouncetime_ms", 10)
	assert.Error(t, err)
	assert.Equal(t, 10, n)

	f, err := c.Float("rotary", "rotary_min_tick_ms", 2)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	assert.Equal(t, "fallback", c.String("lirc", "command", "fallback"))
}

func TestSections(t *testing.T) {
	c, err := Parse(sample)
	require.NoError(t, err)
	assert.True(t, c.Has("MPR121_PADS"))
	assert.False(t, c.Has("remote_mapping"))
	assert.Equal(t, []string{"pad0", "pad4"}, c.Keys("mpr121_pads"))
	assert.Equal(t, []string{"buttons_bouncetime_ms", "key_up"}, c.Keys("buttons"))

	var nilCfg *Config
	assert.False(t, nilCfg.Has("input"))
	assert.Empty(t, nilCfg.Keys("input"))
	assert.Equal(t, "x", nilCfg.String("a", "b", "x"))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("toplevel = 1\n")
	assert.Error(t, err)
	_, err = Parse("[a]\nlist = [1, 2]\n")
	assert.Error(t, err)
	_, err = Parse("[a\n")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.True(t, c.Has("input"))
	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()
	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), nil, 0o644))
	require.NoError(t, os.WriteFile(path, []byte(sample+"\n[settings]\ndebug = true\n"), 0o644))
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	cancel()
	require.NoError(t, <-done)
}
