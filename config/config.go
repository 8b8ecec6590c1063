// Package config provides the read-only, sectioned key/value lookup the
// panel queries at start-up.
//
// The file is TOML whose top-level tables are the sections:
//
//	[input]
//	use_buttons = true
//
//	[buttons]
//	KEY_UP = 17
//
// Section and key names are case-insensitive. Values may be native TOML
// types or strings; typed getters coerce between the two.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	sections map[string]map[string]string
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse parses a configuration document.
func Parse(doc string) (*Config, error) {
	var raw map[string]any
	if _, err := toml.Decode(doc, &raw); err != nil {
		return nil, err
	}
	c := &Config{sections: make(map[string]map[string]string)}
	for name, v := range raw {
		tbl, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("key %q is outside a section", name)
		}
		sec := make(map[string]string, len(tbl))
		for k, v := range tbl {
			s, err := scalar(v)
			if err != nil {
				return nil, fmt.Errorf("[%s] %s: %w", name, k, err)
			}
			sec[strings.ToLower(k)] = s
		}
		c.sections[strings.ToLower(name)] = sec
	}
	return c, nil
}

func scalar(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// Has reports whether the section exists.
func (c *Config) Has(section string) bool {
	if c == nil {
		return false
	}
	_, ok := c.sections[strings.ToLower(section)]
	return ok
}

// Keys returns the sorted key names of a section.
func (c *Config) Keys(section string) []string {
	if c == nil {
		return nil
	}
	sec := c.sections[strings.ToLower(section)]
	keys := make([]string, 0, len(sec))
	for k := range sec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the raw value of a key.
func (c *Config) Lookup(section, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.sections[strings.ToLower(section)][strings.ToLower(key)]
	return v, ok
}

func (c *Config) String(section, key, fallback string) string {
	if v, ok := c.Lookup(section, key); ok {
		return v
	}
	return fallback
}

// Bool returns a boolean value. Malformed values yield the fallback and
// an error.
func (c *Config) Bool(section, key string, fallback bool) (bool, error) {
	v, ok := c.Lookup(section, key)
	if !ok {
		return fallback, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "yes", "true", "on":
		return true, nil
	case "0", "no", "false", "off":
		return false, nil
	}
	return fallback, fmt.Errorf("config: [%s] %s: not a boolean: %q", section, key, v)
}

// Int returns an integer value. Base prefixes such as 0x are accepted.
func (c *Config) Int(section, key string, fallback int) (int, error) {
	v, ok := c.Lookup(section, key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 0, 64)
	if err != nil {
		return fallback, fmt.Errorf("config: [%s] %s: not an integer: %q", section, key, v)
	}
	return int(n), nil
}

func (c *Config) Float(section, key string, fallback float64) (float64, error) {
	v, ok := c.Lookup(section, key)
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback, fmt.Errorf("config: [%s] %s: not a number: %q", section, key, v)
	}
	return f, nil
}
