package input

import (
	"log"
	"strings"

	"olipi.org/config"
)

// Remap translates raw key names into application action names. The
// zero Remap maps every key to itself.
type Remap map[string]string

// placeholders mark remote_mapping entries that are not configured.
var placeholders = map[string]bool{
	"":                true,
	"-":               true,
	"—":               true,
	"NONE":            true,
	"YOUR_REMOTE_KEY": true,
}

// RemapFromConfig builds the table from the remote_mapping section,
// whose entries read ACTION = RAW_KEY.
func RemapFromConfig(cfg *config.Config) Remap {
	r := make(Remap)
	for _, action := range cfg.Keys("remote_mapping") {
		raw := strings.ToUpper(strings.TrimSpace(cfg.String("remote_mapping", action, "")))
		if placeholders[raw] {
			continue
		}
		r[raw] = strings.ToUpper(strings.TrimSpace(action))
	}
	if len(r) > 0 {
		log.Printf("input: loaded %d remote key mappings", len(r))
	} else {
		log.Printf("input: no valid remote mappings found, using raw keys")
	}
	return r
}

func (r Remap) Lookup(key string) string {
	if action, ok := r[key]; ok {
		return action
	}
	return key
}
