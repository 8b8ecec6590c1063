package touch

import (
	"fmt"
	"strconv"
	"strings"

	"olipi.org/config"
	"olipi.org/notify"
)

// Pad is the configuration of one electrode.
type Pad struct {
	Action string
	// TouchThreshold and ReleaseThreshold override the global
	// thresholds when non-nil.
	TouchThreshold   *uint8
	ReleaseThreshold *uint8
}

// DefaultPads is used when the configuration has no mpr121_pads
// section.
var DefaultPads = map[int]Pad{
	0:  {Action: "KEY_UP"},
	1:  {Action: "KEY_RIGHT"},
	2:  {Action: "KEY_DOWN"},
	3:  {Action: "KEY_LEFT"},
	4:  {Action: "KEY_OK"},
	5:  {Action: "KEY_BACK"},
	6:  {Action: "KEY_CHANNELUP"},
	7:  {Action: "KEY_CHANNELDOWN"},
	8:  {Action: "KEY_PLAY"},
	9:  {Action: "KEY_INFO"},
	10: {Action: "KEY_STOP"},
	11: {Action: "KEY_POWER"},
	12: {Action: "KEY_PROX"},
}

// ParsePads reads the mpr121_pads section, whose entries read
//
//	pad<N> = "<ACTION>,<touch_threshold>,<release_threshold>"
//
// with "-", "none" or an empty threshold meaning the global value.
// Malformed entries are reported and skipped.
func ParsePads(cfg *config.Config, sink notify.Sink) map[int]Pad {
	if !cfg.Has("mpr121_pads") {
		pads := make(map[int]Pad, len(DefaultPads))
		for i, p := range DefaultPads {
			pads[i] = p
		}
		return pads
	}
	pads := make(map[int]Pad)
	for _, key := range cfg.Keys("mpr121_pads") {
		if !strings.HasPrefix(key, "pad") {
			continue
		}
		idx, p, err := parsePad(key, cfg.String("mpr121_pads", key, ""))
		if err != nil {
			notify.Report(sink, "error parsing %s: %v", key, err)
			continue
		}
		pads[idx] = p
	}
	return pads
}

func parsePad(key, value string) (int, Pad, error) {
	idx, err := strconv.Atoi(key[len("pad"):])
	if err != nil {
		return 0, Pad{}, fmt.Errorf("invalid pad index %q", key[len("pad"):])
	}
	if idx < 0 || idx >= NumPads {
		return 0, Pad{}, fmt.Errorf("pad index %d out of range", idx)
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	p := Pad{Action: strings.ToUpper(parts[0])}
	if p.Action == "" {
		return 0, Pad{}, fmt.Errorf("missing action")
	}
	if len(parts) < 3 {
		return idx, p, nil
	}
	if p.TouchThreshold, err = parseThreshold(parts[1]); err != nil {
		return 0, Pad{}, err
	}
	if p.ReleaseThreshold, err = parseThreshold(parts[2]); err != nil {
		return 0, Pad{}, err
	}
	return idx, p, nil
}

func parseThreshold(s string) (*uint8, error) {
	switch strings.ToLower(s) {
	case "", "-", "none":
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid threshold %q", s)
	}
	t := uint8(v)
	return &t, nil
}
