package noticestatus

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

type Tone string

type toneEnum struct {
	Idle    Tone
	Warn    Tone
	Success Tone
	Danger  Tone
}

var Tones = toneEnum{
	Idle:    "idle",
	Warn:    "warn",
	Success: "success",
	Danger:  "danger",
}

func (t Tone) Valid() bool {
	switch t {
	case Tones.Idle, Tones.Warn, Tones.Success, Tones.Danger:
		return true
	}
	return false
}

// DisplayEntry is how a status renders on every surface.
type DisplayEntry struct {
	Label   string `yaml:"label" json:"label"`
	Tone    Tone   `yaml:"tone" json:"tone"`
	Message string `yaml:"message" json:"message"`
}

//go:embed display.yaml
var displayYAML []byte

var (
	displayOnce  sync.Once
	displayTable map[string]DisplayEntry
	displayErr   error
)

// Display looks up the display entry for a status code.
func Display(code string) (DisplayEntry, bool) {
	displayOnce.Do(func() {
		displayTable, displayErr = ParseDisplayTable(displayYAML)
	})
	if displayErr != nil {
		return DisplayEntry{}, false
	}
	d, ok := displayTable[code]
	return d, ok
}

// ParseDisplayTable decodes a status display table and checks every entry
// refers to a known status with a known tone.
func ParseDisplayTable(data []byte) (map[string]DisplayEntry, error) {
	table := make(map[string]DisplayEntry)
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("cannot parse status display table: %w", err)
	}

	for code, entry := range table {
		if ByName(code) == nil {
			return nil, fmt.Errorf("unknown status in display table: %s", code)
		}
		if !entry.Tone.Valid() {
			return nil, fmt.Errorf("invalid tone %q for status %s", entry.Tone, code)
		}
	}

	return table, nil
}
