// Package speech provides optional speech-to-text input through an
// external recognizer command.
package speech

import (
	"fmt"
	"os/exec"

	"github.com/diogo/nanogenius/internal/config"
)

// UnsupportedNotice is shown when voice input is requested but unavailable
const UnsupportedNotice = "Speech recognition is not supported in this terminal."

// Status tags a capability check result
type Status int

const (
	Unavailable Status = iota
	Available
)

func (s Status) String() string {
	if s == Available {
		return "available"
	}
	return "unavailable"
}

// Capability is the result of probing for a recognizer
type Capability struct {
	Status Status
	// Path is the resolved command when available
	Path string
	// Reason explains why speech is unavailable
	Reason string
}

// Available reports whether a recognizer can be started
func (c Capability) Available() bool {
	return c.Status == Available
}

// lookPath is swapped in tests
var lookPath = exec.LookPath

// Detect checks once whether the configured speech command can run
func Detect(cfg config.SpeechConfig) Capability {
	if cfg.Command == "" {
		return Capability{Status: Unavailable, Reason: "no speech command configured"}
	}

	path, err := lookPath(cfg.Command)
	if err != nil {
		return Capability{
			Status: Unavailable,
			Reason: fmt.Sprintf("speech command %q not found", cfg.Command),
		}
	}
	return Capability{Status: Available, Path: path}
}
