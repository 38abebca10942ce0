package wpctl

import (
	"github.com/audiolibrelab/wpstatus/internal/errors"
)

// Entry is one audio device line reported by wpctl status
type Entry struct {
	ID        int
	Name      string
	Volume    float64
	IsDefault bool
	IsMuted   bool
}

// Status is a snapshot of the audio sinks and sources, in wpctl's reporting order
type Status struct {
	AudioSinks   []Entry
	AudioSources []Entry
}

// DefaultSink returns the effective default sink
func (s Status) DefaultSink() (Entry, error) {
	if len(s.AudioSinks) == 0 {
		return Entry{}, errors.New(errors.ErrEmpty, "no audio sinks", "")
	}
	return s.AudioSinks[DefaultIndex(s.AudioSinks)], nil
}

// DefaultSource returns the effective default source
func (s Status) DefaultSource() (Entry, error) {
	if len(s.AudioSources) == 0 {
		return Entry{}, errors.New(errors.ErrEmpty, "no audio sources", "")
	}
	return s.AudioSources[DefaultIndex(s.AudioSources)], nil
}

// DefaultIndex returns the index of the first entry marked default.
// When none is marked, index 0 is treated as the default. This mirrors what
// wpctl users see in practice but is a policy, not a guarantee: a setup with
// several devices and no marker will silently pick the first one.
// Returns -1 for an empty list.
func DefaultIndex(entries []Entry) int {
	if len(entries) == 0 {
		return -1
	}
	for i, e := range entries {
		if e.IsDefault {
			return i
		}
	}
	return 0
}

// NextEntry returns the entry after the current default, wrapping around
func NextEntry(entries []Entry) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, errors.New(errors.ErrEmpty, "no devices to switch to", "")
	}
	next := (DefaultIndex(entries) + 1) % len(entries)
	return entries[next], nil
}
