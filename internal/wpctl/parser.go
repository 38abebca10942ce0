package wpctl

import (
	"bufio"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/audiolibrelab/wpstatus/internal/errors"
)

// Media classes and categories wpctl prints as section headers
const (
	MediaClassAudio = "Audio"
	MediaClassVideo = "Video"

	CategorySinks   = "Sinks"
	CategorySources = "Sources"
)

var (
	categoryPattern = regexp.MustCompile(`.*├─\s+([A-Za-z]+):`)
	entryPattern    = regexp.MustCompile(`^[^*]*(\*)?\s+(\d+)\.\s+(.*)\s+\[vol: (\S*)\s*(MUTED)?\]`)
)

// ParseContext is the section state carried from one line of the dump to the next
type ParseContext struct {
	MediaClass string
	Category   string
}

// ClassifyLine applies one dump line to ctx. It returns the updated context
// and, when the line is a device entry, the parsed entry. A device line whose
// id or volume cannot be parsed yields a PARSE error and no entry.
func ClassifyLine(ctx ParseContext, line string) (ParseContext, *Entry, error) {
	trimmed := strings.TrimRight(line, " \t\r")
	if trimmed == MediaClassAudio || trimmed == MediaClassVideo {
		ctx.MediaClass = trimmed
	}

	if m := categoryPattern.FindStringSubmatch(line); m != nil {
		ctx.Category = m[1]
	}

	m := entryPattern.FindStringSubmatch(line)
	if m == nil {
		return ctx, nil, nil
	}

	id, err := strconv.Atoi(m[2])
	if err != nil {
		return ctx, nil, errors.Wrap(err, errors.ErrParse, fmt.Sprintf("invalid device id %q", m[2]))
	}
	volume, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return ctx, nil, errors.Wrap(err, errors.ErrParse, fmt.Sprintf("invalid volume %q for device %d", m[4], id))
	}

	return ctx, &Entry{
		ID:        id,
		Name:      strings.TrimSpace(m[3]),
		Volume:    volume,
		IsDefault: m[1] != "",
		IsMuted:   m[5] != "",
	}, nil
}

// Parser turns the text of `wpctl status` into a Status.
//
// With Strict unset, a device line with a malformed id or volume is logged
// and skipped so one odd device does not blank the status bar. With Strict
// set, the first such line aborts the parse.
type Parser struct {
	Strict bool
}

// ParseStatus parses a dump with the default, non-strict parser
func ParseStatus(text string) (Status, error) {
	return (&Parser{}).Parse(text)
}

// Parse parses the full dump. Empty input yields a Status with no entries.
func (p *Parser) Parse(text string) (Status, error) {
	status := Status{
		AudioSinks:   []Entry{},
		AudioSources: []Entry{},
	}

	var ctx ParseContext
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		var entry *Entry
		var err error
		ctx, entry, err = ClassifyLine(ctx, line)
		if err != nil {
			if p.Strict {
				return Status{}, errors.Wrap(err, errors.ErrParse, fmt.Sprintf("wpctl status line %d", lineNo))
			}
			slog.Warn("Skipping malformed wpctl status line", "line", lineNo, "text", line, "error", err)
			continue
		}
		if entry == nil || ctx.MediaClass != MediaClassAudio {
			continue
		}

		switch ctx.Category {
		case CategorySinks:
			status.AudioSinks = append(status.AudioSinks, *entry)
		case CategorySources:
			status.AudioSources = append(status.AudioSources, *entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return Status{}, errors.Wrap(err, errors.ErrParse, "failed to read wpctl status output")
	}

	return status, nil
}
