// Package vault – frontmatter.go extracts YAML frontmatter from Markdown
// documents and normalizes the time-of-day fields used by task scheduling.
package vault

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// timeKeys are the frontmatter keys normalized to "HH:MM" after parsing.
var timeKeys = []string{"startTime", "endTime"}

// ParseFrontmatter extracts the leading "---"-delimited YAML block from a
// document. It never fails: a missing block, an unterminated block, or
// invalid YAML all yield an empty map. The startTime/endTime keys are
// normalized to "HH:MM" (or nil when unparseable) so malformed values never
// reach the scheduling logic as raw inputs.
func ParseFrontmatter(data []byte, logger *slog.Logger) map[string]any {
	if logger == nil {
		logger = slog.Default()
	}

	fm := splitFrontmatter(data)
	if fm == nil {
		return map[string]any{}
	}

	for _, key := range timeKeys {
		raw, ok := fm[key]
		if !ok {
			continue
		}
		norm, ok := NormalizeClock(raw)
		if !ok {
			logger.Debug("unparseable time value in frontmatter",
				"key", key, "value", fmt.Sprintf("%v", raw))
			fm[key] = nil
			continue
		}
		fm[key] = norm
	}
	return fm
}

// splitFrontmatter returns the YAML map between the leading --- delimiters,
// or nil when the document has no valid frontmatter block. The opening
// delimiter must be the very first thing in the document; only a UTF-8 BOM
// may precede it.
func splitFrontmatter(data []byte) map[string]any {
	const delim = "---"
	trimmed := bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil
	}
	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil
	}
	return fm
}

// NormalizeClock converts the supported time-of-day encodings to a
// zero-padded 24h "HH:MM" string:
//
//   - integer or float: minutes since midnight (510 becomes "08:30")
//   - string with ":": validated and re-padded ("8:5" becomes "08:05")
//   - 4-digit numeric string: "0830" becomes "08:30"
//
// Anything else, or any out-of-range component, reports ok=false.
// Normalization is idempotent: feeding a previous result back returns it
// unchanged.
func NormalizeClock(v any) (string, bool) {
	switch t := v.(type) {
	case int:
		return clockFromMinutes(t), true
	case int64:
		return clockFromMinutes(int(t)), true
	case float64:
		return clockFromMinutes(int(t)), true
	case string:
		s := strings.TrimSpace(t)
		if strings.Contains(s, ":") {
			return clockFromParts(strings.SplitN(s, ":", 2))
		}
		if len(s) == 4 && isDigits(s) {
			return clockFromParts([]string{s[:2], s[2:]})
		}
		return "", false
	default:
		return "", false
	}
}

func clockFromMinutes(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

func clockFromParts(parts []string) (string, bool) {
	if len(parts) != 2 {
		return "", false
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return "", false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
