// Package format pretty-prints OpenTab source. It operates on text, never
// on the model: comments and unknown header keys pass through verbatim.
// Formatting is idempotent, and a formatted file parses to the same model
// as its input.
package format

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/opentab/otab/parser"
)

var measureLineRe = regexp.MustCompile(`^\s*m(\d+):\s*\|(.*)\|\s*(#.*)?$`)

// Format canonicalizes the source: trimmed header block, blank-line padded
// --- delimiter, and measure lines re-emitted with single spaces and
// explicit duration tokens before every event.
func Format(text string) (string, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	delim := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			delim = i
			break
		}
	}
	if delim < 0 {
		return "", fmt.Errorf("missing --- delimiter between header and body")
	}

	header := lines[:delim]
	body := lines[delim+1:]

	var out []string
	for _, line := range trimBlankEdges(header) {
		out = append(out, strings.TrimRight(line, " \t"))
	}
	out = append(out, "", "---", "")

	for _, line := range trimBlankEdges(body) {
		if m := measureLineRe.FindStringSubmatch(line); m != nil {
			out = append(out, formatMeasureLine(m[1], m[2], m[3]))
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}

	return strings.Join(out, "\n") + "\n", nil
}

func trimBlankEdges(lines []string) []string {
	start := 0
	end := len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

// formatMeasureLine re-tokenizes the content between the pipes and expands
// duration carry so every event token is preceded by its duration.
func formatMeasureLine(index, content, comment string) string {
	var toks []string
	curDur := ""
	for _, tok := range parser.SplitTokens(content) {
		if d, ok := parser.ParseDurationToken(tok); ok {
			curDur = d.Token()
			continue
		}
		if curDur != "" {
			toks = append(toks, curDur)
		}
		toks = append(toks, normalizeToken(tok))
	}

	line := "m" + index + ": | " + strings.Join(toks, " ") + " |"
	if len(toks) == 0 {
		line = "m" + index + ": | |"
		if curDur != "" {
			line = "m" + index + ": | " + curDur + " |"
		}
	}
	if comment != "" {
		line += " " + strings.TrimRight(comment, " \t")
	}
	return line
}

// normalizeToken collapses whitespace runs inside bracketed tokens to a
// single space, leaving quoted strings alone.
func normalizeToken(tok string) string {
	var b strings.Builder
	inQuote := false
	lastSpace := false
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if inQuote {
			b.WriteByte(c)
			if c == '"' && tok[i-1] != '\\' {
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			b.WriteByte(c)
			inQuote = true
			lastSpace = false
		case ' ', '\t':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			b.WriteByte(c)
			lastSpace = false
		}
	}
	return b.String()
}
