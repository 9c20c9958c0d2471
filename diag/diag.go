// Package diag produces line-addressed diagnostics over raw OpenTab text
// for editor integration. It never fails: malformed input yields
// diagnostics, not errors, and a clean file yields an empty list.
package diag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/opentab/otab/model"
	"github.com/opentab/otab/parser"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic positions are 1-based; EndCol is exclusive.
type Diagnostic struct {
	Message  string   `json:"message"`
	Line     int      `json:"line"`
	StartCol int      `json:"start_col"`
	EndCol   int      `json:"end_col"`
	Severity Severity `json:"severity"`
}

var (
	measureLineRe  = regexp.MustCompile(`^\s*m(\d+):\s*\|(.*)\|\s*(#.*)?$`)
	measureStartRe = regexp.MustCompile(`^\s*m\d+:`)
	keyValueRe     = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=`)
	noteShapeRe    = regexp.MustCompile(`^\(`)
)

// Validate scans the text and returns every diagnostic found.
func Validate(text string) []Diagnostic {
	diags := []Diagnostic{}
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
		diags = append(diags, Diagnostic{
			Message:  "Missing --- delimiter between header and body",
			Line:     1,
			StartCol: 1,
			EndCol:   2,
			Severity: SeverityError,
		})
		return diags
	}

	diags = append(diags, checkHeader(lines[:delim])...)
	diags = append(diags, checkBody(lines[delim+1:], delim+2)...)
	return diags
}

func checkHeader(lines []string) []Diagnostic {
	var diags []Diagnostic
	seen := make(map[string]bool)
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if m := keyValueRe.FindStringSubmatch(line); m != nil {
			seen[m[1]] = true
		}
	}
	for _, key := range []string{"format", "version"} {
		if !seen[key] {
			diags = append(diags, Diagnostic{
				Message:  fmt.Sprintf("Header is missing required key %q", key),
				Line:     1,
				StartCol: 1,
				EndCol:   2,
				Severity: SeverityError,
			})
		}
	}
	return diags
}

func checkBody(lines []string, firstLineNo int) []Diagnostic {
	var diags []Diagnostic
	haveTrack := false
	type slot struct{ track, voice string }
	seenMeasure := make(map[string]bool)
	active := slot{}

	for i, raw := range lines {
		lineNo := firstLineNo + i
		line := strings.TrimSpace(raw)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "@track"):
			fields := strings.Fields(line)
			switch len(fields) {
			case 2:
				active = slot{track: fields[1], voice: "v1"}
				haveTrack = true
			case 4:
				if fields[2] == "voice" {
					active = slot{track: fields[1], voice: fields[3]}
					haveTrack = true
				} else {
					diags = append(diags, lineDiag(lineNo, raw, "Malformed @track directive"))
				}
			default:
				diags = append(diags, lineDiag(lineNo, raw, "Malformed @track directive"))
			}
			continue
		case strings.HasPrefix(line, "@"):
			diags = append(diags, lineDiag(lineNo, raw, "Unknown directive"))
			continue
		}

		if !measureStartRe.MatchString(raw) {
			diags = append(diags, lineDiag(lineNo, raw, "Unknown body line"))
			continue
		}

		m := measureLineRe.FindStringSubmatch(raw)
		if m == nil {
			diags = append(diags, lineDiag(lineNo, raw, "Malformed measure line"))
			continue
		}
		if !haveTrack {
			diags = append(diags, lineDiag(lineNo, raw, "Measure defined before selecting track/voice"))
		}

		key := fmt.Sprintf("%s/%s/%s", active.track, active.voice, m[1])
		if seenMeasure[key] {
			d := lineDiag(lineNo, raw, fmt.Sprintf("Measure m%s already defined for this track/voice; last definition wins", m[1]))
			d.Severity = SeverityWarning
			diags = append(diags, d)
		}
		seenMeasure[key] = true

		diags = append(diags, checkMeasureContent(m[2], lineNo, raw)...)
	}
	return diags
}

func checkMeasureContent(content string, lineNo int, fullLine string) []Diagnostic {
	var diags []Diagnostic
	if !bracketsBalanced(content) {
		start := strings.Index(fullLine, "|") + 1
		diags = append(diags, Diagnostic{
			Message:  "Unbalanced brackets in measure",
			Line:     lineNo,
			StartCol: start,
			EndCol:   len(fullLine) + 1,
			Severity: SeverityError,
		})
		return diags
	}

	searchFrom := 0
	for _, tok := range parser.SplitTokens(content) {
		col := strings.Index(fullLine[searchFrom:], tok)
		if col >= 0 {
			col += searchFrom + 1
			searchFrom = col - 1 + len(tok)
		} else {
			col = 1
		}
		end := col + len(tok)

		if parser.IsDurationToken(tok) {
			continue
		}
		if looksLikeDuration(tok) {
			diags = append(diags, Diagnostic{
				Message:  fmt.Sprintf("Malformed duration token %q", tok),
				Line:     lineNo,
				StartCol: col,
				EndCol:   end,
				Severity: SeverityError,
			})
			continue
		}
		if ok := eventTokenOK(tok); !ok {
			msg := fmt.Sprintf("Unknown token %q in measure", tok)
			if noteShapeRe.MatchString(tok) {
				msg = fmt.Sprintf("Malformed note token %q", tok)
			}
			diags = append(diags, Diagnostic{
				Message:  msg,
				Line:     lineNo,
				StartCol: col,
				EndCol:   end,
				Severity: SeverityError,
			})
		}
	}
	return diags
}

// looksLikeDuration catches near-misses such as "q..." or "e/0" so they get
// a duration-specific message instead of a generic unknown-token one.
func looksLikeDuration(tok string) bool {
	if len(tok) < 2 || !model.ValidDurBase(tok[0]) {
		return false
	}
	rest := tok[1:]
	for i := 0; i < len(rest); i++ {
		if rest[i] != '.' && rest[i] != '/' && (rest[i] < '0' || rest[i] > '9') {
			return false
		}
	}
	return true
}

func eventTokenOK(tok string) bool {
	_, ok := parser.ParseEventToken(tok)
	return ok
}

func bracketsBalanced(s string) bool {
	var stack []byte
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			if c == '"' && s[i-1] != '\\' {
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 {
				return false
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if (c == ')' && open != '(') || (c == ']' && open != '[') || (c == '}' && open != '{') {
				return false
			}
		}
	}
	return len(stack) == 0 && !inQuote
}

func lineDiag(lineNo int, raw, message string) Diagnostic {
	trimmed := strings.TrimLeft(raw, " \t")
	start := len(raw) - len(trimmed) + 1
	end := len(strings.TrimRight(raw, " \t")) + 1
	if end <= start {
		end = start + 1
	}
	return Diagnostic{
		Message:  message,
		Line:     lineNo,
		StartCol: start,
		EndCol:   end,
		Severity: SeverityError,
	}
}
