// Package parser turns OpenTab source text into the document model. The
// header section (key/value pairs plus [[tracks]] array tables) is parsed
// first, then the body (directives and measure lines). Duration carry is
// resolved here: every event in the returned model owns an explicit
// duration.
package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/opentab/otab/model"
)

var (
	keyValueRe    = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+)$`)
	measureLineRe = regexp.MustCompile(`^\s*m(\d+):\s*\|(.*)\|\s*(#.*)?$`)
	trackTableRe  = regexp.MustCompile(`^\[\[\s*tracks\s*\]\]$`)
	arrayTableRe  = regexp.MustCompile(`^\[\[.*\]\]$`)
)

// Parse reads a complete .otab source. CRLF line endings are normalized on
// entry. Returns a positioned *ParseError on any grammar violation.
func Parse(text string) (*model.Document, error) {
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
		return nil, errAt(1, 1, ErrMissingDelimiter, "missing --- delimiter between header and body")
	}

	doc := &model.Document{
		Header: model.Header{
			TempoBPM: model.DefaultTempoBPM,
			Time:     model.DefaultTimeSignature(),
			Swing:    model.SwingNone,
		},
	}

	if err := parseHeader(lines[:delim], doc); err != nil {
		return nil, err
	}
	if err := parseBody(lines[delim+1:], delim+2, doc); err != nil {
		return nil, err
	}

	sort.Slice(doc.Measures, func(i, j int) bool {
		return doc.Measures[i].Index < doc.Measures[j].Index
	})
	return doc, nil
}

func parseHeader(lines []string, doc *model.Document) error {
	var curTrack *model.Track
	flush := func() {
		if curTrack != nil {
			doc.Tracks = append(doc.Tracks, *curTrack)
			curTrack = nil
		}
	}

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "@"):
			return errAt(lineNo, 1, ErrBadDirective, "directive before the --- delimiter")
		case trackTableRe.MatchString(line):
			flush()
			curTrack = &model.Track{}
			continue
		case arrayTableRe.MatchString(line):
			return errAt(lineNo, 1, ErrBadHeader, "unknown array table %s", line)
		}

		m := keyValueRe.FindStringSubmatch(line)
		if m == nil {
			return errAt(lineNo, 1, ErrBadHeader, "malformed header line %q", line)
		}
		key, raw := m[1], stripTrailingComment(m[2])
		val, ok := parseHeaderValue(raw)
		if !ok {
			return errAt(lineNo, 1, ErrBadHeader, "invalid value for header key %q", key)
		}

		if curTrack != nil {
			if err := setTrackKey(curTrack, key, val, lineNo); err != nil {
				return err
			}
			continue
		}
		if err := setHeaderKey(&doc.Header, key, val, lineNo); err != nil {
			return err
		}
	}
	flush()
	return nil
}

// stripTrailingComment removes a trailing "# …" outside quotes.
func stripTrailingComment(s string) string {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			if i == 0 || s[i-1] != '\\' {
				inQuote = !inQuote
			}
		case '#':
			if !inQuote {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return strings.TrimSpace(s)
}

// parseHeaderValue accepts the header value grammar: quoted string,
// boolean, number, or a flat array of those.
func parseHeaderValue(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		if !strings.HasSuffix(raw, "]") {
			return nil, false
		}
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		if inner == "" {
			return []any{}, true
		}
		var items []any
		for _, part := range splitTopCommas(inner) {
			v, ok := parseScalar(strings.TrimSpace(part))
			if !ok {
				return nil, false
			}
			items = append(items, v)
		}
		return items, true
	}
	return parseScalar(raw)
}

func setHeaderKey(h *model.Header, key string, val any, lineNo int) error {
	asString := func() (string, bool) { s, ok := val.(string); return s, ok }
	switch key {
	case "format":
		s, ok := asString()
		if !ok || s != "opentab" {
			return errAt(lineNo, 1, ErrUnsupportedFormat, "unsupported format %v", val)
		}
		h.Format = s
	case "version":
		s, ok := asString()
		if !ok || s != "0.1" {
			return errAt(lineNo, 1, ErrUnsupportedFormat, "unsupported version %v", val)
		}
		h.Version = s
	case "title", "artist", "album", "composer", "source", "copyright":
		s, ok := asString()
		if !ok {
			return errAt(lineNo, 1, ErrBadHeader, "header key %q wants a string", key)
		}
		switch key {
		case "title":
			h.Title = s
		case "artist":
			h.Artist = s
		case "album":
			h.Album = s
		case "composer":
			h.Composer = s
		case "source":
			h.Source = s
		case "copyright":
			h.Copyright = s
		}
	case "tempo_bpm":
		n, ok := val.(int)
		if !ok || n <= 0 {
			return errAt(lineNo, 1, ErrBadHeader, "tempo_bpm wants a positive integer")
		}
		h.TempoBPM = n
	case "time_signature":
		s, ok := asString()
		if !ok {
			return errAt(lineNo, 1, ErrBadTimeSignature, "time_signature wants a string like \"4/4\"")
		}
		ts, err := ParseTimeSignature(s, lineNo)
		if err != nil {
			return err
		}
		h.Time = ts
	case "swing":
		s, ok := asString()
		if !ok || (s != string(model.SwingNone) && s != string(model.SwingEighth)) {
			return errAt(lineNo, 1, ErrBadHeader, "swing must be none or eighth")
		}
		h.Swing = model.Swing(s)
	default:
		if h.Extra == nil {
			h.Extra = make(model.Annotations)
		}
		h.Extra[key] = val
	}
	return nil
}

// ParseTimeSignature parses "N/D" and enforces the supported denominators.
func ParseTimeSignature(s string, lineNo int) (model.TimeSignature, error) {
	numStr, denStr, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		return model.TimeSignature{}, errAt(lineNo, 1, ErrBadTimeSignature, "time_signature %q is not N/D", s)
	}
	num, err1 := strconv.Atoi(numStr)
	den, err2 := strconv.Atoi(denStr)
	if err1 != nil || err2 != nil || num < 1 {
		return model.TimeSignature{}, errAt(lineNo, 1, ErrBadTimeSignature, "time_signature %q is not N/D", s)
	}
	switch den {
	case 1, 2, 4, 8, 16, 32:
	default:
		return model.TimeSignature{}, errAt(lineNo, 1, ErrBadTimeSignature, "time_signature denominator %d is not one of 1,2,4,8,16,32", den)
	}
	return model.TimeSignature{Numerator: num, Denominator: den}, nil
}

func setTrackKey(t *model.Track, key string, val any, lineNo int) error {
	switch key {
	case "id":
		s, ok := val.(string)
		if !ok || s == "" {
			return errAt(lineNo, 1, ErrBadHeader, "track id wants a non-empty string")
		}
		t.ID = s
	case "name":
		s, ok := val.(string)
		if !ok {
			return errAt(lineNo, 1, ErrBadHeader, "track name wants a string")
		}
		t.Name = s
	case "instrument":
		s, ok := val.(string)
		if !ok {
			return errAt(lineNo, 1, ErrBadHeader, "track instrument wants a string")
		}
		t.Instrument = s
	case "tuning":
		items, ok := val.([]any)
		if !ok {
			return errAt(lineNo, 1, ErrBadHeader, "track tuning wants an array of strings")
		}
		var tuning []string
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return errAt(lineNo, 1, ErrBadHeader, "track tuning wants an array of strings")
			}
			tuning = append(tuning, s)
		}
		t.Tuning = tuning
	case "capo":
		n, ok := val.(int)
		if !ok || n < 0 {
			return errAt(lineNo, 1, ErrBadHeader, "track capo wants a non-negative integer")
		}
		t.Capo = n
	default:
		if t.Extra == nil {
			t.Extra = make(model.Annotations)
		}
		t.Extra[key] = val
	}
	return nil
}

func parseBody(lines []string, firstLineNo int, doc *model.Document) error {
	activeTrack := ""
	activeVoice := ""
	measures := make(map[int]*model.Measure)

	for i, raw := range lines {
		lineNo := firstLineNo + i
		line := strings.TrimSpace(raw)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "@"):
			track, voice, err := parseDirective(line, lineNo)
			if err != nil {
				return err
			}
			if _, ok := doc.TrackByID(track); !ok {
				doc.Tracks = append(doc.Tracks, model.Track{ID: track})
				doc.Warnings = append(doc.Warnings,
					fmt.Sprintf("line %d: @track references undeclared track %q; implicit track added", lineNo, track))
			}
			activeTrack, activeVoice = track, voice
			continue
		}

		m := measureLineRe.FindStringSubmatch(raw)
		if m == nil {
			if strings.HasPrefix(line, "m") {
				return errAt(lineNo, 1, ErrBadMeasure, "malformed measure line %q", line)
			}
			return errAt(lineNo, 1, ErrBadToken, "unknown body line %q", line)
		}
		if activeTrack == "" {
			return errAt(lineNo, 1, ErrNoTrack, "Measure defined before selecting track/voice")
		}

		index, _ := strconv.Atoi(m[1])
		if index < 1 {
			return errAt(lineNo, 1, ErrBadMeasure, "measure index must be >= 1")
		}
		events, err := parseMeasureContent(m[2], lineNo, raw)
		if err != nil {
			return err
		}

		measure, ok := measures[index]
		if !ok {
			measure = &model.Measure{Index: index, Tracks: make(map[string]model.TrackMeasure)}
			measures[index] = measure
		}
		tm, ok := measure.Tracks[activeTrack]
		if !ok {
			tm = make(model.TrackMeasure)
			measure.Tracks[activeTrack] = tm
		}
		// same (track, voice, index) on a later line replaces the earlier
		// one; the semantic validator reports it
		tm[activeVoice] = events
	}

	for _, m := range measures {
		doc.Measures = append(doc.Measures, *m)
	}
	return nil
}

func parseDirective(line string, lineNo int) (track, voice string, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "@track" {
		return "", "", errAt(lineNo, 1, ErrBadDirective, "unknown directive %q", line)
	}
	switch len(fields) {
	case 2:
		return fields[1], model.DefaultVoice, nil
	case 4:
		if fields[2] != "voice" {
			return "", "", errAt(lineNo, 1, ErrBadDirective, "malformed @track directive %q", line)
		}
		return fields[1], fields[3], nil
	}
	return "", "", errAt(lineNo, 1, ErrBadDirective, "malformed @track directive %q", line)
}

// parseMeasureContent walks the tokens between the pipes, applying the
// duration-carry rule. Each measure starts with no current duration.
func parseMeasureContent(content string, lineNo int, fullLine string) ([]model.Event, error) {
	events := []model.Event{}
	var cur model.Duration
	haveDur := false
	searchFrom := 0

	for _, tok := range SplitTokens(content) {
		col := strings.Index(fullLine[searchFrom:], tok)
		if col >= 0 {
			col += searchFrom + 1
			searchFrom = col - 1 + len(tok)
		} else {
			col = 1
		}

		if d, ok := ParseDurationToken(tok); ok {
			cur = d
			haveDur = true
			continue
		}

		ev, ok := ParseEventToken(tok)
		if !ok {
			return nil, errAt(lineNo, col, ErrBadToken, "unknown token %q in measure", tok)
		}
		if !haveDur {
			return nil, errAt(lineNo, col, ErrBadMeasure, "event token %q before any duration in measure", tok)
		}
		ev.Duration = cur
		events = append(events, ev)
	}
	return events, nil
}

// ParseEventToken recognizes rest, note and chord tokens, without a
// duration attached.
func ParseEventToken(tok string) (model.Event, bool) {
	if tok == "r" || strings.HasPrefix(tok, "r{") {
		ev := model.Event{Kind: model.EventRest}
		if len(tok) > 1 {
			bag, ok := ParseAnnotations(tok[1:])
			if !ok {
				return model.Event{}, false
			}
			ev.Annotations = bag
		}
		return ev, true
	}
	if strings.HasPrefix(tok, "(") {
		ref, ok := parseNoteToken(tok)
		if !ok {
			return model.Event{}, false
		}
		// a standalone note's annotation suffix belongs to the event, not
		// the note ref; chord members keep theirs on the ref
		bag := ref.Annotations
		ref.Annotations = nil
		return model.Event{Kind: model.EventNote, Note: ref, Annotations: bag}, true
	}
	if strings.HasPrefix(tok, "[") {
		refs, bag, ok := parseChordToken(tok)
		if !ok {
			return model.Event{}, false
		}
		return model.Event{Kind: model.EventChord, Chord: refs, Annotations: bag}, true
	}
	return model.Event{}, false
}
