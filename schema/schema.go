// Package schema checks a parsed document for structural conformance. It
// trusts the parser on grammar and only verifies the shape of the model:
// required fields, enum ranges, non-negative integers, pitch-name tuning
// strings. It gates any document handed across a package boundary.
package schema

import (
	"fmt"

	"github.com/opentab/otab/model"
	"github.com/opentab/otab/pitch"
)

type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type Result struct {
	OK     bool    `json:"ok"`
	Errors []Issue `json:"errors,omitempty"`
}

var validDenominators = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true}

// Validate runs the structural check. The returned result lists every
// violation found; it never stops at the first.
func Validate(doc *model.Document) Result {
	var errs []Issue
	add := func(path, format string, args ...any) {
		errs = append(errs, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if doc.Header.Format != "opentab" {
		add("header.format", "must be %q, got %q", "opentab", doc.Header.Format)
	}
	if doc.Header.Version != "0.1" {
		add("header.version", "must be %q, got %q", "0.1", doc.Header.Version)
	}
	if doc.Header.TempoBPM <= 0 {
		add("header.tempo_bpm", "must be a positive integer, got %d", doc.Header.TempoBPM)
	}
	if doc.Header.Time.Numerator < 1 {
		add("header.time_signature", "numerator must be >= 1, got %d", doc.Header.Time.Numerator)
	}
	if !validDenominators[doc.Header.Time.Denominator] {
		add("header.time_signature", "denominator must be one of 1,2,4,8,16,32, got %d", doc.Header.Time.Denominator)
	}
	switch doc.Header.Swing {
	case "", model.SwingNone, model.SwingEighth:
	default:
		add("header.swing", "must be none or eighth, got %q", doc.Header.Swing)
	}
	checkAnnotations("header.extra", doc.Header.Extra, add)

	seenTracks := make(map[string]bool)
	for i, t := range doc.Tracks {
		path := fmt.Sprintf("tracks[%d]", i)
		if t.ID == "" {
			add(path+".id", "must be non-empty")
		}
		if seenTracks[t.ID] {
			add(path+".id", "duplicate track id %q", t.ID)
		}
		seenTracks[t.ID] = true
		if t.Capo < 0 {
			add(path+".capo", "must be non-negative, got %d", t.Capo)
		}
		for j, s := range t.Tuning {
			if !pitch.Valid(s) {
				add(fmt.Sprintf("%s.tuning[%d]", path, j), "invalid pitch name %q", s)
			}
		}
	}

	seenIndexes := make(map[int]bool)
	for i, m := range doc.Measures {
		path := fmt.Sprintf("measures[%d]", i)
		if m.Index < 1 {
			add(path+".index", "must be >= 1, got %d", m.Index)
		}
		if seenIndexes[m.Index] {
			add(path+".index", "duplicate measure index %d", m.Index)
		}
		seenIndexes[m.Index] = true
		for trackID, tm := range m.Tracks {
			if !seenTracks[trackID] {
				add(path, "references undeclared track %q", trackID)
			}
			for voice, events := range tm {
				if voice == "" {
					add(path, "empty voice id for track %q", trackID)
				}
				for k, ev := range events {
					checkEvent(fmt.Sprintf("%s.%s.%s[%d]", path, trackID, voice, k), ev, add)
				}
			}
		}
	}

	return Result{OK: len(errs) == 0, Errors: errs}
}

func checkEvent(path string, ev model.Event, add func(string, string, ...any)) {
	switch ev.Kind {
	case model.EventNote:
		checkRef(path+".note", ev.Note, add)
	case model.EventChord:
		if len(ev.Chord) == 0 {
			add(path+".chord", "must have at least one note")
		}
		for i, ref := range ev.Chord {
			checkRef(fmt.Sprintf("%s.chord[%d]", path, i), ref, add)
		}
	case model.EventRest:
	default:
		add(path+".kind", "unknown event kind %d", ev.Kind)
	}
	checkDuration(path+".duration", ev.Duration, add)
	checkAnnotations(path+".annotations", ev.Annotations, add)
}

func checkDuration(path string, d model.Duration, add func(string, string, ...any)) {
	if !model.ValidDurBase(byte(d.Base)) {
		add(path+".base", "must be one of w,h,q,e,s,t")
	}
	if d.Dots < 0 || d.Dots > 2 {
		add(path+".dots", "must be between 0 and 2, got %d", d.Dots)
	}
	if d.Tuplet != 0 && d.Tuplet < 2 {
		add(path+".tuplet", "must be >= 2 when set, got %d", d.Tuplet)
	}
}

func checkRef(path string, ref model.NoteRef, add func(string, string, ...any)) {
	if ref.String < 1 {
		add(path+".string", "must be >= 1, got %d", ref.String)
	}
	if ref.Fret < 0 {
		add(path+".fret", "must be non-negative, got %d", ref.Fret)
	}
	for i, tech := range ref.Techniques {
		tpath := fmt.Sprintf("%s.techniques[%d]", path, i)
		switch tech.Kind {
		case model.TechHammerOn, model.TechPullOff:
			if tech.ToFret < 0 {
				add(tpath, "target fret must be non-negative")
			}
		case model.TechSlide:
			if tech.Slide != model.SlideUp && tech.Slide != model.SlideDown {
				add(tpath, "slide direction must be up or down")
			}
		case model.TechVibrato:
		default:
			add(tpath, "unknown technique kind %d", tech.Kind)
		}
	}
	checkAnnotations(path+".annotations", ref.Annotations, add)
}

func checkAnnotations(path string, a model.Annotations, add func(string, string, ...any)) {
	for key, v := range a {
		ok := isScalar(v)
		if items, isList := v.([]any); isList {
			// array-valued header keys are flat lists of scalars
			ok = true
			for _, item := range items {
				ok = ok && isScalar(item)
			}
		}
		if !ok {
			add(fmt.Sprintf("%s.%s", path, key), "value must be string, number or boolean")
		}
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, float64:
		return true
	}
	return false
}
