package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/opentab/otab/model"
)

// Serialize writes a document back out as canonical OpenTab source. Header
// keys with default values are omitted; measure lines carry an explicit
// duration token before every event. The output always reparses to the
// same model.
func Serialize(doc *model.Document) string {
	var b strings.Builder

	b.WriteString("format = \"opentab\"\n")
	b.WriteString("version = \"0.1\"\n")
	writeStringKey(&b, "title", doc.Header.Title)
	writeStringKey(&b, "artist", doc.Header.Artist)
	writeStringKey(&b, "album", doc.Header.Album)
	writeStringKey(&b, "composer", doc.Header.Composer)
	writeStringKey(&b, "source", doc.Header.Source)
	writeStringKey(&b, "copyright", doc.Header.Copyright)
	if doc.Header.TempoBPM != model.DefaultTempoBPM {
		fmt.Fprintf(&b, "tempo_bpm = %d\n", doc.Header.TempoBPM)
	}
	if doc.Header.Time != model.DefaultTimeSignature() {
		fmt.Fprintf(&b, "time_signature = \"%d/%d\"\n", doc.Header.Time.Numerator, doc.Header.Time.Denominator)
	}
	if doc.Header.Swing != "" && doc.Header.Swing != model.SwingNone {
		fmt.Fprintf(&b, "swing = \"%s\"\n", doc.Header.Swing)
	}
	for _, key := range sortedKeys(doc.Header.Extra) {
		fmt.Fprintf(&b, "%s = %s\n", key, renderValue(doc.Header.Extra[key]))
	}

	for _, t := range doc.Tracks {
		b.WriteString("\n[[tracks]]\n")
		fmt.Fprintf(&b, "id = %q\n", t.ID)
		writeStringKey(&b, "name", t.Name)
		writeStringKey(&b, "instrument", t.Instrument)
		if len(t.Tuning) > 0 {
			quoted := make([]string, len(t.Tuning))
			for i, s := range t.Tuning {
				quoted[i] = strconv.Quote(s)
			}
			fmt.Fprintf(&b, "tuning = [%s]\n", strings.Join(quoted, ", "))
		}
		if t.Capo > 0 {
			fmt.Fprintf(&b, "capo = %d\n", t.Capo)
		}
		for _, key := range sortedKeys(t.Extra) {
			fmt.Fprintf(&b, "%s = %s\n", key, renderValue(t.Extra[key]))
		}
	}

	b.WriteString("\n---\n")

	for _, t := range doc.Tracks {
		for _, voice := range voicesForTrack(doc, t.ID) {
			b.WriteString("\n")
			if voice == model.DefaultVoice {
				fmt.Fprintf(&b, "@track %s\n", t.ID)
			} else {
				fmt.Fprintf(&b, "@track %s voice %s\n", t.ID, voice)
			}
			for _, m := range doc.Measures {
				tm, ok := m.Tracks[t.ID]
				if !ok {
					continue
				}
				events, ok := tm[voice]
				if !ok {
					continue
				}
				b.WriteString(renderMeasureLine(m.Index, events))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

func writeStringKey(b *strings.Builder, key, val string) {
	if val != "" {
		fmt.Fprintf(b, "%s = %q\n", key, val)
	}
}

func voicesForTrack(doc *model.Document, trackID string) []string {
	seen := make(map[string]bool)
	var voices []string
	for _, m := range doc.Measures {
		tm, ok := m.Tracks[trackID]
		if !ok {
			continue
		}
		for voice := range tm {
			if !seen[voice] {
				seen[voice] = true
				voices = append(voices, voice)
			}
		}
	}
	sort.Slice(voices, func(i, j int) bool {
		if voices[i] == model.DefaultVoice {
			return true
		}
		if voices[j] == model.DefaultVoice {
			return false
		}
		return voices[i] < voices[j]
	})
	return voices
}

func renderMeasureLine(index int, events []model.Event) string {
	var toks []string
	for _, ev := range events {
		toks = append(toks, ev.Duration.Token(), RenderEvent(ev))
	}
	if len(toks) == 0 {
		return fmt.Sprintf("m%d: | |", index)
	}
	return fmt.Sprintf("m%d: | %s |", index, strings.Join(toks, " "))
}

// RenderEvent writes one event token without its duration.
func RenderEvent(ev model.Event) string {
	switch ev.Kind {
	case model.EventRest:
		return "r" + renderAnnotations(ev.Annotations)
	case model.EventNote:
		return renderNoteRef(ev.Note) + renderAnnotations(ev.Annotations)
	case model.EventChord:
		members := make([]string, len(ev.Chord))
		for i, ref := range ev.Chord {
			members[i] = renderNoteRef(ref) + renderAnnotations(ref.Annotations)
		}
		return "[ " + strings.Join(members, " ") + " ]" + renderAnnotations(ev.Annotations)
	}
	return ""
}

func renderNoteRef(ref model.NoteRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "(%d:%d", ref.String, ref.Fret)
	for _, tech := range ref.Techniques {
		switch tech.Kind {
		case model.TechHammerOn:
			fmt.Fprintf(&b, "h%d", tech.ToFret)
		case model.TechPullOff:
			fmt.Fprintf(&b, "p%d", tech.ToFret)
		case model.TechSlide:
			if tech.Slide == model.SlideDown {
				fmt.Fprintf(&b, "\\%d", tech.ToFret)
			} else {
				fmt.Fprintf(&b, "/%d", tech.ToFret)
			}
		case model.TechVibrato:
			b.WriteString("~")
		}
	}
	b.WriteString(")")
	return b.String()
}

func renderAnnotations(a model.Annotations) string {
	if len(a) == 0 {
		return ""
	}
	parts := make([]string, 0, len(a))
	for _, key := range sortedKeys(a) {
		parts = append(parts, key+"="+renderValue(a[key]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("%v", v)
}

func sortedKeys(a model.Annotations) []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
