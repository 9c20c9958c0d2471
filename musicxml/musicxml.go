// Package musicxml encodes a document as MusicXML 3.1 partwise, one part
// per track, with TAB clefs and string/fret technical notations so notation
// software can show real tablature. Divisions match the MIDI encoder so the
// two outputs agree on timing.
package musicxml

import (
	"fmt"
	"sort"
	"strings"

	xml "github.com/subchen/go-xmldom"

	"github.com/opentab/otab/model"
	"github.com/opentab/otab/pitch"
)

// Divisions is the number of divisions per quarter note in every file this
// package writes.
const Divisions = 480

const doctype = `<!DOCTYPE score-partwise PUBLIC "-//Recordare//DTD MusicXML 3.1 Partwise//EN" "http://www.musicxml.org/dtds/partwise.dtd">`

var typeNames = map[model.DurBase]string{
	model.BaseWhole:     "whole",
	model.BaseHalf:      "half",
	model.BaseQuarter:   "quarter",
	model.BaseEighth:    "eighth",
	model.BaseSixteenth: "16th",
	model.BaseThirtySec: "32nd",
}

// Encode renders the document as a MusicXML string plus warnings for notes
// that could not be resolved against their track tuning.
func Encode(doc *model.Document) (string, []string) {
	var warnings []string

	d := xml.NewDocument("score-partwise")
	d.Directives = append(d.Directives, doctype)
	d.Root.SetAttributeValue("version", "3.1")

	if doc.Header.Title != "" {
		work := d.Root.CreateNode("work")
		title := work.CreateNode("work-title")
		title.Text = doc.Header.Title
	}
	addIdentification(d.Root, doc)

	partList := d.Root.CreateNode("part-list")
	for i, track := range doc.Tracks {
		id := fmt.Sprintf("P%d", i+1)
		sp := partList.CreateNode("score-part").SetAttributeValue("id", id)
		name := sp.CreateNode("part-name")
		if track.Name != "" {
			name.Text = track.Name
		} else {
			name.Text = track.ID
		}
	}

	for i, track := range doc.Tracks {
		id := fmt.Sprintf("P%d", i+1)
		part := d.Root.CreateNode("part").SetAttributeValue("id", id)
		w := encodePart(part, doc, track)
		warnings = append(warnings, w...)
	}

	return d.XMLPretty(), warnings
}

func addIdentification(root *xml.Node, doc *model.Document) {
	id := root.CreateNode("identification")
	if doc.Header.Artist != "" {
		creator := id.CreateNode("creator")
		creator.SetAttributeValue("type", "composer")
		creator.Text = doc.Header.Artist
	}
	encoding := id.CreateNode("encoding")
	software := encoding.CreateNode("software")
	software.Text = "otab"
}

// measureDivisions is the nominal division span of one measure under the
// document time signature.
func measureDivisions(ts model.TimeSignature) int {
	return Divisions * ts.Numerator * 4 / ts.Denominator
}

func encodePart(part *xml.Node, doc *model.Document, track model.Track) []string {
	var warnings []string
	stringCount := doc.StringCount(track)

	for i, m := range doc.Measures {
		mn := part.CreateNode("measure").SetAttributeValue("number", fmt.Sprint(m.Index))
		if i == 0 {
			addAttributes(mn, doc, track, stringCount)
		}

		expected := measureDivisions(doc.Header.Time)
		tm := m.Tracks[track.ID]
		voices := voicesInOrder(tm)

		if len(voices) == 0 {
			addRest(mn, wholeMeasureDuration(doc.Header.Time), 1, expected)
			continue
		}

		for vi, voice := range voices {
			if vi > 0 {
				backup := mn.CreateNode("backup")
				dur := backup.CreateNode("duration")
				dur.Text = fmt.Sprint(expected)
			}
			used := 0
			for _, ev := range tm[voice] {
				w := addEvent(mn, track, ev, vi+1, m.Index)
				warnings = append(warnings, w...)
				used += ev.Duration.Ticks(Divisions)
			}
			if used < expected {
				addRestDivisions(mn, expected-used, vi+1)
			}
		}
	}
	return warnings
}

func addAttributes(mn *xml.Node, doc *model.Document, track model.Track, stringCount int) {
	attrs := mn.CreateNode("attributes")
	div := attrs.CreateNode("divisions")
	div.Text = fmt.Sprint(Divisions)

	key := attrs.CreateNode("key")
	fifths := key.CreateNode("fifths")
	fifths.Text = "0"

	ts := attrs.CreateNode("time")
	beats := ts.CreateNode("beats")
	beats.Text = fmt.Sprint(doc.Header.Time.Numerator)
	beatType := ts.CreateNode("beat-type")
	beatType.Text = fmt.Sprint(doc.Header.Time.Denominator)

	clef := attrs.CreateNode("clef")
	sign := clef.CreateNode("sign")
	sign.Text = "TAB"
	line := clef.CreateNode("line")
	line.Text = "5"

	details := attrs.CreateNode("staff-details")
	lines := details.CreateNode("staff-lines")
	lines.Text = fmt.Sprint(stringCount)
	if len(track.Tuning) == stringCount {
		for s := 1; s <= stringCount; s++ {
			midi, err := pitch.Resolve(track.Tuning, s, 0, 0)
			if err != nil {
				continue
			}
			step, alter, octave := pitch.StepAlterOctave(midi)
			st := details.CreateNode("staff-tuning")
			st.SetAttributeValue("line", fmt.Sprint(stringCount-s+1))
			stepNode := st.CreateNode("tuning-step")
			stepNode.Text = step
			if alter != 0 {
				alterNode := st.CreateNode("tuning-alter")
				alterNode.Text = fmt.Sprint(alter)
			}
			octNode := st.CreateNode("tuning-octave")
			octNode.Text = fmt.Sprint(octave)
		}
	}
}

// addEvent emits one note, chord or rest. Chord followers carry <chord/> so
// they stack on the leader's onset.
func addEvent(mn *xml.Node, track model.Track, ev model.Event, voice int, measureIndex int) []string {
	var warnings []string

	if ev.Kind == model.EventRest {
		addRestDuration(mn, ev.Duration, voice)
		return nil
	}

	refs := ev.Refs()
	emitted := 0
	for _, ref := range refs {
		midi, err := pitch.Resolve(track.Tuning, ref.String, ref.Fret, track.Capo)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("m%d: %v; note skipped", measureIndex, err))
			continue
		}
		note := mn.CreateNode("note")
		if emitted > 0 {
			note.CreateNode("chord")
		}
		emitted++

		step, alter, octave := pitch.StepAlterOctave(midi)
		p := note.CreateNode("pitch")
		stepNode := p.CreateNode("step")
		stepNode.Text = step
		if alter != 0 {
			alterNode := p.CreateNode("alter")
			alterNode.Text = fmt.Sprint(alter)
		}
		octNode := p.CreateNode("octave")
		octNode.Text = fmt.Sprint(octave)

		addDuration(note, ev.Duration, voice)
		addNotations(note, ref)
	}

	if emitted == 0 && len(refs) > 0 {
		// Keep the voice's timeline intact when every ref was dropped.
		addRestDuration(mn, ev.Duration, voice)
	}
	return warnings
}

func addDuration(note *xml.Node, d model.Duration, voice int) {
	dur := note.CreateNode("duration")
	dur.Text = fmt.Sprint(d.Ticks(Divisions))
	v := note.CreateNode("voice")
	v.Text = fmt.Sprint(voice)
	t := note.CreateNode("type")
	t.Text = typeNames[d.Base]
	for i := 0; i < d.Dots; i++ {
		note.CreateNode("dot")
	}
	if d.Tuplet > 0 {
		tm := note.CreateNode("time-modification")
		actual := tm.CreateNode("actual-notes")
		actual.Text = fmt.Sprint(d.Tuplet)
		normal := tm.CreateNode("normal-notes")
		normal.Text = "2"
	}
}

func addNotations(note *xml.Node, ref model.NoteRef) {
	notations := note.CreateNode("notations")
	technical := notations.CreateNode("technical")
	str := technical.CreateNode("string")
	str.Text = fmt.Sprint(ref.String)
	fret := technical.CreateNode("fret")
	fret.Text = fmt.Sprint(ref.Fret)

	for _, tech := range ref.Techniques {
		switch tech.Kind {
		case model.TechHammerOn:
			h := technical.CreateNode("hammer-on")
			h.SetAttributeValue("type", "start")
			h.Text = "H"
		case model.TechPullOff:
			p := technical.CreateNode("pull-off")
			p.SetAttributeValue("type", "start")
			p.Text = "P"
		case model.TechSlide:
			s := notations.CreateNode("slide")
			s.SetAttributeValue("type", "start")
			if tech.Slide == model.SlideUp {
				s.SetAttributeValue("line-type", "solid")
			}
		case model.TechVibrato:
			orn := notations.CreateNode("ornaments")
			orn.CreateNode("wavy-line").SetAttributeValue("type", "start")
		}
	}
}

func addRestDuration(mn *xml.Node, d model.Duration, voice int) {
	note := mn.CreateNode("note")
	note.CreateNode("rest")
	addDuration(note, d, voice)
}

// addRestDivisions pads a voice to the measure boundary with rests built
// from the largest plain durations that fit.
func addRestDivisions(mn *xml.Node, divisions, voice int) {
	bases := []model.DurBase{
		model.BaseWhole, model.BaseHalf, model.BaseQuarter,
		model.BaseEighth, model.BaseSixteenth, model.BaseThirtySec,
	}
	for divisions > 0 {
		fit := false
		for _, b := range bases {
			d := model.Duration{Base: b}
			if t := d.Ticks(Divisions); t <= divisions {
				addRestDuration(mn, d, voice)
				divisions -= t
				fit = true
				break
			}
		}
		if !fit {
			addRest(mn, model.Duration{Base: model.BaseThirtySec}, voice, divisions)
			break
		}
	}
}

// addRest emits a rest with an explicit division count, used for the odd
// remainder a plain duration cannot express.
func addRest(mn *xml.Node, d model.Duration, voice, divisions int) {
	note := mn.CreateNode("note")
	note.CreateNode("rest")
	dur := note.CreateNode("duration")
	dur.Text = fmt.Sprint(divisions)
	v := note.CreateNode("voice")
	v.Text = fmt.Sprint(voice)
	t := note.CreateNode("type")
	t.Text = typeNames[d.Base]
}

// wholeMeasureDuration picks the display type for a full-measure rest.
func wholeMeasureDuration(ts model.TimeSignature) model.Duration {
	if ts.Numerator*4 >= ts.Denominator*2 {
		return model.Duration{Base: model.BaseWhole}
	}
	return model.Duration{Base: model.BaseHalf}
}

func voicesInOrder(tm model.TrackMeasure) []string {
	voices := make([]string, 0, len(tm))
	for voice := range tm {
		voices = append(voices, voice)
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

// Normalize strips volatile whitespace so two renderings can be compared
// structurally in tests.
func Normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, "")
}
