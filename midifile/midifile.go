// Package midifile encodes a document as a Standard MIDI File. Output is
// format 0 for single-track documents and format 1 otherwise, at 480 ticks
// per quarter note. The encoder is permissive: notes it cannot resolve are
// dropped and reported as warnings, never as errors.
package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/opentab/otab/model"
	"github.com/opentab/otab/pitch"
)

// PPQ is the fixed division of every file this package writes.
const PPQ = 480

const defaultVelocity = 64

// scheduled is one absolute-tick message before delta conversion. Order
// breaks ties at equal ticks: metas, then note-offs, then note-ons, so a
// note ending exactly when another starts does not swallow it.
type scheduled struct {
	tick  int
	order int
	msg   smf.Message
}

const (
	orderMeta = iota
	orderNoteOff
	orderNoteOn
)

// Encode renders the document as SMF bytes plus a list of warnings for
// dropped or unresolvable notes.
func Encode(doc *model.Document) ([]byte, []string, error) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(PPQ)

	var warnings []string
	for i, track := range doc.Tracks {
		events, w := scheduleTrack(doc, track, i)
		warnings = append(warnings, w...)

		sort.SliceStable(events, func(a, b int) bool {
			if events[a].tick != events[b].tick {
				return events[a].tick < events[b].tick
			}
			return events[a].order < events[b].order
		})

		var tr smf.Track
		prev := 0
		for _, ev := range events {
			tr.Add(uint32(ev.tick-prev), ev.msg)
			prev = ev.tick
		}
		tr.Close(0)
		s.Add(tr)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, warnings, err
	}
	return buf.Bytes(), warnings, nil
}

// ExpectedMeasureTicks is the nominal tick span of one measure under the
// document time signature.
func ExpectedMeasureTicks(ts model.TimeSignature) int {
	return PPQ * ts.Numerator * 4 / ts.Denominator
}

func scheduleTrack(doc *model.Document, track model.Track, trackIndex int) ([]scheduled, []string) {
	var warnings []string
	channel := uint8(trackIndex % 16)

	events := []scheduled{
		{tick: 0, order: orderMeta, msg: smf.MetaTempo(float64(doc.Header.TempoBPM))},
		{tick: 0, order: orderMeta, msg: smf.MetaMeter(uint8(doc.Header.Time.Numerator), uint8(doc.Header.Time.Denominator))},
	}
	if track.Name != "" {
		events = append(events, scheduled{tick: 0, order: orderMeta, msg: smf.MetaTrackSequenceName(track.Name)})
	}

	if len(track.Tuning) == 0 {
		warnings = append(warnings, fmt.Sprintf("track %q has no tuning; its notes were skipped", track.ID))
	}

	expected := ExpectedMeasureTicks(doc.Header.Time)
	cursor := 0
	for _, m := range doc.Measures {
		span := expected
		tm, ok := m.Tracks[track.ID]
		if !ok {
			cursor += span
			continue
		}

		for _, voiceEvents := range tm {
			voiceTick := cursor
			for _, ev := range voiceEvents {
				ticks := ev.Duration.Ticks(PPQ)
				if len(track.Tuning) > 0 {
					notes, w := resolveRefs(track, ev, m.Index)
					warnings = append(warnings, w...)
					for _, key := range notes {
						events = append(events,
							scheduled{tick: voiceTick, order: orderNoteOn, msg: smf.Message(gomidi.NoteOn(channel, key, defaultVelocity))},
							scheduled{tick: voiceTick + ticks, order: orderNoteOff, msg: smf.Message(gomidi.NoteOff(channel, key))},
						)
					}
				}
				voiceTick += ticks
			}
			if voiceTick-cursor > span {
				span = voiceTick - cursor
			}
		}
		cursor += span
	}

	return events, warnings
}

// resolveRefs maps the event's note refs to MIDI keys, dropping anything
// outside 0..127 or off the fretboard.
func resolveRefs(track model.Track, ev model.Event, measureIndex int) ([]uint8, []string) {
	var keys []uint8
	var warnings []string
	for _, ref := range ev.Refs() {
		note, err := pitch.Resolve(track.Tuning, ref.String, ref.Fret, track.Capo)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("m%d: %v; note skipped", measureIndex, err))
			continue
		}
		if note < 0 || note > 127 {
			warnings = append(warnings, fmt.Sprintf("m%d: pitch %d for (%d:%d) outside MIDI range; note skipped",
				measureIndex, note, ref.String, ref.Fret))
			continue
		}
		keys = append(keys, uint8(note))
	}
	return keys, warnings
}

// ResolvePitch exposes the encoder's tuning+capo pitch rule for other
// encoders and tests.
func ResolvePitch(track model.Track, ref model.NoteRef) (int, error) {
	return pitch.Resolve(track.Tuning, ref.String, ref.Fret, track.Capo)
}

// Read parses SMF bytes back into gomidi's in-memory form, guarding
// against panics in the underlying reader.
func Read(data []byte) (s *smf.SMF, e error) {
	defer func() {
		if r, ok := recover().(string); ok {
			e = errors.New(r)
		}
	}()

	res, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing midi bytes: %w", err)
	}
	return res, nil
}
