package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opentab/otab/model"
)

const minimalSource = `format="opentab"
version="0.1"
tempo_bpm=100
time_signature="4/4"

[[tracks]]
id="gtr1"
tuning=["E2","A2","D3","G3","B3","E4"]
---
@track gtr1
m1: | q (6:3) (5:5) (4:5) (3:3) |
`

func TestParseMinimal(t *testing.T) {
	doc, err := Parse(minimalSource)
	assert := assert.New(t)
	assert.NoError(err)

	assert.Equal("opentab", doc.Header.Format)
	assert.Equal("0.1", doc.Header.Version)
	assert.Equal(100, doc.Header.TempoBPM)
	assert.Equal(4, doc.Header.Time.Numerator)
	assert.Equal(4, doc.Header.Time.Denominator)

	assert.Len(doc.Tracks, 1)
	assert.Equal("gtr1", doc.Tracks[0].ID)
	assert.Equal([]string{"E2", "A2", "D3", "G3", "B3", "E4"}, doc.Tracks[0].Tuning)

	assert.Len(doc.Measures, 1)
	events := doc.Measures[0].Tracks["gtr1"][model.DefaultVoice]
	assert.Len(events, 4)
	for _, ev := range events {
		assert.Equal(model.EventNote, ev.Kind)
		assert.Equal(model.Duration{Base: model.BaseQuarter}, ev.Duration)
	}
	assert.Equal(model.NoteRef{String: 6, Fret: 3}, events[0].Note)
	assert.Equal(model.NoteRef{String: 3, Fret: 3}, events[3].Note)
}

func TestParseDurationCarry(t *testing.T) {
	src := header("gtr1") + "@track gtr1\nm1: | e (6:0) (6:2) q (5:0) (5:2) |\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	events := doc.Measures[0].Tracks["gtr1"][model.DefaultVoice]
	assert.Len(events, 4)
	assert.Equal(model.BaseEighth, events[0].Duration.Base)
	assert.Equal(model.BaseEighth, events[1].Duration.Base)
	assert.Equal(model.BaseQuarter, events[2].Duration.Base)
	assert.Equal(model.BaseQuarter, events[3].Duration.Base)
}

func TestParseChordAndRest(t *testing.T) {
	src := header("gtr1") + "@track gtr1\nm1: | e (3:2h4) (2:3) q [ (4:2) (3:2) (2:3) ] q r |\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	events := doc.Measures[0].Tracks["gtr1"][model.DefaultVoice]
	assert.Len(events, 4)

	hammer := events[0]
	assert.Equal(model.EventNote, hammer.Kind)
	assert.Len(hammer.Note.Techniques, 1)
	assert.Equal(model.TechHammerOn, hammer.Note.Techniques[0].Kind)
	assert.Equal(2, hammer.Note.Techniques[0].FromFret)
	assert.Equal(4, hammer.Note.Techniques[0].ToFret)

	assert.Equal(model.EventNote, events[1].Kind)

	chord := events[2]
	assert.Equal(model.EventChord, chord.Kind)
	assert.Len(chord.Chord, 3)
	assert.Equal(model.NoteRef{String: 4, Fret: 2}, chord.Chord[0])

	rest := events[3]
	assert.Equal(model.EventRest, rest.Kind)
	assert.Equal(model.BaseQuarter, rest.Duration.Base)
}

func TestParseTechniqueChain(t *testing.T) {
	src := header("gtr1") + "@track gtr1\nm1: | q (3:2h4p2/5~) |\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	note := doc.Measures[0].Tracks["gtr1"][model.DefaultVoice][0].Note
	assert.Len(note.Techniques, 4)
	assert.Equal(model.TechHammerOn, note.Techniques[0].Kind)
	assert.Equal(model.TechPullOff, note.Techniques[1].Kind)
	assert.Equal(4, note.Techniques[1].FromFret)
	assert.Equal(2, note.Techniques[1].ToFret)
	assert.Equal(model.TechSlide, note.Techniques[2].Kind)
	assert.Equal(model.SlideUp, note.Techniques[2].Slide)
	assert.Equal(model.TechVibrato, note.Techniques[3].Kind)
}

func TestParseAnnotationSuffix(t *testing.T) {
	src := header("gtr1") + "@track gtr1\nm1: | q (6:3){accent=true, text=\"pick up\"} |\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	ev := doc.Measures[0].Tracks["gtr1"][model.DefaultVoice][0]
	assert.Equal(true, ev.Annotations["accent"])
	assert.Equal("pick up", ev.Annotations["text"])
	assert.Empty(ev.Note.Annotations)
}

func TestParseMeasureBeforeTrackFails(t *testing.T) {
	src := header("gtr1") + "m1: | q (6:3) |\n"
	_, err := Parse(src)
	assert := assert.New(t)
	assert.Error(err)
	assert.Contains(err.Error(), "Measure defined before selecting track/voice")

	var perr *ParseError
	assert.ErrorAs(err, &perr)
	assert.Equal(ErrNoTrack, perr.Kind)
}

func TestParseMissingDelimiterFails(t *testing.T) {
	_, err := Parse("format=\"opentab\"\nversion=\"0.1\"\n")
	assert := assert.New(t)
	assert.Error(err)

	var perr *ParseError
	assert.ErrorAs(err, &perr)
	assert.Equal(ErrMissingDelimiter, perr.Kind)
}

func TestParseUnsupportedFormat(t *testing.T) {
	src := strings.Replace(minimalSource, `format="opentab"`, `format="tabz"`, 1)
	_, err := Parse(src)
	var perr *ParseError
	assert := assert.New(t)
	assert.ErrorAs(err, &perr)
	assert.Equal(ErrUnsupportedFormat, perr.Kind)
}

func TestParseBadTimeSignature(t *testing.T) {
	for _, bad := range []string{`"4/3"`, `"0/4"`, `"44"`, `"x/y"`} {
		src := strings.Replace(minimalSource, `time_signature="4/4"`, "time_signature="+bad, 1)
		_, err := Parse(src)
		if err == nil {
			t.Errorf("expected error for time_signature=%s", bad)
			continue
		}
		var perr *ParseError
		assert.ErrorAs(t, err, &perr)
		assert.Equal(t, ErrBadTimeSignature, perr.Kind)
	}
}

func TestParseEventBeforeDurationFails(t *testing.T) {
	src := header("gtr1") + "@track gtr1\nm1: | (6:3) |\n"
	_, err := Parse(src)
	assert := assert.New(t)
	assert.Error(err)
	assert.Contains(err.Error(), "before any duration")
}

func TestParseDurationDoesNotCarryAcrossMeasures(t *testing.T) {
	src := header("gtr1") + "@track gtr1\nm1: | q (6:0) |\nm2: | (6:2) |\n"
	_, err := Parse(src)
	if err == nil {
		t.Error("expected duration carry to reset at the measure boundary")
	}
}

func TestParseLastWriterWins(t *testing.T) {
	src := header("gtr1") + "@track gtr1\nm1: | q (6:0) |\nm1: | q (6:5) |\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	events := doc.Measures[0].Tracks["gtr1"][model.DefaultVoice]
	assert.Len(events, 1)
	assert.Equal(5, events[0].Note.Fret)
}

func TestParseVoices(t *testing.T) {
	src := header("gtr1") +
		"@track gtr1 voice v1\nm1: | q (6:0) |\n@track gtr1 voice v2\nm1: | h (1:0) |\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	tm := doc.Measures[0].Tracks["gtr1"]
	assert.Len(tm, 2)
	assert.Len(tm["v1"], 1)
	assert.Len(tm["v2"], 1)
}

func TestParseImplicitTrackWarns(t *testing.T) {
	src := header("gtr1") + "@track mystery\nm1: | q (6:0) |\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)
	assert.NotEmpty(doc.Warnings)

	_, ok := doc.TrackByID("mystery")
	assert.True(ok)
}

func TestParseMeasuresSortedByIndex(t *testing.T) {
	src := header("gtr1") + "@track gtr1\nm3: | q (6:0) |\nm1: | q (6:1) |\nm2: | q (6:2) |\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Len(doc.Measures, 3)
	assert.Equal(1, doc.Measures[0].Index)
	assert.Equal(2, doc.Measures[1].Index)
	assert.Equal(3, doc.Measures[2].Index)
}

func TestParseDefaults(t *testing.T) {
	src := "format=\"opentab\"\nversion=\"0.1\"\n\n[[tracks]]\nid=\"gtr1\"\n---\n@track gtr1\nm1: | q r |\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal(model.DefaultTempoBPM, doc.Header.TempoBPM)
	assert.Equal(4, doc.Header.Time.Numerator)
	assert.Equal(4, doc.Header.Time.Denominator)
}

func TestParseUnknownHeaderKeysPassThrough(t *testing.T) {
	src := strings.Replace(minimalSource, `tempo_bpm=100`, "tempo_bpm=100\nimported_from=\"ascii\"", 1)
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal("ascii", doc.Header.Extra["imported_from"])
}

func TestParseCommentsIgnored(t *testing.T) {
	src := header("gtr1") + "# intro riff\n@track gtr1\nm1: | q (6:3) | # first bar\n"
	doc, err := Parse(src)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Len(doc.Measures[0].Tracks["gtr1"][model.DefaultVoice], 1)
}

func header(trackID string) string {
	return "format=\"opentab\"\nversion=\"0.1\"\ntempo_bpm=100\ntime_signature=\"4/4\"\n\n" +
		"[[tracks]]\nid=\"" + trackID + "\"\ntuning=[\"E2\",\"A2\",\"D3\",\"G3\",\"B3\",\"E4\"]\n---\n"
}
