package midifile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opentab/otab/model"
	"github.com/opentab/otab/parser"
)

const powerChordSource = `format="opentab"
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

type noteEvent struct {
	tick int
	on   bool
	key  uint8
}

func collectNotes(t *testing.T, data []byte) []noteEvent {
	t.Helper()
	s, err := Read(data)
	if err != nil {
		t.Fatalf("reading back encoded midi: %v", err)
	}
	var notes []noteEvent
	for _, tr := range s.Tracks {
		tick := 0
		for _, ev := range tr {
			tick += int(ev.Delta)
			var ch, key, vel uint8
			if ev.Message.GetNoteStart(&ch, &key, &vel) {
				notes = append(notes, noteEvent{tick: tick, on: true, key: key})
			} else if ev.Message.GetNoteEnd(&ch, &key) {
				notes = append(notes, noteEvent{tick: tick, on: false, key: key})
			}
		}
	}
	return notes
}

func TestEncodeHeaderBytes(t *testing.T) {
	doc, err := parser.Parse(powerChordSource)
	assert := assert.New(t)
	assert.NoError(err)

	data, warnings, err := Encode(doc)
	assert.NoError(err)
	assert.Empty(warnings)

	assert.Equal([]byte{0x4D, 0x54, 0x68, 0x64}, data[:4])
	assert.Equal(byte(0x01), data[12])
	assert.Equal(byte(0xE0), data[13])
}

func TestEncodeTickSchedule(t *testing.T) {
	doc, err := parser.Parse(powerChordSource)
	assert := assert.New(t)
	assert.NoError(err)

	data, _, err := Encode(doc)
	assert.NoError(err)

	notes := collectNotes(t, data)
	assert.Len(notes, 8)

	var ons, offs []noteEvent
	for _, n := range notes {
		if n.on {
			ons = append(ons, n)
		} else {
			offs = append(offs, n)
		}
	}
	assert.Equal([]noteEvent{
		{tick: 0, on: true, key: 43},
		{tick: 480, on: true, key: 50},
		{tick: 960, on: true, key: 55},
		{tick: 1440, on: true, key: 58},
	}, ons)
	assert.Equal([]noteEvent{
		{tick: 480, on: false, key: 43},
		{tick: 960, on: false, key: 50},
		{tick: 1440, on: false, key: 55},
		{tick: 1920, on: false, key: 58},
	}, offs)
}

func TestEncodeOffBeforeOnAtSameTick(t *testing.T) {
	doc, err := parser.Parse(powerChordSource)
	if err != nil {
		t.Fatal(err)
	}
	data, _, err := Encode(doc)
	if err != nil {
		t.Fatal(err)
	}

	notes := collectNotes(t, data)
	for i := 1; i < len(notes); i++ {
		if notes[i].tick != notes[i-1].tick {
			continue
		}
		if notes[i-1].on && !notes[i].on {
			t.Errorf("note-off follows note-on at tick %d", notes[i].tick)
		}
	}
}

func TestEncodeChordStartsTogether(t *testing.T) {
	src := strings.Replace(powerChordSource,
		"m1: | q (6:3) (5:5) (4:5) (3:3) |",
		"m1: | w [ (4:2) (3:2) (2:3) ] |", 1)
	doc, err := parser.Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	data, _, err := Encode(doc)
	assert.NoError(err)

	notes := collectNotes(t, data)
	assert.Len(notes, 6)
	for _, n := range notes {
		if n.on {
			assert.Equal(0, n.tick)
		} else {
			assert.Equal(4*PPQ, n.tick)
		}
	}
}

func TestEncodeCapoShiftsPitch(t *testing.T) {
	src := strings.Replace(powerChordSource, "tuning=[\"E2\",\"A2\",\"D3\",\"G3\",\"B3\",\"E4\"]",
		"tuning=[\"E2\",\"A2\",\"D3\",\"G3\",\"B3\",\"E4\"]\ncapo=2", 1)
	doc, err := parser.Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	data, _, err := Encode(doc)
	assert.NoError(err)

	notes := collectNotes(t, data)
	assert.Equal(uint8(45), notes[0].key)
}

func TestEncodeMissingTuningWarns(t *testing.T) {
	src := strings.Replace(powerChordSource, "tuning=[\"E2\",\"A2\",\"D3\",\"G3\",\"B3\",\"E4\"]\n", "", 1)
	doc, err := parser.Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	data, warnings, err := Encode(doc)
	assert.NoError(err)
	assert.NotEmpty(data)
	assert.Len(warnings, 1)
	assert.Contains(warnings[0], "no tuning")
	assert.Empty(collectNotes(t, data))
}

func TestEncodeOutOfRangeStringWarns(t *testing.T) {
	src := strings.Replace(powerChordSource, "(5:5)", "(9:5)", 1)
	doc, err := parser.Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	data, warnings, err := Encode(doc)
	assert.NoError(err)
	assert.Len(warnings, 1)
	assert.Contains(warnings[0], "note skipped")
	assert.Len(collectNotes(t, data), 6)
}

func TestExpectedMeasureTicks(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(1920, ExpectedMeasureTicks(model.TimeSignature{Numerator: 4, Denominator: 4}))
	assert.Equal(1440, ExpectedMeasureTicks(model.TimeSignature{Numerator: 3, Denominator: 4}))
	assert.Equal(1680, ExpectedMeasureTicks(model.TimeSignature{Numerator: 7, Denominator: 8}))
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read([]byte("not a midi file"))
	assert.Error(t, err)
}
