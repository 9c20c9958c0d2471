// Package gpx imports Guitar Pro archives. A .gpx file is a zip container
// holding a GPIF XML score; the importer unzips it, decodes the score and
// emits source text. Beat effects the format cannot express are reported
// as warnings and dropped.
package gpx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/opentab/otab/format"
	"github.com/opentab/otab/pitch"
)

// Import converts .gpx archive bytes to source text plus warnings. It fails
// when the archive is unreadable, holds no .gpif entry, or its score cannot
// be decoded or has no tracks.
func Import(data []byte) (string, []string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("opening gpx archive: %w", err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".gpif") {
			entry = f
			break
		}
	}
	if entry == nil {
		return "", nil, fmt.Errorf("no .gpif entry in archive")
	}

	rc, err := entry.Open()
	if err != nil {
		return "", nil, fmt.Errorf("opening %s: %w", entry.Name, err)
	}
	defer rc.Close()

	var score gpif
	dec := xml.NewDecoder(rc)
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&score); err != nil {
		return "", nil, fmt.Errorf("decoding %s: %w", entry.Name, err)
	}

	return convert(&score)
}

// GPIF wire structures. Collections are flat and id-addressed; the
// hierarchy is rebuilt through the space-separated ref lists.

type gpif struct {
	Score struct {
		Title  string `xml:"Title"`
		Artist string `xml:"Artist"`
	} `xml:"Score"`
	MasterTrack struct {
		Automations []automation `xml:"Automations>Automation"`
	} `xml:"MasterTrack"`
	MasterBars []masterBar `xml:"MasterBars>MasterBar"`
	Tracks     []gpTrack   `xml:"Tracks>Track"`
	Bars       []gpBar     `xml:"Bars>Bar"`
	Voices     []gpVoice   `xml:"Voices>Voice"`
	Beats      []gpBeat    `xml:"Beats>Beat"`
	Notes      []gpNote    `xml:"Notes>Note"`
}

type automation struct {
	Type  string `xml:"Type"`
	Value string `xml:"Value"`
}

type masterBar struct {
	Time string `xml:"Time"`
	Bars string `xml:"Bars"`
}

type gpTrack struct {
	ID         int          `xml:"id,attr"`
	Name       string       `xml:"Name"`
	ShortName  string       `xml:"ShortName"`
	Properties []gpProperty `xml:"Properties>Property"`
	Staves     []struct {
		Properties []gpProperty `xml:"Properties>Property"`
	} `xml:"Staves>Staff"`
}

type gpBar struct {
	ID     int    `xml:"id,attr"`
	Voices string `xml:"Voices"`
}

type gpVoice struct {
	ID    int    `xml:"id,attr"`
	Beats string `xml:"Beats"`
}

type gpBeat struct {
	ID       int    `xml:"id,attr"`
	Notes    string `xml:"Notes"`
	Duration struct {
		Value  int `xml:"Value"`
		Dots   int `xml:"Dots"`
		Tuplet int `xml:"Tuplet"`
	} `xml:"Duration"`
	Properties []gpProperty `xml:"Properties>Property"`
}

type gpNote struct {
	ID         int          `xml:"id,attr"`
	Properties []gpProperty `xml:"Properties>Property"`
}

type gpProperty struct {
	Name    string `xml:"name,attr"`
	Fret    *int   `xml:"Fret"`
	String  *int   `xml:"String"`
	Pitches string `xml:"Pitches"`
}

var durValues = map[int]string{1: "w", 2: "h", 4: "q", 8: "e", 16: "s", 32: "t"}

// effectProps are note and beat properties the importer recognizes but
// cannot carry over.
var effectProps = map[string]bool{
	"Bended": true, "Slide": true, "HopoOrigin": true, "HopoDestination": true,
	"HarmonicType": true, "PalmMuted": true, "Muted": true, "LetRing": true,
	"Tapped": true, "Vibrato": true,
}

func convert(score *gpif) (string, []string, error) {
	var warnings []string
	warnf := func(f string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(f, args...))
	}

	if len(score.Tracks) == 0 {
		return "", warnings, fmt.Errorf("gpif score has no tracks")
	}

	bars := indexBars(score.Bars)
	voices := indexVoices(score.Voices)
	beats := indexBeats(score.Beats)
	notes := indexNotes(score.Notes)

	tempo := tempoOf(score)
	timeSig := "4/4"
	if len(score.MasterBars) > 0 && score.MasterBars[0].Time != "" {
		timeSig = strings.ReplaceAll(score.MasterBars[0].Time, " ", "")
	}

	var b strings.Builder
	b.WriteString("format=\"opentab\"\n")
	b.WriteString("version=\"0.1\"\n")
	if score.Score.Title != "" {
		fmt.Fprintf(&b, "title=%q\n", score.Score.Title)
	}
	if score.Score.Artist != "" {
		fmt.Fprintf(&b, "artist=%q\n", score.Score.Artist)
	}
	if tempo > 0 {
		fmt.Fprintf(&b, "tempo_bpm=%d\n", tempo)
	}
	fmt.Fprintf(&b, "time_signature=%q\n", timeSig)

	trackIDs := make([]string, len(score.Tracks))
	tunings := make([][]string, len(score.Tracks))
	for i, t := range score.Tracks {
		trackIDs[i] = fmt.Sprintf("tr%d", i+1)
		tunings[i] = trackTuning(t)
		b.WriteString("\n[[tracks]]\n")
		fmt.Fprintf(&b, "id=%q\n", trackIDs[i])
		if t.Name != "" {
			fmt.Fprintf(&b, "name=%q\n", t.Name)
		}
		if len(tunings[i]) > 0 {
			fmt.Fprintf(&b, "tuning=[%s]\n", quoteList(tunings[i]))
		} else {
			warnf("track %q has no tuning property", t.Name)
		}
	}

	b.WriteString("---\n")
	for ti := range score.Tracks {
		stringCount := len(tunings[ti])
		for mi, mb := range score.MasterBars {
			barIDs := intList(mb.Bars)
			if ti >= len(barIDs) {
				continue
			}
			bar, ok := bars[barIDs[ti]]
			if !ok {
				warnf("master bar %d references unknown bar %d", mi+1, barIDs[ti])
				continue
			}
			for vi, voiceID := range intList(bar.Voices) {
				if voiceID < 0 {
					continue
				}
				voice, ok := voices[voiceID]
				if !ok {
					warnf("bar %d references unknown voice %d", bar.ID, voiceID)
					continue
				}
				line := renderVoice(voice, beats, notes, stringCount, mi+1, warnf)
				if line == "" {
					continue
				}
				fmt.Fprintf(&b, "@track %s voice v%d\n", trackIDs[ti], vi+1)
				fmt.Fprintf(&b, "m%d: | %s |\n", mi+1, line)
			}
		}
	}

	out, err := format.Format(b.String())
	if err != nil {
		return b.String(), warnings, fmt.Errorf("formatting imported source: %w", err)
	}
	return out, warnings, nil
}

func renderVoice(voice gpVoice, beats map[int]gpBeat, notes map[int]gpNote, stringCount, measure int, warnf func(string, ...any)) string {
	var toks []string
	for _, beatID := range intList(voice.Beats) {
		beat, ok := beats[beatID]
		if !ok {
			warnf("m%d: unknown beat %d", measure, beatID)
			continue
		}

		base, ok := durValues[beat.Duration.Value]
		if !ok {
			warnf("m%d: unsupported duration value %d; quarter assumed", measure, beat.Duration.Value)
			base = "q"
		}
		dur := base + strings.Repeat(".", beat.Duration.Dots)
		if beat.Duration.Tuplet >= 2 {
			dur += "/" + strconv.Itoa(beat.Duration.Tuplet)
		}

		for _, p := range beat.Properties {
			if effectProps[p.Name] {
				warnf("m%d: beat effect %s ignored", measure, p.Name)
			}
		}

		var refs []string
		for _, noteID := range intList(beat.Notes) {
			note, ok := notes[noteID]
			if !ok {
				warnf("m%d: unknown note %d", measure, noteID)
				continue
			}
			ref, ok := renderNote(note, stringCount, measure, warnf)
			if ok {
				refs = append(refs, ref)
			}
		}

		switch len(refs) {
		case 0:
			toks = append(toks, dur, "r")
		case 1:
			toks = append(toks, dur, refs[0])
		default:
			toks = append(toks, dur, "[ "+strings.Join(refs, " ")+" ]")
		}
	}
	return strings.Join(toks, " ")
}

// renderNote maps a GPIF note to a token. GPIF numbers strings 0-based from
// the lowest-pitched, while the output numbers them 1-based from the
// highest, so the value flips across the string count.
func renderNote(note gpNote, stringCount, measure int, warnf func(string, ...any)) (string, bool) {
	var fret, str *int
	for _, p := range note.Properties {
		switch p.Name {
		case "Fret":
			fret = p.Fret
		case "String":
			str = p.String
		default:
			if effectProps[p.Name] {
				warnf("m%d: note effect %s ignored", measure, p.Name)
			}
		}
	}
	if fret == nil || str == nil {
		warnf("m%d: note %d missing string or fret; skipped", measure, note.ID)
		return "", false
	}
	stringNum := stringCount - *str
	if stringCount == 0 {
		stringNum = *str + 1
	}
	return fmt.Sprintf("(%d:%d)", stringNum, *fret), true
}

// trackTuning reads the Tuning property's MIDI pitches, checking the track
// itself and then its staves.
func trackTuning(t gpTrack) []string {
	props := t.Properties
	for _, staff := range t.Staves {
		props = append(props, staff.Properties...)
	}
	for _, p := range props {
		if p.Name != "Tuning" || p.Pitches == "" {
			continue
		}
		var tuning []string
		for _, v := range intList(p.Pitches) {
			tuning = append(tuning, pitch.Name(v))
		}
		return tuning
	}
	return nil
}

func tempoOf(score *gpif) int {
	for _, a := range score.MasterTrack.Automations {
		if a.Type != "Tempo" {
			continue
		}
		fields := strings.Fields(a.Value)
		if len(fields) == 0 {
			continue
		}
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
			return int(v)
		}
	}
	return 0
}

func indexBars(items []gpBar) map[int]gpBar {
	m := make(map[int]gpBar, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

func indexVoices(items []gpVoice) map[int]gpVoice {
	m := make(map[int]gpVoice, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

func indexBeats(items []gpBeat) map[int]gpBeat {
	m := make(map[int]gpBeat, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

func indexNotes(items []gpNote) map[int]gpNote {
	m := make(map[int]gpNote, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}

// intList parses a space-separated id list; malformed entries are skipped.
func intList(s string) []int {
	var out []int
	for _, f := range strings.Fields(s) {
		if v, err := strconv.Atoi(f); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func quoteList(items []string) string {
	var parts []string
	for _, s := range items {
		parts = append(parts, fmt.Sprintf("%q", s))
	}
	return strings.Join(parts, ", ")
}
