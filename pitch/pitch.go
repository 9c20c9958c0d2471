// Package pitch converts scientific pitch names ("E2", "F#3", "Bb-1") to
// MIDI note numbers and back. Tuning strings in track headers use this
// notation, ordered low to high.
package pitch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var nameRe = regexp.MustCompile(`^([A-Ga-g])([#b]?)(-?\d+)$`)

var stepOffsets = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// Parse returns the MIDI note number for a scientific pitch name. C4 is 60.
func Parse(name string) (int, error) {
	m := nameRe.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return 0, fmt.Errorf("invalid pitch name %q", name)
	}
	step := strings.ToUpper(m[1])
	semitone := stepOffsets[step]
	switch m[2] {
	case "#":
		semitone++
	case "b":
		semitone--
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, fmt.Errorf("invalid pitch octave in %q", name)
	}
	return (octave+1)*12 + semitone, nil
}

// Valid reports whether name matches the pitch-name grammar.
func Valid(name string) bool {
	return nameRe.MatchString(strings.TrimSpace(name))
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Name renders a MIDI note number as a sharp-spelled scientific pitch name.
func Name(midi int) string {
	octave := midi/12 - 1
	return sharpNames[((midi%12)+12)%12] + strconv.Itoa(octave)
}

// StepAlterOctave splits a MIDI note number into the MusicXML pitch triple:
// natural step letter, alter (0 or 1, sharps only) and octave.
func StepAlterOctave(midi int) (step string, alter int, octave int) {
	octave = midi/12 - 1
	name := sharpNames[((midi%12)+12)%12]
	step = name[:1]
	if strings.HasSuffix(name, "#") {
		alter = 1
	}
	return step, alter, octave
}

// Resolve computes the sounding MIDI note for a (string, fret) pair against
// a tuning, applying the capo. String 1 is the highest-pitched string, so
// string S opens on tuning[len(tuning)-S].
func Resolve(tuning []string, stringNum, fret, capo int) (int, error) {
	n := len(tuning)
	if stringNum < 1 || stringNum > n {
		return 0, fmt.Errorf("string %d out of range for %d-string tuning", stringNum, n)
	}
	open, err := Parse(tuning[n-stringNum])
	if err != nil {
		return 0, err
	}
	return open + fret + capo, nil
}
