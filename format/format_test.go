package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opentab/otab/parser"
)

const messySource = `format="opentab"
version="0.1"
tempo_bpm=100
time_signature="4/4"

[[tracks]]
id="gtr1"
tuning=["E2","A2","D3","G3","B3","E4"]
---
@track gtr1
m1: |q (6:3)   (5:5)    (4:5) (3:3)|
`

func TestFormatExpandsDurationCarry(t *testing.T) {
	out, err := Format(messySource)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, "m1: | q (6:3) q (5:5) q (4:5) q (3:3) |")
}

func TestFormatIdempotent(t *testing.T) {
	once, err := Format(messySource)
	assert := assert.New(t)
	assert.NoError(err)

	twice, err := Format(once)
	assert.NoError(err)
	assert.Equal(once, twice)
}

func TestFormatPreservesModel(t *testing.T) {
	out, err := Format(messySource)
	assert := assert.New(t)
	assert.NoError(err)

	before, err := parser.Parse(messySource)
	assert.NoError(err)
	after, err := parser.Parse(out)
	assert.NoError(err)
	assert.Equal(before.Measures, after.Measures)
	assert.Equal(before.Tracks, after.Tracks)
}

func TestFormatDelimiterPadding(t *testing.T) {
	out, err := Format(messySource)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, "\n\n---\n\n")
	assert.True(strings.HasSuffix(out, "\n"))
}

func TestFormatMissingDelimiter(t *testing.T) {
	_, err := Format("format=\"opentab\"\nversion=\"0.1\"\n")
	if err == nil {
		t.Fatal("expected an error for a file with no --- delimiter")
	}
	assert.Contains(t, err.Error(), "missing --- delimiter")
}

func TestFormatKeepsComments(t *testing.T) {
	src := strings.Replace(messySource, "@track gtr1", "# intro riff\n@track gtr1", 1)
	src = strings.Replace(src, "(3:3)|", "(3:3)| # first bar", 1)
	out, err := Format(src)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, "# intro riff")
	assert.Contains(out, "(3:3) | # first bar")
}

func TestFormatUnknownHeaderKeysVerbatim(t *testing.T) {
	src := strings.Replace(messySource, `tempo_bpm=100`, "tempo_bpm=100\nimported_from=\"ascii\"", 1)
	out, err := Format(src)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, `imported_from="ascii"`)
}

func TestFormatEmptyMeasure(t *testing.T) {
	src := strings.Replace(messySource, "m1: |q (6:3)   (5:5)    (4:5) (3:3)|", "m1: | |", 1)
	out, err := Format(src)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, "m1: | |")
}

func TestFormatNormalizesChordSpacing(t *testing.T) {
	src := strings.Replace(messySource,
		"m1: |q (6:3)   (5:5)    (4:5) (3:3)|",
		"m1: | q [   (4:2)  (3:2)   (2:3) ] |", 1)
	out, err := Format(src)
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, "m1: | q [ (4:2) (3:2) (2:3) ] |")
}

func TestSerializeRoundTrip(t *testing.T) {
	doc, err := parser.Parse(messySource)
	assert := assert.New(t)
	assert.NoError(err)

	src := Serialize(doc)
	again, err := parser.Parse(src)
	assert.NoError(err)
	assert.Equal(doc.Measures, again.Measures)
	assert.Equal(doc.Tracks, again.Tracks)
	assert.Equal(doc.Header.TempoBPM, again.Header.TempoBPM)
	assert.Equal(doc.Header.Time, again.Header.Time)
}

func TestSerializeThenFormatStable(t *testing.T) {
	doc, err := parser.Parse(messySource)
	assert := assert.New(t)
	assert.NoError(err)

	src := Serialize(doc)
	a, err := Format(src)
	assert.NoError(err)
	b, err := Format(messySource)
	assert.NoError(err)
	assert.Contains(a, "m1: | q (6:3) q (5:5) q (4:5) q (3:3) |")
	assert.Contains(b, "m1: | q (6:3) q (5:5) q (4:5) q (3:3) |")
}

func TestSerializeOmitsDefaults(t *testing.T) {
	src := "format=\"opentab\"\nversion=\"0.1\"\n\n[[tracks]]\nid=\"gtr1\"\n---\n@track gtr1\nm1: | q r |\n"
	doc, err := parser.Parse(src)
	assert := assert.New(t)
	assert.NoError(err)

	out := Serialize(doc)
	assert.NotContains(out, "tempo_bpm")
	assert.NotContains(out, "time_signature")
}
