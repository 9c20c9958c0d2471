package tabimport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opentab/otab/parser"
)

const chorusTab = `Title: Smoke Test
Capo: 2

[Chorus]
e|-------0--|
B|----3-----|
G|--2-------|
D|----------|
A|----------|
E|----------|
`

func TestImportChorus(t *testing.T) {
	out, warnings, err := Import(chorusTab, Options{})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Empty(warnings)

	assert.Contains(out, `title="Smoke Test"`)
	assert.Contains(out, "capo=2")
	assert.Contains(out, `imported_from="ascii"`)
	assert.Contains(out, `tuning=["E2", "A2", "D3", "G3", "B3", "E4"]`)
	assert.Contains(out, "# [Chorus]")
	assert.Contains(out, "@track gtr1")
	assert.Contains(out, `m1: | e (3:2){rhythm="unknown"} e (2:3){rhythm="unknown"} e (1:0){rhythm="unknown"} |`)
}

func TestImportOutputParses(t *testing.T) {
	out, _, err := Import(chorusTab, Options{})
	assert := assert.New(t)
	assert.NoError(err)

	doc, err := parser.Parse(out)
	assert.NoError(err)
	assert.Len(doc.Measures, 1)
	assert.Equal("ascii", doc.Header.Extra["imported_from"])
}

func TestImportFixedEighthOmitsAnnotation(t *testing.T) {
	out, _, err := Import(chorusTab, Options{Rhythm: RhythmFixedEighth})
	assert := assert.New(t)
	assert.NoError(err)
	assert.NotContains(out, "rhythm=")
	assert.Contains(out, "m1: | e (3:2) e (2:3) e (1:0) |")
}

func TestImportColumnGrid(t *testing.T) {
	tab := `e|----------------|
B|----------------|
G|----------------|
D|----------------|
A|----------------|
E|0-------3-------|
`
	out, warnings, err := Import(tab, Options{Rhythm: RhythmColumnGrid})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(warnings, "column-grid rhythm inference is approximate")
	assert.Contains(out, "m1: | h (6:0) h (6:3) |")
}

func TestImportColumnGridDotted(t *testing.T) {
	tab := `e|----------------|
B|----------------|
G|----------------|
D|----------------|
A|----------------|
E|0-----------3---|
`
	out, _, err := Import(tab, Options{Rhythm: RhythmColumnGrid})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, "h. (6:0)")
}

func TestImportChordColumn(t *testing.T) {
	tab := `e|----------|
B|---3------|
G|---2------|
D|----------|
A|----------|
E|----------|
`
	out, _, err := Import(tab, Options{Rhythm: RhythmFixedEighth})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, "[ (2:3) (3:2) ]")
}

func TestImportTechniquesAndFlags(t *testing.T) {
	tab := `e|-----------------|
B|-----------------|
G|--3h5--(5)--7b9--|
D|-----------------|
A|-----------------|
E|-----------------|
`
	out, _, err := Import(tab, Options{Rhythm: RhythmFixedEighth})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, "(3:3h5)")
	assert.Contains(out, "(3:5){ghost=true}")
	assert.Contains(out, "(3:7){bend_to=9}")
}

func TestImportTuningMetadata(t *testing.T) {
	tab := "Tuning: D2 A2 D3 G3 B3 E4\n" + strings.Join([]string{
		"e|----------|",
		"B|----------|",
		"G|----------|",
		"D|----------|",
		"A|----------|",
		"E|--0-------|",
		"",
	}, "\n")
	out, _, err := Import(tab, Options{})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, `tuning=["D2", "A2", "D3", "G3", "B3", "E4"]`)
}

func TestImportBareLetterTuning(t *testing.T) {
	tab := "Tuning: D A D G B E\n" + strings.Join([]string{
		"e|----------|",
		"B|----------|",
		"G|----------|",
		"D|----------|",
		"A|----------|",
		"D|--0-------|",
		"",
	}, "\n")
	out, _, err := Import(tab, Options{})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, `tuning=["D2", "A2", "D3", "G3", "B3", "E4"]`)
}

func TestImportMultipleBlocks(t *testing.T) {
	tab := chorusTab + `
[Verse]
e|----------|
B|----------|
G|----------|
D|----------|
A|----------|
E|--3-------|
`
	out, _, err := Import(tab, Options{})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Contains(out, "# [Chorus]")
	assert.Contains(out, "# [Verse]")
	assert.Contains(out, "m1:")
	assert.Contains(out, "m2:")
}

func TestImportOddStringCountWarns(t *testing.T) {
	tab := `G|--2-------|
D|----------|
A|----------|
E|--0-------|
`
	_, warnings, err := Import(tab, Options{})
	assert := assert.New(t)
	assert.NoError(err)
	assert.NotEmpty(warnings)
	assert.Contains(warnings[0], "4 strings")
}

func TestImportNoTabRows(t *testing.T) {
	_, _, err := Import("just some prose\nwith no tab in it\n", Options{})
	if err == nil {
		t.Fatal("expected an error for input without tab rows")
	}
	assert.Contains(t, err.Error(), "no tab rows")
}

func TestImportUnknownStrategy(t *testing.T) {
	_, _, err := Import(chorusTab, Options{Rhythm: "swing-feel"})
	assert.Error(t, err)
}
