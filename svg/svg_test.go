package svg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opentab/otab/parser"
)

const source = `format="opentab"
version="0.1"
tempo_bpm=100
time_signature="4/4"

[[tracks]]
id="gtr1"
name="Lead & Rhythm"
tuning=["E2","A2","D3","G3","B3","E4"]
---
@track gtr1
m1: | q (6:3) (5:5) (4:5) (3:3) |
`

func TestRender(t *testing.T) {
	doc, err := parser.Parse(source)
	assert := assert.New(t)
	assert.NoError(err)

	out := Render(doc)
	assert.True(strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(out, `xmlns="http://www.w3.org/2000/svg"`)
	assert.Contains(out, "E2 |3------|")
	assert.True(strings.HasSuffix(out, "</svg>\n"))
}

func TestRenderEscapesMarkup(t *testing.T) {
	doc, err := parser.Parse(source)
	assert := assert.New(t)
	assert.NoError(err)

	out := Render(doc)
	assert.Contains(out, "Lead &amp; Rhythm")
	assert.NotContains(out, "Lead & Rhythm")
}

func TestRenderOneTextPerLine(t *testing.T) {
	doc, err := parser.Parse(source)
	assert := assert.New(t)
	assert.NoError(err)

	out := Render(doc)
	lines := strings.Count(out, "<text ")
	assert.Equal(8, lines)
}
