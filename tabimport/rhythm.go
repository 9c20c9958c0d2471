package tabimport

import (
	"fmt"
	"strings"
)

var grids = []int{4, 8, 16, 32}

// ladder orders duration letters from longest to shortest; moving one index
// up halves the note value.
var ladder = []byte{'w', 'h', 'q', 'e', 's', 't'}

// gridBase is the ladder index of a single grid step.
func gridBase(grid int) int {
	switch grid {
	case 4:
		return 2
	case 8:
		return 3
	case 16:
		return 4
	default:
		return 5
	}
}

// durationFor picks the duration token for an event spanning [col, nextCol)
// in a measure of the given width.
func (im *importer) durationFor(col, nextCol, width int) string {
	switch im.opts.Rhythm {
	case RhythmColumnGrid:
		return im.gridDuration(col, nextCol, width)
	default:
		return "e"
	}
}

// gridDuration snaps the event span to the grid nearest the measure width
// and maps the step count to a plain or dotted duration.
func (im *importer) gridDuration(col, nextCol, width int) string {
	grid := grids[0]
	for _, g := range grids[1:] {
		if abs(width-g) < abs(width-grid) {
			grid = g
		}
	}

	stepWidth := float64(width) / float64(grid)
	steps := int(float64(nextCol-col)/stepWidth + 0.5)
	if steps < 1 {
		steps = 1
	}
	if steps > grid {
		steps = grid
	}

	base := gridBase(grid)
	pow := 0
	for (1 << (pow + 1)) <= steps {
		pow++
	}
	whole := 1 << pow

	idx := base - pow
	if idx < 0 {
		idx = 0
	}
	tok := string(ladder[idx])
	if steps == whole+whole/2 && idx > 0 {
		// A span of 3, 6, 12 or 24 steps is a dotted value one rung down.
		tok = string(ladder[idx]) + "."
	}
	return tok
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// render assembles the final source text: inferred header, one track and
// the collected body lines.
func (im *importer) render() string {
	var b strings.Builder
	b.WriteString("format=\"opentab\"\n")
	b.WriteString("version=\"0.1\"\n")
	if im.title != "" {
		fmt.Fprintf(&b, "title=%q\n", im.title)
	}
	if im.key != "" {
		fmt.Fprintf(&b, "key=%q\n", im.key)
	}
	b.WriteString("imported_from=\"ascii\"\n")
	fmt.Fprintf(&b, "import_warnings=%d\n", len(im.warnings))
	b.WriteString("\n[[tracks]]\n")
	b.WriteString("id=\"gtr1\"\n")
	fmt.Fprintf(&b, "tuning=[%s]\n", quoteList(im.tuning))
	if im.capo > 0 {
		fmt.Fprintf(&b, "capo=%d\n", im.capo)
	}
	b.WriteString("---\n")
	b.WriteString("@track gtr1\n")
	for _, line := range im.bodyLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func quoteList(items []string) string {
	var parts []string
	for _, s := range items {
		parts = append(parts, fmt.Sprintf("%q", s))
	}
	return strings.Join(parts, ", ")
}
