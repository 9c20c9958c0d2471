// Package tabimport recovers structure from free-form "internet tab" text.
// The importer never fails on messy input: everything ambiguous becomes a
// warning and the output is a best-effort document. Only a completely
// tab-free input yields an error.
package tabimport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/opentab/otab/format"
	"github.com/opentab/otab/pitch"
)

// Rhythm strategy names accepted by Import.
const (
	RhythmUnknown     = "unknown"
	RhythmFixedEighth = "fixed-eighth"
	RhythmColumnGrid  = "column-grid"
)

// Options selects the rhythm-assignment strategy. The zero value means
// RhythmUnknown.
type Options struct {
	Rhythm string
}

var standardTuning = []string{"E2", "A2", "D3", "G3", "B3", "E4"}

var (
	tabRowRe    = regexp.MustCompile(`^\s*([A-Ga-g][#b]?\d?)?\s*\|(.*)$`)
	sectionRe   = regexp.MustCompile(`^\s*\[([^\]\[]+)\]\s*$`)
	metaRe      = regexp.MustCompile(`^\s*(Title|Tuning|Capo|Key)\s*:\s*(.*?)\s*$`)
	chordNameRe = regexp.MustCompile(`^[A-G][#b]?(m|maj|min|dim|aug|sus)?\d*(/[A-G][#b]?)?$`)
	noteNameRe  = regexp.MustCompile(`^[A-Ga-g][#b]?$`)
	capoNumRe   = regexp.MustCompile(`\d+`)
)

// importer accumulates state across the pipeline passes.
type importer struct {
	opts     Options
	warnings []string

	title     string
	key       string
	tuning    []string
	tuningSet bool
	capo      int

	bodyLines []string
	measureNo int
}

func (im *importer) warnf(f string, args ...any) {
	im.warnings = append(im.warnings, fmt.Sprintf(f, args...))
}

// Import converts tab text to source text plus the warnings gathered along
// the way. The returned source has already been through the formatter.
func Import(text string, opts Options) (string, []string, error) {
	switch opts.Rhythm {
	case "", RhythmUnknown:
		opts.Rhythm = RhythmUnknown
	case RhythmFixedEighth, RhythmColumnGrid:
	default:
		return "", nil, fmt.Errorf("unknown rhythm strategy %q", opts.Rhythm)
	}

	im := &importer{opts: opts, tuning: standardTuning}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	blocks, interludes := splitBlocks(lines)
	if len(blocks) == 0 {
		return "", im.warnings, fmt.Errorf("no tab rows found in input")
	}

	im.scanMetadata(interludes[0])

	if opts.Rhythm == RhythmColumnGrid {
		im.warnf("column-grid rhythm inference is approximate")
	}

	for i, block := range blocks {
		im.emitInterlude(interludes[i])
		im.importBlock(block)
	}

	src := im.render()
	out, err := format.Format(src)
	if err != nil {
		return src, im.warnings, fmt.Errorf("formatting imported source: %w", err)
	}
	return out, im.warnings, nil
}

// block is one run of consecutive tab rows.
type block struct {
	labels []string
	rows   []string
}

// splitBlocks partitions the input into tab blocks and the plain-text runs
// between them. interludes[i] is the text before blocks[i]; the slice has
// one extra trailing entry for text after the last block.
func splitBlocks(lines []string) ([]block, [][]string) {
	var blocks []block
	var interludes [][]string
	var current []string

	i := 0
	for i < len(lines) {
		if _, _, ok := tabRow(lines[i]); ok {
			b := block{}
			for i < len(lines) {
				l, c, rowOK := tabRow(lines[i])
				if !rowOK {
					break
				}
				b.labels = append(b.labels, l)
				b.rows = append(b.rows, c)
				i++
			}
			interludes = append(interludes, current)
			current = nil
			blocks = append(blocks, b)
			continue
		}
		current = append(current, lines[i])
		i++
	}
	interludes = append(interludes, current)
	return blocks, interludes
}

// tabRow reports whether the line looks like one string of a tab block:
// an optional string label, a pipe, then mostly dashes and frets.
func tabRow(line string) (label, content string, ok bool) {
	m := tabRowRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	content = m[2]
	if strings.Count(content, "-") < 3 {
		return "", "", false
	}
	for _, r := range content {
		switch {
		case r == '-' || r == '|' || r == ' ' || r == '(' || r == ')' || r == '.':
		case r >= '0' && r <= '9':
		case r == 'h' || r == 'p' || r == '/' || r == '\\' || r == '~' || r == 'b' || r == 'x':
		default:
			return "", "", false
		}
	}
	return m[1], content, true
}

// scanMetadata reads the header lines before the first block.
func (im *importer) scanMetadata(lines []string) {
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || sectionRe.MatchString(line) || isChordLine(line) {
			continue
		}
		if m := metaRe.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "Title":
				im.title = m[2]
			case "Key":
				im.key = m[2]
			case "Capo":
				im.setCapo(m[2])
			case "Tuning":
				im.setTuning(m[2])
			}
			continue
		}
		if im.title == "" {
			im.title = line
		}
	}
}

func (im *importer) setCapo(v string) {
	if strings.EqualFold(strings.TrimSpace(v), "no capo") {
		im.capo = 0
		return
	}
	if m := capoNumRe.FindString(v); m != "" {
		im.capo, _ = strconv.Atoi(m)
		return
	}
	im.warnf("unrecognized capo value %q", v)
}

// setTuning accepts either full scientific names ("E2 A2 D3 G3 B3 E4") or
// bare note letters ("E A D G B E"), low to high, assigning standard
// octaves to the bare form.
func (im *importer) setTuning(v string) {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ' ' || r == ',' })
	var names []string
	for _, f := range fields {
		if f != "" {
			names = append(names, f)
		}
	}
	if len(names) == 0 {
		im.warnf("unrecognized tuning %q; using standard", v)
		return
	}

	full := true
	for _, n := range names {
		if !pitch.Valid(n) {
			full = false
			break
		}
	}
	if full {
		im.tuning = names
		im.tuningSet = true
		return
	}

	var tuning []string
	for i, n := range names {
		if !noteNameRe.MatchString(n) {
			im.warnf("unrecognized tuning %q; using standard", v)
			return
		}
		tuning = append(tuning, strings.ToUpper(n[:1])+n[1:]+strconv.Itoa(octaveFor(i, len(names))))
	}
	im.tuning = tuning
	im.tuningSet = true
}

// octaveFor distributes octaves 2..4 across the strings the way a guitar
// does. Index is low to high.
func octaveFor(i, count int) int {
	if count == 6 {
		return []int{2, 2, 3, 3, 3, 4}[i]
	}
	return 2 + i*3/count
}

// isChordLine reports whether every token on the line is a chord name.
func isChordLine(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !chordNameRe.MatchString(f) {
			return false
		}
	}
	return true
}

// emitInterlude passes sections and chord lines through as body comments so
// the imported file keeps its structure markers.
func (im *importer) emitInterlude(lines []string) {
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if sectionRe.MatchString(line) || isChordLine(line) {
			im.bodyLines = append(im.bodyLines, "# "+line)
		}
	}
}

func (im *importer) importBlock(b block) {
	if len(b.rows) != 6 {
		im.warnf("tab block has %d strings, expected 6", len(b.rows))
	}
	im.adoptLabels(b.labels)

	measures := splitMeasures(b, im)
	for _, cells := range measures {
		notes := im.scanMeasure(cells)
		events := groupChords(notes)
		im.measureNo++
		im.bodyLines = append(im.bodyLines, im.renderMeasure(im.measureNo, events, measureWidth(cells)))
	}
}

// adoptLabels derives a tuning from the block's row labels when the
// metadata did not supply one. Rows are top down, so labels reverse into
// low-to-high tuning order.
func (im *importer) adoptLabels(labels []string) {
	if im.tuningSet {
		return
	}
	n := len(labels)
	var names []string
	for i := n - 1; i >= 0; i-- {
		l := labels[i]
		if l == "" || !noteNameRe.MatchString(strings.TrimRight(l, "0123456789")) {
			return
		}
		names = append(names, l)
	}

	var tuning []string
	for i, l := range names {
		if pitch.Valid(l) {
			tuning = append(tuning, strings.ToUpper(l[:1])+l[1:])
			continue
		}
		tuning = append(tuning, strings.ToUpper(l[:1])+l[1:]+strconv.Itoa(octaveFor(i, n)))
	}
	im.tuning = tuning
	im.tuningSet = true
}

// splitMeasures slices every row on the bar columns of the longest row.
// cells[measure][row] is the row's text for that measure.
func splitMeasures(b block, im *importer) [][][]byte {
	ref := 0
	for i, row := range b.rows {
		if len(row) > len(b.rows[ref]) {
			ref = i
		}
	}
	refRow := b.rows[ref]

	var bars []int
	for i := 0; i < len(refRow); i++ {
		if refRow[i] == '|' {
			bars = append(bars, i)
		}
	}
	bars = append(bars, len(refRow))

	for i, row := range b.rows {
		if len(row) != len(refRow) {
			im.warnf("tab row %d length %d differs from reference %d; padded", i+1, len(row), len(refRow))
		}
		for _, c := range bars[:len(bars)-1] {
			if c < len(row) && row[c] != '|' {
				im.warnf("tab row %d bar misaligned at column %d", i+1, c+1)
			}
		}
	}

	var measures [][][]byte
	start := 0
	for _, bar := range bars {
		if bar > start {
			cells := make([][]byte, len(b.rows))
			for r, row := range b.rows {
				cells[r] = sliceRow(row, start, bar)
			}
			if hasContent(cells) {
				measures = append(measures, cells)
			}
		}
		start = bar + 1
	}
	return measures
}

func sliceRow(row string, start, end int) []byte {
	cell := make([]byte, end-start)
	for i := range cell {
		p := start + i
		if p < len(row) {
			cell[i] = row[p]
		} else {
			cell[i] = '-'
		}
	}
	return cell
}

func hasContent(cells [][]byte) bool {
	for _, cell := range cells {
		for _, c := range cell {
			if c != '-' && c != ' ' {
				return true
			}
		}
	}
	return false
}

func measureWidth(cells [][]byte) int {
	if len(cells) == 0 {
		return 0
	}
	return len(cells[0])
}
