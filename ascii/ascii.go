// Package ascii renders a document as fixed-width monospaced tablature,
// one block per track. Rhythm is lost in this view: column widths come from
// fret digit counts, not from durations.
package ascii

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/opentab/otab/model"
)

// Encode renders every track of the document. Blocks are separated by a
// blank line.
func Encode(doc *model.Document) string {
	var blocks []string
	for _, track := range doc.Tracks {
		blocks = append(blocks, encodeTrack(doc, track))
	}
	return strings.Join(blocks, "\n")
}

func encodeTrack(doc *model.Document, track model.Track) string {
	count := doc.StringCount(track)
	labels := stringLabels(track, count)

	labelWidth := 0
	for _, l := range labels {
		if len(l) > labelWidth {
			labelWidth = len(l)
		}
	}

	var b strings.Builder
	name := track.Name
	if name == "" {
		name = track.ID
	}
	fmt.Fprintf(&b, "# Track: %s\n", name)

	for _, m := range doc.Measures {
		tm, ok := m.Tracks[track.ID]
		if !ok {
			continue
		}
		rows := renderMeasure(tm, count)
		fmt.Fprintf(&b, "// m%d\n", m.Index)
		for r := 0; r < count; r++ {
			fmt.Fprintf(&b, "%-*s |%s|\n", labelWidth, labels[r], rows[r])
		}
	}
	return b.String()
}

// stringLabels returns one label per output row, top row first. The top
// row is string 1, the highest-pitched string, so declared tunings are
// emitted in reverse.
func stringLabels(track model.Track, count int) []string {
	labels := make([]string, count)
	for r := 0; r < count; r++ {
		if len(track.Tuning) == count {
			labels[r] = track.Tuning[count-1-r]
		} else {
			labels[r] = "S" + strconv.Itoa(r+1)
		}
	}
	return labels
}

// renderMeasure builds one text row per string for the measure, walking
// all voices in order.
func renderMeasure(tm model.TrackMeasure, count int) []string {
	rows := make([]strings.Builder, count)
	events := eventsInOrder(tm)

	for i, ev := range events {
		width := columnWidth(ev)
		for r := 0; r < count; r++ {
			stringNum := r + 1
			fret, used := fretOn(ev, stringNum)
			if used {
				cell := strconv.Itoa(fret)
				rows[r].WriteString(cell)
				rows[r].WriteString(strings.Repeat("-", width-len(cell)))
			} else {
				rows[r].WriteString(strings.Repeat("-", width))
			}
			if i < len(events)-1 {
				rows[r].WriteString("-")
			}
		}
	}

	out := make([]string, count)
	for r := range rows {
		out[r] = rows[r].String()
	}
	return out
}

func eventsInOrder(tm model.TrackMeasure) []model.Event {
	voices := make([]string, 0, len(tm))
	for voice := range tm {
		voices = append(voices, voice)
	}
	sort.Slice(voices, func(i, j int) bool {
		if voices[i] == model.DefaultVoice {
			return true
		}
		if voices[j] == model.DefaultVoice {
			return false
		}
		return voices[i] < voices[j]
	})
	var events []model.Event
	for _, voice := range voices {
		events = append(events, tm[voice]...)
	}
	return events
}

// columnWidth is the widest fret digit-count in the event; rests take a
// single column.
func columnWidth(ev model.Event) int {
	width := 1
	for _, ref := range ev.Refs() {
		if w := len(strconv.Itoa(ref.Fret)); w > width {
			width = w
		}
	}
	return width
}

func fretOn(ev model.Event, stringNum int) (int, bool) {
	for _, ref := range ev.Refs() {
		if ref.String == stringNum {
			return ref.Fret, true
		}
	}
	return 0, false
}
