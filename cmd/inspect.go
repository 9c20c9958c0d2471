package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opentab/otab/midifile"
	"github.com/opentab/otab/util"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Summarize a file's tracks and measures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("title: %s\n", doc.Header.Title)
		fmt.Printf("tempo: %d bpm, time: %d/%d\n",
			doc.Header.TempoBPM, doc.Header.Time.Numerator, doc.Header.Time.Denominator)
		fmt.Printf("tracks: %d, measures: %d\n", len(doc.Tracks), len(doc.Measures))

		for _, track := range doc.Tracks {
			fmt.Printf("\ntrack %s (%d strings, capo %d)\n",
				track.ID, doc.StringCount(track), track.Capo)
			for _, m := range doc.Measures {
				tm, ok := m.Tracks[track.ID]
				if !ok {
					continue
				}
				for _, voice := range util.GetKeys(tm) {
					events := tm[voice]
					ticks := 0
					for _, ev := range events {
						ticks += ev.Duration.Ticks(midifile.PPQ)
					}
					fmt.Printf("  m%d %s: %d event(s), %d ticks\n", m.Index, voice, len(events), ticks)
				}
			}
		}
		return nil
	},
}
