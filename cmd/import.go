package cmd

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opentab/otab/gpx"
	"github.com/opentab/otab/tabimport"
	"github.com/opentab/otab/util"
)

var (
	importOut    string
	importRhythm string
)

func init() {
	importCmd.PersistentFlags().StringVarP(&importOut, "output", "o", "", "output file (stdout when omitted)")
	importAsciiCmd.Flags().StringVar(&importRhythm, "rhythm", tabimport.RhythmUnknown,
		"rhythm strategy: unknown, fixed-eighth or column-grid")
	importCmd.AddCommand(importGpCmd, importAsciiCmd)
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import external notation",
}

var importGpCmd = &cobra.Command{
	Use:   "gp <file.gpx>",
	Short: "Import a Guitar Pro archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "reading input")
		}
		src, warnings, err := gpx.Import(data)
		for _, w := range warnings {
			log.Warn(w)
		}
		if err != nil {
			return err
		}
		return emitImport(src)
	},
}

var importAsciiCmd = &cobra.Command{
	Use:   "ascii <file.txt>",
	Short: "Import free-form tab text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "reading input")
		}
		src, warnings, err := tabimport.Import(string(data), tabimport.Options{Rhythm: importRhythm})
		for _, w := range warnings {
			log.Warn(w)
		}
		if err != nil {
			return err
		}
		return emitImport(src)
	},
}

func emitImport(src string) error {
	if importOut == "" {
		_, err := os.Stdout.WriteString(src)
		return err
	}
	return errors.Wrap(util.WriteFileAtomic(importOut, []byte(src), 0644), "writing output")
}
