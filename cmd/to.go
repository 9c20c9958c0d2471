package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opentab/otab/ascii"
	"github.com/opentab/otab/midifile"
	"github.com/opentab/otab/model"
	"github.com/opentab/otab/musicxml"
	"github.com/opentab/otab/parser"
	"github.com/opentab/otab/schema"
	"github.com/opentab/otab/util"
)

var toOut string

func init() {
	toCmd.PersistentFlags().StringVarP(&toOut, "output", "o", "", "output file (stdout when omitted)")
	toCmd.AddCommand(toAsciiCmd, toMidiCmd, toMusicXMLCmd)
	rootCmd.AddCommand(toCmd)
}

var toCmd = &cobra.Command{
	Use:   "to",
	Short: "Convert a file to another notation",
}

var toAsciiCmd = &cobra.Command{
	Use:   "ascii <file>",
	Short: "Render as monospaced tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}
		return emit([]byte(ascii.Encode(doc)))
	},
}

var toMidiCmd = &cobra.Command{
	Use:   "midi <file>",
	Short: "Encode as a Standard MIDI File",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}
		data, warnings, err := midifile.Encode(doc)
		for _, w := range warnings {
			log.Warn(w)
		}
		if err != nil {
			return err
		}
		if toOut == "" {
			return fmt.Errorf("midi output is binary; use -o to name a file")
		}
		return emit(data)
	},
}

var toMusicXMLCmd = &cobra.Command{
	Use:   "musicxml <file>",
	Short: "Encode as MusicXML 3.1 partwise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument(args[0])
		if err != nil {
			return err
		}
		out, warnings := musicxml.Encode(doc)
		for _, w := range warnings {
			log.Warn(w)
		}
		return emit([]byte(out))
	},
}

// loadDocument reads, parses and validates an input file for the converter
// commands.
func loadDocument(path string) (*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading input")
	}
	doc, err := parser.Parse(string(data))
	if err != nil {
		return nil, err
	}
	if res := schema.Validate(doc); !res.OK {
		var msgs []string
		for _, issue := range res.Errors {
			msgs = append(msgs, issue.Path+": "+issue.Message)
		}
		return nil, fmt.Errorf("document failed validation:\n%s", strings.Join(msgs, "\n"))
	}
	for _, w := range doc.Warnings {
		log.Warn(w)
	}
	return doc, nil
}

func emit(data []byte) error {
	if toOut == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return errors.Wrap(util.WriteFileAtomic(toOut, data, 0644), "writing output")
}
