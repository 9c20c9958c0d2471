package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opentab/otab/parser"
	"github.com/opentab/otab/schema"
)

func init() {
	rootCmd.AddCommand(parseCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a file and print the document model as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "reading input")
		}

		doc, err := parser.Parse(string(data))
		if err != nil {
			return err
		}

		if res := schema.Validate(doc); !res.OK {
			for _, issue := range res.Errors {
				fmt.Fprintf(os.Stderr, "%s: %s\n", issue.Path, issue.Message)
			}
			return fmt.Errorf("document failed validation with %d issue(s)", len(res.Errors))
		}

		for _, w := range doc.Warnings {
			log.Warn(w)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}
