package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/opentab/otab/diag"
)

func init() {
	rootCmd.AddCommand(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint <file>",
	Short: "Print line diagnostics for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "reading input")
		}

		diags := diag.Validate(string(data))
		for _, d := range diags {
			fmt.Printf("%s:%d:%d: %s: %s\n", args[0], d.Line, d.StartCol, d.Severity, d.Message)
		}
		if len(diags) > 0 {
			return fmt.Errorf("%d diagnostic(s)", len(diags))
		}
		return nil
	},
}
