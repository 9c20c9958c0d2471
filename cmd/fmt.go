package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/opentab/otab/format"
	"github.com/opentab/otab/util"
)

var fmtWrite bool

func init() {
	fmtCmd.Flags().BoolVarP(&fmtWrite, "write", "w", false, "rewrite the file in place")
	rootCmd.AddCommand(fmtCmd)
}

var fmtCmd = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Pretty-print a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "reading input")
		}

		out, err := format.Format(string(data))
		if err != nil {
			return err
		}

		if fmtWrite {
			return errors.Wrap(util.WriteFileAtomic(args[0], []byte(out), 0644), "writing output")
		}
		fmt.Print(out)
		return nil
	},
}
