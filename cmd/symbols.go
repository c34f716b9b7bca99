package cmd

import (
	"fmt"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/arnavsurve/s7gen/internal/compiler"
)

// symbols: print the resolved symbol tables
var SymbolsCmd = &cobra.Command{
	Use:   "symbols [dir]",
	Short: "Print the resolved symbol table of every CPU",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := compiler.Compile(workDir(args), compiler.Options{Logger: logger(), NoConvert: true})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range res.CPUs {
			fmt.Fprintf(out, "// %s\n", aurora.Cyan(c.Name))
			fmt.Fprint(out, c.Symbols.ASC())
		}
		return nil
	},
}
