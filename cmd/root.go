package cmd

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	outDir  string
	silent  bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "s7gen",
	Short: "s7gen — STEP 7 configuration compiler",
	Long: `s7gen compiles YAML configuration documents into SCL sources and a
symbol table for Siemens STEP 7 controllers.

Commands:
  init     Scaffold an example configuration set
  build    Compile the configuration of a directory into SCL
  check    Validate a configuration without writing anything
  symbols  Print the resolved symbol table of every CPU
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", ".", "output root for generated files")
	rootCmd.PersistentFlags().BoolVarP(&silent, "silent", "s", false, "suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "report each CPU after resolution")

	rootCmd.AddCommand(InitCmd, BuildCmd, CheckCmd, SymbolsCmd)
}

func logger() *log.Logger {
	if silent {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "", 0)
}

// workDir is the configuration directory given on the command line.
func workDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
