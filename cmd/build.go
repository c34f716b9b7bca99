package cmd

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/arnavsurve/s7gen/internal/compiler"
	"github.com/arnavsurve/s7gen/internal/compiler/emitter"
)

var (
	noConvert bool
	zyml      bool
	dump      bool
	crlf      bool
	libDir    string
	encoding  string
)

// build: compile a configuration directory
var BuildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Compile the configuration documents of dir into SCL",
	Args:  cobra.MaximumNArgs(1),
	RunE:  buildRun,
}

// check: validate only
var CheckCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Validate the configuration documents of dir",
	Args:  cobra.MaximumNArgs(1),
	RunE:  checkRun,
}

func init() {
	f := BuildCmd.Flags()
	f.BoolVar(&noConvert, "no-convert", false, "resolve and validate without generating")
	f.BoolVar(&zyml, "zyml", false, "also write <cpu>.zyml, the configuration without comments")
	f.BoolVar(&dump, "dump", false, "dump the resolved symbol tables")
	f.BoolVar(&crlf, "crlf", true, "write CRLF line endings")
	f.StringVar(&libDir, "lib", "", "library directory of the device FBs to copy")
	f.StringVar(&encoding, "encoding", emitter.EncodingUTF8, "output encoding, utf8 or gbk")
}

func buildRun(cmd *cobra.Command, args []string) error {
	return runBuild(workDir(args), noConvert)
}

func checkRun(cmd *cobra.Command, args []string) error {
	return runBuild(workDir(args), true)
}

func runBuild(dir string, validateOnly bool) error {
	l := logger()
	l.Printf("↪ building %q → %q ...", dir, outDir+"/")
	opts := compiler.Options{
		Logger:    l,
		NoConvert: validateOnly,
		Zyml:      zyml,
		LibDir:    libDir,
		Encoding:  encoding,
		CRLF:      crlf,
		OutDir:    outDir,
	}
	res, err := compiler.Compile(dir, opts)
	if err != nil {
		return err
	}

	for _, c := range res.CPUs {
		if verbose {
			l.Printf("%s: %s on %s, %d symbols", aurora.Bold(c.Name), c.Device, c.Platform, c.Symbols.Len())
		}
		if dump {
			cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true}
			cfg.Fdump(os.Stdout, c.Symbols.Symbols())
		}
	}

	if validateOnly {
		l.Println(aurora.Green("configuration is valid"))
		return nil
	}
	written, err := compiler.Write(res, opts)
	if err != nil {
		return err
	}
	l.Println(aurora.Green(fmt.Sprintf("✔︎ wrote %d files to %s", len(written), outDir)))
	return nil
}
