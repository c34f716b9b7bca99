package cmd

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
)

//go:embed scaffold/*.yml
var scaffoldFS embed.FS

var cpuName string

// init: scaffold an example configuration
var InitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Scaffold an example configuration set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return scaffold(args[0], cpuName)
	},
}

func init() {
	InitCmd.Flags().StringVar(&cpuName, "cpu", "AS1", "name of the scaffolded CPU")
}

func scaffold(dir, name string) error {
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%s already exists", dir)
	}
	tmpl, err := template.ParseFS(scaffoldFS, "scaffold/*.yml")
	if err != nil {
		return err
	}
	fmt.Printf("↪ scaffolding configuration of %q in %s ...\n", name, dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, t := range tmpl.Templates() {
		f, err := os.Create(filepath.Join(dir, t.Name()))
		if err != nil {
			return err
		}
		err = t.Execute(f, struct{ CPU string }{name})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}
