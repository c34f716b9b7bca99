package main

import (
	"fmt"
	"os"

	"github.com/logrusorgru/aurora"

	"github.com/arnavsurve/s7gen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, aurora.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}
