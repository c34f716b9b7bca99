package device

import (
	"fmt"
	"path"
	"strings"

	"github.com/arnavsurve/s7gen/internal/compiler/address"
	"github.com/arnavsurve/s7gen/internal/compiler/cpu"
	"github.com/arnavsurve/s7gen/internal/compiler/emitter"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

// CPUDevices are the controller models a CPU document may name.
var CPUDevices = []string{
	"IM151-8PN/DP",
	"CPU31x-2PN/DP",
	"CPU314C-2PN/DP",
	"CPU317-2PN/DP",
	"IM154-8PN/DP",
	"CPU319-3PN/DP",
	"CPU315T-3PN/DP",
	"CPU317T-3PN/DP",
	"CPU317TF-3PN/DP",
	"CPU412-2PN",
	"CPU414-3PN/DP",
	"CPU416-3PN/DP",
	"CPU412-5H_PN/DP",
	"CPU414-5H_PN/DP",
	"CPU416-5H_PN/DP",
	"CPU417-5H_PN/DP",
	"CPU410-5H",
}

// CPU configures the controller itself. Its builtins are seeded with every
// controller, so the feature only checks where the clock memory ended up.
func CPU() *Feature {
	return &Feature{
		Name:         "CPU",
		ParseSymbols: parseCPU,
		Generate:     generateCPU,
	}
}

func parseCPU(a *Area) error {
	c := a.CPU
	if dev := a.Doc.Device; dev != "" {
		if !knownDevice(dev) {
			return fmt.Errorf("%w: unknown CPU device %q", lib.ErrMalformedExpression, dev)
		}
		c.Device = dev
	}
	switch p := strings.ToLower(a.Doc.Platform); p {
	case "":
	case cpu.PlatformStep7, cpu.PlatformPortal:
		c.Platform = p
	default:
		return fmt.Errorf("%w: unknown platform %q", lib.ErrMalformedExpression, a.Doc.Platform)
	}
	if dir := a.Doc.Options.OutputDir; dir != "" {
		c.OutputDir = dir
	}

	cm, ok := c.Symbols.Lookup(symbols.ClockMemory)
	if !ok {
		return fmt.Errorf("%w: %s", lib.ErrMissingRequiredField, symbols.ClockMemory)
	}
	if cm.Address.Area != address.AreaM || cm.Address.Width != address.WidthByte {
		return fmt.Errorf("%w: %s must be a memory byte, got %s", lib.ErrTypeConflict, symbols.ClockMemory, cm.Address)
	}
	return c.Symbols.Rederive(symbols.ClockMemory)
}

func knownDevice(dev string) bool {
	for _, d := range CPUDevices {
		if strings.EqualFold(d, dev) {
			return true
		}
	}
	return false
}

func generateCPU(a *Area) ([]emitter.Rule, error) {
	if strings.TrimSpace(a.Includes) == "" {
		return nil, nil
	}
	return []emitter.Rule{{
		Path:     a.OutputFile("CPU", ".scl"),
		Template: lookupTemplate("cpu.tmpl"),
		Tags:     struct{ Header Header }{a.Header()},
	}}, nil
}

// SymbolsRule renders the symbol table of c for STEP 7 import.
func SymbolsRule(c *cpu.CPU) emitter.Rule {
	var lines []string
	for _, sym := range c.Symbols.Symbols() {
		lines = append(lines, c.Symbols.ASCLine(sym))
	}
	return emitter.Rule{
		Path:     path.Join(c.OutputDir, "symbols.asc"),
		Template: lookupTemplate("symbols.tmpl"),
		Tags:     lines,
	}
}
