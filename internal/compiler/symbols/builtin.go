package symbols

import (
	"fmt"

	"github.com/arnavsurve/s7gen/internal/compiler/address"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

// Builtin is a symbol every controller (or every controller using a device)
// starts with. When Anchor is set the address is derived from the anchor's
// current address plus Bit and no range of its own is reserved.
type Builtin struct {
	Name    string
	Address string
	Type    string
	Comment string
	Anchor  string
	Bit     int
}

// ClockMemory names the clock memory byte of a CPU.
const ClockMemory = "Clock_Memory"

// CPUBuiltins are seeded into every controller.
var CPUBuiltins = []Builtin{
	{Name: ClockMemory, Address: "MB0", Type: "BYTE", Comment: "clock memory"},
	{Name: "Pulse_10Hz", Type: "BOOL", Comment: "10.0 Hz pulse", Anchor: ClockMemory, Bit: 0},
	{Name: "Pulse_5Hz", Type: "BOOL", Comment: "5.0 Hz pulse", Anchor: ClockMemory, Bit: 1},
	{Name: "Pulse_2.5Hz", Type: "BOOL", Comment: "2.5 Hz pulse", Anchor: ClockMemory, Bit: 2},
	{Name: "Pulse_2Hz", Type: "BOOL", Comment: "2.0 Hz pulse", Anchor: ClockMemory, Bit: 3},
	{Name: "Pulse_1.25Hz", Type: "BOOL", Comment: "1.25 Hz pulse", Anchor: ClockMemory, Bit: 4},
	{Name: "Pulse_1Hz", Type: "BOOL", Comment: "1.0 Hz pulse", Anchor: ClockMemory, Bit: 5},
	{Name: "Pulse_0.62Hz", Type: "BOOL", Comment: "0.62 Hz pulse", Anchor: ClockMemory, Bit: 6},
	{Name: "Pulse_0.5Hz", Type: "BOOL", Comment: "0.5 Hz pulse", Anchor: ClockMemory, Bit: 7},
}

// SeedBuiltins registers defs. Names the user already declared are kept as
// long as they are the same kind of symbol as the builtin.
func (t *Table) SeedBuiltins(defs []Builtin) error {
	for _, b := range defs {
		if sym, ok := t.names[b.Name]; ok {
			if err := b.accepts(sym); err != nil {
				return fmt.Errorf("builtin %q: %w", b.Name, err)
			}
			continue
		}
		if b.Anchor == "" {
			sym, err := t.Define(Def{Name: b.Name, Address: b.Address, Type: b.Type, Comment: b.Comment, Origin: OriginBuiltin})
			if err != nil {
				return fmt.Errorf("builtin %q: %w", b.Name, err)
			}
			sym.Origin = OriginBuiltin
			continue
		}

		anchor, ok := t.names[b.Anchor]
		if !ok {
			return fmt.Errorf("%w: builtin %q derives from unknown %q", lib.ErrMissingRequiredField, b.Name, b.Anchor)
		}
		sym := &Symbol{
			Name:    b.Name,
			Type:    NormalizeType(b.Type),
			Comment: b.Comment,
			Origin:  OriginDerived,
			anchor:  b.Anchor,
			bit:     b.Bit,
		}
		sym.Address = derive(anchor, b.Bit)
		t.insert(sym)
	}
	return nil
}

// accepts checks a user declaration standing in for b.
func (b Builtin) accepts(sym *Symbol) error {
	typ := NormalizeType(b.Type)
	if typ != "" && !SameType(typ, sym.Type) {
		return fmt.Errorf("%w: %q is %s, expected %s", lib.ErrTypeConflict, sym.Name, sym.Type, typ)
	}
	if b.Address == "" {
		return nil
	}
	a, err := address.Parse(b.Address)
	if err != nil {
		return err
	}
	if a.Area != sym.Address.Area || (!a.IsBlock() && a.Width != sym.Address.Width) {
		return fmt.Errorf("%w: %q is at %s, expected a %s address", lib.ErrTypeConflict, sym.Name, sym.Address, a.Area)
	}
	return nil
}

// Rederive moves every builtin derived from anchor to its current address.
func (t *Table) Rederive(anchor string) error {
	base, ok := t.names[anchor]
	if !ok {
		return fmt.Errorf("%w: unknown anchor %q", lib.ErrMissingRequiredField, anchor)
	}
	for _, sym := range t.Symbols() {
		if sym.Origin != OriginDerived || sym.anchor != anchor {
			continue
		}
		t.unindex(sym)
		sym.Address = derive(base, sym.bit)
		t.index(sym)
	}
	return nil
}

func derive(anchor *Symbol, bit int) address.Address {
	return address.FromOffset(anchor.Address.Area, anchor.Address.BitOffset()+bit, address.WidthBit)
}
