package symbols

import (
	"errors"
	"strings"
	"testing"

	"github.com/arnavsurve/s7gen/internal/compiler/alloc"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

func newTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable(alloc.NewSet())
	if err := tbl.SeedBuiltins(CPUBuiltins); err != nil {
		t.Fatalf("seed builtins: %v", err)
	}
	return tbl
}

func define(t *testing.T, tbl *Table, name, addr, typ string) *Symbol {
	t.Helper()
	sym, err := tbl.Define(Def{Name: name, Address: addr, Type: typ})
	if err != nil {
		t.Fatalf("define %s: %v", name, err)
	}
	return sym
}

func TestParseDef(t *testing.T) {
	def, err := ParseDef([]string{"Motor_Run", "M20.1", "BOOL", "run feedback"})
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "Motor_Run" || def.Address != "M20.1" || def.Type != "BOOL" || def.Comment != "run feedback" {
		t.Errorf("unexpected def %+v", def)
	}
	if _, err := ParseDef(nil); !errors.Is(err, lib.ErrMalformedExpression) {
		t.Errorf("expected ErrMalformedExpression, got=%v", err)
	}
	if _, err := ParseDef([]string{"a", "b", "c", "d", "e"}); !errors.Is(err, lib.ErrMalformedExpression) {
		t.Errorf("expected ErrMalformedExpression, got=%v", err)
	}
}

func TestDefineIdempotent(t *testing.T) {
	tbl := newTable(t)
	first := define(t, tbl, "X", "M10.0", "BOOL")
	second, err := tbl.Define(Def{Name: "X", Address: "M10.0", Type: "BOOL", Comment: "c"})
	if err != nil {
		t.Fatalf("re-reference: %v", err)
	}
	if first != second {
		t.Errorf("expected the same symbol on re-reference")
	}
	if second.Comment != "c" {
		t.Errorf("expected comment=c, got=%q", second.Comment)
	}

	bare, err := tbl.Define(Def{Name: "X"})
	if err != nil || bare != first {
		t.Errorf("bare reference: expected existing symbol, got=%v %v", bare, err)
	}

	_, err = tbl.Define(Def{Name: "X", Address: "M10.1", Type: "BOOL"})
	if !errors.Is(err, lib.ErrDuplicateDefinition) {
		t.Errorf("expected ErrDuplicateDefinition, got=%v", err)
	}
}

func TestDefineTypeConflict(t *testing.T) {
	tbl := newTable(t)
	define(t, tbl, "Level", "MW20", "INT")

	_, err := tbl.Define(Def{Name: "Level", Type: "REAL"})
	if !errors.Is(err, lib.ErrTypeConflict) {
		t.Errorf("expected ErrTypeConflict, got=%v", err)
	}

	// width of the address must fit the type
	_, err = tbl.Define(Def{Name: "Flag", Address: "MW30", Type: "BOOL"})
	if !errors.Is(err, lib.ErrTypeConflict) {
		t.Errorf("expected ErrTypeConflict, got=%v", err)
	}
	_, err = tbl.Define(Def{Name: "Inst", Address: "DB7", Type: "REAL"})
	if !errors.Is(err, lib.ErrTypeConflict) {
		t.Errorf("expected ErrTypeConflict, got=%v", err)
	}
}

func TestDefineUniqueness(t *testing.T) {
	tbl := newTable(t)
	define(t, tbl, "A", "DB100", "")
	_, err := tbl.Define(Def{Name: "B", Address: "DB100"})
	if !errors.Is(err, lib.ErrDuplicateAddress) {
		t.Errorf("expected ErrDuplicateAddress, got=%v", err)
	}
	define(t, tbl, "W", "MW20", "WORD")
	_, err = tbl.Define(Def{Name: "Bit", Address: "M21.3", Type: "BOOL"})
	if !errors.Is(err, lib.ErrOverlappingAddress) {
		t.Errorf("expected ErrOverlappingAddress, got=%v", err)
	}

	seen := map[string]string{}
	for _, sym := range tbl.Symbols() {
		if sym.Origin == OriginDerived {
			continue
		}
		key := sym.Address.String()
		if other, ok := seen[key]; ok {
			t.Errorf("%s and %s share %s", other, sym.Name, key)
		}
		seen[key] = sym.Name
	}
}

func TestDefineAuto(t *testing.T) {
	tbl := newTable(t)
	tests := []struct {
		name, addr, typ string
		expected        string
		expectedType    string
	}{
		{"Run", "", "BOOL", "M1.0", "BOOL"},
		{"Count", "", "INT", "MW2", "INT"},
		{"Total", "MD+", "DINT", "MD4", "DINT"},
		{"Stop", "M+", "", "M1.1", "BOOL"},
		{"Pump_DB", "DB+", "", "DB100", "Pump_DB"},
		{"Pump_Proc", "", "FB", "FB256", "Pump_Proc"},
		{"Pump_Loop", "", "FC", "FC256", "Pump_Loop"},
		{"Pump_T", "", "UDT", "UDT256", "Pump_T"},
		{"Pump1", "", "Pump_Proc", "DB101", "Pump_Proc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym := define(t, tbl, tt.name, tt.addr, tt.typ)
			if sym.Address.String() != tt.expected {
				t.Errorf("expected address=%s, got=%s", tt.expected, sym.Address)
			}
			if sym.Type != tt.expectedType {
				t.Errorf("expected type=%s, got=%s", tt.expectedType, sym.Type)
			}
		})
	}

	if _, err := tbl.Define(Def{Name: "Nothing"}); !errors.Is(err, lib.ErrMissingRequiredField) {
		t.Errorf("expected ErrMissingRequiredField, got=%v", err)
	}
}

func TestClockMemoryRelocation(t *testing.T) {
	tbl := newTable(t)

	if sym, _ := tbl.Lookup("Pulse_10Hz"); sym.Address.String() != "M0.0" {
		t.Fatalf("expected Pulse_10Hz at M0.0, got=%s", sym.Address)
	}

	define(t, tbl, ClockMemory, "MB10", "BYTE")

	expected := []string{"M10.0", "M10.1", "M10.2", "M10.3", "M10.4", "M10.5", "M10.6", "M10.7"}
	for i, b := range CPUBuiltins[1:] {
		sym, ok := tbl.Lookup(b.Name)
		if !ok {
			t.Fatalf("missing builtin %s", b.Name)
		}
		if sym.Address.String() != expected[i] {
			t.Errorf("%s: expected address=%s, got=%s", b.Name, expected[i], sym.Address)
		}
	}

	if sym, ok := tbl.FindByAddress("M10.5"); !ok || sym.Name != "Pulse_1Hz" {
		t.Errorf("expected Pulse_1Hz at M10.5, got=%v", sym)
	}
	if _, ok := tbl.FindByAddress("M0.5"); ok {
		t.Errorf("expected M0.5 to be free after relocation")
	}

	// MB0 is free again
	define(t, tbl, "Status", "MB0", "BYTE")

	// a second move is an ordinary redefinition
	_, err := tbl.Define(Def{Name: ClockMemory, Address: "MB20", Type: "BYTE"})
	if !errors.Is(err, lib.ErrDuplicateDefinition) {
		t.Errorf("expected ErrDuplicateDefinition, got=%v", err)
	}
}

func TestClockMemoryRelocationTypeConflict(t *testing.T) {
	tbl := newTable(t)
	_, err := tbl.Define(Def{Name: ClockMemory, Address: "MW10"})
	if !errors.Is(err, lib.ErrTypeConflict) {
		t.Errorf("expected ErrTypeConflict, got=%v", err)
	}
}

func TestAnchor(t *testing.T) {
	tbl := newTable(t)
	define(t, tbl, "Valve_Open", "M20.0", "BOOL")

	sym, err := tbl.Anchor("m20.0", "BOOL")
	if err != nil {
		t.Fatal(err)
	}
	if sym.Name != "Valve_Open" {
		t.Errorf("expected Valve_Open, got=%q", sym.Name)
	}

	anon, err := tbl.Anchor("I3.2", "")
	if err != nil {
		t.Fatal(err)
	}
	if !anon.IsAnonymous() || anon.Quoted() != "I3.2" {
		t.Errorf("expected anonymous I3.2, got=%v", anon)
	}
	again, _ := tbl.Anchor("I3.2", "BOOL")
	if again != anon {
		t.Errorf("expected the same anonymous symbol")
	}

	if pulse, err := tbl.Anchor("M0.3", "BOOL"); err != nil || pulse.Name != "Pulse_2Hz" {
		t.Errorf("expected Pulse_2Hz, got=%v %v", pulse, err)
	}
	define(t, tbl, "Mode", "MW40", "WORD")
	inner, err := tbl.Anchor("M41.3", "BOOL")
	if err != nil {
		t.Fatalf("expected covered address to resolve, got=%v", err)
	}
	if !inner.IsAnonymous() || inner.Type != "BOOL" {
		t.Errorf("expected anonymous BOOL, got=%v", inner)
	}

	define(t, tbl, "Speed", "MW30", "INT")
	if _, err := tbl.Anchor("MD29", ""); !errors.Is(err, lib.ErrOverlappingAddress) {
		t.Errorf("expected ErrOverlappingAddress, got=%v", err)
	}
	if _, err := tbl.Anchor("MW30", "REAL"); !errors.Is(err, lib.ErrTypeConflict) {
		t.Errorf("expected ErrTypeConflict, got=%v", err)
	}
	if _, err := tbl.Anchor("DB+", ""); !errors.Is(err, lib.ErrMalformedExpression) {
		t.Errorf("expected ErrMalformedExpression, got=%v", err)
	}

	// a later declaration adopts the anonymous range
	named := define(t, tbl, "Feedback", "I3.2", "BOOL")
	if found, _ := tbl.FindByAddress("I3.2"); found != named {
		t.Errorf("expected Feedback at I3.2, got=%v", found)
	}
}

func TestAnchorBlockByAddress(t *testing.T) {
	tbl := newTable(t)
	recv := define(t, tbl, "Recv", "DB200", "")
	define(t, tbl, "PI_Proc", "FB350", "")
	count := define(t, tbl, "PI_DB1", "DB101", "PI_Proc")

	tests := []struct {
		input    string
		typ      string
		expected *Symbol
	}{
		{"DB200", "DB", recv},
		{"DB200", "Recv", recv},
		{"DB101", "DB", count},
		{"DB101", "PI_Proc", count},
	}
	for _, tt := range tests {
		sym, err := tbl.Anchor(tt.input, tt.typ)
		if err != nil {
			t.Errorf("%s as %s: %v", tt.input, tt.typ, err)
			continue
		}
		if sym != tt.expected {
			t.Errorf("%s as %s: expected %q, got=%q", tt.input, tt.typ, tt.expected.Name, sym.Name)
		}
	}
	if _, err := tbl.Anchor("DB200", "FB"); !errors.Is(err, lib.ErrTypeConflict) {
		t.Errorf("expected ErrTypeConflict, got=%v", err)
	}
}

func TestDefineAfterCoveredAnchor(t *testing.T) {
	tbl := newTable(t)
	define(t, tbl, "Foo", "MW10", "WORD")
	if _, err := tbl.Anchor("M10.0", "BOOL"); err != nil {
		t.Fatal(err)
	}
	_, err := tbl.Define(Def{Name: "Bar", Address: "M10.0", Type: "BOOL"})
	if !errors.Is(err, lib.ErrOverlappingAddress) {
		t.Errorf("expected ErrOverlappingAddress, got=%v", err)
	}
	if _, ok := tbl.Lookup("Bar"); ok {
		t.Error("expected Bar to stay undefined")
	}

	// a range the reference reserved itself is handed over
	if _, err := tbl.Anchor("M12.0", "BOOL"); err != nil {
		t.Fatal(err)
	}
	define(t, tbl, "Baz", "M12.0", "BOOL")
}

func TestSeedBuiltinsOverUserSymbol(t *testing.T) {
	procs := []Builtin{{Name: "Timer_Proc", Address: "FB522"}}

	tbl := NewTable(alloc.NewSet())
	define(t, tbl, "Timer_Proc", "FB600", "")
	if err := tbl.SeedBuiltins(procs); err != nil {
		t.Fatal(err)
	}
	if sym, _ := tbl.Lookup("Timer_Proc"); sym.Address.String() != "FB600" {
		t.Errorf("expected Timer_Proc kept at FB600, got=%s", sym.Address)
	}

	tbl = NewTable(alloc.NewSet())
	define(t, tbl, "Timer_Proc", "DB5", "")
	if err := tbl.SeedBuiltins(procs); !errors.Is(err, lib.ErrTypeConflict) {
		t.Errorf("expected ErrTypeConflict, got=%v", err)
	}

	tbl = NewTable(alloc.NewSet())
	define(t, tbl, ClockMemory, "MW2", "WORD")
	if err := tbl.SeedBuiltins(CPUBuiltins); !errors.Is(err, lib.ErrTypeConflict) {
		t.Errorf("expected ErrTypeConflict, got=%v", err)
	}
}

func TestFreeze(t *testing.T) {
	tbl := newTable(t)
	snapshot := tbl.Snapshot()
	define(t, tbl, "A", "", "BOOL")
	if snapshot.Len() != len(CPUBuiltins) {
		t.Errorf("expected snapshot len=%d, got=%d", len(CPUBuiltins), snapshot.Len())
	}
	if tbl.Len() != len(CPUBuiltins)+1 {
		t.Errorf("expected len=%d, got=%d", len(CPUBuiltins)+1, tbl.Len())
	}

	tbl.Freeze()
	if _, err := tbl.Define(Def{Name: "B", Type: "BOOL"}); !errors.Is(err, lib.ErrFrozen) {
		t.Errorf("expected ErrFrozen, got=%v", err)
	}
	if sym, ok := tbl.Lookup("A"); !ok || sym.Address.String() != "M1.0" {
		t.Errorf("expected A at M1.0, got=%v", sym)
	}
}

func TestSymbolsOrder(t *testing.T) {
	tbl := NewTable(alloc.NewSet())
	for _, name := range []string{"c", "a", "b"} {
		define(t, tbl, name, "", "BOOL")
	}
	var got []string
	for _, sym := range tbl.Symbols() {
		got = append(got, sym.Name)
	}
	if strings.Join(got, ",") != "c,a,b" {
		t.Errorf("expected order=c,a,b, got=%v", got)
	}
}

func TestASCLine(t *testing.T) {
	tbl := newTable(t)
	define(t, tbl, "PI_Proc", "FB350", "")
	define(t, tbl, "PI_DB1", "DB101", "PI_Proc")

	tests := []struct {
		name     string
		expected string
	}{
		{ClockMemory, "126,Clock_Memory            MB      0   BYTE      clock memory"},
		{"Pulse_1Hz", "126,Pulse_1Hz               M       0.5 BOOL      1.0 Hz pulse"},
		{"PI_Proc", "126,PI_Proc                 FB    350   FB    350 "},
		{"PI_DB1", "126,PI_DB1                  DB    101   FB    350 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym, _ := tbl.Lookup(tt.name)
			line := tbl.ASCLine(sym)
			if len(line) != 4+24+12+10+80 {
				t.Errorf("expected width=%d, got=%d", 4+24+12+10+80, len(line))
			}
			if strings.TrimRight(line, " ") != strings.TrimRight(tt.expected, " ") {
				t.Errorf("expected=%q, got=%q", tt.expected, line)
			}
		})
	}
}
