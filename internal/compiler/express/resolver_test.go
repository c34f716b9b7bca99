package express

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/arnavsurve/s7gen/internal/compiler/alloc"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

func newResolver(t *testing.T) (*Resolver, *symbols.Table) {
	t.Helper()
	tbl := symbols.NewTable(alloc.NewSet())
	if err := tbl.SeedBuiltins(symbols.CPUBuiltins); err != nil {
		t.Fatal(err)
	}
	return NewResolver(tbl), tbl
}

func node(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return doc.Content[0]
}

func TestClassify(t *testing.T) {
	r, tbl := newResolver(t)
	if _, err := tbl.Define(symbols.Def{Name: "Run", Address: "M20.0", Type: "BOOL"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		input    string
		expected string
		compound bool
	}{
		{"TRUE", "TRUE", false},
		{"12", "12", false},
		{"-1.5e3", "-1.5e3", false},
		{"W#16#1F", "W#16#1F", false},
		{"T#5S", "T#5S", false},
		{"Run", `"Run"`, false},
		{`"Run"`, `"Run"`, false},
		{"M20.0", `"Run"`, false},
		{"I0.3", "I0.3", false},
		{"Pulse_2.5Hz", `"Pulse_2.5Hz"`, false},
		{`"Run" AND NOT I0.4`, `"Run" AND NOT I0.4`, true},
		{"Motor_DB.running", "Motor_DB.running", true},
	}
	var results []*Deferred
	for _, tt := range tests {
		results = append(results, r.ResolveString(tt.input, Options{}))
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	for i, tt := range tests {
		v, done := results[i].Value()
		if !done {
			t.Errorf("%q: not resolved", tt.input)
			continue
		}
		if v.Value != tt.expected {
			t.Errorf("%q: expected value=%s, got=%s", tt.input, tt.expected, v.Value)
		}
		if v.IsCompound != tt.compound {
			t.Errorf("%q: expected compound=%t, got=%t", tt.input, tt.compound, v.IsCompound)
		}
	}
}

func TestParen(t *testing.T) {
	if got := (Value{Value: "a OR b", IsCompound: true}).Paren(); got != "(a OR b)" {
		t.Errorf("expected=(a OR b), got=%s", got)
	}
	if got := (Value{Value: `"a"`}).Paren(); got != `"a"` {
		t.Errorf(`expected="a", got=%s`, got)
	}
}

func TestForwardReference(t *testing.T) {
	r, tbl := newResolver(t)

	var got Value
	r.ResolveString("Later", Options{Type: "BOOL", Desc: "enable"}).Then(func(v Value) error {
		got = v
		return nil
	})

	// a later document defines it during the first pass
	if _, err := tbl.Define(symbols.Def{Name: "Later", Type: "BOOL"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if got.Value != `"Later"` || got.Symbol == nil {
		t.Errorf(`expected value="Later", got=%+v`, got)
	}
}

func TestInlineDefinition(t *testing.T) {
	r, tbl := newResolver(t)

	d := r.Resolve(node(t, `[Timer_DB1, DB+]`), Options{Type: "Timer_Proc", Comment: "timer 1"})
	sym, ok := tbl.Lookup("Timer_DB1")
	if !ok {
		t.Fatal("expected inline definition to be registered before Flush")
	}
	if sym.Type != "Timer_Proc" || sym.Comment != "timer 1" || sym.Address.String() != "DB100" {
		t.Errorf("unexpected symbol %v (%s)", sym, sym.Comment)
	}
	if d.Inline() != sym {
		t.Errorf("expected Inline() to return the symbol")
	}

	// the same name elsewhere resolves to the same symbol
	same := r.Resolve(node(t, `[Timer_DB1]`), Options{Type: "Timer_Proc"})
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	v, _ := same.Value()
	if v.Symbol != sym || v.Value != `"Timer_DB1"` {
		t.Errorf("unexpected value %+v", v)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		opts     Options
		expected error
	}{
		{"undefined", "Nope", Options{}, lib.ErrMalformedExpression},
		{"no compound", "a + b", Options{NoCompound: true}, lib.ErrMalformedExpression},
		{"type", "Clock_Memory", Options{Type: "BOOL"}, lib.ErrTypeConflict},
		{"bad bit", "M1.8", Options{}, lib.ErrMalformedExpression},
		{"address width", "MW4", Options{Type: "BOOL"}, lib.ErrTypeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newResolver(t)
			r.SetTrace(lib.Trace{File: "plant.yml", DocIndex: 1, CPU: "AS1", Type: "timer"})
			r.ResolveString(tt.input, tt.opts)
			err := r.Flush()
			if !errors.Is(err, tt.expected) {
				t.Fatalf("expected %v, got=%v", tt.expected, err)
			}
			var te *lib.TraceError
			if !errors.As(err, &te) || te.File != "plant.yml" {
				t.Errorf("expected trace of plant.yml, got=%v", err)
			}
		})
	}
}

func TestResolveDBByAddress(t *testing.T) {
	r, tbl := newResolver(t)
	if _, err := tbl.Define(symbols.Def{Name: "Recv", Address: "DB200"}); err != nil {
		t.Fatal(err)
	}
	byName := r.ResolveString("Recv", Options{Type: "DB", Desc: "recv_DB"})
	byAddr := r.ResolveString("DB200", Options{Type: "DB", Desc: "recv_DB"})
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	n, _ := byName.Value()
	a, _ := byAddr.Value()
	if a.Value != `"Recv"` || a.Symbol != n.Symbol {
		t.Errorf(`expected value="Recv", got=%+v`, a)
	}
}

func TestInlineTypeConflict(t *testing.T) {
	r, tbl := newResolver(t)
	if _, err := tbl.Define(symbols.Def{Name: "Level", Type: "INT"}); err != nil {
		t.Fatal(err)
	}
	r.Resolve(node(t, `[Level]`), Options{Type: "BOOL"})
	if err := r.Flush(); !errors.Is(err, lib.ErrTypeConflict) {
		t.Errorf("expected ErrTypeConflict, got=%v", err)
	}
}

func TestAutoDefine(t *testing.T) {
	r, tbl := newResolver(t)
	d := r.ResolveString("Valve_DB1", Options{Type: "Valve_Proc", Define: true})
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	v, _ := d.Value()
	if v.Value != `"Valve_DB1"` {
		t.Errorf(`expected value="Valve_DB1", got=%s`, v.Value)
	}
	if sym, ok := tbl.Lookup("Valve_DB1"); !ok || sym.Address.String() != "DB100" {
		t.Errorf("expected Valve_DB1 at DB100, got=%v", sym)
	}
}

func TestFlushOrderAndOnce(t *testing.T) {
	r, _ := newResolver(t)
	var order []string
	for _, name := range []string{"Pulse_1Hz", "Pulse_2Hz", "Pulse_5Hz"} {
		name := name
		r.ResolveString(name, Options{}).Then(func(Value) error {
			order = append(order, name)
			return nil
		})
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != "Pulse_1Hz" || order[2] != "Pulse_5Hz" {
		t.Errorf("expected creation order once, got=%v", order)
	}
}

func TestNullNode(t *testing.T) {
	r, _ := newResolver(t)
	d := r.Resolve(nil, Options{})
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if v, done := d.Value(); !done || !v.IsEmpty() {
		t.Errorf("expected empty resolved value, got=%+v", v)
	}
}
