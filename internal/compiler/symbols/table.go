package symbols

import (
	"errors"
	"fmt"

	"src.elv.sh/pkg/persistent/vector"

	"github.com/arnavsurve/s7gen/internal/compiler/address"
	"github.com/arnavsurve/s7gen/internal/compiler/alloc"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

// Table is the symbol table of one controller. Every symbol owns a range in
// one of the controller's address spaces, except derived builtins which alias
// the range of their anchor.
type Table struct {
	set    *alloc.Set
	names  map[string]*Symbol
	addrs  map[string]*Symbol // canonical address -> symbol
	order  vector.Vector
	frozen bool
}

func NewTable(set *alloc.Set) *Table {
	return &Table{
		set:   set,
		names: make(map[string]*Symbol),
		addrs: make(map[string]*Symbol),
		order: vector.Empty,
	}
}

// Alloc exposes the address spaces the table reserves in.
func (t *Table) Alloc() *alloc.Set {
	return t.set
}

// Define registers def, or returns the existing symbol of that name when def
// agrees with it.
func (t *Table) Define(def Def) (*Symbol, error) {
	if t.frozen {
		return nil, fmt.Errorf("%w: cannot define %q", lib.ErrFrozen, def.Name)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("%w: symbol name", lib.ErrMissingRequiredField)
	}

	typ := NormalizeType(def.Type)
	var addr *address.Address
	if def.Address != "" {
		a, err := address.Parse(def.Address)
		if err != nil {
			if errors.Is(err, address.ErrNotAddress) {
				return nil, fmt.Errorf("%w: symbol %q: %v", lib.ErrMalformedExpression, def.Name, err)
			}
			return nil, fmt.Errorf("symbol %q: %w", def.Name, err)
		}
		addr = &a
	}

	if sym, ok := t.names[def.Name]; ok {
		return t.redefine(sym, typ, addr, def.Comment)
	}
	return t.add(def.Name, typ, addr, def.Comment, def.Origin)
}

func (t *Table) redefine(sym *Symbol, typ string, addr *address.Address, comment string) (*Symbol, error) {
	if typ != "" && !SameType(typ, sym.Type) && !(sym.Address.IsBlock() && SameType(typ, sym.Address.Area.String())) {
		return nil, fmt.Errorf("%w: %q is %s, redefined as %s", lib.ErrTypeConflict, sym.Name, sym.Type, typ)
	}
	if addr != nil {
		switch {
		case addr.Auto:
			if addr.Area != sym.Address.Area || (!addr.IsBlock() && addr.Width != sym.Address.Width) {
				return nil, fmt.Errorf("%w: %q is at %s, redefined as %s", lib.ErrDuplicateDefinition, sym.Name, sym.Address, addr)
			}
		case addr.Equal(sym.Address):
		case sym.Origin == OriginBuiltin:
			if err := t.relocate(sym, *addr); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %q is at %s, redefined at %s", lib.ErrDuplicateDefinition, sym.Name, sym.Address, addr)
		}
	}
	if sym.Comment == "" {
		sym.Comment = comment
	}
	return sym, nil
}

// relocate moves a builtin anchor to a user supplied address. The builtin
// stops being relocatable afterwards.
func (t *Table) relocate(sym *Symbol, to address.Address) error {
	if err := checkCompatible(sym.Name, sym.Type, to); err != nil {
		return err
	}
	t.set.Release(sym.Address)
	if err := t.set.Reserve(to); err != nil {
		// put the old range back so the table stays consistent
		_ = t.set.Reserve(sym.Address)
		return fmt.Errorf("symbol %q: %w", sym.Name, err)
	}
	t.unindex(sym)
	sym.Address = to
	sym.Origin = OriginExplicit
	t.index(sym)
	return t.Rederive(sym.Name)
}

func (t *Table) add(name, typ string, addr *address.Address, comment string, origin Origin) (*Symbol, error) {
	if addr == nil {
		if typ == "" {
			return nil, fmt.Errorf("%w: symbol %q needs a type or an address", lib.ErrMissingRequiredField, name)
		}
		auto := autoAddressFor(typ)
		addr = &auto
	}

	a := *addr
	if a.Auto {
		concrete, err := t.set.Allocate(a)
		if err != nil {
			return nil, fmt.Errorf("symbol %q: %w", name, err)
		}
		a = concrete
		if origin == OriginExplicit {
			origin = OriginAuto
		}
	} else {
		if err := checkCompatible(name, typ, a); err != nil {
			return nil, err
		}
		// an anonymous reference may already hold the range
		prev, seen := t.addrs[a.String()]
		if !seen || !prev.IsAnonymous() || !prev.owned {
			if err := t.set.Reserve(a); err != nil {
				return nil, fmt.Errorf("symbol %q: %w", name, err)
			}
		}
	}

	sym := &Symbol{
		Name:    name,
		Type:    resolveType(name, typ, a),
		Address: a,
		Comment: comment,
		Origin:  origin,
	}
	t.insert(sym)
	return sym, nil
}

func (t *Table) insert(sym *Symbol) {
	t.names[sym.Name] = sym
	t.index(sym)
	t.order = t.order.Conj(sym)
}

func (t *Table) index(sym *Symbol) {
	key := sym.Address.String()
	if prev, ok := t.addrs[key]; ok && !prev.IsAnonymous() {
		return
	}
	t.addrs[key] = sym
}

func (t *Table) unindex(sym *Symbol) {
	key := sym.Address.String()
	if t.addrs[key] == sym {
		delete(t.addrs, key)
	}
}

// autoAddressFor picks the space a symbol of type typ lives in.
func autoAddressFor(typ string) address.Address {
	if w, ok := primitiveWidths[typ]; ok {
		return address.Address{Area: address.AreaM, Width: w, Auto: true}
	}
	if area, ok := blockKinds[typ]; ok {
		return address.Address{Area: area, Auto: true}
	}
	return address.Address{Area: address.AreaDB, Auto: true}
}

// resolveType fills in the type of a symbol from its address when the
// declaration left it out or named the block kind.
func resolveType(name, typ string, a address.Address) string {
	if a.IsBlock() {
		if a.Area != address.AreaDB || typ == "" || typ == "DB" {
			return name
		}
		return typ
	}
	if typ == "" {
		return defaultTypeForWidth[a.Width]
	}
	return typ
}

func checkCompatible(name, typ string, a address.Address) error {
	if typ == "" {
		return nil
	}
	if a.IsBlock() {
		switch {
		case a.Area == address.AreaDB:
			if IsPrimitive(typ) || (typ != "DB" && blockKinds[typ] != 0) {
				return fmt.Errorf("%w: %q of type %s cannot live at %s", lib.ErrTypeConflict, name, typ, a)
			}
		case typ != name && typ != a.Area.String():
			return fmt.Errorf("%w: %q of type %s cannot live at %s", lib.ErrTypeConflict, name, typ, a)
		}
		return nil
	}
	w, ok := primitiveWidths[typ]
	if !ok || w != a.Width {
		return fmt.Errorf("%w: %q of type %s cannot live at %s", lib.ErrTypeConflict, name, typ, a)
	}
	return nil
}

func (t *Table) Lookup(name string) (*Symbol, bool) {
	sym, ok := t.names[name]
	return sym, ok
}

// FindByAddress returns the symbol located exactly at text.
func (t *Table) FindByAddress(text string) (*Symbol, bool) {
	a, err := address.Parse(text)
	if err != nil || a.Auto {
		return nil, false
	}
	sym, ok := t.addrs[a.String()]
	return sym, ok
}

// Anchor resolves an address used directly in an expression. A symbol located
// exactly there is returned; otherwise an anonymous symbol is recorded and its
// range reserved unless an existing range already covers it.
func (t *Table) Anchor(text, typ string) (*Symbol, error) {
	a, err := address.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lib.ErrMalformedExpression, err)
	}
	if a.Auto {
		return nil, fmt.Errorf("%w: %s cannot be referenced", lib.ErrMalformedExpression, a)
	}
	typ = NormalizeType(typ)

	if sym, ok := t.addrs[a.String()]; ok {
		if typ != "" && !sym.IsAnonymous() && !SameType(typ, sym.Type) &&
			!(sym.Address.IsBlock() && SameType(typ, sym.Address.Area.String())) {
			return nil, fmt.Errorf("%w: %s holds %q of type %s, %s required", lib.ErrTypeConflict, a, sym.Name, sym.Type, typ)
		}
		return sym, nil
	}
	if err := checkCompatible(a.String(), typ, a); err != nil {
		return nil, err
	}
	if t.frozen {
		return nil, fmt.Errorf("%w: cannot anchor %s", lib.ErrFrozen, a)
	}
	owned := !t.set.Covers(a)
	if owned {
		if err := t.set.Reserve(a); err != nil {
			return nil, err
		}
	}
	sym := &Symbol{
		Type:    resolveType("", typ, a),
		Address: a,
		Origin:  OriginExplicit,
		owned:   owned,
	}
	t.addrs[a.String()] = sym
	return sym, nil
}

// Symbols returns the named symbols in registration order.
func (t *Table) Symbols() []*Symbol {
	out := make([]*Symbol, 0, t.order.Len())
	for it := t.order.Iterator(); it.HasElem(); it.Next() {
		out = append(out, it.Elem().(*Symbol))
	}
	return out
}

// Snapshot is the immutable registration order at the time of the call.
func (t *Table) Snapshot() vector.Vector {
	return t.order
}

func (t *Table) Len() int {
	return t.order.Len()
}

// Freeze rejects any later registration.
func (t *Table) Freeze() {
	t.frozen = true
}

func (t *Table) Frozen() bool {
	return t.frozen
}
