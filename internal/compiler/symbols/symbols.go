package symbols

import (
	"fmt"
	"strings"

	"github.com/arnavsurve/s7gen/internal/compiler/address"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

// Origin records how a symbol got its address.
type Origin int

const (
	OriginExplicit Origin = iota
	OriginAuto
	OriginInline
	OriginBuiltin // seeded default, may be relocated once by the user
	OriginDerived // builtin computed from an anchor builtin, owns no range
)

func (o Origin) String() string {
	switch o {
	case OriginExplicit:
		return "explicit"
	case OriginAuto:
		return "auto"
	case OriginInline:
		return "inline"
	case OriginBuiltin:
		return "builtin"
	case OriginDerived:
		return "derived"
	}
	return "unknown"
}

// Symbol is a named, typed, addressed entry of a controller's symbol table.
// Anonymous symbols (empty Name) stand for absolute addresses used in expressions.
type Symbol struct {
	Name    string
	Type    string // BOOL, WORD ... or the name of a FB/UDT for data blocks
	Address address.Address
	Comment string
	Origin  Origin

	// --- Derived builtin info ---
	anchor string
	bit    int

	owned bool // anonymous reference that reserved its own range
}

// Quoted returns the SCL reference to the symbol.
func (s *Symbol) Quoted() string {
	if s.Name == "" {
		return s.Address.String()
	}
	return lib.Quote(s.Name)
}

// BlockNo is the block number of DB/FB/FC/UDT symbols.
func (s *Symbol) BlockNo() int {
	return s.Address.Byte
}

func (s *Symbol) IsAnonymous() bool {
	return s.Name == ""
}

func (s *Symbol) String() string {
	return fmt.Sprintf("%s %s %s", s.Name, s.Address, s.Type)
}

// Def is a symbol declaration as written in a configuration document:
// [name, address, type, comment]. Address may be empty or an auto form (DB+).
type Def struct {
	Name    string
	Address string
	Type    string
	Comment string
	Origin  Origin
}

// ParseDef builds a Def from positional fields.
func ParseDef(fields []string) (Def, error) {
	if len(fields) == 0 || strings.TrimSpace(fields[0]) == "" {
		return Def{}, fmt.Errorf("%w: symbol definition needs a name", lib.ErrMalformedExpression)
	}
	if len(fields) > 4 {
		return Def{}, fmt.Errorf("%w: symbol definition %v has more than 4 fields", lib.ErrMalformedExpression, fields)
	}
	get := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}
	return Def{
		Name:    get(0),
		Address: get(1),
		Type:    get(2),
		Comment: get(3),
	}, nil
}

var primitiveWidths = map[string]int{
	"BOOL":        address.WidthBit,
	"BYTE":        address.WidthByte,
	"CHAR":        address.WidthByte,
	"WORD":        address.WidthWord,
	"INT":         address.WidthWord,
	"S5TIME":      address.WidthWord,
	"DATE":        address.WidthWord,
	"DWORD":       address.WidthDWord,
	"DINT":        address.WidthDWord,
	"REAL":        address.WidthDWord,
	"TIME":        address.WidthDWord,
	"TIME_OF_DAY": address.WidthDWord,
	"TOD":         address.WidthDWord,
}

var defaultTypeForWidth = map[int]string{
	address.WidthBit:   "BOOL",
	address.WidthByte:  "BYTE",
	address.WidthWord:  "WORD",
	address.WidthDWord: "DWORD",
}

// blockKinds are type names that denote a block space instead of a data type.
var blockKinds = map[string]address.Area{
	"DB":  address.AreaDB,
	"FB":  address.AreaFB,
	"FC":  address.AreaFC,
	"UDT": address.AreaUDT,
}

// IsPrimitive reports whether t is an elementary data type.
func IsPrimitive(t string) bool {
	_, ok := primitiveWidths[strings.ToUpper(t)]
	return ok
}

// NormalizeType upper-cases elementary types and block kinds and keeps user type
// names as written.
func NormalizeType(t string) string {
	t = strings.TrimSpace(t)
	up := strings.ToUpper(t)
	if _, ok := primitiveWidths[up]; ok {
		return up
	}
	if _, ok := blockKinds[up]; ok {
		return up
	}
	return t
}

// SameType compares two normalized type names.
func SameType(a, b string) bool {
	return strings.EqualFold(a, b)
}
