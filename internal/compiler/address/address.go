// Package address parses and formats STEP 7 operand addresses such as
// M10.0, MW12, IW256, DB100 or FB350, and the auto-allocation forms MW+ / DB+.
package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"

	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

// ErrNotAddress is returned when the text does not have the shape of an address
// at all. Callers usually fall back to treating it as a symbol name.
var ErrNotAddress = errors.New("not an address")

type Area int

const (
	AreaNone Area = iota
	AreaM         // bit memory
	AreaI         // process image inputs
	AreaQ         // process image outputs
	AreaDB
	AreaFB
	AreaFC
	AreaUDT
)

var areaNames = map[Area]string{
	AreaM:   "M",
	AreaI:   "I",
	AreaQ:   "Q",
	AreaDB:  "DB",
	AreaFB:  "FB",
	AreaFC:  "FC",
	AreaUDT: "UDT",
}

func (a Area) String() string {
	if name, ok := areaNames[a]; ok {
		return name
	}
	return "?"
}

// IsBlock reports whether the area is a numbered block space.
func (a Area) IsBlock() bool {
	return a >= AreaDB
}

// Operand widths in bits.
const (
	WidthBit   = 1
	WidthByte  = 8
	WidthWord  = 16
	WidthDWord = 32
)

var widthLetters = map[int]string{
	WidthBit:   "",
	WidthByte:  "B",
	WidthWord:  "W",
	WidthDWord: "D",
}

type prefixInfo struct {
	area  Area
	width int
}

var prefixes = map[string]prefixInfo{
	"M": {AreaM, WidthBit}, "MB": {AreaM, WidthByte}, "MW": {AreaM, WidthWord}, "MD": {AreaM, WidthDWord},
	"I": {AreaI, WidthBit}, "IB": {AreaI, WidthByte}, "IW": {AreaI, WidthWord}, "ID": {AreaI, WidthDWord},
	"Q": {AreaQ, WidthBit}, "QB": {AreaQ, WidthByte}, "QW": {AreaQ, WidthWord}, "QD": {AreaQ, WidthDWord},
	"DB":  {AreaDB, 0},
	"FB":  {AreaFB, 0},
	"FC":  {AreaFC, 0},
	"UDT": {AreaUDT, 0},
}

// Address is a parsed operand. For memory areas Byte and Bit locate the first
// bit and Width gives the operand size; for block areas Byte is the block number.
type Address struct {
	Area  Area
	Width int
	Byte  int
	Bit   int
	Auto  bool
}

type addressGrammar struct {
	Prefix string `parser:"@Ident"`
	Auto   bool   `parser:"( @\"+\""`
	Number string `parser:"| @Int"`
	Bit    string `parser:"  ( \".\" @Int )? )"`
}

var (
	addressLexer = lexer.Must(lexer.Regexp(`(\s+)` +
		`|(?P<Ident>[A-Za-z]+)` +
		`|(?P<Int>\d+)` +
		`|(?P<Punct>[.+])`))
	addressParser = participle.MustBuild(&addressGrammar{}, participle.Lexer(addressLexer))
)

// Parse parses text into an Address. Text that cannot be an address yields an
// error wrapping ErrNotAddress; an address-shaped text with an invalid part
// (bit > 7) wraps lib.ErrMalformedExpression.
func Parse(text string) (Address, error) {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrNotAddress)
	}

	g := &addressGrammar{}
	if err := addressParser.ParseString(text, g); err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrNotAddress, text)
	}

	info, ok := prefixes[g.Prefix]
	if !ok {
		return Address{}, fmt.Errorf("%w: unknown area %q", ErrNotAddress, g.Prefix)
	}
	addr := Address{Area: info.area, Width: info.width, Auto: g.Auto}
	if g.Auto {
		return addr, nil
	}

	n, err := strconv.Atoi(g.Number)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrNotAddress, text)
	}
	addr.Byte = n

	isBit := !info.area.IsBlock() && info.width == WidthBit
	switch {
	case isBit && g.Bit == "":
		return Address{}, fmt.Errorf("%w: %q has no bit number", ErrNotAddress, text)
	case !isBit && g.Bit != "":
		return Address{}, fmt.Errorf("%w: %q takes no bit number", ErrNotAddress, text)
	case isBit:
		bit, err := strconv.Atoi(g.Bit)
		if err != nil || bit > 7 {
			return Address{}, fmt.Errorf("%w: bit number of %q must be 0..7", lib.ErrMalformedExpression, text)
		}
		addr.Bit = bit
	}
	return addr, nil
}

// MustParse is Parse for constant addresses.
func MustParse(text string) Address {
	a, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return a
}

// IsAddress reports whether text parses as a concrete (non auto) address.
func IsAddress(text string) bool {
	a, err := Parse(text)
	return err == nil && !a.Auto
}

// Block returns the address of block number n in area.
func Block(area Area, n int) Address {
	return Address{Area: area, Byte: n}
}

// FromOffset builds a memory address from a bit offset and width.
func FromOffset(area Area, offset, width int) Address {
	return Address{Area: area, Width: width, Byte: offset / 8, Bit: offset % 8}
}

// BitOffset is the position of the first bit of a memory operand.
func (a Address) BitOffset() int {
	return a.Byte*8 + a.Bit
}

func (a Address) IsBlock() bool {
	return a.Area.IsBlock()
}

// String renders the canonical form, e.g. M10.0, MW12, DB100, DB+.
func (a Address) String() string {
	var sb strings.Builder
	sb.WriteString(a.Area.String())
	if !a.IsBlock() {
		sb.WriteString(widthLetters[a.Width])
	}
	if a.Auto {
		sb.WriteString("+")
		return sb.String()
	}
	sb.WriteString(strconv.Itoa(a.Byte))
	if !a.IsBlock() && a.Width == WidthBit {
		sb.WriteString(".")
		sb.WriteString(strconv.Itoa(a.Bit))
	}
	return sb.String()
}

// Equal compares two concrete addresses.
func (a Address) Equal(b Address) bool {
	if a.IsBlock() || b.IsBlock() {
		return a.Area == b.Area && a.Byte == b.Byte
	}
	return a.Area == b.Area && a.Width == b.Width && a.BitOffset() == b.BitOffset()
}
