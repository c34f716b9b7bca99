package symbols

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/arnavsurve/s7gen/internal/compiler/address"
)

// ASCLine renders sym as one line of a STEP 7 ASCII symbol table:
//
//	126,Clock_Memory            MB      0   BYTE      clock memory ...
func (t *Table) ASCLine(sym *Symbol) string {
	typ := sym.Type
	switch {
	case sym.Address.IsBlock() && typ == sym.Name:
		typ = ascAddress(sym.Address)
	default:
		if ref, ok := t.names[typ]; ok && ref.Address.IsBlock() {
			typ = ascAddress(ref.Address)
		}
	}
	return "126," + pad(sym.Name, 24) + pad(ascAddress(sym.Address), 12) + pad(typ, 10) + pad(sym.Comment, 80)
}

// ASC renders the whole table, one line per named symbol.
func (t *Table) ASC() string {
	var sb strings.Builder
	for _, sym := range t.Symbols() {
		sb.WriteString(t.ASCLine(sym))
		sb.WriteString("\n")
	}
	return sb.String()
}

func ascAddress(a address.Address) string {
	if a.IsBlock() {
		return fmt.Sprintf("%-4s%5d", a.Area, a.Byte)
	}
	prefix := a.Area.String()
	switch a.Width {
	case address.WidthByte:
		prefix += "B"
	case address.WidthWord:
		prefix += "W"
	case address.WidthDWord:
		prefix += "D"
	default:
		return fmt.Sprintf("%-4s%5d.%d", prefix, a.Byte, a.Bit)
	}
	return fmt.Sprintf("%-4s%5d", prefix, a.Byte)
}

// pad fits s into exactly n columns.
func pad(s string, n int) string {
	l := utf8.RuneCountInString(s)
	if l >= n {
		return string([]rune(s)[:n])
	}
	return s + strings.Repeat(" ", n-l)
}
