package lib

import (
	"fmt"
	"strings"
)

// FixedHex formats val as upper-case hex, zero padded to width digits.
// Values wider than width are returned in full.
func FixedHex(val, width int) string {
	if val < 0 {
		val = -val
	}
	return fmt.Sprintf("%0*X", width, val)
}

// IsIdentifier reports whether s can be used as a bare SCL symbol name.
// Dots are accepted since STEP 7 symbol names such as Pulse_2.5Hz contain them.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && ((r >= '0' && r <= '9') || r == '.' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// Quote wraps a symbol name in SCL double quotes.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, ``) + `"`
}
