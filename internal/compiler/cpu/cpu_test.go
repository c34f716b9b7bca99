package cpu

import (
	"errors"
	"testing"

	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

func TestNew(t *testing.T) {
	c, err := New("AS1")
	if err != nil {
		t.Fatal(err)
	}
	if c.OutputDir != "AS1" || c.Device != DefaultDevice || c.Platform != PlatformStep7 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if sym, ok := c.Symbols.Lookup("Pulse_0.5Hz"); !ok || sym.Address.String() != "M0.7" {
		t.Errorf("expected Pulse_0.5Hz at M0.7, got=%v", sym)
	}
}

func TestClaim(t *testing.T) {
	c, _ := New("AS1")
	first := &ast.Document{File: "a.yml", Index: 1, CPU: "AS1", Type: "CPU"}
	if err := c.Claim("CPU", first); err != nil {
		t.Fatal(err)
	}
	if err := c.Claim("timer", &ast.Document{CPU: "AS1", Type: "timer"}); err != nil {
		t.Fatal(err)
	}
	err := c.Claim("CPU", &ast.Document{File: "b.yml", Index: 3, CPU: "AS1", Type: "CPU"})
	if !errors.Is(err, lib.ErrDuplicateDocument) || !errors.Is(err, lib.ErrUnsupportedDocumentType) {
		t.Errorf("expected ErrDuplicateDocument, got=%v", err)
	}
	if doc, _ := c.Document("CPU"); doc != first {
		t.Errorf("expected the first CPU document to stay")
	}
	if types := c.Types(); len(types) != 2 || types[1] != "timer" {
		t.Errorf("unexpected types %v", types)
	}
}

func TestClaimConnection(t *testing.T) {
	c, _ := New("AS1")
	id, err := c.ClaimConnection("192.168.1.10", 502, 0)
	if err != nil || id != 16 {
		t.Fatalf("expected id=16, got=%d %v", id, err)
	}
	if id, err := c.ClaimConnection("192.168.1.11", 502, 20); err != nil || id != 20 {
		t.Errorf("expected id=20, got=%d %v", id, err)
	}
	if _, err := c.ClaimConnection("192.168.1.10", 502, 0); !errors.Is(err, lib.ErrDuplicateAddress) {
		t.Errorf("expected ErrDuplicateAddress, got=%v", err)
	}
	if _, err := c.ClaimConnection("192.168.1.12", 502, 20); !errors.Is(err, lib.ErrDuplicateAddress) {
		t.Errorf("expected ErrDuplicateAddress, got=%v", err)
	}
	if id, _ := c.ClaimConnection("192.168.1.12", 503, 0); id != 17 {
		t.Errorf("expected id=17, got=%d", id)
	}
}
