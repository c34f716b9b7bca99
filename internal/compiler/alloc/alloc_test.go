package alloc

import (
	"errors"
	"testing"

	"github.com/arnavsurve/s7gen/internal/compiler/address"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

func TestBlockAllocate(t *testing.T) {
	t.Run("SequentialFromBase", func(t *testing.T) {
		b := NewBlock(100)
		for i, expected := range []int{100, 101, 102} {
			if got := b.Allocate(); got != expected {
				t.Errorf("allocation %d expected=%d, got=%d", i, expected, got)
			}
		}
	})

	t.Run("ExplicitReservationPrecedence", func(t *testing.T) {
		b := NewBlock(100)
		if err := b.Reserve(105); err != nil {
			t.Fatalf("Reserve(105) unexpected error: %v", err)
		}
		got := []int{b.Allocate(), b.Allocate(), b.Allocate()}
		expected := []int{100, 101, 102}
		for i := range expected {
			if got[i] != expected[i] {
				t.Errorf("expected=%v, got=%v", expected, got)
				break
			}
		}
		if !b.Taken(105) {
			t.Errorf("105 should stay reserved")
		}
	})

	t.Run("SkipsReserved", func(t *testing.T) {
		b := NewBlock(1)
		_ = b.Reserve(2)
		_ = b.Reserve(3)
		if got := b.Allocate(); got != 1 {
			t.Errorf("expected=1, got=%d", got)
		}
		if got := b.Allocate(); got != 4 {
			t.Errorf("expected=4, got=%d", got)
		}
	})

	t.Run("ReserveAfterAllocate", func(t *testing.T) {
		b := NewBlock(256)
		id := b.Allocate()
		err := b.Reserve(id)
		if !errors.Is(err, lib.ErrDuplicateAddress) {
			t.Errorf("expected ErrDuplicateAddress, got=%v", err)
		}
	})

	t.Run("BelowBase", func(t *testing.T) {
		b := NewBlock(100)
		if err := b.Reserve(1); err != nil {
			t.Fatalf("reserving below base should work: %v", err)
		}
		if got := b.Allocate(); got != 100 {
			t.Errorf("expected=100, got=%d", got)
		}
		if err := b.Reserve(-1); !errors.Is(err, lib.ErrMalformedExpression) {
			t.Errorf("expected ErrMalformedExpression for negative id, got=%v", err)
		}
	})

	t.Run("Release", func(t *testing.T) {
		b := NewBlock(10)
		b.Allocate()
		b.Allocate()
		b.Release(10)
		if got := b.Allocate(); got != 10 {
			t.Errorf("expected released id 10, got=%d", got)
		}
		if got := b.Allocate(); got != 12 {
			t.Errorf("expected=12, got=%d", got)
		}
	})
}

func TestBitsAllocate(t *testing.T) {
	t.Run("LowestFitAfterByte", func(t *testing.T) {
		b := NewBits()
		if err := b.Reserve(Range{0, 8}); err != nil {
			t.Fatal(err)
		}
		if r := b.Allocate(1); r.Start != 8 {
			t.Errorf("expected offset=8, got=%d", r.Start)
		}
	})

	t.Run("BitsFillGaps", func(t *testing.T) {
		b := NewBits()
		_ = b.Reserve(Range{0, 1})
		_ = b.Reserve(Range{2, 1})
		if r := b.Allocate(1); r.Start != 1 {
			t.Errorf("expected offset=1, got=%d", r.Start)
		}
		if r := b.Allocate(1); r.Start != 3 {
			t.Errorf("expected offset=3, got=%d", r.Start)
		}
	})

	t.Run("WidthAlignment", func(t *testing.T) {
		b := NewBits()
		b.Allocate(1) // M0.0
		if r := b.Allocate(8); r.Start != 8 {
			t.Errorf("byte expected offset=8, got=%d", r.Start)
		}
		if r := b.Allocate(16); r.Start != 16 {
			t.Errorf("word expected offset=16, got=%d", r.Start)
		}
		if r := b.Allocate(32); r.Start != 32 {
			t.Errorf("dword expected offset=32, got=%d", r.Start)
		}
		if r := b.Allocate(1); r.Start != 1 {
			t.Errorf("bit expected offset=1, got=%d", r.Start)
		}
	})

	t.Run("GapTooSmall", func(t *testing.T) {
		b := NewBits()
		_ = b.Reserve(Range{0, 8})
		_ = b.Reserve(Range{24, 8})
		// [8,24) is free but a dword needs 32-aligned space
		if r := b.Allocate(32); r.Start != 32 {
			t.Errorf("expected offset=32, got=%d", r.Start)
		}
		// [8,24) holds no 16-aligned word either
		if r := b.Allocate(16); r.Start != 64 {
			t.Errorf("expected offset=64, got=%d", r.Start)
		}
		if r := b.Allocate(8); r.Start != 8 {
			t.Errorf("expected offset=8, got=%d", r.Start)
		}
	})
}

func TestBitsNonOverlap(t *testing.T) {
	b := NewBits()
	must := func(r Range) {
		t.Helper()
		if err := b.Reserve(r); err != nil {
			t.Fatalf("Reserve(%v) unexpected error: %v", r, err)
		}
	}
	must(Range{80, 8})  // MB10
	must(Range{96, 16}) // MW12

	for _, r := range []Range{{80, 1}, {87, 1}, {72, 16}, {104, 1}, {88, 16}} {
		if err := b.Reserve(r); !errors.Is(err, lib.ErrOverlappingAddress) {
			t.Errorf("Reserve(%v) expected ErrOverlappingAddress, got=%v", r, err)
		}
	}
	must(Range{88, 8}) // MB11 fits between

	for i := 0; i < 40; i++ {
		b.Allocate([]int{1, 8, 16, 32}[i%4])
	}
	ranges := b.Ranges()
	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].Overlaps(ranges[j]) {
				t.Fatalf("ranges %v and %v overlap", ranges[i], ranges[j])
			}
		}
	}
}

func TestBitsCoversAndRelease(t *testing.T) {
	b := NewBits()
	_ = b.Reserve(Range{0, 8})
	if !b.Covers(Range{5, 1}) {
		t.Errorf("M0.5 should be covered by MB0")
	}
	if b.Covers(Range{4, 8}) {
		t.Errorf("[4,12) is not covered")
	}
	b.Release(Range{0, 8})
	if b.Covers(Range{5, 1}) {
		t.Errorf("MB0 was released")
	}
	if err := b.Reserve(Range{5, 1}); err != nil {
		t.Errorf("M0.5 should be free: %v", err)
	}
}

func TestSet(t *testing.T) {
	s := NewSet()
	if err := s.Reserve(address.MustParse("DB100")); err != nil {
		t.Fatal(err)
	}
	a, err := s.Allocate(address.MustParse("DB+"))
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != "DB101" {
		t.Errorf("expected=DB101, got=%s", a)
	}
	if err := s.Reserve(address.MustParse("MB0")); err != nil {
		t.Fatal(err)
	}
	a, _ = s.Allocate(address.MustParse("M+"))
	if a.String() != "M1.0" {
		t.Errorf("expected=M1.0, got=%s", a)
	}
	a, _ = s.Allocate(address.MustParse("MW+"))
	if a.String() != "MW2" {
		t.Errorf("expected=MW2, got=%s", a)
	}
	// I and Q are separate spaces
	if err := s.Reserve(address.MustParse("IW0")); err != nil {
		t.Errorf("IW0 should not collide with M: %v", err)
	}
	if err := s.Reserve(address.MustParse("I1.0")); !errors.Is(err, lib.ErrOverlappingAddress) {
		t.Errorf("I1.0 expected ErrOverlappingAddress, got=%v", err)
	}
	if err := s.Reserve(address.MustParse("DB+")); !errors.Is(err, lib.ErrMalformedExpression) {
		t.Errorf("expected ErrMalformedExpression for auto address, got=%v", err)
	}
	if !s.Covers(address.MustParse("M0.3")) {
		t.Errorf("M0.3 should be covered")
	}
	s.Release(address.MustParse("DB100"))
	if s.DB.Taken(100) {
		t.Errorf("DB100 should be released")
	}
}
