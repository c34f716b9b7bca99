package alloc

import (
	"fmt"

	"github.com/arnavsurve/s7gen/internal/compiler/address"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

// Numbering bases of the block spaces.
const (
	ConnIDBase = 16
	DBBase     = 100
	FBBase     = 256
	FCBase     = 256
	UDTBase    = 256
	PollBase   = 1
)

// Set holds every address space of one controller.
type Set struct {
	ConnID *Block
	DB     *Block
	FB     *Block
	FC     *Block
	UDT    *Block
	Poll   *Block

	M *Bits
	I *Bits
	Q *Bits
}

func NewSet() *Set {
	return &Set{
		ConnID: NewBlock(ConnIDBase),
		DB:     NewBlock(DBBase),
		FB:     NewBlock(FBBase),
		FC:     NewBlock(FCBase),
		UDT:    NewBlock(UDTBase),
		Poll:   NewBlock(PollBase),
		M:      NewBits(),
		I:      NewBits(),
		Q:      NewBits(),
	}
}

// BlockSpace returns the numbering space of a block area.
func (s *Set) BlockSpace(area address.Area) *Block {
	switch area {
	case address.AreaDB:
		return s.DB
	case address.AreaFB:
		return s.FB
	case address.AreaFC:
		return s.FC
	case address.AreaUDT:
		return s.UDT
	}
	return nil
}

// BitSpace returns the bit addressable space of a memory area.
func (s *Set) BitSpace(area address.Area) *Bits {
	switch area {
	case address.AreaM:
		return s.M
	case address.AreaI:
		return s.I
	case address.AreaQ:
		return s.Q
	}
	return nil
}

// RangeOf converts a memory address to its bit range.
func RangeOf(a address.Address) Range {
	return Range{Start: a.BitOffset(), Width: a.Width}
}

// Reserve claims a concrete address in its space.
func (s *Set) Reserve(a address.Address) error {
	if a.Auto {
		return fmt.Errorf("%w: %s is not a concrete address", lib.ErrMalformedExpression, a)
	}
	if a.IsBlock() {
		if err := s.BlockSpace(a.Area).Reserve(a.Byte); err != nil {
			return fmt.Errorf("%s: %w", a, err)
		}
		return nil
	}
	space := s.BitSpace(a.Area)
	if space == nil {
		return fmt.Errorf("%w: no space for %s", lib.ErrMalformedExpression, a)
	}
	if err := space.Reserve(RangeOf(a)); err != nil {
		return fmt.Errorf("%s: %w", a, err)
	}
	return nil
}

// Allocate resolves an auto address (DB+, MW+ ...) to a concrete one.
func (s *Set) Allocate(a address.Address) (address.Address, error) {
	if a.IsBlock() {
		return address.Block(a.Area, s.BlockSpace(a.Area).Allocate()), nil
	}
	space := s.BitSpace(a.Area)
	if space == nil {
		return address.Address{}, fmt.Errorf("%w: no space for %s", lib.ErrMalformedExpression, a)
	}
	r := space.Allocate(a.Width)
	return address.FromOffset(a.Area, r.Start, r.Width), nil
}

// Release frees a concrete address.
func (s *Set) Release(a address.Address) {
	if a.IsBlock() {
		s.BlockSpace(a.Area).Release(a.Byte)
		return
	}
	if space := s.BitSpace(a.Area); space != nil {
		space.Release(RangeOf(a))
	}
}

// Covers reports whether a memory address lies inside an already taken range.
func (s *Set) Covers(a address.Address) bool {
	if a.IsBlock() {
		return s.BlockSpace(a.Area).Taken(a.Byte)
	}
	space := s.BitSpace(a.Area)
	return space != nil && space.Covers(RangeOf(a))
}
