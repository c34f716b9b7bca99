package alloc

import (
	"fmt"

	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

// Block hands out integer ids (block numbers, connection ids, poll ids) from
// one numbering space. Explicit reservations and auto allocation share the
// same taken set.
type Block struct {
	base  int
	next  int
	taken map[int]bool
}

func NewBlock(base int) *Block {
	return &Block{
		base:  base,
		next:  base,
		taken: make(map[int]bool),
	}
}

func (b *Block) Base() int {
	return b.base
}

// Reserve marks id as used.
func (b *Block) Reserve(id int) error {
	if id < 0 {
		return fmt.Errorf("%w: negative id %d", lib.ErrMalformedExpression, id)
	}
	if b.taken[id] {
		return fmt.Errorf("%w: %d is already used", lib.ErrDuplicateAddress, id)
	}
	b.taken[id] = true
	return nil
}

// Allocate returns the smallest unused id not below the base.
func (b *Block) Allocate() int {
	// every id in [base, next) is taken
	for b.taken[b.next] {
		b.next++
	}
	id := b.next
	b.taken[id] = true
	b.next++
	return id
}

// Release frees id so it can be reserved or allocated again.
func (b *Block) Release(id int) {
	if !b.taken[id] {
		return
	}
	delete(b.taken, id)
	if id >= b.base && id < b.next {
		b.next = id
	}
}

func (b *Block) Taken(id int) bool {
	return b.taken[id]
}
