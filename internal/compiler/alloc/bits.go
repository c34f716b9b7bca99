package alloc

import (
	"fmt"
	"sort"

	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

// Range is a run of Width bits starting at bit offset Start.
type Range struct {
	Start int
	Width int
}

func (r Range) End() int {
	return r.Start + r.Width
}

func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End() && o.Start < r.End()
}

func (r Range) Contains(o Range) bool {
	return r.Start <= o.Start && o.End() <= r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("[%d.%d, +%d)", r.Start/8, r.Start%8, r.Width)
}

// Bits manages one byte.bit addressable memory area. Accepted ranges never
// overlap; they are kept sorted by start offset.
type Bits struct {
	ranges []Range
}

func NewBits() *Bits {
	return &Bits{}
}

// search returns the index of the first range starting at or after start.
func (b *Bits) search(start int) int {
	return sort.Search(len(b.ranges), func(i int) bool {
		return b.ranges[i].Start >= start
	})
}

func (b *Bits) conflict(r Range) (Range, bool) {
	i := b.search(r.Start)
	if i > 0 && b.ranges[i-1].Overlaps(r) {
		return b.ranges[i-1], true
	}
	if i < len(b.ranges) && b.ranges[i].Overlaps(r) {
		return b.ranges[i], true
	}
	return Range{}, false
}

func (b *Bits) insert(r Range) {
	i := b.search(r.Start)
	b.ranges = append(b.ranges, Range{})
	copy(b.ranges[i+1:], b.ranges[i:])
	b.ranges[i] = r
}

// Reserve accepts r if it intersects no taken range.
func (b *Bits) Reserve(r Range) error {
	if r.Start < 0 || r.Width <= 0 {
		return fmt.Errorf("%w: invalid range %s", lib.ErrMalformedExpression, r)
	}
	if taken, ok := b.conflict(r); ok {
		return fmt.Errorf("%w: %s intersects %s", lib.ErrOverlappingAddress, r, taken)
	}
	b.insert(r)
	return nil
}

// Allocate takes the lowest free offset aligned to width whose run of width
// bits is free.
func (b *Bits) Allocate(width int) Range {
	if width <= 0 {
		width = 1
	}
	offset := 0
	for _, taken := range b.ranges {
		if offset+width <= taken.Start {
			break
		}
		if taken.End() > offset {
			offset = alignUp(taken.End(), width)
		}
	}
	r := Range{Start: offset, Width: width}
	b.insert(r)
	return r
}

// Release drops exactly r; unknown ranges are ignored.
func (b *Bits) Release(r Range) {
	for i, taken := range b.ranges {
		if taken == r {
			b.ranges = append(b.ranges[:i], b.ranges[i+1:]...)
			return
		}
	}
}

// Covers reports whether r lies inside one already taken range.
func (b *Bits) Covers(r Range) bool {
	i := b.search(r.Start + 1)
	return i > 0 && b.ranges[i-1].Contains(r)
}

// Ranges returns a copy of the taken ranges in offset order.
func (b *Bits) Ranges() []Range {
	out := make([]Range, len(b.ranges))
	copy(out, b.ranges)
	return out
}

func alignUp(offset, width int) int {
	if rem := offset % width; rem != 0 {
		return offset + width - rem
	}
	return offset
}
