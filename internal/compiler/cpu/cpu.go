// Package cpu holds the resources of one controller: its symbol table, the
// address spaces behind it and the expression queue resolved against it.
package cpu

import (
	"fmt"
	"strings"

	"github.com/arnavsurve/s7gen/internal/compiler/alloc"
	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/express"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

const DefaultDevice = "CPU31x-2PN/DP"

const (
	PlatformStep7  = "step7"
	PlatformPortal = "portal"
)

type CPU struct {
	Name      string
	Device    string
	Platform  string
	OutputDir string

	Alloc    *alloc.Set
	Symbols  *symbols.Table
	Resolver *express.Resolver

	docs  map[string]*ast.Document
	order []string
	hosts map[string]int // host:port -> connection id
}

// New creates the context of controller name with its builtins seeded.
func New(name string) (*CPU, error) {
	set := alloc.NewSet()
	table := symbols.NewTable(set)
	if err := table.SeedBuiltins(symbols.CPUBuiltins); err != nil {
		return nil, err
	}
	return &CPU{
		Name:      name,
		Device:    DefaultDevice,
		Platform:  PlatformStep7,
		OutputDir: name,
		Alloc:     set,
		Symbols:   table,
		Resolver:  express.NewResolver(table),
		docs:      make(map[string]*ast.Document),
		hosts:     make(map[string]int),
	}, nil
}

// Claim records doc as the controller's document of type doctype. Each type
// may be configured once per controller.
func (c *CPU) Claim(doctype string, doc *ast.Document) error {
	if prev, ok := c.docs[doctype]; ok {
		return fmt.Errorf("%w: %s:%s already configured in %s doc #%d",
			lib.ErrDuplicateDocument, c.Name, doctype, prev.File, prev.Index)
	}
	c.docs[doctype] = doc
	c.order = append(c.order, doctype)
	return nil
}

func (c *CPU) Document(doctype string) (*ast.Document, bool) {
	doc, ok := c.docs[doctype]
	return doc, ok
}

// Documents returns the claimed documents in claim order.
func (c *CPU) Documents() []*ast.Document {
	out := make([]*ast.Document, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.docs[t])
	}
	return out
}

// Types returns the claimed document types in claim order.
func (c *CPU) Types() []string {
	return append([]string(nil), c.order...)
}

// ClaimConnection reserves a connection id for host:port. id <= 0 allocates
// one from the connection id space.
func (c *CPU) ClaimConnection(host string, port, id int) (int, error) {
	key := strings.ToLower(host) + ":" + fmt.Sprint(port)
	if prev, ok := c.hosts[key]; ok {
		return 0, fmt.Errorf("%w: connection %s already used by ID %d", lib.ErrDuplicateAddress, key, prev)
	}
	if id > 0 {
		if err := c.Alloc.ConnID.Reserve(id); err != nil {
			return 0, fmt.Errorf("connection %s ID %d: %w", key, id, err)
		}
	} else {
		id = c.Alloc.ConnID.Allocate()
	}
	c.hosts[key] = id
	return id, nil
}
