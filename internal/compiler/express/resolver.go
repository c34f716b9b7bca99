// Package express turns expression fields of configuration documents into
// SCL text. Resolution is deferred: Resolve queues the field during the first
// pass and Flush resolves the whole queue once every document has registered
// its symbols, so a field may name a symbol defined in a later document.
package express

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arnavsurve/s7gen/internal/compiler/address"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

type Options struct {
	Type       string // required symbol type, also the type of inline definitions
	Comment    string // comment given to inline definitions that have none
	Desc       string // names the field in error messages
	NoCompound bool   // only symbols, addresses and literals are accepted
	Define     bool   // an undefined plain name is created with Type
}

// Deferred is a queued resolution. Continuations run in the order they were
// attached, right after the value is known.
type Deferred struct {
	node  *yaml.Node
	opts  Options
	trace lib.Trace
	thens []func(Value) error

	inline *symbols.Symbol
	err    error // failure already known in the first pass

	value Value
	done  bool
}

// Then attaches fn. Attaching to a resolved Deferred runs fn at once and
// discards its error; attach before Flush.
func (d *Deferred) Then(fn func(Value) error) *Deferred {
	if d.done {
		_ = fn(d.value)
		return d
	}
	d.thens = append(d.thens, fn)
	return d
}

// Value returns the resolved value once Flush ran.
func (d *Deferred) Value() (Value, bool) {
	return d.value, d.done
}

// Inline returns the symbol an inline definition registered, if any.
func (d *Deferred) Inline() *symbols.Symbol {
	return d.inline
}

type Resolver struct {
	table   *symbols.Table
	queue   []*Deferred
	trace   lib.Trace
	flushed bool
}

func NewResolver(table *symbols.Table) *Resolver {
	return &Resolver{table: table}
}

// SetTrace sets the location recorded by following Resolve calls.
func (r *Resolver) SetTrace(t lib.Trace) {
	r.trace = t
}

func (r *Resolver) Pending() int {
	return len(r.queue)
}

// Resolve queues node. Inline definitions ([name, address, type, comment])
// are registered immediately.
func (r *Resolver) Resolve(node *yaml.Node, opts Options) *Deferred {
	d := &Deferred{node: node, opts: opts, trace: r.trace}
	if r.flushed {
		d.err = errors.New("expression queued after resolution")
	}
	if node != nil && node.Kind == yaml.SequenceNode && d.err == nil {
		d.inline, d.err = r.defineInline(node, opts)
	}
	r.queue = append(r.queue, d)
	return d
}

// ResolveString queues a scalar given as plain text.
func (r *Resolver) ResolveString(text string, opts Options) *Deferred {
	return r.Resolve(&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: text}, opts)
}

func (r *Resolver) defineInline(node *yaml.Node, opts Options) (*symbols.Symbol, error) {
	fields := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: %s: inline definition fields must be scalars", lib.ErrMalformedExpression, opts.Desc)
		}
		fields = append(fields, item.Value)
	}
	def, err := symbols.ParseDef(fields)
	if err != nil {
		return nil, err
	}
	if def.Type == "" {
		def.Type = opts.Type
	}
	if def.Comment == "" {
		def.Comment = opts.Comment
	}
	def.Origin = symbols.OriginInline
	sym, err := r.table.Define(def)
	if err != nil {
		return nil, err
	}
	if opts.Type != "" && !typeMatches(sym, opts.Type) {
		return nil, fmt.Errorf("%w: %q is %s, %s requires %s", lib.ErrTypeConflict, sym.Name, sym.Type, describe(opts), opts.Type)
	}
	return sym, nil
}

// Flush resolves the queue in creation order. It runs once; the first error
// stops it and carries the trace of the failing expression.
func (r *Resolver) Flush() error {
	if r.flushed {
		return nil
	}
	r.flushed = true
	for i := 0; i < len(r.queue); i++ {
		d := r.queue[i]
		if err := r.settle(d); err != nil {
			return d.trace.Wrap(err)
		}
	}
	return nil
}

func (r *Resolver) settle(d *Deferred) error {
	if d.err != nil {
		return d.err
	}
	var err error
	switch {
	case d.inline != nil:
		d.value = Value{Value: d.inline.Quoted(), Symbol: d.inline}
	case d.node == nil || d.node.Kind == 0 || d.node.Tag == "!!null":
		d.value = Value{}
	case d.node.Kind == yaml.ScalarNode:
		d.value, err = r.classify(d.node.Value, d.opts)
	default:
		err = fmt.Errorf("%w: %s must be a scalar or an inline definition", lib.ErrMalformedExpression, describe(d.opts))
	}
	if err != nil {
		return err
	}
	d.done = true
	for _, fn := range d.thens {
		if err := fn(d.value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) classify(text string, opts Options) (Value, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Value{}, nil
	}
	if IsLiteral(text) {
		return Value{Value: text}, nil
	}

	_, err := address.Parse(text)
	switch {
	case err == nil:
		sym, err := r.table.Anchor(text, opts.Type)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", describe(opts), err)
		}
		return Value{Value: sym.Quoted(), Symbol: sym}, nil
	case !errors.Is(err, address.ErrNotAddress):
		return Value{}, fmt.Errorf("%s: %w", describe(opts), err)
	}

	name := strings.TrimSuffix(strings.TrimPrefix(text, `"`), `"`)
	if lib.IsIdentifier(name) {
		if sym, ok := r.table.Lookup(name); ok {
			if opts.Type != "" && !typeMatches(sym, opts.Type) {
				return Value{}, fmt.Errorf("%w: %q is %s, %s requires %s", lib.ErrTypeConflict, name, sym.Type, describe(opts), opts.Type)
			}
			return Value{Value: sym.Quoted(), Symbol: sym}, nil
		}
		if plainNamePattern.MatchString(name) {
			if opts.Define && opts.Type != "" {
				sym, err := r.table.Define(symbols.Def{Name: name, Type: opts.Type, Comment: opts.Comment, Origin: symbols.OriginAuto})
				if err != nil {
					return Value{}, err
				}
				return Value{Value: sym.Quoted(), Symbol: sym}, nil
			}
			return Value{}, fmt.Errorf("%w: undefined symbol %q in %s", lib.ErrMalformedExpression, name, describe(opts))
		}
	}

	if opts.NoCompound {
		return Value{}, fmt.Errorf("%w: %s does not accept the expression %q", lib.ErrMalformedExpression, describe(opts), text)
	}
	return Value{Value: text, IsCompound: true}, nil
}

func typeMatches(sym *symbols.Symbol, want string) bool {
	if symbols.SameType(sym.Type, want) {
		return true
	}
	return sym.Address.IsBlock() && symbols.SameType(want, sym.Address.Area.String())
}

func describe(opts Options) string {
	if opts.Desc == "" {
		return "expression"
	}
	return opts.Desc
}
