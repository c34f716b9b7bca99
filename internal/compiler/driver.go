package compiler

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path"
	"path/filepath"

	"github.com/logrusorgru/aurora"
	"gopkg.in/yaml.v3"

	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/cpu"
	"github.com/arnavsurve/s7gen/internal/compiler/device"
	"github.com/arnavsurve/s7gen/internal/compiler/emitter"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/parser"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

type State int

const (
	Scanning            State = iota // no document added yet
	RegisteringBuiltins              // pass 1, documents are registering symbols
	DeferredResolution               // pass 2
	Validated                        // tables frozen, ready to generate
	Failed
)

var stateNames = [...]string{"scanning", "registering", "resolving", "validated", "failed"}

func (s State) String() string {
	return stateNames[s]
}

type Options struct {
	Logger    *log.Logger // nil discards progress output
	NoConvert bool        // stop after resolution
	Zyml      bool        // also emit <cpu>.zyml, the documents without comments
	LibDir    string
	Encoding  string
	CRLF      bool
	OutDir    string
}

// Result is what a compilation produced. Artifacts and Copies are empty when
// NoConvert is set.
type Result struct {
	CPUs      []*cpu.CPU
	Artifacts []emitter.Artifact
	Copies    []emitter.Copy
}

// Context carries one compilation run: the controllers in creation order and
// the documents added to them.
type Context struct {
	registry *device.Registry
	opts     Options
	log      *log.Logger
	state    State

	cpus  map[string]*cpu.CPU
	order []*cpu.CPU
	areas []*device.Area
}

func NewContext(reg *device.Registry, opts Options) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Context{
		registry: reg,
		opts:     opts,
		log:      logger,
		cpus:     make(map[string]*cpu.CPU),
	}
}

func (c *Context) State() State {
	return c.state
}

// CPUs returns the controllers in the order they were first referenced.
func (c *Context) CPUs() []*cpu.CPU {
	return append([]*cpu.CPU(nil), c.order...)
}

func (c *Context) fail(err error) error {
	c.state = Failed
	return err
}

func (c *Context) cpu(name string) (*cpu.CPU, error) {
	if pc, ok := c.cpus[name]; ok {
		return pc, nil
	}
	pc, err := cpu.New(name)
	if err != nil {
		return nil, err
	}
	c.cpus[name] = pc
	c.order = append(c.order, pc)
	return pc, nil
}

// AddDocument runs the first pass over doc: its type is looked up, its
// controller created on first use, and every symbol it declares registered.
// Expression fields are queued for Resolve.
func (c *Context) AddDocument(doc *ast.Document) error {
	if c.state != Scanning && c.state != RegisteringBuiltins {
		return fmt.Errorf("add %s: compilation is %s", doc, c.state)
	}
	trace := doc.Trace()
	if err := c.addDocument(doc); err != nil {
		return c.fail(trace.Wrap(err))
	}
	return nil
}

func (c *Context) addDocument(doc *ast.Document) error {
	f, err := c.registry.Lookup(doc.Type)
	if err != nil {
		return err
	}
	pc, err := c.cpu(doc.CPU)
	if err != nil {
		return err
	}
	if err := pc.Claim(f.Name, doc); err != nil {
		return err
	}
	c.state = RegisteringBuiltins
	if err := pc.Symbols.SeedBuiltins(f.Builtins); err != nil {
		return err
	}

	a := &device.Area{Doc: doc, CPU: pc, Feature: f, BaseDir: filepath.Dir(doc.File)}
	inc, err := parser.LoadIncludes(doc.Includes, a.BaseDir)
	if err != nil {
		return err
	}
	loop, err := parser.LoadIncludes(doc.LoopAdditionalCode, a.BaseDir)
	if err != nil {
		return err
	}
	a.Includes, a.LoopAdditionalCode = inc.Code, loop.Code

	defs, err := parser.ParseSymbolList(doc.Symbols, "")
	if err != nil {
		return err
	}
	defs = append(append(inc.Symbols, loop.Symbols...), defs...)
	if err := define(pc.Symbols, defs); err != nil {
		return err
	}

	if f.ParseSymbols != nil {
		if err := f.ParseSymbols(a); err != nil {
			return err
		}
	}
	c.areas = append(c.areas, a)
	return nil
}

func define(t *symbols.Table, defs []symbols.Def) error {
	for _, def := range defs {
		if _, err := t.Define(def); err != nil {
			return err
		}
	}
	return nil
}

// Resolve runs the second pass: every controller's queue is flushed, the
// documents are validated and the symbol tables frozen.
func (c *Context) Resolve() error {
	if c.state != RegisteringBuiltins {
		return fmt.Errorf("resolve: compilation is %s", c.state)
	}
	c.state = DeferredResolution
	for _, pc := range c.order {
		if err := pc.Resolver.Flush(); err != nil {
			return c.fail(err)
		}
	}
	for _, a := range c.areas {
		trace := a.Doc.Trace()
		if !a.Feature.Supports(a.CPU.Platform) {
			return c.fail(trace.Wrap(fmt.Errorf("%w: %s on platform %s", lib.ErrUnsupportedDocumentType, a.Feature.Name, a.CPU.Platform)))
		}
		if a.Feature.Build == nil {
			continue
		}
		if err := a.Feature.Build(a); err != nil {
			return c.fail(trace.Wrap(err))
		}
	}
	for _, pc := range c.order {
		pc.Symbols.Freeze()
	}
	c.state = Validated
	return nil
}

// Generate renders every document and the symbol table of every controller.
func (c *Context) Generate() (*Result, error) {
	if c.state != Validated {
		return nil, fmt.Errorf("generate: compilation is %s", c.state)
	}
	res := &Result{CPUs: c.CPUs()}
	var rules []emitter.Rule
	for _, a := range c.areas {
		if a.Feature.Generate != nil {
			r, err := a.Feature.Generate(a)
			if err != nil {
				return nil, c.fail(a.Doc.Trace().Wrap(err))
			}
			rules = append(rules, r...)
		}
		if a.Feature.CopyList != nil {
			res.Copies = append(res.Copies, a.Feature.CopyList(a)...)
		}
	}
	for _, pc := range c.order {
		rules = append(rules, device.SymbolsRule(pc))
	}

	artifacts, err := emitter.Render(rules)
	if err != nil {
		return nil, c.fail(err)
	}
	res.Artifacts = artifacts

	if c.opts.Zyml {
		for _, pc := range c.order {
			z, err := zyml(pc)
			if err != nil {
				return nil, c.fail(err)
			}
			res.Artifacts = append(res.Artifacts, z)
		}
	}
	return res, nil
}

// zyml re-encodes the documents of pc without their comments.
func zyml(pc *cpu.CPU) (emitter.Artifact, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range pc.Documents() {
		if err := enc.Encode(ast.StripComments(doc.Root)); err != nil {
			return emitter.Artifact{}, fmt.Errorf("zyml %s: %w", pc.Name, err)
		}
	}
	if err := enc.Close(); err != nil {
		return emitter.Artifact{}, err
	}
	return emitter.Artifact{Path: path.Join(pc.OutputDir, pc.Name+".zyml"), Content: buf.String()}, nil
}

// AddDir parses the configuration files of dir in lexical order and adds
// their documents.
func (c *Context) AddDir(dir string) error {
	files, err := parser.ConfigFiles(dir)
	if err != nil {
		return c.fail(err)
	}
	for _, file := range files {
		c.log.Printf("reading file: %s", aurora.Cyan(file))
		docs, err := parser.ParseFile(file)
		if err != nil {
			return c.fail(err)
		}
		for _, doc := range docs {
			if err := c.AddDocument(doc); err != nil {
				return err
			}
		}
	}
	if c.state == Scanning {
		return c.fail(fmt.Errorf("%w: no configuration document in %s", lib.ErrMissingRequiredField, dir))
	}
	return nil
}

// Compile runs both passes over the configuration in dir and renders the
// results without writing them.
func Compile(dir string, opts Options) (*Result, error) {
	ctx := NewContext(device.Default(), opts)
	if err := ctx.AddDir(dir); err != nil {
		return nil, err
	}
	if err := ctx.Resolve(); err != nil {
		return nil, err
	}
	if opts.NoConvert {
		return &Result{CPUs: ctx.CPUs()}, nil
	}
	return ctx.Generate()
}

// CompileAndWrite compiles dir and writes the results below opts.OutDir. It
// returns the paths written.
func CompileAndWrite(dir string, opts Options) ([]string, error) {
	res, err := Compile(dir, opts)
	if err != nil {
		return nil, err
	}
	if opts.NoConvert {
		return nil, nil
	}
	return Write(res, opts)
}

// Write writes the artifacts of res, then copies the library files when
// opts.LibDir is set.
func Write(res *Result, opts Options) ([]string, error) {
	em := emitter.NewEmitter(opts.OutDir)
	em.LibDir = opts.LibDir
	em.CRLF = opts.CRLF
	if opts.Encoding != "" {
		em.Encoding = opts.Encoding
	}
	if opts.Logger != nil {
		em.Log = opts.Logger
	}

	written, err := em.WriteAll(res.Artifacts)
	if err != nil {
		return written, err
	}
	if opts.LibDir == "" {
		return written, nil
	}
	copied, err := em.CopyAll(res.Copies)
	return append(written, copied...), err
}
