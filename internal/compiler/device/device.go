// Package device holds what each configuration document type contributes:
// builtin symbols, first pass symbol extraction, second pass checks and the
// rules rendering its SCL.
package device

import (
	"crypto/md5"
	"embed"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/mileusna/conditional"
	"gopkg.in/yaml.v3"

	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/cpu"
	"github.com/arnavsurve/s7gen/internal/compiler/emitter"
	"github.com/arnavsurve/s7gen/internal/compiler/express"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"hex":   lib.FixedHex,
	"quote": lib.Quote,
	"paren": func(v express.Value) string { return v.Paren() },
	"bool":  func(b bool) string { return conditional.String(b, "TRUE", "FALSE") },
	"inc":   func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/*.tmpl"))

func lookupTemplate(name string) *template.Template {
	t := templates.Lookup(name)
	if t == nil {
		panic("device: missing template " + name)
	}
	return t
}

// Feature describes one document type. Optional capabilities are nil when the
// type has nothing to do at that stage.
type Feature struct {
	Name      string
	Aliases   []string
	Platforms []string // empty means every platform
	Builtins  []symbols.Builtin

	ParseSymbols func(a *Area) error // first pass, after the document's symbols
	Build        func(a *Area) error // second pass, after every expression resolved
	Generate     func(a *Area) ([]emitter.Rule, error)
	CopyList     func(a *Area) []emitter.Copy
}

// Matches reports whether a document type tag selects f.
func (f *Feature) Matches(typ string) bool {
	if strings.EqualFold(typ, f.Name) {
		return true
	}
	for _, alias := range f.Aliases {
		if strings.EqualFold(typ, alias) {
			return true
		}
	}
	return false
}

func (f *Feature) Supports(platform string) bool {
	if len(f.Platforms) == 0 {
		return true
	}
	for _, p := range f.Platforms {
		if strings.EqualFold(p, platform) {
			return true
		}
	}
	return false
}

type Registry struct {
	features []*Feature
}

func NewRegistry(features ...*Feature) *Registry {
	r := &Registry{}
	for _, f := range features {
		r.features = append(r.features, f)
	}
	return r
}

// Default returns a registry with every supported document type.
func Default() *Registry {
	return NewRegistry(CPU(), PI(), Timer(), Interlock(), Valve(), MT())
}

// Lookup finds the feature selected by a document type tag.
func (r *Registry) Lookup(typ string) (*Feature, error) {
	for _, f := range r.features {
		if f.Matches(typ) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", lib.ErrUnsupportedDocumentType, typ)
}

// Features returns the registered features in generation order.
func (r *Registry) Features() []*Feature {
	return append([]*Feature(nil), r.features...)
}

// Area is one document being compiled for a controller.
type Area struct {
	Doc     *ast.Document
	CPU     *cpu.CPU
	Feature *Feature
	BaseDir string // directory of the document, for includes

	Includes           string
	LoopAdditionalCode string

	data any // device specific state from ParseSymbols to Generate
}

// Resolve queues an expression field of the document.
func (a *Area) Resolve(node *yaml.Node, opts express.Options) *express.Deferred {
	a.CPU.Resolver.SetTrace(a.Doc.Trace())
	return a.CPU.Resolver.Resolve(node, opts)
}

// Bind resolves node into *dst.
func (a *Area) Bind(node *yaml.Node, dst *express.Value, opts express.Options) *express.Deferred {
	return a.Resolve(node, opts).Then(func(v express.Value) error {
		*dst = v
		return nil
	})
}

// OutputFile is options.output_file or def, inside the controller's output dir.
func (a *Area) OutputFile(def, ext string) string {
	name := a.Doc.Options.OutputFile
	if name == "" {
		name = def
	}
	return path.Join(a.CPU.OutputDir, name+ext)
}

// Digest identifies the configuration a file was generated from.
func (a *Area) Digest() string {
	if a.Doc.Root == nil {
		return ""
	}
	out, err := yaml.Marshal(ast.StripComments(a.Doc.Root))
	if err != nil {
		return ""
	}
	sum := md5.Sum(out)
	return hex.EncodeToString(sum[:])
}

// Header holds the tags every template starts with.
type Header struct {
	CPU                string
	File               string
	Digest             string
	Platform           string
	Includes           string
	LoopAdditionalCode string
}

func (a *Area) Header() Header {
	return Header{
		CPU:                a.CPU.Name,
		File:               path.Base(a.Doc.File),
		Digest:             a.Digest(),
		Platform:           a.CPU.Platform,
		Includes:           strings.TrimSpace(a.Includes),
		LoopAdditionalCode: strings.TrimSpace(a.LoopAdditionalCode),
	}
}

// copyFromLib copies name.scl from the library folder of the same name.
func copyFromLib(a *Area, name string) []emitter.Copy {
	file := name + ".scl"
	return []emitter.Copy{{Src: path.Join(name, file), Dst: path.Join(a.CPU.OutputDir, file)}}
}

func required(node *yaml.Node, field string, a *Area) error {
	if ast.IsNull(node) {
		return fmt.Errorf("%w: %s %s", lib.ErrMissingRequiredField, a.Feature.Name, field)
	}
	return nil
}

// requireList rejects a document without entries.
func requireList(a *Area) error {
	if len(a.Doc.List) == 0 {
		return fmt.Errorf("%w: %s list", lib.ErrMissingRequiredField, a.Feature.Name)
	}
	return nil
}

// boolOr returns v or FALSE when the field was left empty.
func boolOr(v express.Value, def string) string {
	return conditional.String(v.IsEmpty(), def, v.Value)
}
