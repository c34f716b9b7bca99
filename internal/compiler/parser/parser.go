// Package parser loads configuration documents from YAML files.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arnavsurve/s7gen/internal/compiler/ast"
	"github.com/arnavsurve/s7gen/internal/compiler/lexer"
	"github.com/arnavsurve/s7gen/internal/compiler/lib"
	"github.com/arnavsurve/s7gen/internal/compiler/symbols"
)

// IncludeComment is given to symbols declared in include files without one.
const IncludeComment = "symbol from files of includes"

// ConfigFiles lists the YAML files of dir in lexical order.
func ConfigFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func ParseFile(path string) ([]*ast.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(path, data)
}

// ParseBytes decodes every document of a multi-document YAML stream.
func ParseBytes(file string, data []byte) ([]*ast.Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []*ast.Document
	for index := 1; ; index++ {
		var root yaml.Node
		err := dec.Decode(&root)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		trace := lib.Trace{File: file, DocIndex: index}
		if err != nil {
			return nil, trace.Wrap(fmt.Errorf("%w: %v", lib.ErrMalformedExpression, err))
		}
		if len(root.Content) == 0 || ast.IsNull(root.Content[0]) {
			continue
		}
		doc, err := decodeDocument(root.Content[0])
		if err != nil {
			return nil, trace.Wrap(err)
		}
		doc.File = file
		doc.Index = index
		docs = append(docs, doc)
	}
}

func decodeDocument(node *yaml.Node) (*ast.Document, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: a document must be a mapping", lib.ErrMalformedExpression)
	}
	doc := &ast.Document{
		CPU:                ast.GetString(node, "CPU"),
		Type:               ast.GetString(node, "type"),
		Device:             ast.GetString(node, "device"),
		Platform:           ast.GetString(node, "platform"),
		List:               ast.Seq(ast.Get(node, "list")),
		Symbols:            ast.Seq(ast.Get(node, "symbols")),
		Includes:           ast.Get(node, "includes"),
		LoopAdditionalCode: ast.Get(node, "loop_additional_code"),
		Root:               node,
	}
	if list := ast.Get(node, "list"); !ast.IsNull(list) && list.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: line %d: list must be a sequence", lib.ErrMalformedExpression, list.Line)
	}
	if doc.CPU == "" {
		doc.CPU = ast.GetString(node, "name")
	}
	if doc.CPU == "" {
		return nil, fmt.Errorf("%w: name (CPU)", lib.ErrMissingRequiredField)
	}
	if doc.Type == "" {
		return nil, fmt.Errorf("%w: type", lib.ErrMissingRequiredField)
	}

	opts := ast.Get(node, "options")
	doc.Options = ast.Options{
		OutputDir:  ast.GetString(opts, "output_dir"),
		OutputFile: ast.GetString(opts, "output_file"),
		Extra:      map[string]string{},
	}
	for _, key := range ast.Keys(opts) {
		if key != "output_dir" && key != "output_file" {
			doc.Options.Extra[key] = ast.GetString(opts, key)
		}
	}
	return doc, nil
}

// ParseSymbolList converts a list of symbol declarations. Items are either
// [name, address, type, comment] sequences or mappings with those keys.
func ParseSymbolList(items []*yaml.Node, defaultComment string) ([]symbols.Def, error) {
	defs := make([]symbols.Def, 0, len(items))
	for _, item := range items {
		var fields []string
		switch item.Kind {
		case yaml.SequenceNode:
			for _, f := range item.Content {
				if f.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("%w: line %d: symbol fields must be scalars", lib.ErrMalformedExpression, f.Line)
				}
				fields = append(fields, f.Value)
			}
		case yaml.MappingNode:
			fields = []string{
				ast.GetString(item, "name"),
				ast.GetString(item, "address"),
				ast.GetString(item, "type"),
				ast.GetString(item, "comment"),
			}
		default:
			return nil, fmt.Errorf("%w: line %d: a symbol is a list or a mapping", lib.ErrMalformedExpression, item.Line)
		}
		def, err := symbols.ParseDef(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", item.Line, err)
		}
		if def.Comment == "" {
			def.Comment = defaultComment
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ParseSymbolBlock reads the YAML body of a (* symbols: ... *) block.
func ParseSymbolBlock(src string) ([]symbols.Def, error) {
	var root yaml.Node
	// "(* symbols:" leaves a blank before the key on the first line
	src = strings.TrimLeft(src, " \t")
	if err := yaml.Unmarshal([]byte(src), &root); err != nil {
		return nil, fmt.Errorf("%w: symbols block: %v", lib.ErrMalformedExpression, err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	return ParseSymbolList(ast.Seq(ast.Get(root.Content[0], "symbols")), IncludeComment)
}

// ReadIncludes returns the SCL text of an includes field: the text itself
// when it is a string, the concatenated files (relative to baseDir) when it
// is a list.
func ReadIncludes(node *yaml.Node, baseDir string) (string, error) {
	if ast.IsNull(node) {
		return "", nil
	}
	if node.Kind == yaml.ScalarNode {
		return node.Value, nil
	}
	if node.Kind != yaml.SequenceNode {
		return "", fmt.Errorf("%w: includes must be a string or a list of files", lib.ErrMalformedExpression)
	}
	var sb strings.Builder
	for _, name := range ast.Strings(node) {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, name)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("include: %w", err)
		}
		sb.Write(data)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Includes is the SCL of an includes field with its symbol blocks removed,
// plus the symbols those blocks declare.
type Includes struct {
	Code    string
	Symbols []symbols.Def
}

func LoadIncludes(node *yaml.Node, baseDir string) (Includes, error) {
	src, err := ReadIncludes(node, baseDir)
	if err != nil {
		return Includes{}, err
	}
	code, blocks, err := lexer.ExtractSymbols(src)
	if err != nil {
		return Includes{}, fmt.Errorf("%w: includes: %v", lib.ErrMalformedExpression, err)
	}
	inc := Includes{Code: code}
	for _, block := range blocks {
		defs, err := ParseSymbolBlock(block.YAML)
		if err != nil {
			return Includes{}, fmt.Errorf("includes line %d: %w", block.Line, err)
		}
		inc.Symbols = append(inc.Symbols, defs...)
	}
	return inc, nil
}
