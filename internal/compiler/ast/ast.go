// Package ast holds configuration documents as loaded from YAML. Fields a
// device interprets itself stay yaml.Node trees so expressions keep their
// shape (scalar or inline definition) until they are resolved.
package ast

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arnavsurve/s7gen/internal/compiler/lib"
)

// --- Document ---
type Document struct {
	File  string
	Index int // 1-based position inside File

	CPU      string // "CPU" or "name" key
	Type     string
	Device   string
	Platform string

	List               []*yaml.Node
	Symbols            []*yaml.Node
	Includes           *yaml.Node
	LoopAdditionalCode *yaml.Node
	Options            Options

	Root *yaml.Node // the document mapping, comments included
}

type Options struct {
	OutputDir  string
	OutputFile string
	Extra      map[string]string
}

func (d *Document) Trace() lib.Trace {
	return lib.Trace{File: d.File, DocIndex: d.Index, CPU: d.CPU, Type: d.Type}
}

func (d *Document) String() string {
	return fmt.Sprintf("%s:%s", d.CPU, d.Type)
}

// --- Node helpers ---

// Get returns the value of key in a mapping node, or nil.
func Get(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// IsNull reports whether node is absent or an explicit null.
func IsNull(node *yaml.Node) bool {
	return node == nil || node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}

// String returns the scalar value of node, or "" for anything else.
func String(node *yaml.Node) string {
	if IsNull(node) || node.Kind != yaml.ScalarNode {
		return ""
	}
	return node.Value
}

// GetString is String(Get(node, key)).
func GetString(node *yaml.Node, key string) string {
	return String(Get(node, key))
}

// GetInt reads an integer field; def is returned when the field is absent.
func GetInt(node *yaml.Node, key string, def int) (int, error) {
	v := Get(node, key)
	if IsNull(v) {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(String(v)))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", lib.ErrMalformedExpression, key, v.Value)
	}
	return n, nil
}

// GetBool reads a boolean field; def is returned when the field is absent.
func GetBool(node *yaml.Node, key string, def bool) bool {
	v := Get(node, key)
	if IsNull(v) {
		return def
	}
	var b bool
	if err := v.Decode(&b); err != nil {
		return def
	}
	return b
}

// Seq returns the items of a sequence node. A single non-null node is
// treated as a one element sequence.
func Seq(node *yaml.Node) []*yaml.Node {
	switch {
	case IsNull(node):
		return nil
	case node.Kind == yaml.SequenceNode:
		return node.Content
	}
	return []*yaml.Node{node}
}

// Strings returns the scalar items of a sequence node.
func Strings(node *yaml.Node) []string {
	var out []string
	for _, item := range Seq(node) {
		if s := String(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Keys returns the keys of a mapping node in document order.
func Keys(node *yaml.Node) []string {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// Scalar builds a plain string node.
func Scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// StripComments returns a deep copy of node without any comments.
func StripComments(node *yaml.Node) *yaml.Node {
	if node == nil {
		return nil
	}
	out := *node
	out.HeadComment, out.LineComment, out.FootComment = "", "", ""
	if node.Alias != nil {
		out.Alias = StripComments(node.Alias)
	}
	if len(node.Content) > 0 {
		out.Content = make([]*yaml.Node, len(node.Content))
		for i, child := range node.Content {
			out.Content[i] = StripComments(child)
		}
	}
	return &out
}
