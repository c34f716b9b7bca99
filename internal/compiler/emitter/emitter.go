// Package emitter renders generation rules through text/template and writes
// the results below an output root.
package emitter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/logrusorgru/aurora"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	EncodingUTF8 = "utf8"
	EncodingGBK  = "gbk"
)

// Rule asks for Template to be executed with Tags into Path.
type Rule struct {
	Path     string
	Template *template.Template
	Tags     any
}

// Artifact is rendered output not yet written.
type Artifact struct {
	Path    string
	Content string
}

// Copy asks for a library file to be copied next to the generated files.
type Copy struct {
	Src string
	Dst string
}

// Render executes every rule.
func Render(rules []Rule) ([]Artifact, error) {
	out := make([]Artifact, 0, len(rules))
	for _, r := range rules {
		var buf bytes.Buffer
		if err := r.Template.Execute(&buf, r.Tags); err != nil {
			return nil, fmt.Errorf("render %s: %w", r.Path, err)
		}
		out = append(out, Artifact{Path: r.Path, Content: buf.String()})
	}
	return out, nil
}

type Emitter struct {
	Root     string // output root, artifact paths are relative to it
	LibDir   string // copy sources are relative to it
	Encoding string
	CRLF     bool
	Log      *log.Logger
}

func NewEmitter(root string) *Emitter {
	return &Emitter{
		Root:     root,
		Encoding: EncodingUTF8,
		CRLF:     true,
		Log:      log.New(io.Discard, "", 0),
	}
}

// Write writes one artifact and returns the path written.
func (e *Emitter) Write(a Artifact) (string, error) {
	path := filepath.Join(e.Root, a.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := e.encode(f, a.Content); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	e.Log.Printf("\t%s", aurora.Cyan(path))
	return path, nil
}

// WriteAll writes artifacts in order and stops at the first failure.
func (e *Emitter) WriteAll(artifacts []Artifact) ([]string, error) {
	if len(artifacts) > 0 {
		e.Log.Println("generate file:")
	}
	written := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		path, err := e.Write(a)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// CopyAll copies library files unchanged.
func (e *Emitter) CopyAll(copies []Copy) ([]string, error) {
	if len(copies) > 0 {
		e.Log.Println("copy file to:")
	}
	var written []string
	for _, c := range copies {
		src := c.Src
		if !filepath.IsAbs(src) && e.LibDir != "" {
			src = filepath.Join(e.LibDir, src)
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return written, fmt.Errorf("copy: %w", err)
		}
		dst := filepath.Join(e.Root, c.Dst)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return written, err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return written, err
		}
		e.Log.Printf("\t%s", aurora.Cyan(dst))
		written = append(written, dst)
	}
	return written, nil
}

// Encode returns content as it would be written.
func (e *Emitter) Encode(content string) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.encode(&buf, content); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Emitter) encode(w io.Writer, content string) error {
	var tw io.WriteCloser
	switch strings.ToLower(e.Encoding) {
	case "", EncodingUTF8, "utf-8":
	case EncodingGBK:
		tw = transform.NewWriter(w, simplifiedchinese.GBK.NewEncoder())
		w = tw
	default:
		return fmt.Errorf("unknown encoding %q", e.Encoding)
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	if e.CRLF {
		cw := newCRLFWriter(w)
		if _, err := io.WriteString(cw, content); err != nil {
			return err
		}
		if err := cw.Flush(); err != nil {
			return err
		}
	} else if _, err := io.WriteString(w, content); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

// crlfWriter wraps an io.Writer and converts \n to \r\n.
type crlfWriter struct {
	w *bufio.Writer
}

func newCRLFWriter(w io.Writer) *crlfWriter {
	return &crlfWriter{w: bufio.NewWriter(w)}
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	written := 0
	for _, b := range p {
		if b == '\n' {
			if _, err := c.w.Write([]byte{'\r', '\n'}); err != nil {
				return written, err
			}
		} else {
			if err := c.w.WriteByte(b); err != nil {
				return written, err
			}
		}
		written++
	}
	return written, nil
}

func (c *crlfWriter) Flush() error {
	return c.w.Flush()
}
