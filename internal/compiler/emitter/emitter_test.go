package emitter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"text/template"
)

func TestRender(t *testing.T) {
	tpl := template.Must(template.New("t").Parse("FUNCTION \"{{.Name}}\" : VOID\nEND_FUNCTION\n"))
	artifacts, err := Render([]Rule{{Path: "AS1/Loop.scl", Template: tpl, Tags: map[string]string{"Name": "Loop"}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(artifacts) != 1 || artifacts[0].Content != "FUNCTION \"Loop\" : VOID\nEND_FUNCTION\n" {
		t.Errorf("unexpected artifacts %+v", artifacts)
	}

	bad := template.Must(template.New("t").Parse("{{.Missing.Field}}"))
	if _, err := Render([]Rule{{Path: "x", Template: bad, Tags: 1}}); err == nil {
		t.Errorf("expected render error")
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		crlf     bool
		input    string
		expected []byte
	}{
		{"plain", EncodingUTF8, false, "a\nb\n", []byte("a\nb\n")},
		{"crlf", EncodingUTF8, true, "a\nb\r\n", []byte("a\r\nb\r\n")},
		{"gbk", EncodingGBK, true, "阀门\n", []byte{0xb7, 0xa7, 0xc3, 0xc5, '\r', '\n'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter(t.TempDir())
			e.Encoding = tt.encoding
			e.CRLF = tt.crlf
			got, err := e.Encode(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("expected=%q, got=%q", tt.expected, got)
			}
		})
	}

	e := NewEmitter("")
	e.Encoding = "latin1"
	if _, err := e.Encode("x"); err == nil {
		t.Errorf("expected error for an unknown encoding")
	}
}

func TestWriteAndCopy(t *testing.T) {
	root := t.TempDir()
	libDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(libDir, "Timer_Proc.scl"), []byte("FB\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewEmitter(root)
	e.LibDir = libDir
	written, err := e.WriteAll([]Artifact{{Path: "AS1/symbols.asc", Content: "126,x\n"}})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(written[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "126,x\r\n" {
		t.Errorf("expected CRLF output, got=%q", data)
	}

	copied, err := e.CopyAll([]Copy{{Src: "Timer_Proc.scl", Dst: "AS1/Timer_Proc.scl"}})
	if err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(copied[0]); string(data) != "FB\n" {
		t.Errorf("expected the file unchanged, got=%q", data)
	}

	if _, err := e.CopyAll([]Copy{{Src: "missing.scl", Dst: "AS1/missing.scl"}}); err == nil {
		t.Errorf("expected error for a missing library file")
	}
}
