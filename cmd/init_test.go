package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arnavsurve/s7gen/internal/compiler"
)

func TestScaffoldCompiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plant")
	if err := scaffold(dir, "AS7"); err != nil {
		t.Fatal(err)
	}
	res, err := compiler.Compile(dir, compiler.Options{})
	if err != nil {
		t.Fatalf("scaffolded configuration does not compile: %v", err)
	}
	if len(res.CPUs) != 1 || res.CPUs[0].Name != "AS7" {
		t.Errorf("expected CPU AS7, got=%d CPUs", len(res.CPUs))
	}
	// three device loops plus symbols.asc, no CPU.scl without includes
	if len(res.Artifacts) != 4 {
		t.Errorf("expected 4 artifacts, got=%d", len(res.Artifacts))
	}
}

func TestScaffoldRefusesExistingDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "CPU.yml"), []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := scaffold(dir, "AS1"); err == nil {
		t.Error("expected scaffold to refuse an existing directory")
	}
}
