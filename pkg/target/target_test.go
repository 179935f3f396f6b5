package target

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultX86_64(t *testing.T) {
	cfg := DefaultX86_64()
	if cfg.Architecture.Name != "x86-64" {
		t.Fatalf("expected architecture x86-64, got %q", cfg.Architecture.Name)
	}
	if cfg.Resources.GPRCount != 16 {
		t.Fatalf("expected 16 GPRs, got %d", cfg.Resources.GPRCount)
	}
	if !cfg.Satisfies([]string{"sse", "sse2"}) {
		t.Fatalf("expected default config to satisfy sse/sse2")
	}
	if cfg.Satisfies([]string{"avx2"}) {
		t.Fatalf("expected default config not to satisfy avx2 (catalogued but not enabled)")
	}
	if !cfg.Architecture.HasFeature("avx2") {
		t.Fatalf("expected avx2 to be catalogued even though disabled")
	}
	if !cfg.HasMemoryOrder(OrderAcquireRelease) {
		t.Fatalf("expected default config to support acquire-release ordering")
	}
}

func TestSatisfiesEmptyRequirement(t *testing.T) {
	cfg := DefaultX86_64()
	if !cfg.Satisfies(nil) {
		t.Fatalf("expected no required features to always be satisfied")
	}
}

func TestLoadAndMarshalRoundTrip(t *testing.T) {
	cfg := DefaultX86_64()
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	path := filepath.Join(t.TempDir(), "target.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing temp target file: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Architecture.Name != cfg.Architecture.Name {
		t.Fatalf("expected architecture %q, got %q", cfg.Architecture.Name, loaded.Architecture.Name)
	}
	if !loaded.Satisfies([]string{"sse2"}) {
		t.Fatalf("expected loaded config to satisfy sse2")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error loading a nonexistent target file")
	}
}
