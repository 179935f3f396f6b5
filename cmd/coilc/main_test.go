package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetFlags() {
	outputPath = ""
	targetName = "x86-64"
	targetFile = ""
	optLevel = 0
	verbose = false
	dumpTokens = false
	dumpAST = false
	dumpIR = false
	dumpCOF = false
	dumpAsm = false
}

func writeTempHOIL(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.hoil")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp HOIL file: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestAssembleFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	assembleCmd, _, err := cmd.Find([]string{"assemble"})
	if err != nil {
		t.Fatalf("expected an assemble subcommand: %v", err)
	}
	expected := []string{"output", "target", "target-file", "opt", "verbose", "dump-tokens", "dump-ast", "dump-ir", "dump-cof", "dump-asm"}
	for _, name := range expected {
		if assembleCmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s to exist", name)
		}
	}
}

func TestAssembleMinimalFunctionSucceeds(t *testing.T) {
	resetFlags()
	path := writeTempHOIL(t, `MODULE "m";
function f() -> i32 {
ENTRY:
  x = LOAD_I32 0;
  RET x;
}
`)
	outPath := filepath.Join(filepath.Dir(path), "out.bin")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"assemble", path, "-o", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected assemble to succeed, got %v (stderr: %s)", err, errOut.String())
	}

	code, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected output file to be written: %v", err)
	}
	if !bytes.HasPrefix(code, []byte{0x55, 0x48, 0x89, 0xE5}) {
		t.Fatalf("expected generated code to start with the function prologue, got % x", code)
	}
}

func TestAssembleMissingFileReturnsIOFailure(t *testing.T) {
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"assemble", filepath.Join(t.TempDir(), "missing.hoil")})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error for a missing input file")
	}
	if lastExitCode != exitIOFailure {
		t.Fatalf("expected exit code %d, got %d", exitIOFailure, lastExitCode)
	}
}

func TestAssembleSemanticErrorReturnsAsmFailure(t *testing.T) {
	resetFlags()
	path := writeTempHOIL(t, `MODULE "m";
function f() -> void {
ENTRY:
  x = LOAD_I32 0;
}
`)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"assemble", path})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error for a missing terminator")
	}
	if lastExitCode != exitAsmFailure {
		t.Fatalf("expected exit code %d, got %d", exitAsmFailure, lastExitCode)
	}
	if !strings.Contains(errOut.String(), "terminator") {
		t.Errorf("expected diagnostic output to mention the missing terminator, got %q", errOut.String())
	}
}

func TestAssembleUnknownTargetReturnsBadArgs(t *testing.T) {
	resetFlags()
	path := writeTempHOIL(t, `MODULE "m";
function f() -> void {
ENTRY:
  RET;
}
`)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"assemble", path, "--target", "arm64"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error for an unknown target")
	}
	if lastExitCode != exitBadArgs {
		t.Fatalf("expected exit code %d, got %d", exitBadArgs, lastExitCode)
	}
}

func TestAssembleDumpIRFlag(t *testing.T) {
	resetFlags()
	path := writeTempHOIL(t, `MODULE "m";
function f() -> void {
ENTRY:
  RET;
}
`)
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"assemble", path, "--dump-ir"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !strings.Contains(out.String(), "MODULE") {
		t.Errorf("expected --dump-ir output to contain the module header, got %q", out.String())
	}
}
