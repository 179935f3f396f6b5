package codegen

import (
	"bytes"
	"testing"

	"github.com/coil-toolchain/coil/pkg/diag"
	"github.com/coil-toolchain/coil/pkg/hoillex"
	"github.com/coil-toolchain/coil/pkg/hoilparse"
	"github.com/coil-toolchain/coil/pkg/optimizer"
	"github.com/coil-toolchain/coil/pkg/sema"
	"github.com/coil-toolchain/coil/pkg/target"
)

func compile(t *testing.T, src string, level optimizer.Level) *Buffer {
	t.Helper()
	reporter := diag.NewReporter()
	l := hoillex.New(src, "test.hoil", reporter)
	p := hoilparse.New(l, "test.hoil", reporter)
	m := p.ParseModule()
	if reporter.HadError() {
		t.Fatalf("unexpected parse errors: %v", reporter.Diagnostics())
	}
	sema.New(m, "test.hoil", reporter).Run()
	if reporter.HadError() {
		t.Fatalf("unexpected semantic errors: %v", reporter.Diagnostics())
	}
	cfg := target.DefaultX86_64()
	optimizer.New(level, cfg, reporter).Run(m)
	if reporter.HadError() {
		t.Fatalf("unexpected optimizer errors: %v", reporter.Diagnostics())
	}
	buf := New(cfg, reporter).GenerateModule(m, true)
	if reporter.HadError() {
		t.Fatalf("unexpected codegen errors: %v", reporter.Diagnostics())
	}
	return buf
}

// TestMinimalFunctionEndToEnd mirrors spec scenario 1: prologue,
// immediate load, return.
func TestMinimalFunctionEndToEnd(t *testing.T) {
	buf := compile(t, `MODULE "m";
function f() -> i32 {
ENTRY:
  x = LOAD_I32 0;
  RET x;
}
`, optimizer.LevelNone)

	if !bytes.HasPrefix(buf.Code, []byte{0x55, 0x48, 0x89, 0xE5}) {
		t.Fatalf("expected prologue 55 48 89 E5, got % x", buf.Code[:minInt(4, len(buf.Code))])
	}
	if !bytes.HasSuffix(buf.Code, []byte{0xC3}) {
		t.Fatalf("expected function to end in RET (C3), got % x", buf.Code)
	}
}

func TestRetEmitsExactlyC3(t *testing.T) {
	buf := compile(t, `MODULE "m";
function f() -> void {
ENTRY:
  RET;
}
`, optimizer.LevelNone)
	if !bytes.HasSuffix(buf.Code, []byte{0xC3}) {
		t.Fatalf("expected trailing C3, got % x", buf.Code)
	}
}

// TestLoadI32ZeroSixByteEncoding mirrors spec scenario 1/8's byte
// oracle: LOAD_I32 r, 0 on a register needing no REX extension emits
// a 6-byte MOV ending in four zero bytes.
func TestLoadI32ZeroSixByteEncoding(t *testing.T) {
	buf := compile(t, `MODULE "m";
function f() -> i32 {
ENTRY:
  x = LOAD_I32 0;
  RET x;
}
`, optimizer.LevelNone)

	// skip the 4-byte prologue.
	movBytes := buf.Code[4:10]
	if len(movBytes) != 6 {
		t.Fatalf("expected 6 bytes for the mov, got %d", len(movBytes))
	}
	if movBytes[0] != 0xC7 {
		t.Fatalf("expected opcode 0xC7, got 0x%02x", movBytes[0])
	}
	for i, b := range movBytes[2:] {
		if b != 0 {
			t.Fatalf("expected trailing immediate byte %d to be zero, got 0x%02x", i, b)
		}
	}
}

func TestPrologueAppearsExactlyOnce(t *testing.T) {
	buf := compile(t, `MODULE "m";
function f() -> i32 {
ENTRY:
  x = LOAD_I32 0;
  RET x;
}
`, optimizer.LevelNone)

	prologue := []byte{0x55, 0x48, 0x89, 0xE5}
	count := 0
	for i := 0; i+len(prologue) <= len(buf.Code); i++ {
		if bytes.Equal(buf.Code[i:i+len(prologue)], prologue) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected prologue to appear exactly once, appeared %d times in % x", count, buf.Code)
	}
}

func TestUnsupportedOpcodeReportsCodegenUnsupported(t *testing.T) {
	reporter := diag.NewReporter()
	src := `MODULE "m";
function f() -> i32 {
ENTRY:
  x = LOAD_I32 1;
  y = MUL x, x;
  RET y;
}
`
	l := hoillex.New(src, "test.hoil", reporter)
	p := hoilparse.New(l, "test.hoil", reporter)
	m := p.ParseModule()
	sema.New(m, "test.hoil", reporter).Run()
	if reporter.HadError() {
		t.Fatalf("unexpected earlier-stage errors: %v", reporter.Diagnostics())
	}
	cfg := target.DefaultX86_64()
	optimizer.New(optimizer.LevelNone, cfg, reporter).Run(m)

	New(cfg, reporter).GenerateModule(m, false)
	found := false
	for _, d := range reporter.Diagnostics() {
		if d.Code == diag.CodegenUnsupported {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected CodegenUnsupported for MUL, got %v", reporter.Diagnostics())
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
