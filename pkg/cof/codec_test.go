package cof

import (
	"testing"

	"github.com/coil-toolchain/coil/pkg/diag"
	"github.com/coil-toolchain/coil/pkg/hoillex"
	"github.com/coil-toolchain/coil/pkg/hoilparse"
	"github.com/coil-toolchain/coil/pkg/ir"
	"github.com/coil-toolchain/coil/pkg/sema"
)

func buildModule(t *testing.T, src string) *ir.Module {
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
	return m
}

func dump(t *testing.T, m *ir.Module) string {
	t.Helper()
	var sb stringBuilderWriter
	if err := ir.NewPrinter(&sb).PrintModule(m); err != nil {
		t.Fatalf("printing module: %v", err)
	}
	return sb.String()
}

// stringBuilderWriter avoids importing strings.Builder directly into
// every test file that wants an io.Writer; kept tiny and local.
type stringBuilderWriter struct {
	data []byte
}

func (w *stringBuilderWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *stringBuilderWriter) String() string { return string(w.data) }

// TestRoundTrip mirrors spec scenario 2: a module with an external
// function and a function with two single-RET blocks must decode to
// a structurally identical module, verified via textual dump equality.
func TestRoundTrip(t *testing.T) {
	m := buildModule(t, `MODULE "m";
extern function puts(s: ptr<i8>) -> i32;
function f() -> void {
ENTRY:
  BR next;
next:
  RET;
}
`)
	encoded := Encode(m)
	reporter := diag.NewReporter()
	decoded := Decode(encoded, reporter)
	if decoded == nil {
		t.Fatalf("decode returned nil: %v", reporter.Diagnostics())
	}
	if reporter.HadError() {
		t.Fatalf("unexpected decode errors: %v", reporter.Diagnostics())
	}

	want := dump(t, m)
	got := dump(t, decoded)
	if want != got {
		t.Fatalf("round trip mismatch:\nwant:\n%s\ngot:\n%s", want, got)
	}
}

// TestRoundTripMinimalFunctionNamedResult covers a function whose HOIL
// source names a result register (x = LOAD_I32 0). The COF wire format
// has no slot for source-level names (§4.7) — only numeric register
// indices survive — so decoded always renders "r0 = ..." where the
// source read "x = ...". That is expected, not a bug: assert on the
// decoded module's own structure instead of a textual dump of m.
func TestRoundTripMinimalFunctionNamedResult(t *testing.T) {
	m := buildModule(t, `MODULE "m";
function f() -> i32 {
ENTRY:
  x = LOAD_I32 0;
  RET x;
}
`)
	decoded := Decode(Encode(m), diag.NewReporter())
	if decoded == nil {
		t.Fatalf("decode returned nil")
	}
	fn, ok := decoded.LookupFunction("f")
	if !ok {
		t.Fatalf("expected decoded module to contain function f")
	}
	entry, ok := fn.Entry()
	if !ok || len(entry.Instructions) != 2 {
		t.Fatalf("expected ENTRY with 2 instructions, got %+v", entry)
	}
	load := entry.Instructions[0]
	if load.Op != ir.MOVI || load.Dest == nil || load.Dest.Reg != 0 {
		t.Fatalf("expected r0 = MOVI ..., got %+v", load)
	}
	ret := entry.Instructions[1]
	if ret.Op != ir.RET || len(ret.Operands) != 1 || ret.Operands[0].Reg != 0 {
		t.Fatalf("expected RET r0, got %+v", ret)
	}
}

func TestBadMagicRejected(t *testing.T) {
	data := []byte("XXXX0000000000000000")
	reporter := diag.NewReporter()
	m := Decode(data, reporter)
	if m != nil {
		t.Fatalf("expected decode to fail on bad magic")
	}
	if !hasCode(reporter, diag.BinaryInvalidFormat) {
		t.Fatalf("expected BinaryInvalidFormat, got %v", reporter.Diagnostics())
	}
}

// TestTruncationDetected mirrors spec scenario 5: truncating a valid
// encoded module must fail decoding with BinaryCorrupt.
func TestTruncationDetected(t *testing.T) {
	m := buildModule(t, `MODULE "m";
function f() -> void {
ENTRY:
  RET;
}
`)
	encoded := Encode(m)
	truncated := encoded[:len(encoded)-1]
	reporter := diag.NewReporter()
	decoded := Decode(truncated, reporter)
	if decoded != nil && !reporter.HadError() {
		t.Fatalf("expected truncation to be detected as an error")
	}
	if !hasCode(reporter, diag.BinaryCorrupt) {
		t.Fatalf("expected BinaryCorrupt, got %v", reporter.Diagnostics())
	}
}

func hasCode(reporter *diag.Reporter, code diag.Code) bool {
	for _, d := range reporter.Diagnostics() {
		if d.Code == code {
			return true
		}
	}
	return false
}
