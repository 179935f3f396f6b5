package optimizer

import (
	"testing"

	"github.com/coil-toolchain/coil/pkg/diag"
	"github.com/coil-toolchain/coil/pkg/hoillex"
	"github.com/coil-toolchain/coil/pkg/hoilparse"
	"github.com/coil-toolchain/coil/pkg/ir"
	"github.com/coil-toolchain/coil/pkg/sema"
	"github.com/coil-toolchain/coil/pkg/target"
)

func analyzedModule(t *testing.T, src string) *ir.Module {
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

// TestPeepholeEliminatesAddZero mirrors spec scenario 6: ADD r, r, 0
// must be tagged as a no-op instruction.
func TestPeepholeEliminatesAddZero(t *testing.T) {
	m := analyzedModule(t, `MODULE "m";
function f() -> i32 {
ENTRY:
  x = LOAD_I32 5;
  x = ADD x, 0;
  RET x;
}
`)
	reporter := diag.NewReporter()
	New(LevelBasic, target.DefaultX86_64(), reporter).Run(m)
	if reporter.HadError() {
		t.Fatalf("unexpected optimizer errors: %v", reporter.Diagnostics())
	}

	fn, _ := m.LookupFunction("f")
	entry, _ := fn.Entry()
	found := false
	for _, inst := range entry.Instructions {
		if inst.Op == ir.ADD {
			if !inst.IsNoop() {
				t.Fatalf("expected ADD x, x, 0 to be tagged as a no-op")
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an ADD instruction in the entry block")
	}
}

func TestRewriteZeroIdiom(t *testing.T) {
	m := analyzedModule(t, `MODULE "m";
function f() -> i32 {
ENTRY:
  x = LOAD_I32 0;
  RET x;
}
`)
	reporter := diag.NewReporter()
	New(LevelBasic, target.DefaultX86_64(), reporter).Run(m)

	fn, _ := m.LookupFunction("f")
	entry, _ := fn.Entry()
	if entry.Instructions[0].Op != ir.XOR {
		t.Fatalf("expected LOAD_I32 0 to rewrite to XOR, got %s", entry.Instructions[0].Op)
	}
}

// TestPeepholeIdempotent checks that a second optimizer pass over
// already-optimized IR finds nothing further to change.
func TestPeepholeIdempotent(t *testing.T) {
	m := analyzedModule(t, `MODULE "m";
function f() -> i32 {
ENTRY:
  x = LOAD_I32 5;
  x = ADD x, 0;
  RET x;
}
`)
	reporter := diag.NewReporter()
	opt := New(LevelBasic, target.DefaultX86_64(), reporter)
	opt.Run(m)

	fn, _ := m.LookupFunction("f")
	entry, _ := fn.Entry()
	before := make([]ir.Flags, len(entry.Instructions))
	for i, inst := range entry.Instructions {
		before[i] = inst.Flags
	}

	opt.Run(m)
	for i, inst := range entry.Instructions {
		if inst.Flags != before[i] {
			t.Fatalf("instruction %d flags changed on second pass: %v -> %v", i, before[i], inst.Flags)
		}
	}
}

func TestRegisterAllocationOverflowReportsBadMapping(t *testing.T) {
	m := analyzedModule(t, `MODULE "m";
function f() -> i32 {
ENTRY:
  a = LOAD_I32 1;
  b = LOAD_I32 2;
  c = LOAD_I32 3;
  RET c;
}
`)
	cfg := target.DefaultX86_64()
	cfg.Resources.GPRCount = 2

	reporter := diag.NewReporter()
	New(LevelNone, cfg, reporter).Run(m)
	if !reporter.HadError() {
		t.Fatalf("expected a register pool overflow to be reported")
	}
	found := false
	for _, d := range reporter.Diagnostics() {
		if d.Code == diag.AssemblerBadMapping {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected AssemblerBadMapping, got %v", reporter.Diagnostics())
	}
}
