package diag

import (
	"strings"
	"testing"
)

func TestReporterTracksHadError(t *testing.T) {
	r := NewReporter()
	if r.HadError() {
		t.Fatalf("expected a fresh reporter to have no error")
	}
	r.Report(Diagnostic{Severity: Warning, Category: Lexer, Code: LexerInvalidChar, Message: "warn"})
	if r.HadError() {
		t.Fatalf("expected a warning not to set HadError")
	}
	r.Report(Diagnostic{Severity: Error, Category: Semantic, Code: SemanticUndefined, Message: "boom"})
	if !r.HadError() {
		t.Fatalf("expected an error-severity diagnostic to set HadError")
	}
	if len(r.Diagnostics()) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(r.Diagnostics()))
	}
}

func TestReporterReset(t *testing.T) {
	r := NewReporter()
	r.Report(Diagnostic{Severity: Fatal, Category: System, Code: SystemIO})
	r.Reset()
	if r.HadError() || len(r.Diagnostics()) != 0 {
		t.Fatalf("expected Reset to clear diagnostics and the error flag")
	}
}

// TestDiagnosticStringFormat checks the one-line rendering contract of
// §7: "<file>:<line>:<column>: <severity> [<category>/<code>]: <message>".
func TestDiagnosticStringFormat(t *testing.T) {
	d := Diagnostic{
		Severity: Error,
		Category: Binary,
		Code:     BinaryCorrupt,
		Message:  "truncated section",
		Loc:      Location{File: "mod.cof", Line: 3, Column: 7},
		HasLoc:   true,
	}
	got := d.String()
	want := "mod.cof:3:7: error [binary/Corrupt]: truncated section"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestDiagnosticStringFormatWithoutLocation(t *testing.T) {
	d := Diagnostic{Severity: Warning, Category: General, Code: Code("X"), Message: "m"}
	if !strings.HasPrefix(d.String(), "<unknown>: warning") {
		t.Fatalf("expected unlocated diagnostics to render <unknown>, got %q", d.String())
	}
}

func TestReportf(t *testing.T) {
	r := NewReporter()
	r.Reportf(Error, Parser, ParserUnexpectedToken, Location{File: "f", Line: 1, Column: 1}, "unexpected %q", "}")
	if len(r.Diagnostics()) != 1 {
		t.Fatalf("expected exactly one diagnostic")
	}
	if msg := r.Diagnostics()[0].Message; msg != `unexpected "}"` {
		t.Fatalf("expected formatted message, got %q", msg)
	}
}
