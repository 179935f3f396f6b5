// Package diag implements the structured diagnostic reporter shared by
// every stage of the COIL toolchain: lexer, parser, semantic analyzer,
// binary codec, optimizer and code generator.
package diag

import "fmt"

// Severity ranks a diagnostic. Severity >= Error sets the reporter's
// had-error flag.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Category identifies which stage raised a diagnostic.
type Category int

const (
	Lexer Category = iota
	Parser
	Semantic
	Type
	Binary
	Assembler
	Codegen
	System
	General
)

func (c Category) String() string {
	switch c {
	case Lexer:
		return "lexer"
	case Parser:
		return "parser"
	case Semantic:
		return "semantic"
	case Type:
		return "type"
	case Binary:
		return "binary"
	case Assembler:
		return "assembler"
	case Codegen:
		return "codegen"
	case System:
		return "system"
	default:
		return "general"
	}
}

// Code is a short machine-matchable diagnostic code, e.g. "InvalidControl".
type Code string

// Well-known codes referenced throughout the toolchain and by its tests.
const (
	LexerInvalidChar       Code = "InvalidChar"
	ParserUnexpectedToken  Code = "UnexpectedToken"
	ParserExpectedToken    Code = "ExpectedToken"
	ParserInvalidSyntax    Code = "InvalidSyntax"
	ParserNotImplemented   Code = "NotImplemented"
	SemanticUndefined      Code = "Undefined"
	SemanticRedefined      Code = "Redefined"
	SemanticInvalidOperand Code = "InvalidOperand"
	SemanticInvalidControl Code = "InvalidControl"
	TypeInvalid            Code = "TypeInvalid"
	TypeUnknown            Code = "TypeUnknown"
	TypeNotFound           Code = "TypeNotFound"
	BinaryInvalidFormat    Code = "InvalidFormat"
	BinaryUnsupportedVers  Code = "UnsupportedVersion"
	BinaryCorrupt          Code = "Corrupt"
	BinaryMissingSection   Code = "MissingSection"
	AssemblerNoTarget      Code = "NoTarget"
	AssemblerBadMapping    Code = "BadMapping"
	AssemblerUnsupported   Code = "Unsupported"
	CodegenUnsupported     Code = "Unsupported"
	CodegenInvalidIR       Code = "InvalidIR"
	SystemIO               Code = "IO"
	SystemOutOfMemory      Code = "OutOfMemory"
)

// Location is a source position. File may be empty for synthesized
// diagnostics (e.g. raised while decoding a binary module).
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" && l.Line == 0 && l.Column == 0 {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is one structured message emitted by a pipeline stage.
type Diagnostic struct {
	Severity Severity
	Category Category
	Code     Code
	Message  string
	Loc      Location
	HasLoc   bool
}

// String renders a diagnostic per §7's one-line user-visible format:
// <file>:<line>:<column>: <severity> [<category>/<code>]: <message>
func (d Diagnostic) String() string {
	loc := "<unknown>"
	if d.HasLoc {
		loc = d.Loc.String()
	}
	return fmt.Sprintf("%s: %s [%s/%s]: %s", loc, d.Severity, d.Category, d.Code, d.Message)
}

// Reporter accumulates diagnostics in source order and tracks whether
// any error-or-above severity diagnostic has been recorded. It never
// panics; callers consult HadError() at stage boundaries.
type Reporter struct {
	diagnostics []Diagnostic
	hadError    bool
}

// NewReporter returns an empty Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Report appends a diagnostic and updates the had-error flag.
func (r *Reporter) Report(d Diagnostic) {
	r.diagnostics = append(r.diagnostics, d)
	if d.Severity >= Error {
		r.hadError = true
	}
}

// Reportf is a convenience wrapper building a located diagnostic from a
// format string.
func (r *Reporter) Reportf(sev Severity, cat Category, code Code, loc Location, format string, args ...any) {
	r.Report(Diagnostic{
		Severity: sev,
		Category: cat,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Loc:      loc,
		HasLoc:   true,
	})
}

// HadError reports whether any Error or Fatal severity diagnostic has
// been recorded since creation (or since Reset).
func (r *Reporter) HadError() bool {
	return r.hadError
}

// Diagnostics returns all recorded diagnostics in source order.
func (r *Reporter) Diagnostics() []Diagnostic {
	return r.diagnostics
}

// Reset clears all diagnostics and the had-error flag.
func (r *Reporter) Reset() {
	r.diagnostics = nil
	r.hadError = false
}
