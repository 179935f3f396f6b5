package ir

import (
	"fmt"
	"io"
	"strings"
)

// Printer renders a Module back to HOIL-syntax text, generalizing the
// teacher corpus's per-stage NewPrinter(w).PrintProgram(prog)
// convention (pkg/rtl, pkg/mach, pkg/asm) to COIL's single IR. It is
// the mechanism behind --dump-ir and the textual-equality oracle used
// for the encode/decode round-trip property (§8).
type Printer struct {
	w   io.Writer
	err error
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// Err returns the first write error encountered, if any.
func (p *Printer) Err() error { return p.err }

// PrintModule writes the full textual form of m.
func (p *Printer) PrintModule(m *Module) error {
	p.printf("MODULE %q;\n", m.Name)
	for _, g := range m.Globals {
		p.printGlobal(m, &g)
	}
	for i := range m.Funcs {
		p.printFunction(m, &m.Funcs[i])
	}
	return p.err
}

func (p *Printer) printGlobal(m *Module, g *Global) {
	kind := "global"
	if g.IsConstant {
		kind = "constant"
	}
	ext := ""
	if g.IsExternal {
		ext = "extern "
	}
	p.printf("%s%s %s: %s align(%d);\n", ext, kind, g.Name, m.Types.Name(g.Type), g.Align)
}

func (p *Printer) printFunction(m *Module, f *Function) {
	params := make([]string, len(f.Params))
	for i, prm := range f.Params {
		params[i] = fmt.Sprintf("%s: %s", prm.Name, m.Types.Name(prm.Type))
	}
	variadic := ""
	if f.Variadic {
		if len(params) > 0 {
			variadic = ", ..."
		} else {
			variadic = "..."
		}
	}
	sig := fmt.Sprintf("function %s(%s%s) -> %s", f.Name, strings.Join(params, ", "), variadic, m.Types.Name(f.ReturnType))
	if f.External {
		p.printf("extern %s;\n", sig)
		return
	}
	p.printf("%s {\n", sig)
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		p.printf("%s:\n", b.Name)
		for ii := range b.Instructions {
			p.printInstruction(m, &b.Instructions[ii])
		}
	}
	p.printf("}\n")
}

func (p *Printer) printInstruction(m *Module, inst *Instruction) {
	var sb strings.Builder
	sb.WriteString("  ")
	if inst.ResultName != "" {
		fmt.Fprintf(&sb, "%s = ", inst.ResultName)
	} else if inst.Dest != nil {
		fmt.Fprintf(&sb, "r%d = ", inst.Dest.Reg)
	}
	sb.WriteString(inst.Op.String())
	if inst.Flags != 0 {
		fmt.Fprintf(&sb, "<%02x>", uint8(inst.Flags))
	}
	if inst.Dest != nil {
		fmt.Fprintf(&sb, " r%d", inst.Dest.Reg)
	}
	for _, operand := range inst.Operands {
		sb.WriteString(", ")
		p.writeOperand(&sb, m, operand)
	}
	sb.WriteString(";\n")
	p.printf("%s", sb.String())
}

func (p *Printer) writeOperand(sb *strings.Builder, m *Module, op Operand) {
	switch op.Kind {
	case OpRegister:
		fmt.Fprintf(sb, "r%d", op.Reg)
	case OpImmInt:
		fmt.Fprintf(sb, "%d", op.ImmInt)
	case OpImmFloat:
		fmt.Fprintf(sb, "%g", op.ImmFloat)
	case OpBlockRef:
		sb.WriteString(op.Name)
	case OpFuncRef:
		sb.WriteString("@" + op.Name)
	case OpGlobalRef:
		sb.WriteString("$" + op.Name)
	case OpMemRef:
		fmt.Fprintf(sb, "[r%d+%d", op.Mem.Base, op.Mem.Disp)
		if op.Mem.HasIndex {
			fmt.Fprintf(sb, "+r%d*%d", op.Mem.Index, op.Mem.Scale)
		}
		sb.WriteString("]")
	}
}
