// Package codegen lowers an optimized IR module to x86-64 machine
// code (§4.11): it appends native bytes to a growing buffer and
// optionally renders a line of textual assembly per instruction. It
// generalizes the REX/ModRM-composing style of the teacher corpus's
// pkg/asmgen (originally ARM64-targeted) to x86-64, the only target
// v1 needs.
package codegen

import (
	"fmt"

	"github.com/coil-toolchain/coil/pkg/diag"
	"github.com/coil-toolchain/coil/pkg/ir"
	"github.com/coil-toolchain/coil/pkg/target"
)

// x86-64 general-purpose register encodings, indexed by the physical
// register number the optimizer's round-robin allocator assigns.
const (
	regRAX = 0
	regRCX = 1
	regRDX = 2
	regRBX = 3
	regRSP = 4
	regRBP = 5
	regRSI = 6
	regRDI = 7
)

var regNames = [16]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

func regName(r int32) string {
	if r < 0 || int(r) >= len(regNames) {
		return fmt.Sprintf("r%d", r)
	}
	return regNames[r]
}

// encodeREX composes an Intel SDM REX prefix byte from its four bit
// fields: W (64-bit operand size), R (ModRM.reg extension), X
// (SIB.index extension), B (ModRM.rm/SIB.base/opcode-reg extension).
// This and encodeModRM are the only place bit-fiddling appears in the
// code generator (§4.11).
func encodeREX(w, r, x, b bool) byte {
	var rex byte = 0x40
	if w {
		rex |= 1 << 3
	}
	if r {
		rex |= 1 << 2
	}
	if x {
		rex |= 1 << 1
	}
	if b {
		rex |= 1 << 0
	}
	return rex
}

// needsREXExt reports whether reg (0-15) requires the REX.B/R/X
// extension bit to address it (registers 8-15).
func needsREXExt(reg int32) bool { return reg >= 8 }

// encodeModRM composes a ModR/M byte from its mod/reg/rm fields, each
// already reduced to their low 2/3/3 bits.
func encodeModRM(mod, reg, rm byte) byte {
	return (mod&0x3)<<6 | (reg&0x7)<<3 | (rm & 0x7)
}

// Buffer accumulates emitted machine code and, optionally, a parallel
// textual assembly listing (one line per emitted instruction).
type Buffer struct {
	Code     []byte
	Listing  []string
	emitList bool
}

// NewBuffer creates an empty Buffer. emitListing enables the textual
// assembly listing alongside the machine code.
func NewBuffer(emitListing bool) *Buffer {
	return &Buffer{emitList: emitListing}
}

func (b *Buffer) emit(bytes []byte, asm string) {
	b.Code = append(b.Code, bytes...)
	if b.emitList {
		b.Listing = append(b.Listing, asm)
	}
}

// Generator lowers a Module to x86-64 machine code for cfg.
type Generator struct {
	cfg      *target.Config
	reporter *diag.Reporter
}

// New creates a Generator targeting cfg.
func New(cfg *target.Config, reporter *diag.Reporter) *Generator {
	return &Generator{cfg: cfg, reporter: reporter}
}

// GenerateModule lowers every non-external function of m into its own
// region of the returned Buffer, in module order (§5's ordering
// contract). A function that fails to generate (CodegenUnsupported
// or CodegenInvalidIR) aborts that function and continues with the
// next, per §7's recovery policy.
func (g *Generator) GenerateModule(m *ir.Module, emitListing bool) *Buffer {
	out := NewBuffer(emitListing)
	for fi := range m.Funcs {
		f := &m.Funcs[fi]
		if f.External {
			continue
		}
		g.generateFunction(f, out)
	}
	return out
}

func (g *Generator) errorf(code diag.Code, format string, args ...any) {
	g.reporter.Reportf(diag.Error, diag.Codegen, code, diag.Location{}, format, args...)
}

// generateFunction emits one function's prologue, lowered body and
// epilogue. Register-allocator state (none is kept beyond what the
// optimizer already assigned) is implicitly reset per function since
// a Generator carries no register-mapping state across calls.
func (g *Generator) generateFunction(f *ir.Function, out *Buffer) {
	g.emitPrologue(out)
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		for ii := range b.Instructions {
			inst := &b.Instructions[ii]
			if inst.IsNoop() {
				continue
			}
			if !g.lower(inst, out) {
				return
			}
		}
	}
	g.emitEpilogueIfNeeded(out)
}

// emitPrologue emits `PUSH rbp; MOV rbp, rsp` = 55 48 89 E5 (§4.11,
// §8's prologue-byte oracle).
func (g *Generator) emitPrologue(out *Buffer) {
	out.emit([]byte{0x55}, "push rbp")
	out.emit([]byte{
		encodeREX(true, false, false, false),
		0x89,
		encodeModRM(0b11, regRSP, regRBP),
	}, "mov rbp, rsp")
}

// emitEpilogueIfNeeded appends `POP rbp; RET` unless the buffer
// already ends with the single-byte RET opcode (§4.11).
func (g *Generator) emitEpilogueIfNeeded(out *Buffer) {
	if len(out.Code) > 0 && out.Code[len(out.Code)-1] == 0xC3 {
		return
	}
	out.emit([]byte{0x5D}, "pop rbp")
	out.emit([]byte{0xC3}, "ret")
}

func (g *Generator) lower(inst *ir.Instruction, out *Buffer) bool {
	switch inst.Op {
	case ir.RET:
		out.emit([]byte{0xC3}, "ret")
		return true
	case ir.ADD:
		return g.lowerAddSub(inst, out, 0x01, "add")
	case ir.SUB:
		return g.lowerAddSub(inst, out, 0x29, "sub")
	case ir.MOVI:
		return g.lowerMovImm(inst, out)
	case ir.MOV:
		return g.lowerMovReg(inst, out)
	default:
		g.errorf(diag.CodegenUnsupported, "opcode %s has no x86-64 lowering in v1", inst.Op)
		return false
	}
}

// lowerAddSub implements the three-operand `ADD dest, s1, s2` /
// `SUB dest, s1, s2` rule of §4.11: if dest != s1, first emit
// `MOV dest, s1`, then emit the arithmetic op against s2.
func (g *Generator) lowerAddSub(inst *ir.Instruction, out *Buffer, opcode byte, mnemonic string) bool {
	if inst.Dest == nil || len(inst.Operands) != 2 {
		g.errorf(diag.CodegenInvalidIR, "%s requires a destination and exactly 2 operands", mnemonic)
		return false
	}
	dest := inst.Dest.Reg
	s1, s2 := inst.Operands[0], inst.Operands[1]
	if s1.Kind != ir.OpRegister || s2.Kind != ir.OpRegister {
		g.errorf(diag.CodegenUnsupported, "%s with a non-register operand has no x86-64 lowering in v1", mnemonic)
		return false
	}
	if dest != s1.Reg {
		emitRegMov(out, dest, s1.Reg)
	}
	out.emit([]byte{
		encodeREX(true, needsREXExt(s2.Reg), false, needsREXExt(dest)),
		opcode,
		encodeModRM(0b11, byte(s2.Reg&0x7), byte(dest&0x7)),
	}, fmt.Sprintf("%s %s, %s", mnemonic, regName(dest), regName(s2.Reg)))
	return true
}

// emitRegMov emits `MOV dest, src` (REX.W + 0x89 /r), the reg-reg form
// §4.11 calls for ahead of ADD/SUB when dest != s1.
func emitRegMov(out *Buffer, dest, src int32) {
	out.emit([]byte{
		encodeREX(true, needsREXExt(src), false, needsREXExt(dest)),
		0x89,
		encodeModRM(0b11, byte(src&0x7), byte(dest&0x7)),
	}, fmt.Sprintf("mov %s, %s", regName(dest), regName(src)))
}

func (g *Generator) lowerMovReg(inst *ir.Instruction, out *Buffer) bool {
	if inst.Dest == nil || len(inst.Operands) != 1 || inst.Operands[0].Kind != ir.OpRegister {
		g.errorf(diag.CodegenInvalidIR, "MOV requires a destination and one register operand")
		return false
	}
	emitRegMov(out, inst.Dest.Reg, inst.Operands[0].Reg)
	return true
}

// lowerMovImm implements `LOAD_I32 dest, imm` / the decoded `MOVI`
// form: `MOV dest, imm32` as a 32-bit (no REX.W) move when dest needs
// no REX extension, matching §8's 6-byte, four-trailing-zero-byte
// oracle for `LOAD_I32 r, 0`; only wide immediates force
// CodegenUnsupported per §9's open question on >24-bit immediates.
func (g *Generator) lowerMovImm(inst *ir.Instruction, out *Buffer) bool {
	if inst.Dest == nil || len(inst.Operands) != 1 {
		g.errorf(diag.CodegenInvalidIR, "MOVI requires a destination and one immediate operand")
		return false
	}
	imm := inst.Operands[0]
	if imm.Kind != ir.OpImmInt {
		g.errorf(diag.CodegenUnsupported, "MOVI with a non-integer-immediate operand has no x86-64 lowering in v1")
		return false
	}
	if imm.ImmInt > 0x7FFFFF || imm.ImmInt < -0x800000 {
		g.errorf(diag.CodegenUnsupported, "immediate %d exceeds the 24-bit range v1's wire format supports", imm.ImmInt)
		return false
	}
	dest := inst.Dest.Reg
	bytes := []byte{}
	if needsREXExt(dest) {
		bytes = append(bytes, encodeREX(false, false, false, true))
	}
	bytes = append(bytes, 0xC7, encodeModRM(0b11, 0, byte(dest&0x7)))
	var imm32 [4]byte
	v := uint32(int32(imm.ImmInt))
	imm32[0] = byte(v)
	imm32[1] = byte(v >> 8)
	imm32[2] = byte(v >> 16)
	imm32[3] = byte(v >> 24)
	bytes = append(bytes, imm32[:]...)
	out.emit(bytes, fmt.Sprintf("mov %s, %d", regName(dest), imm.ImmInt))
	return true
}
