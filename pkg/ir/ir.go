// Package ir implements the COIL typed IR data model (§3): Module,
// Function, Block, Instruction, Operand and Global, plus the
// construction/lookup operations of §4.3. It mirrors the teacher
// corpus's AST packages (one Go type per concept, intern-and-reference
// instead of pointer graphs, see spec §9) but for COIL's single flat
// IR rather than a multi-stage lowering chain.
package ir

import (
	"github.com/coil-toolchain/coil/pkg/diag"
	"github.com/coil-toolchain/coil/pkg/types"
)

// OperandKind tags the variant held by an Operand (§3).
type OperandKind int

const (
	OpRegister OperandKind = iota
	OpImmInt
	OpImmFloat
	OpBlockRef
	OpFuncRef
	OpGlobalRef
	OpMemRef
)

func (k OperandKind) String() string {
	switch k {
	case OpRegister:
		return "reg"
	case OpImmInt:
		return "imm"
	case OpImmFloat:
		return "immf"
	case OpBlockRef:
		return "block"
	case OpFuncRef:
		return "func"
	case OpGlobalRef:
		return "global"
	case OpMemRef:
		return "mem"
	default:
		return "?"
	}
}

// Scale is the index-register multiplier of a memory operand.
type Scale uint8

const (
	Scale1 Scale = 1
	Scale2 Scale = 2
	Scale4 Scale = 4
	Scale8 Scale = 8
)

// MemRef is the payload of an OpMemRef operand.
type MemRef struct {
	Base        int32
	Disp        int32
	HasIndex    bool
	Index       int32
	Scale       Scale
}

// Operand is a tagged variant carrying the type it denotes, per §3.
type Operand struct {
	Kind OperandKind
	Type types.ID

	Reg      int32   // OpRegister
	ImmInt   int64   // OpImmInt, sign-extended
	ImmFloat float64 // OpImmFloat, IEEE-754 64-bit
	Name     string  // OpBlockRef / OpFuncRef / OpGlobalRef
	Mem      MemRef  // OpMemRef
}

// Reg builds a register operand.
func Reg(index int32, ty types.ID) Operand { return Operand{Kind: OpRegister, Reg: index, Type: ty} }

// ImmInt builds a sign-extended integer immediate operand.
func ImmInt(v int64, ty types.ID) Operand { return Operand{Kind: OpImmInt, ImmInt: v, Type: ty} }

// ImmFloat builds a float immediate operand.
func ImmFloat(v float64, ty types.ID) Operand {
	return Operand{Kind: OpImmFloat, ImmFloat: v, Type: ty}
}

// BlockRef builds a basic-block label operand.
func BlockRef(name string) Operand { return Operand{Kind: OpBlockRef, Name: name} }

// FuncRef builds a function-reference operand.
func FuncRef(name string, ty types.ID) Operand {
	return Operand{Kind: OpFuncRef, Name: name, Type: ty}
}

// GlobalRef builds a global-reference operand.
func GlobalRef(name string, ty types.ID) Operand {
	return Operand{Kind: OpGlobalRef, Name: name, Type: ty}
}

// Mem builds a memory-reference operand.
func Mem(base int32, disp int32, hasIndex bool, index int32, scale Scale, ty types.ID) Operand {
	return Operand{Kind: OpMemRef, Type: ty, Mem: MemRef{Base: base, Disp: disp, HasIndex: hasIndex, Index: index, Scale: scale}}
}

// Flags holds the per-category bit interpretation of §4.3/§6.1. A
// single byte is enough for every flag combination v1 needs; callers
// consult the named accessor for their instruction's category.
type Flags uint8

const (
	FlagSigned    Flags = 1 << 0
	FlagSaturate  Flags = 1 << 1
	FlagFloat     Flags = 1 << 2
	FlagTrapOvf   Flags = 1 << 3
	FlagVolatile  Flags = 1 << 0
	FlagAtomic    Flags = 1 << 1
	FlagNoop      Flags = 1 << 7 // tagged by the optimizer; codegen emits nothing
)

// ConditionCode is the branch-condition encoding carried in
// Instruction.Cond for BRC and for conditional variants of comparison
// opcodes (the binary codec packs it into the upper nibble of the wire
// flags byte).
type ConditionCode uint8

const (
	CondEQ ConditionCode = iota
	CondNE
	CondLT
	CondLE
	CondGT
	CondGE
	CondCarry
	CondOverflow
	CondSign
	CondParity
	CondNotCarry
	CondNotOverflow
	CondNotSign
	CondNotParity
)

// Instruction belongs to exactly one Block (§3).
type Instruction struct {
	Op         Opcode
	Flags      Flags
	Cond       ConditionCode
	Dest       *Operand // nil when the instruction has no destination register
	Operands   []Operand
	ResultType types.ID
	ResultName string // optional, used for textual output only
}

// IsNoop reports whether the optimizer tagged this instruction as a
// no-op (§4.10): the code generator must emit nothing for it.
func (i *Instruction) IsNoop() bool { return i.Flags&FlagNoop != 0 }

// IsTerminator reports whether op ends a basic block (§3: branch,
// conditional branch, switch, or return).
func IsTerminator(op Opcode) bool {
	switch op {
	case BR, BRC, RET:
		return true
	default:
		return false
	}
}

// Block is a single-entry, single-exit, named, non-empty instruction
// sequence ending in a terminator (§3).
type Block struct {
	Name         string
	Instructions []Instruction
}

// Terminator returns the block's last instruction, or nil if the block
// is empty.
func (b *Block) Terminator() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return &b.Instructions[len(b.Instructions)-1]
}

// Param is a named, typed function parameter.
type Param struct {
	Name string
	Type types.ID
}

// Function owns its blocks and parameter list exclusively (§3).
type Function struct {
	Name       string
	ReturnType types.ID
	Params     []Param
	Variadic   bool
	External   bool // external functions carry no blocks
	Blocks     []Block
	NumRegs    int32 // count of virtual registers used

	blockIndex map[string]int
}

// AddBlock appends a new named block to the function and returns it.
// Returns (nil, false) without modifying the function if a block with
// the same name already exists, mirroring AddGlobal/AddFunction's
// collision contract so callers (the parser) report SemanticRedefined
// themselves.
func (f *Function) AddBlock(name string) (*Block, bool) {
	if _, exists := f.Block(name); exists {
		return nil, false
	}
	f.Blocks = append(f.Blocks, Block{Name: name})
	if f.blockIndex == nil {
		f.blockIndex = make(map[string]int)
	}
	f.blockIndex[name] = len(f.Blocks) - 1
	return &f.Blocks[len(f.Blocks)-1], true
}

// Block looks up a block by name within the function.
func (f *Function) Block(name string) (*Block, bool) {
	if f.blockIndex == nil {
		for i := range f.Blocks {
			if f.Blocks[i].Name == name {
				return &f.Blocks[i], true
			}
		}
		return nil, false
	}
	idx, ok := f.blockIndex[name]
	if !ok {
		return nil, false
	}
	return &f.Blocks[idx], true
}

// Entry returns the function's designated ENTRY block (§3).
func (f *Function) Entry() (*Block, bool) {
	return f.Block("ENTRY")
}

// Global is a module-level datum (§3).
type Global struct {
	Name        string
	Type        types.ID
	IsConstant  bool
	IsExternal  bool
	Initializer []byte // nil when there is no initializer
	Align       int
}

// TargetRequirement carries a module's required/preferred feature tags
// and optional device-class string, per §3 and §4.9's authoritative
// HOIL TARGET block (see spec §9 open question on ABI tables).
type TargetRequirement struct {
	Required  []string
	Preferred []string
	Device    string
}

// Module exclusively owns its type registry, globals and functions
// (§3). It is built up through NewModule, AddGlobal and AddFunction and then treated as read-only
// by every later stage (§3 Lifecycle).
type Module struct {
	Name    string
	Types   *types.Registry
	Globals []Global
	Funcs   []Function
	Target  TargetRequirement

	globalIndex map[string]int
	funcIndex   map[string]int
}

// NewModule creates an empty module with a fresh type registry that
// reports into reporter.
func NewModule(name string, reporter *diag.Reporter) *Module {
	return &Module{
		Name:        name,
		Types:       types.NewRegistry(reporter),
		globalIndex: make(map[string]int),
		funcIndex:   make(map[string]int),
	}
}

// AddGlobal appends g to the module. Returns false if a global or
// function with the same name already exists (callers report
// SemanticRedefined).
func (m *Module) AddGlobal(g Global) bool {
	if _, exists := m.LookupGlobal(g.Name); exists {
		return false
	}
	if _, exists := m.LookupFunction(g.Name); exists {
		return false
	}
	m.Globals = append(m.Globals, g)
	m.globalIndex[g.Name] = len(m.Globals) - 1
	return true
}

// AddFunction appends f to the module. Returns false on a name
// collision with an existing global or function.
func (m *Module) AddFunction(f Function) bool {
	if _, exists := m.LookupFunction(f.Name); exists {
		return false
	}
	if _, exists := m.LookupGlobal(f.Name); exists {
		return false
	}
	m.Funcs = append(m.Funcs, f)
	m.funcIndex[f.Name] = len(m.Funcs) - 1
	return true
}

// LookupGlobal resolves a global reference by name.
func (m *Module) LookupGlobal(name string) (*Global, bool) {
	idx, ok := m.globalIndex[name]
	if !ok {
		return nil, false
	}
	return &m.Globals[idx], true
}

// LookupFunction resolves a function reference by name.
func (m *Module) LookupFunction(name string) (*Function, bool) {
	idx, ok := m.funcIndex[name]
	if !ok {
		return nil, false
	}
	return &m.Funcs[idx], true
}

// FunctionAt and GlobalAt give mutable access by index, used by passes
// that rewrite instructions in place (e.g. the optimizer).
func (m *Module) FunctionAt(i int) *Function { return &m.Funcs[i] }
func (m *Module) GlobalAt(i int) *Global     { return &m.Globals[i] }
