// Package hoilparse implements the recursive-descent HOIL parser
// (§4.5): it builds an *ir.Module directly from a token stream,
// generalizing the teacher corpus's pkg/parser (same nextToken/
// curTokenIs/expectPeek/addError/synchronize shape) from a C grammar
// to HOIL's.
package hoilparse

import (
	"strconv"
	"strings"

	"github.com/coil-toolchain/coil/pkg/diag"
	"github.com/coil-toolchain/coil/pkg/hoillex"
	"github.com/coil-toolchain/coil/pkg/ir"
	"github.com/coil-toolchain/coil/pkg/types"
)

// Parser builds a Module from a token stream.
type Parser struct {
	l         *hoillex.Lexer
	cur, peek hoillex.Token
	reporter  *diag.Reporter
	file      string

	module    *ir.Module
	namedTyps map[string]types.ID

	// per-function parsing state
	valueRegs map[string]int32
	numRegs   int32
}

// New creates a Parser reading from l, reporting into reporter.
func New(l *hoillex.Lexer, file string, reporter *diag.Reporter) *Parser {
	p := &Parser{l: l, reporter: reporter, file: file, namedTyps: make(map[string]types.ID)}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) loc() diag.Location {
	return diag.Location{File: p.file, Line: p.cur.Line, Column: p.cur.Column}
}

func (p *Parser) errorf(code diag.Code, format string, args ...any) {
	p.reporter.Reportf(diag.Error, diag.Parser, code, p.loc(), format, args...)
}

// redefinedf reports a name collision. This is a semantic error (a
// well-formed token stream can still redeclare a name), not a
// syntax error, so it carries diag.Semantic/SemanticRedefined rather
// than p.errorf's diag.Parser category.
func (p *Parser) redefinedf(format string, args ...any) {
	p.reporter.Reportf(diag.Error, diag.Semantic, diag.SemanticRedefined, p.loc(), format, args...)
}

func (p *Parser) curIs(t hoillex.TokenType) bool  { return p.cur.Type == t }
func (p *Parser) peekIs(t hoillex.TokenType) bool { return p.peek.Type == t }

func (p *Parser) expect(t hoillex.TokenType) bool {
	if p.curIs(t) {
		p.next()
		return true
	}
	p.errorf(diag.ParserExpectedToken, "expected %s, got %s", t, p.cur.Type)
	return false
}

// synchronize skips tokens until the next statement boundary (';') or
// top-level keyword, the same panic-mode recovery the teacher's parser
// uses (see pkg/parser/parser.go's syncToStmtEnd).
func (p *Parser) synchronize() {
	for !p.curIs(hoillex.EOF) {
		if p.curIs(hoillex.Semicolon) {
			p.next()
			return
		}
		if isTopLevelStart(p.cur.Type) || p.curIs(hoillex.RBrace) {
			return
		}
		p.next()
	}
}

func isTopLevelStart(t hoillex.TokenType) bool {
	switch t {
	case hoillex.KwType, hoillex.KwGlobal, hoillex.KwConstant, hoillex.KwFunction,
		hoillex.KwExtern, hoillex.KwTarget:
		return true
	default:
		return false
	}
}

// ParseModule parses `MODULE STRING ';' { TopDecl }` into an *ir.Module.
func (p *Parser) ParseModule() *ir.Module {
	name := ""
	if p.expect(hoillex.KwModule) {
		if p.curIs(hoillex.String) {
			name = p.cur.Literal
			p.next()
		} else {
			p.errorf(diag.ParserExpectedToken, "expected module name string, got %s", p.cur.Type)
		}
		p.expect(hoillex.Semicolon)
	}

	p.module = ir.NewModule(name, p.reporter)

	for !p.curIs(hoillex.EOF) {
		switch p.cur.Type {
		case hoillex.KwType:
			p.parseTypeDecl()
		case hoillex.KwGlobal:
			p.parseGlobalDecl(false)
		case hoillex.KwConstant:
			p.parseGlobalDecl(true)
		case hoillex.KwFunction:
			p.parseFunctionDecl(false)
		case hoillex.KwExtern:
			p.parseExternDecl()
		case hoillex.KwTarget:
			p.parseTargetDecl()
		default:
			p.errorf(diag.ParserUnexpectedToken, "expected a top-level declaration, got %s", p.cur.Type)
			p.next()
			p.synchronize()
		}
	}
	return p.module
}

// parseType implements the Type grammar production of §4.5.
func (p *Parser) parseType() types.ID {
	switch {
	case hoillex.IsPrimitiveType(p.cur.Type):
		id := p.primitiveID(p.cur.Type)
		p.next()
		return id
	case p.curIs(hoillex.KwPtr):
		p.next()
		p.expect(hoillex.LAngle)
		elem := p.parseType()
		qual := types.QualNone
		if p.curIs(hoillex.Comma) {
			p.next()
			qual = p.parseQualifier()
		}
		p.expect(hoillex.RAngle)
		return p.module.Types.Pointer(elem, types.SpaceGeneric, qual)
	case p.curIs(hoillex.KwVec):
		p.next()
		p.expect(hoillex.LAngle)
		elem := p.parseType()
		p.expect(hoillex.Comma)
		lanes := p.parseIntLiteral()
		p.expect(hoillex.RAngle)
		return p.module.Types.Vector(elem, int(lanes))
	case p.curIs(hoillex.KwArray):
		p.next()
		p.expect(hoillex.LAngle)
		elem := p.parseType()
		var length int64
		if p.curIs(hoillex.Comma) {
			p.next()
			length = p.parseIntLiteral()
		}
		p.expect(hoillex.RAngle)
		return p.module.Types.Array(elem, length)
	case p.curIs(hoillex.Ident):
		name := p.cur.Literal
		p.next()
		if id, ok := p.namedTyps[name]; ok {
			return id
		}
		p.errorf(diag.TypeNotFound, "unknown named type %q", name)
		return types.VoidID()
	default:
		p.errorf(diag.ParserInvalidSyntax, "expected a type, got %s", p.cur.Type)
		return types.VoidID()
	}
}

func (p *Parser) parseQualifier() types.Qualifier {
	var q types.Qualifier
	for {
		switch p.cur.Type {
		case hoillex.KwConst:
			q |= types.QualConst
		case hoillex.KwVolatile:
			q |= types.QualVolatile
		case hoillex.KwRestrict:
			q |= types.QualRestrict
		default:
			return q
		}
		p.next()
	}
}

func (p *Parser) primitiveID(t hoillex.TokenType) types.ID {
	switch t {
	case hoillex.KwVoid:
		return types.VoidID()
	case hoillex.KwBool:
		return types.BoolID()
	case hoillex.KwI8:
		return types.Int8()
	case hoillex.KwI16:
		return types.Int16()
	case hoillex.KwI32:
		return types.Int32()
	case hoillex.KwI64:
		return types.Int64()
	case hoillex.KwU8:
		return types.UInt8()
	case hoillex.KwU16:
		return types.UInt16()
	case hoillex.KwU32:
		return types.UInt32()
	case hoillex.KwU64:
		return types.UInt64()
	case hoillex.KwF16:
		return types.Float16()
	case hoillex.KwF32:
		return types.Float32()
	case hoillex.KwF64:
		return types.Float64()
	default:
		return types.VoidID()
	}
}

func (p *Parser) parseIntLiteral() int64 {
	if !p.curIs(hoillex.Int) && !p.curIs(hoillex.Hex) {
		p.errorf(diag.ParserExpectedToken, "expected integer literal, got %s", p.cur.Type)
		return 0
	}
	v := parseIntToken(p.cur)
	p.next()
	return v
}

func parseIntToken(tok hoillex.Token) int64 {
	lit := tok.Literal
	base := 10
	if tok.Type == hoillex.Hex {
		base = 16
		lit = strings.TrimPrefix(strings.TrimPrefix(lit, "0x"), "0X")
	}
	v, err := strconv.ParseInt(lit, base, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(lit, base, 64)
		if uerr == nil {
			return int64(u)
		}
		return 0
	}
	return v
}

// parseTypeDecl parses `type IDENT = struct { field: Type, ... };`.
func (p *Parser) parseTypeDecl() {
	p.next() // 'type'
	name := ""
	if p.curIs(hoillex.Ident) {
		name = p.cur.Literal
		p.next()
	} else {
		p.errorf(diag.ParserExpectedToken, "expected type name, got %s", p.cur.Type)
	}
	p.expect(hoillex.Assign)
	if !p.expect(hoillex.KwStruct) {
		p.synchronize()
		return
	}
	p.expect(hoillex.LBrace)
	var fieldTypes []types.ID
	var fieldNames []string
	for !p.curIs(hoillex.RBrace) && !p.curIs(hoillex.EOF) {
		fname := ""
		if p.curIs(hoillex.Ident) {
			fname = p.cur.Literal
			p.next()
		} else {
			p.errorf(diag.ParserExpectedToken, "expected field name, got %s", p.cur.Type)
			p.synchronize()
			continue
		}
		p.expect(hoillex.Colon)
		ft := p.parseType()
		fieldNames = append(fieldNames, fname)
		fieldTypes = append(fieldTypes, ft)
		if p.curIs(hoillex.Comma) {
			p.next()
		}
	}
	p.expect(hoillex.RBrace)
	p.expect(hoillex.Semicolon)
	id := p.module.Types.Struct(name, fieldTypes, fieldNames)
	if name != "" {
		p.namedTyps[name] = id
	}
}

// parseGlobalDecl parses `(global|constant) IDENT ':' Type ['=' Init] ['align' '(' INT ')'] ';'`.
func (p *Parser) parseGlobalDecl(isConst bool) {
	p.next() // 'global' or 'constant'
	name := ""
	if p.curIs(hoillex.Ident) {
		name = p.cur.Literal
		p.next()
	} else {
		p.errorf(diag.ParserExpectedToken, "expected global name, got %s", p.cur.Type)
	}
	p.expect(hoillex.Colon)
	ty := p.parseType()
	align := p.module.Types.AlignOf(ty)
	if align == 0 {
		align = 1
	}
	var init []byte
	if p.curIs(hoillex.Assign) {
		p.next()
		init = p.parseInitializer(ty)
	}
	if p.curIs(hoillex.Ident) && p.cur.Literal == "align" {
		p.next()
		p.expect(hoillex.LParen)
		align = int(p.parseIntLiteral())
		p.expect(hoillex.RParen)
	}
	p.expect(hoillex.Semicolon)
	if !p.module.AddGlobal(ir.Global{
		Name: name, Type: ty, IsConstant: isConst, Initializer: init, Align: align,
	}) {
		p.redefinedf("%q is already declared as a global, constant or function", name)
	}
}

func (p *Parser) parseInitializer(ty types.ID) []byte {
	if p.curIs(hoillex.Int) || p.curIs(hoillex.Hex) {
		v := p.parseIntLiteral()
		size := p.module.Types.SizeOf(ty)
		if size <= 0 {
			size = 8
		}
		buf := make([]byte, size)
		for i := 0; i < size; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		return buf
	}
	if p.curIs(hoillex.String) {
		s := p.cur.Literal
		p.next()
		return append([]byte(s), 0)
	}
	p.errorf(diag.ParserInvalidSyntax, "expected an initializer value, got %s", p.cur.Type)
	return nil
}

// parseExternDecl parses `extern function IDENT '(' Params ')' '->' Type ';'`.
func (p *Parser) parseExternDecl() {
	p.next() // 'extern'
	if !p.curIs(hoillex.KwFunction) {
		p.errorf(diag.ParserExpectedToken, "expected 'function' after 'extern', got %s", p.cur.Type)
		p.synchronize()
		return
	}
	p.parseFunctionDecl(true)
}

// parseFunctionDecl parses FunctionDecl, dispatching to a ';' body for
// extern declarations or a '{' BasicBlock* '}' body otherwise.
func (p *Parser) parseFunctionDecl(external bool) {
	p.next() // 'function'
	name := ""
	if p.curIs(hoillex.Ident) {
		name = p.cur.Literal
		p.next()
	} else {
		p.errorf(diag.ParserExpectedToken, "expected function name, got %s", p.cur.Type)
	}
	p.expect(hoillex.LParen)
	var params []ir.Param
	variadic := false
	for !p.curIs(hoillex.RParen) && !p.curIs(hoillex.EOF) {
		if p.curIs(hoillex.Ellipsis) {
			variadic = true
			p.next()
			break
		}
		pname := ""
		if p.curIs(hoillex.Ident) {
			pname = p.cur.Literal
			p.next()
		}
		p.expect(hoillex.Colon)
		pty := p.parseType()
		params = append(params, ir.Param{Name: pname, Type: pty})
		if p.curIs(hoillex.Comma) {
			p.next()
		}
	}
	p.expect(hoillex.RParen)
	p.expect(hoillex.Arrow)
	ret := p.parseType()

	fn := ir.Function{Name: name, ReturnType: ret, Params: params, Variadic: variadic, External: external}

	if p.curIs(hoillex.Semicolon) {
		p.next()
		if !p.module.AddFunction(fn) {
			p.redefinedf("%q is already declared as a function or global", name)
		}
		return
	}
	if external {
		p.errorf(diag.ParserExpectedToken, "expected ';' after extern function declaration, got %s", p.cur.Type)
		p.synchronize()
		return
	}

	p.valueRegs = make(map[string]int32)
	p.numRegs = int32(len(params))
	for i, prm := range params {
		p.valueRegs[prm.Name] = int32(i)
	}

	if !p.expect(hoillex.LBrace) {
		p.synchronize()
		return
	}
	for !p.curIs(hoillex.RBrace) && !p.curIs(hoillex.EOF) {
		p.parseBasicBlock(&fn)
	}
	p.expect(hoillex.RBrace)
	fn.NumRegs = p.numRegs
	if !p.module.AddFunction(fn) {
		p.redefinedf("%q is already declared as a function or global", name)
	}
}

// parseBasicBlock parses `IDENT ':' { Instruction }`.
func (p *Parser) parseBasicBlock(fn *ir.Function) {
	if !p.curIs(hoillex.Ident) {
		p.errorf(diag.ParserExpectedToken, "expected a block label, got %s", p.cur.Type)
		p.next()
		return
	}
	label := p.cur.Literal
	p.next()
	if !p.expect(hoillex.Colon) {
		p.synchronize()
		return
	}
	block, ok := fn.AddBlock(label)
	if !ok {
		p.redefinedf("block %q is already declared in function %q", label, fn.Name)
		block, _ = fn.Block(label)
	}
	for !p.curIs(hoillex.RBrace) && !p.curIs(hoillex.EOF) && !p.startsBlock() {
		inst, ok := p.parseInstruction()
		if ok {
			block.Instructions = append(block.Instructions, inst)
		}
	}
}

// startsBlock reports whether the current token could begin a new
// BasicBlock production (IDENT immediately followed by ':'), used to
// decide when the current block's instruction sequence ends.
func (p *Parser) startsBlock() bool {
	return p.curIs(hoillex.Ident) && p.peekIs(hoillex.Colon)
}

// parseInstruction parses one instruction statement:
//
//	[IDENT '='] MNEMONIC operand {',' operand} ';'
func (p *Parser) parseInstruction() (ir.Instruction, bool) {
	resultName := ""
	if p.curIs(hoillex.Ident) && p.peekIs(hoillex.Assign) {
		resultName = p.cur.Literal
		p.next()
		p.next() // '='
	}

	if !p.curIs(hoillex.Ident) {
		p.errorf(diag.ParserExpectedToken, "expected an instruction mnemonic, got %s", p.cur.Type)
		p.synchronize()
		return ir.Instruction{}, false
	}
	mnemonic := p.cur.Literal
	p.next()

	if mnemonic == "LOAD_I32" {
		return p.finishSugarLoad(resultName, types.Int32())
	}

	op, ok := ir.OpcodeByMnemonic(mnemonic)
	if !ok {
		p.errorf(diag.ParserInvalidSyntax, "unknown instruction mnemonic %q", mnemonic)
		p.synchronize()
		return ir.Instruction{}, false
	}

	var operands []ir.Operand
	for !p.curIs(hoillex.Semicolon) && !p.curIs(hoillex.EOF) && !p.curIs(hoillex.RBrace) {
		operands = append(operands, p.parseOperand())
		if p.curIs(hoillex.Comma) {
			p.next()
			continue
		}
		break
	}
	p.expect(hoillex.Semicolon)

	inst := ir.Instruction{Op: op, Operands: operands}
	if resultName != "" {
		reg := p.allocReg(resultName)
		inst.Dest = &ir.Operand{Kind: ir.OpRegister, Reg: reg}
		inst.ResultName = resultName
	} else if hasImplicitDest(op) && len(operands) > 0 {
		// Two/three-operand arithmetic written without an explicit
		// result name reuses its first operand's register as dest,
		// matching the destructive two-address HOIL shorthand the
		// grammar allows for direct binary-to-binary translation.
		if operands[0].Kind == ir.OpRegister {
			dest := operands[0]
			inst.Dest = &dest
		}
	}
	return inst, true
}

func hasImplicitDest(op ir.Opcode) bool {
	switch op {
	case ir.BR, ir.BRC, ir.RET, ir.CALL, ir.CMP, ir.TEST, ir.PUSH, ir.POP, ir.STORE:
		return false
	default:
		return true
	}
}

// finishSugarLoad lowers the HOIL-only "LOAD_I32 imm" shorthand to a
// MOVI instruction producing an i32 result (§6.1's MOVI, the
// immediate-move member of the data-movement category).
func (p *Parser) finishSugarLoad(resultName string, ty types.ID) (ir.Instruction, bool) {
	operand := p.parseOperand()
	p.expect(hoillex.Semicolon)
	inst := ir.Instruction{Op: ir.MOVI, Operands: []ir.Operand{operand}, ResultType: ty}
	if resultName != "" {
		reg := p.allocReg(resultName)
		inst.Dest = &ir.Operand{Kind: ir.OpRegister, Reg: reg, Type: ty}
		inst.ResultName = resultName
	}
	return inst, true
}

func (p *Parser) allocReg(name string) int32 {
	if r, ok := p.valueRegs[name]; ok {
		return r
	}
	r := p.numRegs
	p.numRegs++
	p.valueRegs[name] = r
	return r
}

// parseOperand parses one Operand per §3's tagged-variant grammar:
// a register/value name, an integer or float literal, a function ref
// (@name), or a global ref ($name). An identifier that names no value
// becomes a block label. String literals and memory references are
// not accepted as operands.
func (p *Parser) parseOperand() ir.Operand {
	switch p.cur.Type {
	case hoillex.Int, hoillex.Hex:
		v := p.parseIntLiteral()
		return ir.ImmInt(v, types.Int32())
	case hoillex.Float:
		f, _ := strconv.ParseFloat(p.cur.Literal, 64)
		p.next()
		return ir.ImmFloat(f, types.Float64())
	case hoillex.At:
		p.next()
		name := p.identOrEmpty()
		return ir.FuncRef(name, types.VoidID())
	case hoillex.Dollar:
		p.next()
		name := p.identOrEmpty()
		return ir.GlobalRef(name, types.VoidID())
	case hoillex.Ident:
		name := p.cur.Literal
		p.next()
		if r, ok := p.valueRegs[name]; ok {
			return ir.Reg(r, types.VoidID())
		}
		return ir.BlockRef(name)
	default:
		p.errorf(diag.ParserInvalidSyntax, "expected an operand, got %s", p.cur.Type)
		p.next()
		return ir.Operand{}
	}
}

func (p *Parser) identOrEmpty() string {
	if p.curIs(hoillex.Ident) {
		name := p.cur.Literal
		p.next()
		return name
	}
	p.errorf(diag.ParserExpectedToken, "expected an identifier, got %s", p.cur.Type)
	return ""
}

// parseTargetDecl parses a `target { required { "..." }; preferred { "..." }; device "..."; }` block.
func (p *Parser) parseTargetDecl() {
	p.next() // 'target'
	if !p.expect(hoillex.LBrace) {
		p.synchronize()
		return
	}
	var req ir.TargetRequirement
	for !p.curIs(hoillex.RBrace) && !p.curIs(hoillex.EOF) {
		switch {
		case p.curIs(hoillex.KwRequired):
			p.next()
			req.Required = p.parseStringList()
		case p.curIs(hoillex.KwPreferred):
			p.next()
			req.Preferred = p.parseStringList()
		case p.curIs(hoillex.KwDevice):
			p.next()
			if p.curIs(hoillex.String) {
				req.Device = p.cur.Literal
				p.next()
			}
			p.expect(hoillex.Semicolon)
		default:
			p.errorf(diag.ParserUnexpectedToken, "expected 'required', 'preferred' or 'device', got %s", p.cur.Type)
			p.next()
		}
	}
	p.expect(hoillex.RBrace)
	p.module.Target = req
}

func (p *Parser) parseStringList() []string {
	var out []string
	p.expect(hoillex.LBrace)
	for !p.curIs(hoillex.RBrace) && !p.curIs(hoillex.EOF) {
		if p.curIs(hoillex.String) {
			out = append(out, p.cur.Literal)
			p.next()
		}
		if p.curIs(hoillex.Comma) {
			p.next()
		}
	}
	p.expect(hoillex.RBrace)
	p.expect(hoillex.Semicolon)
	return out
}
