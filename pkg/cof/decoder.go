package cof

import (
	"encoding/binary"
	"fmt"

	"github.com/coil-toolchain/coil/pkg/diag"
	"github.com/coil-toolchain/coil/pkg/ir"
	"github.com/coil-toolchain/coil/pkg/types"
)

// Decode parses raw COF bytes back into an *ir.Module, reporting
// BinaryInvalidFormat / BinaryUnsupportedVersion / BinaryCorrupt
// diagnostics into reporter on malformed input (§4.7). It returns nil
// when a fatal structural error (bad magic, truncated header, section
// past EOF) prevents further decoding; per-field corruption is
// reported but decoding continues where it can, matching the
// accumulate-and-continue convention the rest of the toolchain uses.
func Decode(data []byte, reporter *diag.Reporter) *ir.Module {
	d := &decoder{data: data, reporter: reporter}
	return d.decode()
}

type decoder struct {
	data     []byte
	reporter *diag.Reporter
}

func (d *decoder) errorf(code diag.Code, format string, args ...any) {
	if d.reporter == nil {
		return
	}
	d.reporter.Reportf(diag.Error, diag.Binary, code, diag.Location{}, format, args...)
}

func (d *decoder) decode() *ir.Module {
	if len(d.data) < headerSize {
		d.errorf(diag.BinaryInvalidFormat, "file is shorter than the %d-byte COF header", headerSize)
		return nil
	}
	if string(d.data[0:4]) != magic {
		d.errorf(diag.BinaryInvalidFormat, "bad magic: expected %q", magic)
		return nil
	}
	major := d.data[4]
	if major != Version.Major {
		d.errorf(diag.BinaryUnsupportedVers, "unsupported COF major version %d, expected %d", major, Version.Major)
		return nil
	}
	sectionCount := binary.LittleEndian.Uint32(d.data[8:12])

	tableStart := headerSize
	tableEnd := tableStart + int(sectionCount)*sectionEntry
	if tableEnd > len(d.data) {
		d.errorf(diag.BinaryCorrupt, "section table extends past end of file")
		return nil
	}

	sections := make(map[SectionType][]byte, sectionCount)
	for i := 0; i < int(sectionCount); i++ {
		entry := d.data[tableStart+i*sectionEntry : tableStart+(i+1)*sectionEntry]
		typ := SectionType(binary.LittleEndian.Uint32(entry[0:4]))
		off := binary.LittleEndian.Uint32(entry[4:8])
		size := binary.LittleEndian.Uint32(entry[8:12])
		if uint64(off)+uint64(size) > uint64(len(d.data)) {
			d.errorf(diag.BinaryCorrupt, "section type %d extends past end of file", typ)
			return nil
		}
		sections[typ] = d.data[off : off+size]
	}

	meta, ok := sections[SecMetadata]
	if !ok {
		d.errorf(diag.BinaryCorrupt, "missing mandatory metadata section")
		return nil
	}
	name, ok := readString(meta, 0, d.reporter)
	if !ok {
		name = ""
	}

	m := ir.NewModule(name, d.reporter)
	d.decodeTypes(m, sections[SecType], meta)
	d.decodeGlobals(m, sections[SecGlobal], meta, false)
	d.decodeGlobals(m, sections[SecConstant], meta, true)
	d.decodeFunctions(m, sections[SecFunction], meta)
	return m
}

// byteReader is a tiny cursor over a section's bytes, used instead of
// bytes.Reader so every malformed-length read reports BinaryCorrupt
// rather than panicking.
type byteReader struct {
	buf []byte
	pos int
	dec *decoder
}

func (r *byteReader) remaining() int { return len(r.buf) - r.pos }

func (r *byteReader) u8() byte {
	if r.remaining() < 1 {
		r.dec.errorf(diag.BinaryCorrupt, "unexpected end of section while reading a byte")
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *byteReader) u32() uint32 {
	if r.remaining() < 4 {
		r.dec.errorf(diag.BinaryCorrupt, "unexpected end of section while reading a u32")
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *byteReader) u64() uint64 {
	if r.remaining() < 8 {
		r.dec.errorf(diag.BinaryCorrupt, "unexpected end of section while reading a u64")
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v
}

func (r *byteReader) i24() int32 {
	if r.remaining() < 3 {
		r.dec.errorf(diag.BinaryCorrupt, "unexpected end of section while reading a 24-bit value")
		return 0
	}
	b0, b1, b2 := r.buf[r.pos], r.buf[r.pos+1], r.buf[r.pos+2]
	r.pos += 3
	v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
	if v&0x800000 != 0 {
		v |= ^int32(0xFFFFFF) // sign-extend from bit 23
	}
	return v
}

func (r *byteReader) bytesN(n int) []byte {
	if r.remaining() < n {
		r.dec.errorf(diag.BinaryCorrupt, "unexpected end of section reading %d bytes", n)
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (d *decoder) reader(buf []byte) *byteReader { return &byteReader{buf: buf, dec: d} }

func (d *decoder) decodeTypes(m *ir.Module, data, meta []byte) {
	if data == nil {
		return
	}
	r := d.reader(data)
	count := r.u32()
	for i := uint32(0); i < count; i++ {
		cat := types.Category(r.u8())
		switch cat {
		case types.Pointer:
			elem := types.ID(r.u32())
			space := types.MemSpace(r.u8())
			qual := types.Qualifier(r.u8())
			m.Types.Pointer(elem, space, qual)
		case types.Vector:
			elem := types.ID(r.u32())
			lanes := r.u32()
			m.Types.Vector(elem, int(lanes))
		case types.Array:
			elem := types.ID(r.u32())
			sized := r.u8()
			length := r.u64()
			if sized == 0 {
				length = 0
			}
			m.Types.Array(elem, int64(length))
		case types.Struct:
			nameOff := r.u32()
			name, _ := readString(meta, nameOff, d.reporter)
			fieldCount := r.u32()
			fieldTypes := make([]types.ID, fieldCount)
			fieldNames := make([]string, fieldCount)
			for fi := uint32(0); fi < fieldCount; fi++ {
				fnameOff := r.u32()
				fname, _ := readString(meta, fnameOff, d.reporter)
				ftype := types.ID(r.u32())
				r.u32() // offset: recomputed by Struct()
				fieldNames[fi] = fname
				fieldTypes[fi] = ftype
			}
			m.Types.Struct(name, fieldTypes, fieldNames)
		case types.Function:
			ret := types.ID(r.u32())
			paramCount := r.u32()
			params := make([]types.ID, paramCount)
			for pi := uint32(0); pi < paramCount; pi++ {
				params[pi] = types.ID(r.u32())
			}
			variadic := r.u8() != 0
			m.Types.Function(ret, params, variadic)
		default:
			d.errorf(diag.BinaryCorrupt, "unknown type category %d in type section", cat)
			return
		}
	}
}

func (d *decoder) decodeGlobals(m *ir.Module, data, meta []byte, isConstant bool) {
	if data == nil {
		return
	}
	r := d.reader(data)
	count := r.u32()
	for i := uint32(0); i < count; i++ {
		nameOff := r.u32()
		name, _ := readString(meta, nameOff, d.reporter)
		ty := types.ID(r.u32())
		align := r.u32()
		external := r.u8() != 0
		initLen := r.u32()
		init := append([]byte(nil), r.bytesN(int(initLen))...)
		m.AddGlobal(ir.Global{
			Name: name, Type: ty, IsConstant: isConstant, IsExternal: external,
			Initializer: init, Align: int(align),
		})
	}
}

func (d *decoder) decodeFunctions(m *ir.Module, data, meta []byte) {
	if data == nil {
		return
	}
	r := d.reader(data)
	count := r.u32()
	for i := uint32(0); i < count; i++ {
		d.decodeFunction(m, r, meta)
	}
}

func (d *decoder) decodeFunction(m *ir.Module, r *byteReader, meta []byte) {
	nameOff := r.u32()
	name, _ := readString(meta, nameOff, d.reporter)
	ret := types.ID(r.u32())
	paramCount := r.u32()
	params := make([]ir.Param, paramCount)
	for pi := uint32(0); pi < paramCount; pi++ {
		pnameOff := r.u32()
		pname, _ := readString(meta, pnameOff, d.reporter)
		ptype := types.ID(r.u32())
		params[pi] = ir.Param{Name: pname, Type: ptype}
	}
	variadic := r.u8() != 0
	external := r.u8() != 0

	fn := ir.Function{Name: name, ReturnType: ret, Params: params, Variadic: variadic, External: external}
	if external {
		m.AddFunction(fn)
		return
	}

	fn.NumRegs = int32(r.u32())
	blockCount := r.u32()
	for bi := uint32(0); bi < blockCount; bi++ {
		bnameOff := r.u32()
		bname, _ := readString(meta, bnameOff, d.reporter)
		block, ok := fn.AddBlock(bname)
		if !ok {
			// Duplicate block names never occur in data this decoder's
			// own encoder produced; fall back to the existing block
			// rather than dropping the instructions it decodes below.
			block, _ = fn.Block(bname)
		}
		instrCount := r.u32()
		for ii := uint32(0); ii < instrCount; ii++ {
			inst, ok := d.decodeInstruction(r, meta)
			if !ok {
				continue
			}
			block.Instructions = append(block.Instructions, inst)
		}
	}
	m.AddFunction(fn)
}

// decodeInstruction implements the Instruction Decoder of §4.8: it
// rejects opcodes with no mnemonic entry and operand counts that
// disagree with the opcode's expected arity.
func (d *decoder) decodeInstruction(r *byteReader, meta []byte) (ir.Instruction, bool) {
	op := ir.Opcode(r.u8())
	wireFlags := r.u8()
	operandCount := int(r.u8())
	destReg := r.u8()

	if op.String() == "UNKNOWN" {
		d.errorf(diag.BinaryCorrupt, "opcode 0x%02x has no mnemonic entry", byte(op))
		for i := 0; i < operandCount; i++ {
			d.skipOperand(r)
		}
		return ir.Instruction{}, false
	}
	if !ir.ValidArity(op, operandCount) {
		d.errorf(diag.BinaryCorrupt, "opcode %s declares %d operands, which is not a valid arity", op, operandCount)
		for i := 0; i < operandCount; i++ {
			d.skipOperand(r)
		}
		return ir.Instruction{}, false
	}

	inst := ir.Instruction{
		Op:    op,
		Flags: ir.Flags(wireFlags & 0x0F),
		Cond:  ir.ConditionCode(wireFlags >> 4),
	}
	if hasImplicitDestWire(op) {
		inst.Dest = &ir.Operand{Kind: ir.OpRegister, Reg: int32(destReg)}
		// The wire format has no named-result slot (§4.7); reconstruct
		// a ResultName from the register so the printer's "name = op"
		// rendering matches what the parser produced for the same
		// instruction, keeping the encode/decode round trip textually
		// stable regardless of whether HOIL source named its results.
		inst.ResultName = fmt.Sprintf("r%d", destReg)
	}
	inst.Operands = make([]ir.Operand, 0, operandCount)
	for i := 0; i < operandCount; i++ {
		inst.Operands = append(inst.Operands, d.decodeOperand(r, meta))
	}
	return inst, true
}

func hasImplicitDestWire(op ir.Opcode) bool {
	switch op {
	case ir.BR, ir.BRC, ir.RET, ir.CALL, ir.CMP, ir.TEST, ir.PUSH, ir.POP, ir.STORE:
		return false
	default:
		return true
	}
}

func (d *decoder) skipOperand(r *byteReader) {
	tag := r.u8()
	if tag == tagMem {
		r.u8()
		r.bytesN(4)
		r.u8()
		r.u8()
		return
	}
	r.bytesN(3)
}

func (d *decoder) decodeOperand(r *byteReader, meta []byte) ir.Operand {
	tag := r.u8()
	switch tag {
	case tagRegister:
		return ir.Reg(r.i24(), types.VoidID())
	case tagImm:
		return ir.ImmInt(int64(r.i24()), types.Int32())
	case tagBlock:
		off := uint32(r.i24())
		name, _ := readString(meta, off, d.reporter)
		return ir.BlockRef(name)
	case tagFunc:
		off := uint32(r.i24())
		name, _ := readString(meta, off, d.reporter)
		return ir.FuncRef(name, types.VoidID())
	case tagGlobal:
		off := uint32(r.i24())
		name, _ := readString(meta, off, d.reporter)
		return ir.GlobalRef(name, types.VoidID())
	case tagMem:
		base := r.u8()
		var disp int32
		db := r.bytesN(4)
		if db != nil {
			disp = int32(binary.LittleEndian.Uint32(db))
		}
		index := r.u8()
		scale := r.u8()
		// Scale 0 is the wire-format convention for "no index
		// register", since §4.7's memory operand encoding has no
		// separate has-index flag.
		return ir.Mem(int32(base), disp, scale != 0, int32(index), ir.Scale(scale), types.VoidID())
	default:
		d.errorf(diag.BinaryCorrupt, "unknown operand kind tag %d", tag)
		return ir.Operand{}
	}
}
