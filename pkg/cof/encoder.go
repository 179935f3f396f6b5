package cof

import (
	"bytes"
	"encoding/binary"

	"github.com/coil-toolchain/coil/pkg/ir"
	"github.com/coil-toolchain/coil/pkg/types"
)

// Encode serializes m to its binary COF form (§4.7).
func Encode(m *ir.Module) []byte {
	e := &encoder{m: m, strs: newStringTable()}
	e.strs.intern(m.Name) // module name occupies offset 0

	typeBytes := e.encodeTypes()
	globalBytes, constBytes := e.encodeGlobals()
	funcBytes := e.encodeFunctions()
	metaBytes := e.strs.bytes()

	sections := []struct {
		typ  SectionType
		data []byte
	}{
		{SecType, typeBytes},
		{SecFunction, funcBytes},
		{SecGlobal, globalBytes},
		{SecConstant, constBytes},
		{SecMetadata, metaBytes},
	}

	var out bytes.Buffer
	out.WriteString(magic)
	out.WriteByte(Version.Major)
	out.WriteByte(Version.Minor)
	out.WriteByte(Version.Patch)
	out.WriteByte(0) // reserved
	putU32(&out, uint32(len(sections)))
	out.Write(make([]byte, headerSize-out.Len())) // pad to 16

	offset := uint32(headerSize + len(sections)*sectionEntry)
	table := make([]byte, 0, len(sections)*sectionEntry)
	var body bytes.Buffer
	for _, s := range sections {
		entry := make([]byte, sectionEntry)
		binary.LittleEndian.PutUint32(entry[0:4], uint32(s.typ))
		binary.LittleEndian.PutUint32(entry[4:8], offset)
		binary.LittleEndian.PutUint32(entry[8:12], uint32(len(s.data)))
		table = append(table, entry...)
		body.Write(s.data)
		offset += uint32(len(s.data))
	}
	out.Write(table)
	out.Write(body.Bytes())
	return out.Bytes()
}

type encoder struct {
	m    *ir.Module
	strs *stringTable
}

func putU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// encodeTypes serializes every composite type (ID >= FirstCompositeID)
// in registration order, one record per entry, category-tagged.
func (e *encoder) encodeTypes() []byte {
	var buf bytes.Buffer
	reg := e.m.Types
	count := reg.Count()
	putU32(&buf, uint32(count)-uint32(types.FirstCompositeID))
	for id := types.FirstCompositeID; int(id) < count; id++ {
		buf.WriteByte(byte(reg.CategoryOf(id)))
		switch reg.CategoryOf(id) {
		case types.Pointer:
			putU32(&buf, uint32(reg.ElemOf(id)))
			buf.WriteByte(byte(reg.PointerSpace(id)))
			buf.WriteByte(byte(reg.PointerQual(id)))
		case types.Vector:
			putU32(&buf, uint32(reg.ElemOf(id)))
			putU32(&buf, uint32(reg.LanesOf(id)))
		case types.Array:
			length, sized := reg.ArrayLenOf(id)
			putU32(&buf, uint32(reg.ElemOf(id)))
			if sized {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
			putU64(&buf, uint64(length))
		case types.Struct:
			putU32(&buf, e.strs.intern(reg.StructName(id)))
			fields := reg.StructFields(id)
			putU32(&buf, uint32(len(fields)))
			for _, f := range fields {
				putU32(&buf, e.strs.intern(f.Name))
				putU32(&buf, uint32(f.Type))
				putU32(&buf, f.Offset)
			}
		case types.Function:
			ret, params, variadic := reg.FunctionInfo(id)
			putU32(&buf, uint32(ret))
			putU32(&buf, uint32(len(params)))
			for _, pid := range params {
				putU32(&buf, uint32(pid))
			}
			if variadic {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		}
	}
	return buf.Bytes()
}

// encodeGlobals splits the module's Globals between the global section
// (mutable data, SecGlobal) and the constant section (IsConstant,
// SecConstant), per §4.7's distinct section types.
func (e *encoder) encodeGlobals() (globalBytes, constBytes []byte) {
	var gbuf, cbuf bytes.Buffer
	var gcount, ccount uint32
	for _, g := range e.m.Globals {
		target := &gbuf
		if g.IsConstant {
			target = &cbuf
		}
		putU32(target, e.strs.intern(g.Name))
		putU32(target, uint32(g.Type))
		putU32(target, uint32(g.Align))
		if g.IsExternal {
			target.WriteByte(1)
		} else {
			target.WriteByte(0)
		}
		putU32(target, uint32(len(g.Initializer)))
		target.Write(g.Initializer)
		if g.IsConstant {
			ccount++
		} else {
			gcount++
		}
	}
	var gout, cout bytes.Buffer
	putU32(&gout, gcount)
	gout.Write(gbuf.Bytes())
	putU32(&cout, ccount)
	cout.Write(cbuf.Bytes())
	return gout.Bytes(), cout.Bytes()
}

func (e *encoder) encodeFunctions() []byte {
	var buf bytes.Buffer
	putU32(&buf, uint32(len(e.m.Funcs)))
	for i := range e.m.Funcs {
		e.encodeFunction(&buf, &e.m.Funcs[i])
	}
	return buf.Bytes()
}

func (e *encoder) encodeFunction(buf *bytes.Buffer, f *ir.Function) {
	putU32(buf, e.strs.intern(f.Name))
	putU32(buf, uint32(f.ReturnType))
	putU32(buf, uint32(len(f.Params)))
	for _, prm := range f.Params {
		putU32(buf, e.strs.intern(prm.Name))
		putU32(buf, uint32(prm.Type))
	}
	buf.WriteByte(boolByte(f.Variadic))
	buf.WriteByte(boolByte(f.External))
	if f.External {
		return
	}
	putU32(buf, uint32(f.NumRegs))
	putU32(buf, uint32(len(f.Blocks)))
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		putU32(buf, e.strs.intern(b.Name))
		putU32(buf, uint32(len(b.Instructions)))
		for ii := range b.Instructions {
			e.encodeInstruction(buf, &b.Instructions[ii])
		}
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// encodeInstruction writes one instruction in the §4.7 wire form: a
// 4-byte header (opcode, flags, operand-count, destination-register)
// followed by each source operand's tagged encoding.
func (e *encoder) encodeInstruction(buf *bytes.Buffer, inst *ir.Instruction) {
	wireFlags := byte(inst.Flags&0x0F) | (byte(inst.Cond) << 4)
	buf.WriteByte(byte(inst.Op))
	buf.WriteByte(wireFlags)
	buf.WriteByte(byte(len(inst.Operands)))
	if inst.Dest != nil {
		buf.WriteByte(byte(inst.Dest.Reg))
	} else {
		buf.WriteByte(0)
	}
	for _, op := range inst.Operands {
		e.encodeOperand(buf, op)
	}
}

func (e *encoder) encodeOperand(buf *bytes.Buffer, op ir.Operand) {
	switch op.Kind {
	case ir.OpRegister:
		buf.WriteByte(tagRegister)
		putI24(buf, int32(op.Reg))
	case ir.OpImmInt:
		buf.WriteByte(tagImm)
		putI24(buf, int32(op.ImmInt))
	case ir.OpBlockRef:
		buf.WriteByte(tagBlock)
		putI24(buf, int32(e.strs.intern(op.Name)))
	case ir.OpFuncRef:
		buf.WriteByte(tagFunc)
		putI24(buf, int32(e.strs.intern(op.Name)))
	case ir.OpGlobalRef:
		buf.WriteByte(tagGlobal)
		putI24(buf, int32(e.strs.intern(op.Name)))
	case ir.OpImmFloat:
		// §4.7 defines only a 3-byte integer immediate form for v1;
		// a float immediate is narrowed to its truncated integer
		// value, the same "wider values need a future tag" case the
		// spec's own immediate-tag text calls out.
		buf.WriteByte(tagImm)
		putI24(buf, int32(op.ImmFloat))
	case ir.OpMemRef:
		buf.WriteByte(tagMem)
		buf.WriteByte(byte(op.Mem.Base))
		var b4 [4]byte
		binary.LittleEndian.PutUint32(b4[:], uint32(op.Mem.Disp))
		buf.Write(b4[:])
		idx := byte(0)
		scale := byte(0)
		if op.Mem.HasIndex {
			idx = byte(op.Mem.Index)
			scale = byte(op.Mem.Scale)
		}
		buf.WriteByte(idx)
		buf.WriteByte(scale)
	}
}

// putI24 writes a 24-bit little-endian sign-extended value, the
// 3-byte payload size the wire format uses for register/immediate/
// string-table-offset operand tags (§4.7).
func putI24(buf *bytes.Buffer, v int32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
}
