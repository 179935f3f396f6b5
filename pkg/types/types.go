// Package types implements the COIL Type Registry (§4.1): it interns
// every type used by a module and answers size/alignment queries for
// it. Types are tagged variants distinguished by Category, mirroring
// ctypes.Type's sum-of-structs shape but with a single internal entry
// struct instead of one Go type per category, so the registry can hand
// out a compact stable ID per interned type.
package types

import "github.com/coil-toolchain/coil/pkg/diag"

// Category is the closed enumeration of type kinds from §3.
type Category int

const (
	Void Category = iota
	Bool
	Int
	UInt
	Float
	Pointer
	Vector
	Array
	Struct
	Function
)

func (c Category) String() string {
	switch c {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case UInt:
		return "uint"
	case Float:
		return "float"
	case Pointer:
		return "ptr"
	case Vector:
		return "vec"
	case Array:
		return "array"
	case Struct:
		return "struct"
	case Function:
		return "function"
	default:
		return "?"
	}
}

// MemSpace tags the memory space a pointer refers to. v1 only needs a
// generic address space; named spaces are threaded through so a future
// multi-device backend (out of scope here, see spec §1) has somewhere
// to put its tags.
type MemSpace int

const (
	SpaceGeneric MemSpace = iota
	SpaceGlobal
	SpaceLocal
	SpaceShared
)

// Qualifier bits on a pointer type.
type Qualifier uint8

const (
	QualNone     Qualifier = 0
	QualConst    Qualifier = 1 << 0
	QualVolatile Qualifier = 1 << 1
	QualRestrict Qualifier = 1 << 2
)

// Field is one named, offset element of a struct type.
type Field struct {
	Name   string
	Type   ID
	Offset uint32
}

// ID is a stable, copyable identifier for an interned type. Primitive
// types occupy fixed well-known IDs (see the ID* constants below) so
// the binary codec can reference them without a table lookup, per
// §4.1.
type ID uint32

// Fixed primitive IDs. Composite types are assigned IDs starting at
// firstCompositeID.
const (
	IDVoid ID = iota
	IDBool
	IDI8
	IDI16
	IDI32
	IDI64
	IDU8
	IDU16
	IDU32
	IDU64
	IDF16
	IDF32
	IDF64
	firstCompositeID
)

// entry is the internal representation of one interned type.
type entry struct {
	category Category
	width    int // bit width for Int/UInt/Float
	elem     ID  // element type for Pointer/Vector/Array
	space    MemSpace
	qual     Qualifier
	lanes    int    // Vector lane count
	length   int64  // Array length; 0 means unsized
	hasLen   bool   // Array has an explicit length
	fields   []Field
	params   []ID
	ret      ID
	variadic bool
	name     string // struct name, for diagnostics and HOIL printing
}

// Registry interns all types used by a single module. Registries are
// append-only and are never shared across modules (§5).
type Registry struct {
	entries []entry
	byKey   map[string]ID // structural interning for non-struct composites
	reports *diag.Reporter
}

// NewRegistry creates a Registry pre-populated with the fixed-ID
// primitive types and seeded with the reporter used for TypeInvalid /
// TypeUnknown diagnostics.
func NewRegistry(reporter *diag.Reporter) *Registry {
	r := &Registry{
		byKey:   make(map[string]ID),
		reports: reporter,
	}
	prims := []entry{
		{category: Void},
		{category: Bool, width: 1},
		{category: Int, width: 8},
		{category: Int, width: 16},
		{category: Int, width: 32},
		{category: Int, width: 64},
		{category: UInt, width: 8},
		{category: UInt, width: 16},
		{category: UInt, width: 32},
		{category: UInt, width: 64},
		{category: Float, width: 16},
		{category: Float, width: 32},
		{category: Float, width: 64},
	}
	r.entries = append(r.entries, prims...)
	return r
}

func (r *Registry) report(code diag.Code, format string, args ...any) ID {
	if r.reports != nil {
		r.reports.Reportf(diag.Error, diag.Type, code, diag.Location{}, format, args...)
	}
	return IDVoid
}

// Int8/Int16/... return the fixed ID for signed integer types of the
// given width. Width must be one of {8,16,32,64}.
func Int8() ID  { return IDI8 }
func Int16() ID { return IDI16 }
func Int32() ID { return IDI32 }
func Int64() ID { return IDI64 }

// UInt8/UInt16/... return the fixed ID for unsigned integer types.
func UInt8() ID  { return IDU8 }
func UInt16() ID { return IDU16 }
func UInt32() ID { return IDU32 }
func UInt64() ID { return IDU64 }

// Float16/Float32/Float64 return the fixed ID for float types.
func Float16() ID { return IDF16 }
func Float32() ID { return IDF32 }
func Float64() ID { return IDF64 }

// VoidID and BoolID return their fixed IDs.
func VoidID() ID { return IDVoid }
func BoolID() ID { return IDBool }

// IntOfWidth resolves a width in {8,16,32,64} plus a signedness flag to
// its fixed primitive ID. Returns IDVoid and a TypeUnknown diagnostic
// for an unrecognized width.
func (r *Registry) IntOfWidth(width int, signed bool) ID {
	switch width {
	case 8:
		if signed {
			return IDI8
		}
		return IDU8
	case 16:
		if signed {
			return IDI16
		}
		return IDU16
	case 32:
		if signed {
			return IDI32
		}
		return IDU32
	case 64:
		if signed {
			return IDI64
		}
		return IDU64
	default:
		return r.report(diag.TypeUnknown, "unsupported integer width %d", width)
	}
}

// FloatOfWidth resolves a width in {16,32,64} to its fixed primitive ID.
func (r *Registry) FloatOfWidth(width int) ID {
	switch width {
	case 16:
		return IDF16
	case 32:
		return IDF32
	case 64:
		return IDF64
	default:
		return r.report(diag.TypeUnknown, "unsupported float width %d", width)
	}
}

func (r *Registry) intern(e entry, key string) ID {
	if id, ok := r.byKey[key]; ok {
		return id
	}
	id := ID(len(r.entries))
	if id < firstCompositeID {
		id = firstCompositeID
	}
	r.entries = append(r.entries, e)
	id = ID(len(r.entries) - 1)
	r.byKey[key] = id
	return id
}

// Pointer builds (or returns the existing interned ID for) a pointer
// type to elem in the given memory space with the given qualifier bits.
func (r *Registry) Pointer(elem ID, space MemSpace, qual Qualifier) ID {
	key := keyFor("ptr", elem, int(space), int(qual), 0, false)
	return r.intern(entry{category: Pointer, elem: elem, space: space, qual: qual}, key)
}

// Vector builds a vector type of lanes elements of elem. Fails with
// TypeInvalid and returns the void type ID for lanes < 1 (§8, property
// "Type invariant: vector lane count").
func (r *Registry) Vector(elem ID, lanes int) ID {
	if lanes < 1 {
		return r.report(diag.TypeInvalid, "vector type must have at least one lane, got %d", lanes)
	}
	key := keyFor("vec", elem, lanes, 0, 0, false)
	return r.intern(entry{category: Vector, elem: elem, lanes: lanes}, key)
}

// Array builds an array type of elem with the given length. length==0
// means unsized, per §3.
func (r *Registry) Array(elem ID, length int64) ID {
	key := keyFor("arr", elem, 0, 0, length, true)
	return r.intern(entry{category: Array, elem: elem, length: length, hasLen: length != 0}, key)
}

// Struct builds (always freshly, never interned by structural equality
// of an anonymous struct, since two distinct struct declarations with
// identical fields remain distinct types) a struct type, computing
// element offsets by walking fields in declaration order and aligning
// each to its own alignment. The struct's own alignment is the maximum
// field alignment; its size is the final offset rounded up to that
// alignment (§4.1).
func (r *Registry) Struct(name string, fieldTypes []ID, fieldNames []string) ID {
	fields := make([]Field, len(fieldTypes))
	var offset uint32
	var maxAlign uint32 = 1
	for i, ft := range fieldTypes {
		align := uint32(r.AlignOf(ft))
		if align == 0 {
			align = 1
		}
		offset = alignUp(offset, align)
		fields[i] = Field{Name: fieldNames[i], Type: ft, Offset: offset}
		offset += uint32(r.SizeOf(ft))
		if align > maxAlign {
			maxAlign = align
		}
	}
	_ = alignUp(offset, maxAlign) // size is recomputed lazily in SizeOf via stored entry
	e := entry{category: Struct, fields: fields, name: name}
	id := ID(len(r.entries))
	r.entries = append(r.entries, e)
	return id
}

// Function builds a function type.
func (r *Registry) Function(ret ID, params []ID, variadic bool) ID {
	e := entry{category: Function, ret: ret, params: append([]ID(nil), params...), variadic: variadic}
	id := ID(len(r.entries))
	r.entries = append(r.entries, e)
	return id
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

func keyFor(tag string, elem ID, a, b int, c int64, hasC bool) string {
	return tag + sep(uint32(elem)) + sep(uint32(a)) + sep(uint32(b)) + sepB(hasC) + sep64(c)
}

func sep(v uint32) string  { return "#" + itoa(int64(v)) }
func sep64(v int64) string { return "#" + itoa(v) }
func sepB(b bool) string {
	if b {
		return "#1"
	}
	return "#0"
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Count returns the total number of interned types, including the 13
// fixed primitives. Used by the binary codec to iterate every
// composite type in ID order (§4.7).
func (r *Registry) Count() int { return len(r.entries) }

// FirstCompositeID is the lowest ID a composite (non-primitive) type
// can occupy.
const FirstCompositeID = firstCompositeID

func (r *Registry) valid(id ID) bool {
	return int(id) >= 0 && int(id) < len(r.entries)
}

func (r *Registry) entry(id ID) (entry, bool) {
	if !r.valid(id) {
		return entry{}, false
	}
	return r.entries[id], true
}

// CategoryOf returns the category of id, or Void plus a TypeUnknown
// diagnostic if id is not registered.
func (r *Registry) CategoryOf(id ID) Category {
	e, ok := r.entry(id)
	if !ok {
		r.report(diag.TypeUnknown, "unknown type id %d", id)
		return Void
	}
	return e.category
}

// WidthOf returns the bit width of an Int/UInt/Float type, 0 otherwise.
func (r *Registry) WidthOf(id ID) int {
	e, ok := r.entry(id)
	if !ok {
		return 0
	}
	return e.width
}

// ElemOf returns the element type of a Pointer/Vector/Array type.
func (r *Registry) ElemOf(id ID) ID {
	e, ok := r.entry(id)
	if !ok {
		return IDVoid
	}
	return e.elem
}

// LanesOf returns the lane count of a Vector type.
func (r *Registry) LanesOf(id ID) int {
	e, ok := r.entry(id)
	if !ok {
		return 0
	}
	return e.lanes
}

// ArrayLenOf returns an array type's length and whether it is sized.
func (r *Registry) ArrayLenOf(id ID) (length int64, sized bool) {
	e, ok := r.entry(id)
	if !ok {
		return 0, false
	}
	return e.length, e.hasLen
}

// StructFields returns the fields of a struct type in declaration
// order.
func (r *Registry) StructFields(id ID) []Field {
	e, ok := r.entry(id)
	if !ok {
		return nil
	}
	return e.fields
}

// StructName returns a struct type's declared name.
func (r *Registry) StructName(id ID) string {
	e, ok := r.entry(id)
	if !ok {
		return ""
	}
	return e.name
}

// FunctionInfo returns a function type's return type, parameter types
// and variadic flag.
func (r *Registry) FunctionInfo(id ID) (ret ID, params []ID, variadic bool) {
	e, ok := r.entry(id)
	if !ok {
		return IDVoid, nil, false
	}
	return e.ret, e.params, e.variadic
}

// PointerSpace and PointerQual return a pointer type's memory-space tag
// and qualifier bits.
func (r *Registry) PointerSpace(id ID) MemSpace {
	e, _ := r.entry(id)
	return e.space
}

func (r *Registry) PointerQual(id ID) Qualifier {
	e, _ := r.entry(id)
	return e.qual
}

// SizeOf computes a type's size in bytes. Void has size 0. Composite
// sizes are computed recursively; struct size is not cached but
// re-derived from its fields on every call, which keeps the registry
// append-only and avoids a second mutation path into entry.
func (r *Registry) SizeOf(id ID) int {
	e, ok := r.entry(id)
	if !ok {
		r.report(diag.TypeUnknown, "unknown type id %d", id)
		return 0
	}
	switch e.category {
	case Void:
		return 0
	case Bool:
		return 1
	case Int, UInt, Float:
		return e.width / 8
	case Pointer:
		return 8
	case Vector:
		return r.SizeOf(e.elem) * e.lanes
	case Array:
		if !e.hasLen {
			return 0
		}
		return r.SizeOf(e.elem) * int(e.length)
	case Struct:
		if len(e.fields) == 0 {
			return 0
		}
		last := e.fields[len(e.fields)-1]
		end := int(last.Offset) + r.SizeOf(last.Type)
		align := r.AlignOf(id)
		return int(alignUp(uint32(end), uint32(align)))
	case Function:
		return 0
	default:
		return 0
	}
}

// AlignOf computes a type's alignment in bytes.
func (r *Registry) AlignOf(id ID) int {
	e, ok := r.entry(id)
	if !ok {
		r.report(diag.TypeUnknown, "unknown type id %d", id)
		return 1
	}
	switch e.category {
	case Void, Function:
		return 1
	case Bool:
		return 1
	case Int, UInt, Float:
		return e.width / 8
	case Pointer:
		return 8
	case Vector:
		return r.SizeOf(id)
	case Array:
		return r.AlignOf(e.elem)
	case Struct:
		max := 1
		for _, f := range e.fields {
			if a := r.AlignOf(f.Type); a > max {
				max = a
			}
		}
		return max
	default:
		return 1
	}
}

// IsSigned reports whether id is a signed integer type.
func (r *Registry) IsSigned(id ID) bool {
	return r.CategoryOf(id) == Int
}

// IsInteger reports whether id is Int or UInt.
func (r *Registry) IsInteger(id ID) bool {
	c := r.CategoryOf(id)
	return c == Int || c == UInt
}

// IsFloat reports whether id is a Float type.
func (r *Registry) IsFloat(id ID) bool {
	return r.CategoryOf(id) == Float
}

// CanImplicitlyConvert implements the lossless-only implicit
// conversion rules from §4.3: integer-to-wider-integer of the same
// signedness, integer-to-float (any integer to f32 or wider), and
// float-to-wider-float. Identity conversion is always allowed.
func (r *Registry) CanImplicitlyConvert(from, to ID) bool {
	if from == to {
		return true
	}
	fc, tc := r.CategoryOf(from), r.CategoryOf(to)
	fw, tw := r.WidthOf(from), r.WidthOf(to)
	switch {
	case (fc == Int && tc == Int) || (fc == UInt && tc == UInt):
		return tw >= fw
	case (fc == Int || fc == UInt) && tc == Float:
		return tw >= 32
	case fc == Float && tc == Float:
		return tw >= fw
	default:
		return false
	}
}

// Name renders a human-readable type name, used by the HOIL printer
// and by diagnostics.
func (r *Registry) Name(id ID) string {
	e, ok := r.entry(id)
	if !ok {
		return "<unknown>"
	}
	switch e.category {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int:
		return "i" + itoa(int64(e.width))
	case UInt:
		return "u" + itoa(int64(e.width))
	case Float:
		return "f" + itoa(int64(e.width))
	case Pointer:
		return "ptr<" + r.Name(e.elem) + ">"
	case Vector:
		return "vec<" + r.Name(e.elem) + "," + itoa(int64(e.lanes)) + ">"
	case Array:
		if !e.hasLen {
			return "array<" + r.Name(e.elem) + ">"
		}
		return "array<" + r.Name(e.elem) + "," + itoa(e.length) + ">"
	case Struct:
		if e.name != "" {
			return e.name
		}
		return "struct<anonymous>"
	case Function:
		return "function"
	default:
		return "<unknown>"
	}
}
