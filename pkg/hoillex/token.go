// Package hoillex tokenizes HOIL, the human-oriented text form of the
// COIL IR (§4.4). It is a direct generalization of the teacher
// corpus's pkg/lexer: a byte-at-a-time, hand-rolled lexer producing a
// lazy sequence of line/column-tagged tokens, retargeted from C's
// keyword and operator set to HOIL's.
package hoillex

// TokenType identifies the kind of a Token.
type TokenType int

const (
	EOF TokenType = iota
	Illegal

	Ident
	Int
	Hex
	Float
	String

	// Keywords.
	KwModule
	KwType
	KwGlobal
	KwConstant
	KwFunction
	KwExtern
	KwTarget
	KwEntry
	KwPtr
	KwVec
	KwArray
	KwStruct
	KwRequired
	KwPreferred
	KwDevice
	KwConst
	KwVolatile
	KwRestrict
	KwVoid
	KwBool
	KwI8
	KwI16
	KwI32
	KwI64
	KwU8
	KwU16
	KwU32
	KwU64
	KwF16
	KwF32
	KwF64

	// Punctuation.
	Semicolon
	Colon
	Comma
	LParen
	RParen
	LBrace
	RBrace
	LAngle
	RAngle
	Arrow
	Assign
	At
	Dollar
	Ellipsis
)

var names = map[TokenType]string{
	EOF: "EOF", Illegal: "ILLEGAL", Ident: "IDENT", Int: "INT", Hex: "HEX",
	Float: "FLOAT", String: "STRING",
	KwModule: "module", KwType: "type", KwGlobal: "global", KwConstant: "constant",
	KwFunction: "function", KwExtern: "extern", KwTarget: "target", KwEntry: "entry",
	KwPtr: "ptr", KwVec: "vec", KwArray: "array", KwStruct: "struct",
	KwRequired: "required", KwPreferred: "preferred", KwDevice: "device",
	KwConst: "const", KwVolatile: "volatile", KwRestrict: "restrict",
	KwVoid: "void", KwBool: "bool",
	KwI8: "i8", KwI16: "i16", KwI32: "i32", KwI64: "i64",
	KwU8: "u8", KwU16: "u16", KwU32: "u32", KwU64: "u64",
	KwF16: "f16", KwF32: "f32", KwF64: "f64",
	Semicolon: ";", Colon: ":", Comma: ",", LParen: "(", RParen: ")",
	LBrace: "{", RBrace: "}", LAngle: "<", RAngle: ">", Arrow: "->",
	Assign: "=", At: "@", Dollar: "$", Ellipsis: "...",
}

func (t TokenType) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return "UNKNOWN"
}

var keywords = map[string]TokenType{
	"module": KwModule, "MODULE": KwModule, "type": KwType, "global": KwGlobal, "constant": KwConstant,
	"function": KwFunction, "extern": KwExtern, "target": KwTarget, "entry": KwEntry,
	"ptr": KwPtr, "vec": KwVec, "array": KwArray, "struct": KwStruct,
	"required": KwRequired, "preferred": KwPreferred, "device": KwDevice,
	"const": KwConst, "volatile": KwVolatile, "restrict": KwRestrict,
	"void": KwVoid, "bool": KwBool,
	"i8": KwI8, "i16": KwI16, "i32": KwI32, "i64": KwI64,
	"u8": KwU8, "u16": KwU16, "u32": KwU32, "u64": KwU64,
	"f16": KwF16, "f32": KwF32, "f64": KwF64,
}

// LookupIdent returns the keyword token type for ident, or Ident.
func LookupIdent(ident string) TokenType {
	if t, ok := keywords[ident]; ok {
		return t
	}
	return Ident
}

// IsPrimitiveType reports whether t names a primitive type keyword.
func IsPrimitiveType(t TokenType) bool {
	switch t {
	case KwVoid, KwBool, KwI8, KwI16, KwI32, KwI64, KwU8, KwU16, KwU32, KwU64, KwF16, KwF32, KwF64:
		return true
	default:
		return false
	}
}

// Token is one lexical token with its source location, per §4.4.
type Token struct {
	Type    TokenType
	Literal string
	Offset  int
	Line    int
	Column  int
	Length  int
}
