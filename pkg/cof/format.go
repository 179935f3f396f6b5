// Package cof implements the COF binary codec (§4.7) and the
// instruction decoder (§4.8): encoding an *ir.Module to the COIL
// Object Format and decoding it back. It generalizes the teacher
// corpus's pkg/asm binary-writer idiom (fixed header, section table,
// little-endian fixed-width fields) and gmofishsauce-wut4's
// lang/yld/output.go section/string-table layout to COIL's format.
package cof

const (
	magic        = "COIL"
	headerSize   = 16
	sectionEntry = 12 // type u32, offset u32, size u32
)

// SectionType enumerates the eight COF section kinds (§4.7).
type SectionType uint32

const (
	SecHeader   SectionType = 0
	SecType     SectionType = 1
	SecFunction SectionType = 2
	SecGlobal   SectionType = 3
	SecConstant SectionType = 4
	SecCode     SectionType = 5
	SecReloc    SectionType = 6
	SecMetadata SectionType = 7
)

// Version is the COF format version this codec reads and writes.
var Version = struct{ Major, Minor, Patch byte }{1, 0, 0}

// Operand kind tags on the wire (§4.7).
const (
	tagRegister byte = 1
	tagImm      byte = 2
	tagBlock    byte = 3
	tagFunc     byte = 4
	tagGlobal   byte = 5
	tagMem      byte = 6
)

// sectionHeader is one entry of the section table.
type sectionHeader struct {
	Type   SectionType
	Offset uint32
	Size   uint32
}
