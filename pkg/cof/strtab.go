package cof

import (
	"bytes"

	"github.com/coil-toolchain/coil/pkg/diag"
)

// stringTable accumulates NUL-terminated strings inside the metadata
// section, handing out stable 3-byte-representable byte offsets
// (§4.7's "3 bytes of little-endian string-table offset"). The module
// name always occupies offset 0.
type stringTable struct {
	buf     bytes.Buffer
	offsets map[string]uint32
}

func newStringTable() *stringTable {
	return &stringTable{offsets: make(map[string]uint32)}
}

// intern returns s's byte offset in the table, writing it (with its
// terminating NUL) the first time it is seen.
func (t *stringTable) intern(s string) uint32 {
	if off, ok := t.offsets[s]; ok {
		return off
	}
	off := uint32(t.buf.Len())
	t.buf.WriteString(s)
	t.buf.WriteByte(0)
	t.offsets[s] = off
	return off
}

func (t *stringTable) bytes() []byte { return t.buf.Bytes() }

// readString reads a NUL-terminated string starting at off within buf,
// reporting BinaryCorrupt if no terminator is found before EOF.
func readString(buf []byte, off uint32, reporter *diag.Reporter) (string, bool) {
	if int(off) > len(buf) {
		reportCorrupt(reporter, "string table offset %d past end of metadata section", off)
		return "", false
	}
	end := bytes.IndexByte(buf[off:], 0)
	if end < 0 {
		reportCorrupt(reporter, "unterminated string at metadata offset %d", off)
		return "", false
	}
	return string(buf[off : off+uint32(end)]), true
}

func reportCorrupt(reporter *diag.Reporter, format string, args ...any) {
	if reporter == nil {
		return
	}
	reporter.Reportf(diag.Error, diag.Binary, diag.BinaryCorrupt, diag.Location{}, format, args...)
}
