package types

import (
	"testing"

	"github.com/coil-toolchain/coil/pkg/diag"
)

func TestPrimitiveSizesAndAlignment(t *testing.T) {
	r := NewRegistry(diag.NewReporter())

	tests := []struct {
		id        ID
		wantSize  int
		wantAlign int
	}{
		{VoidID(), 0, 1},
		{BoolID(), 1, 1},
		{Int8(), 1, 1},
		{Int32(), 4, 4},
		{Int64(), 8, 8},
		{Float32(), 4, 4},
		{Float64(), 8, 8},
	}
	for _, tt := range tests {
		if got := r.SizeOf(tt.id); got != tt.wantSize {
			t.Errorf("SizeOf(%s) = %d, want %d", r.Name(tt.id), got, tt.wantSize)
		}
		if got := r.AlignOf(tt.id); got != tt.wantAlign {
			t.Errorf("AlignOf(%s) = %d, want %d", r.Name(tt.id), got, tt.wantAlign)
		}
	}
}

// TestStructOffsetsAndAlignment mirrors spec scenario 1: a struct
// {i8, i32} must place the i32 field at offset 4 (aligned up from 1),
// with a struct size of 8 and alignment of 4.
func TestStructOffsetsAndAlignment(t *testing.T) {
	r := NewRegistry(diag.NewReporter())
	id := r.Struct("pair", []ID{Int8(), Int32()}, []string{"a", "b"})

	fields := r.StructFields(id)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Offset != 0 {
		t.Errorf("expected field a at offset 0, got %d", fields[0].Offset)
	}
	if fields[1].Offset != 4 {
		t.Errorf("expected field b at offset 4, got %d", fields[1].Offset)
	}
	if got := r.SizeOf(id); got != 8 {
		t.Errorf("expected struct size 8, got %d", got)
	}
	if got := r.AlignOf(id); got != 4 {
		t.Errorf("expected struct alignment 4, got %d", got)
	}
}

func TestDistinctStructsNeverInterned(t *testing.T) {
	r := NewRegistry(diag.NewReporter())
	a := r.Struct("s", []ID{Int32()}, []string{"x"})
	b := r.Struct("s", []ID{Int32()}, []string{"x"})
	if a == b {
		t.Fatalf("expected two separately declared structs to receive distinct IDs")
	}
}

// TestVectorRejectsZeroLanes mirrors spec scenario 4: a vector type
// with lane count 0 is a TypeInvalid diagnostic, not a panic.
func TestVectorRejectsZeroLanes(t *testing.T) {
	reporter := diag.NewReporter()
	r := NewRegistry(reporter)
	id := r.Vector(Int32(), 0)
	if id != VoidID() {
		t.Fatalf("expected the void id back for an invalid vector, got %v", id)
	}
	if !reporter.HadError() {
		t.Fatalf("expected a TypeInvalid diagnostic")
	}
}

func TestPointerInterning(t *testing.T) {
	r := NewRegistry(diag.NewReporter())
	a := r.Pointer(Int32(), SpaceGeneric, QualNone)
	b := r.Pointer(Int32(), SpaceGeneric, QualNone)
	if a != b {
		t.Fatalf("expected structurally identical pointer types to intern to the same ID")
	}
	c := r.Pointer(Int32(), SpaceGeneric, QualConst)
	if a == c {
		t.Fatalf("expected a const-qualified pointer to intern to a different ID")
	}
}

func TestCanImplicitlyConvert(t *testing.T) {
	r := NewRegistry(diag.NewReporter())
	cases := []struct {
		from, to ID
		want     bool
	}{
		{Int8(), Int32(), true},
		{Int32(), Int8(), false},
		{Int32(), Float32(), true},
		{Float32(), Float64(), true},
		{Float64(), Float32(), false},
		{UInt8(), Int8(), false},
		{Int32(), Int32(), true},
	}
	for _, c := range cases {
		if got := r.CanImplicitlyConvert(c.from, c.to); got != c.want {
			t.Errorf("CanImplicitlyConvert(%s, %s) = %v, want %v", r.Name(c.from), r.Name(c.to), got, c.want)
		}
	}
}

func TestUnknownTypeIDReportsTypeUnknown(t *testing.T) {
	reporter := diag.NewReporter()
	r := NewRegistry(reporter)
	if got := r.CategoryOf(ID(9999)); got != Void {
		t.Fatalf("expected Void for an unregistered id, got %s", got)
	}
	if !reporter.HadError() {
		t.Fatalf("expected a TypeUnknown diagnostic for an unregistered id")
	}
}
