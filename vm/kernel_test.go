package vm

import (
	"bytes"
	"testing"
)

func TestAddI32(t *testing.T) {
	// S3: tags (2,2,2) at offsets {0->r, 4->a, 8->b}; a=7, b=5; ADD r a b.
	data := make([]byte, 12)
	tags := make([]byte, 6)
	m := NewTaggedMemory(data, tags)
	m.SetTag(0, TagI32)
	m.SetTag(4, TagI32)
	m.SetTag(8, TagI32)
	m.WriteI32(4, 7)
	m.WriteI32(8, 5)

	vm := New(m, []byte{byte(OpAdd), 0x00, 0x04, 0x08}, new(bytes.Buffer))
	assert(t, vm.Run() == nil, "program should run cleanly")
	assert(t, m.ReadI32(0) == 12, "u32@0 = %d, want 12", m.ReadI32(0))
}

func TestAddPromotionWidensThenTruncates(t *testing.T) {
	// Property 4: ADD r a b with tags (2,1,3) reads a/b as 64-bit and writes
	// a 32-bit truncation of the sum at r.
	data := make([]byte, 17)
	tags := make([]byte, 9)
	m := NewTaggedMemory(data, tags)
	m.SetTag(0, TagI32) // result
	m.SetTag(4, TagI8)  // operand1
	m.SetTag(9, TagI64) // operand2 (8 bytes at 9..16, clear of the other two cells)
	m.WriteI8(4, 3)
	m.WriteI64(9, 10)

	vm := New(m, []byte{byte(OpAdd), 0x00, 0x04, 0x09}, new(bytes.Buffer))
	assert(t, vm.Run() == nil, "program should run cleanly")
	assert(t, m.ReadI32(0) == 13, "u32@0 = %d, want 13", m.ReadI32(0))
}

func TestCmpGreaterThan(t *testing.T) {
	// S4: mirrors S3, extra byte at offset 12 tagged I8 holding compare-op 4 (gt).
	data := make([]byte, 13)
	tags := make([]byte, 7)
	m := NewTaggedMemory(data, tags)
	m.SetTag(0, TagI32)
	m.SetTag(4, TagI32)
	m.SetTag(8, TagI32)
	m.SetTag(12, TagI8)
	m.WriteI32(4, 7)
	m.WriteI32(8, 5)
	m.WriteI8(12, int8(CmpGt))

	vm := New(m, []byte{byte(OpCmp), 0x00, 0x0C, 0x04, 0x08}, new(bytes.Buffer))
	assert(t, vm.Run() == nil, "program should run cleanly")
	assert(t, m.ReadI32(0) == 1, "u32@0 = %d, want 1", m.ReadI32(0))
}

func TestBitwiseOnFloatIsTypeError(t *testing.T) {
	data := make([]byte, 12)
	tags := make([]byte, 6)
	m := NewTaggedMemory(data, tags)
	m.SetTag(0, TagI32)
	m.SetTag(4, TagF32)
	m.SetTag(8, TagI32)

	vm := New(m, []byte{byte(OpAnd), 0x00, 0x04, 0x08}, new(bytes.Buffer))
	err := vm.Run()
	assert(t, err == errTypeMismatch, "expected errTypeMismatch, got %v", err)
}

func TestDivisionByZeroIsFatal(t *testing.T) {
	data := make([]byte, 12)
	tags := make([]byte, 6)
	m := NewTaggedMemory(data, tags)
	m.SetTag(0, TagI32)
	m.SetTag(4, TagI32)
	m.SetTag(8, TagI32)
	m.WriteI32(4, 10)
	m.WriteI32(8, 0)

	vm := New(m, []byte{byte(OpDiv), 0x00, 0x04, 0x08}, new(bytes.Buffer))
	err := vm.Run()
	assert(t, err == errDivisionByZero, "expected errDivisionByZero, got %v", err)
}
