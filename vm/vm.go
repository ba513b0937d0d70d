package vm

import (
	"bufio"
	"io"
	"log"
)

// heapTokenBase separates NEW-allocated heap tokens from plain data-region
// offsets. A pointer value below this threshold addresses vm.mem.data
// directly (as PTR produces); a value at or above it is a key into vm.heap.
// Image data sizes in this exercise never approach this bound.
const heapTokenBase = uint64(1) << 40

// VM is one bytecode virtual machine instance: its typed memory, its host
// function registry, its code region, and its program counter. Nothing here
// is package-level state — the reference implementation's process-global
// memory pointer (spec §9) is retired in favor of this struct, threaded
// explicitly through every primitive, so multiple VMs can coexist.
type VM struct {
	mem      *TaggedMemory
	registry *Registry
	code     []byte
	pc       int

	heap    map[uint64][]byte
	nextPtr uint64

	errcode error

	stdout *bufio.Writer
	trace  *log.Logger // debug trace writer; nil when tracing is off
}

// New constructs a VM over an already-parsed image. Callers normally reach
// this indirectly through LoadImage.
func New(mem *TaggedMemory, code []byte, out io.Writer) *VM {
	vm := &VM{
		mem:      mem,
		registry: NewRegistry(),
		code:     code,
		heap:     make(map[uint64][]byte),
		nextPtr:  heapTokenBase,
		stdout:   bufio.NewWriter(out),
	}
	registerBuiltins(vm.registry, vm.stdout)
	return vm
}

// SetTrace enables per-instruction debug tracing to w, or disables it when
// w is nil.
func (vm *VM) SetTrace(w io.Writer) {
	if w == nil {
		vm.trace = nil
		return
	}
	vm.trace = log.New(w, "", 0)
}

// Registry exposes the host function table so embedders can extend it
// beyond the built-in print.
func (vm *VM) Registry() *Registry { return vm.registry }

// fail records the fatal error and unwinds the dispatch loop. The
// dispatcher, the host bridge, and the kernel's division checks call it;
// typed memory and the kernel's type checks panic with their sentinel
// directly. Both routes end in the same deferred recover in Run/Step.
func (vm *VM) fail(err error) {
	vm.errcode = err
	panic(err)
}

// decodeOperandInt reads one varint operand from the code region at pc,
// advancing pc past it, and returns it as an int memory index.
func (vm *VM) decodeOperandInt() int {
	v, next, err := decodeIndex(vm.code, vm.pc)
	if err != nil {
		vm.fail(errOperandDecode)
	}
	vm.pc = next
	return int(v)
}

// heapAlloc reserves n bytes and returns the heap token addressing them.
func (vm *VM) heapAlloc(n int64) uint64 {
	buf := make([]byte, n)
	token := vm.nextPtr
	vm.nextPtr++
	vm.heap[token] = buf
	return token
}

// heapFree releases the allocation named by token. A token this VM never
// handed out, or one already freed, is reported rather than left as
// undefined behavior (spec §9 design notes).
func (vm *VM) heapFree(token uint64) {
	if _, ok := vm.heap[token]; !ok {
		vm.fail(errInvalidFree)
		return
	}
	delete(vm.heap, token)
}

// heapLookup resolves a heap token to its backing buffer.
func (vm *VM) heapLookup(token uint64) ([]byte, bool) {
	buf, ok := vm.heap[token]
	return buf, ok
}

// Close flushes any buffered output. Typed memory and the registry are
// ordinary Go values collected by the GC; there is no separate teardown
// order to honor beyond flushing the stdout buffer last, mirroring the
// reference implementation's "destroyed last" lifecycle note for memory.
func (vm *VM) Close() error {
	return vm.stdout.Flush()
}
