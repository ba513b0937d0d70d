package vm

import (
	"bufio"
)

// ArgDescriptor carries the memory indices of a host call's actual
// arguments.
type ArgDescriptor struct {
	Indices []int
}

// ReturnDescriptor carries the memory index of a host call's result slot.
// Count is always 1 in the current design (spec §3).
type ReturnDescriptor struct {
	Index int
}

// HostFunc is the native side of the host call ABI: it reads/writes through
// the VM's TaggedMemory using the indices the descriptors supply.
type HostFunc func(vm *VM, args ArgDescriptor, ret ReturnDescriptor) error

// execInvoke implements INVOKE (opcode 0x14). It reads, in order: func_idx
// (a memory index whose stored pointer addresses a NUL-terminated name),
// return_idx, argc_idx (a memory index holding a 64-bit argument count n),
// then n further varint indices naming the arguments.
func (vm *VM) execInvoke() {
	funcIdx := vm.decodeOperandInt()
	returnIdx := vm.decodeOperandInt()
	argcIdx := vm.decodeOperandInt()
	n := int(vm.mem.ReadI64(argcIdx))

	args := make([]int, n)
	for i := 0; i < n; i++ {
		args[i] = vm.decodeOperandInt()
	}

	name := vm.readCString(vm.mem.LoadPtr(funcIdx))
	fn, ok := vm.registry.Lookup(name)
	if !ok {
		vm.fail(errUnknownHostFunction)
		return
	}

	// Temporary index slice is scoped to this call only; nilling it here
	// mirrors the reference implementation's free(args) after INVOKE
	// returns, even though Go's GC makes the release implicit.
	err := fn(vm, ArgDescriptor{Indices: args}, ReturnDescriptor{Index: returnIdx})
	args = nil
	if err != nil {
		vm.fail(errHostFunctionFailed)
	}
}

// readCString resolves ptr (a heap token or a plain data offset) and scans
// forward for a NUL terminator.
func (vm *VM) readCString(ptr uint64) string {
	if buf, ok := vm.heapLookup(ptr); ok {
		for i, b := range buf {
			if b == 0 {
				return string(buf[:i])
			}
		}
		return string(buf)
	}

	i := int(ptr)
	end := i
	for end < vm.mem.Len() && vm.mem.data[end] != 0 {
		end++
	}
	return string(vm.mem.data[i:end])
}

// registerBuiltins installs the single built-in host function the spec
// requires at startup.
func registerBuiltins(r *Registry, stdout *bufio.Writer) {
	r.Register("print", func(vm *VM, args ArgDescriptor, ret ReturnDescriptor) error {
		if len(args.Indices) < 1 {
			return errHostFunctionFailed
		}
		s := vm.readCString(vm.mem.LoadPtr(args.Indices[0]))
		n, err := stdout.WriteString(s)
		if err != nil {
			return errIO
		}
		stdout.Flush()
		vm.mem.WriteFromI64(ret.Index, vm.mem.Tag(ret.Index), int64(n))
		return nil
	})
}
