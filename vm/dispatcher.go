package vm

import "runtime"

// recoverFatal turns a panic raised by (*VM).fail, a bare panic(errXxx) from
// the kernel or typed memory, or a genuine Go runtime fault into the
// function's named error return. A Go runtime fault (such as an out-of-range
// slice access) becomes errSegmentationFault; any other panic value that is
// an error (every path in this package panics with one of the sentinel
// errors in errors.go) is used directly; anything else falls back to
// vm.errcode, then to errSegmentationFault.
func recoverFatal(vm *VM, err *error) {
	if r := recover(); r != nil {
		if _, ok := r.(runtime.Error); ok {
			*err = errSegmentationFault
		} else if e, ok := r.(error); ok {
			*err = e
		} else if vm.errcode != nil {
			*err = vm.errcode
		} else {
			*err = errSegmentationFault
		}
	}
}

// Run executes instructions from the current program counter until the
// code region is exhausted or a fatal error occurs — the single fatal path
// spec §7 asks for.
func (vm *VM) Run() (err error) {
	defer recoverFatal(vm, &err)

	for vm.pc < len(vm.code) {
		vm.execNextInstruction()
	}
	return nil
}

// Step executes exactly one instruction, for tests and embedders that want
// to single-step. It reports errProgramFinished once pc has reached the end
// of the code region.
func (vm *VM) Step() (err error) {
	defer recoverFatal(vm, &err)

	if vm.pc >= len(vm.code) {
		return errProgramFinished
	}
	vm.execNextInstruction()
	return nil
}

func (vm *VM) execNextInstruction() {
	op := Opcode(vm.code[vm.pc])
	vm.pc++

	if vm.trace != nil {
		vm.trace.Printf("pc=%d op=%s", vm.pc-1, op)
	}

	switch op {
	case OpNop:
		// no-op

	case OpLoad:
		src, dst := vm.decodeOperandInt(), vm.decodeOperandInt()
		n := vm.mem.Tag(dst).Width()
		vm.mem.WriteBytes(dst, vm.mem.Bytes(src, n), n)

	case OpStore:
		ptrIdx, src := vm.decodeOperandInt(), vm.decodeOperandInt()
		n := vm.mem.Tag(src).Width()
		target := vm.mem.LoadPtr(ptrIdx)
		vm.storeThroughPointer(target, vm.mem.Bytes(src, n), n)

	case OpNew:
		dstPtr, sizeIdx := vm.decodeOperandInt(), vm.decodeOperandInt()
		size := vm.mem.ReadI64(sizeIdx)
		token := vm.heapAlloc(size)
		vm.mem.StorePtr(dstPtr, token)

	case OpFree:
		ptrIdx := vm.decodeOperandInt()
		ptr := vm.mem.LoadPtr(ptrIdx)
		if ptr < heapTokenBase {
			vm.fail(errInvalidFree)
			return
		}
		vm.heapFree(ptr)

	case OpPtr:
		index, dst := vm.decodeOperandInt(), vm.decodeOperandInt()
		vm.mem.StorePtr(dst, uint64(index))

	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpShl, OpShr, OpSar, OpAnd, OpOr, OpXor:
		result, op1, op2 := vm.decodeOperandInt(), vm.decodeOperandInt(), vm.decodeOperandInt()
		vm.binaryArith(op, result, op1, op2)

	case OpNeg:
		result, operand1 := vm.decodeOperandInt(), vm.decodeOperandInt()
		vm.unaryNeg(result, operand1)

	case OpIf:
		condIdx, tIdx, fIdx := vm.decodeOperandInt(), vm.decodeOperandInt(), vm.decodeOperandInt()
		cond := vm.mem.ReadI8(condIdx)
		if cond != 0 {
			vm.pc = int(vm.mem.ReadI64(tIdx))
		} else {
			vm.pc = int(vm.mem.ReadI64(fIdx))
		}

	case OpCmp:
		result, compareOpIdx, op1, op2 := vm.decodeOperandInt(), vm.decodeOperandInt(), vm.decodeOperandInt(), vm.decodeOperandInt()
		vm.cmp(result, compareOpIdx, op1, op2)

	case OpInvoke:
		vm.execInvoke()

	case OpReturn, OpThrow, OpWide:
		if vm.trace != nil {
			vm.trace.Printf("%s is reserved; ignored", op)
		}

	case OpGoto:
		offsetIdx := vm.decodeOperandInt()
		vm.pc = int(vm.mem.ReadI64(offsetIdx))

	default:
		vm.fail(errUnknownInstruction)
	}
}

// storeThroughPointer writes n bytes to the address target names, which is
// either a heap token (from NEW) or a plain data-region offset (from PTR).
func (vm *VM) storeThroughPointer(target uint64, src []byte, n int) {
	if buf, ok := vm.heapLookup(target); ok {
		if n > len(buf) {
			vm.fail(errSegmentationFault)
			return
		}
		copy(buf, src[:n])
		return
	}
	vm.mem.WriteBytes(int(target), src, n)
}
