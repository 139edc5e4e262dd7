package wasmo

import (
	"fmt"
	"math"
	"math/bits"
)

// frame is the state of one activation: the program counter, the untagged
// operand stack and the block stack. Calls recurse on the host stack.
type frame struct {
	m      *Module
	body   *codeBody
	pc     *stream
	stack  []uint64
	blocks []int
	locals []uint64
}

func (f *frame) push(v uint64) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() (uint64, error) {
	if len(f.stack) == 0 {
		return 0, fmt.Errorf("operand stack underflow: %w", ErrInternalInconsistency)
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

func (f *frame) popU32() (uint32, error) {
	v, err := f.pop()
	return uint32(v), err
}

// pop2U32 pops b then a, the operand order of every binary i32 operator.
func (f *frame) pop2U32() (a, b uint32, err error) {
	if b, err = f.popU32(); err != nil {
		return
	}
	a, err = f.popU32()
	return
}

func (f *frame) pop2U64() (a, b uint64, err error) {
	if b, err = f.pop(); err != nil {
		return
	}
	a, err = f.pop()
	return
}

// last gives in-place access to the stack top for unary operators.
func (f *frame) last() (*uint64, error) {
	if len(f.stack) == 0 {
		return nil, fmt.Errorf("operand stack underflow: %w", ErrInternalInconsistency)
	}
	return &f.stack[len(f.stack)-1], nil
}

func (f *frame) pushBool(v bool) {
	if v {
		f.push(1)
	} else {
		f.push(0)
	}
}

// truncate resizes the operand stack to the depth recorded for a block
// entry, padding with zeros if unreachable code left it shallower.
func (f *frame) truncate(n int) {
	for len(f.stack) < n {
		f.stack = append(f.stack, 0)
	}
	f.stack = f.stack[:n]
}

func (f *frame) memory() (*Memory, error) {
	if f.m.memory == nil {
		return nil, ErrOutOfMemory
	}
	return f.m.memory, nil
}

// branch unwinds to the block depth entries down the block stack, carrying
// the top operand when the target block yields a value, and transfers
// control to the block's preferred target. A depth reaching past the
// outermost block terminates the activation.
func (f *frame) branch(depth int) (done bool, err error) {
	if depth >= len(f.blocks) {
		return true, nil
	}
	f.blocks = f.blocks[:len(f.blocks)-depth]
	pos := f.blocks[len(f.blocks)-1]
	f.blocks = f.blocks[:len(f.blocks)-1]

	info, ok := f.body.blocks[pos]
	if !ok {
		return false, fmt.Errorf("no block at %#x: %w", pos, ErrInternalInconsistency)
	}
	if info.blockType == TypeEmpty {
		f.truncate(info.stackLevel)
	} else {
		top, err := f.pop()
		if err != nil {
			return false, err
		}
		f.truncate(info.stackLevel)
		f.push(top)
	}
	f.pc.setPosition(info.preferredTarget)
	return false, nil
}

// execute interprets fn's body against locals until a return, a trap, or
// the implicit end of the outermost block.
func (m *Module) execute(fn *Function, locals []uint64) (Value, error) {
	body := fn.body
	f := &frame{
		m:      m,
		body:   body,
		pc:     newStream(body.code),
		stack:  make([]uint64, 0, body.maxStack),
		blocks: make([]int, 0, body.maxBlockLevel),
		locals: locals,
	}

dispatch:
	for {
		op, err := f.pc.readU8()
		if err != nil {
			return Empty(), fmt.Errorf("pc past end of body: %w", ErrInternalInconsistency)
		}

		switch op {
		case opNop:

		case opUnreachable:
			return Empty(), fmt.Errorf("unreachable executed: %w", ErrInvalidBytecode)

		case opBlock, opLoop:
			if _, err := readBlockType(f.pc); err != nil {
				return Empty(), err
			}
			f.blocks = append(f.blocks, f.pc.fetchPosition())

		case opIf:
			if _, err := readBlockType(f.pc); err != nil {
				return Empty(), err
			}
			position := f.pc.fetchPosition()
			cc, err := f.pop()
			if err != nil {
				return Empty(), err
			}
			if cc != 0 {
				f.blocks = append(f.blocks, position)
				continue
			}
			info, ok := body.blocks[position]
			if !ok {
				return Empty(), fmt.Errorf("no block at %#x: %w", position, ErrInternalInconsistency)
			}
			if info.elsePosition != 0 {
				f.blocks = append(f.blocks, position)
				f.pc.setPosition(info.elsePosition)
			} else {
				f.pc.setPosition(info.endPosition)
			}

		case opElse:
			// The truthy arm is complete; behave like br 0 to the end.
			done, err := f.branch(0)
			if err != nil {
				return Empty(), err
			}
			if done {
				break dispatch
			}

		case opEnd:
			if len(f.blocks) == 0 {
				break dispatch
			}
			f.blocks = f.blocks[:len(f.blocks)-1]

		case opBr:
			depth, err := f.pc.readUint()
			if err != nil {
				return Empty(), err
			}
			done, err := f.branch(int(depth))
			if err != nil {
				return Empty(), err
			}
			if done {
				break dispatch
			}

		case opBrIf:
			depth, err := f.pc.readUint()
			if err != nil {
				return Empty(), err
			}
			cc, err := f.pop()
			if err != nil {
				return Empty(), err
			}
			if cc != 0 {
				done, err := f.branch(int(depth))
				if err != nil {
					return Empty(), err
				}
				if done {
					break dispatch
				}
			}

		case opBrTable:
			index, err := f.popU32()
			if err != nil {
				return Empty(), err
			}
			n, err := f.pc.readUint()
			if err != nil {
				return Empty(), err
			}
			if uint64(index) > n {
				index = uint32(n) // default label follows the vector
			}
			var depth uint64
			for i := uint64(0); i <= uint64(index); i++ {
				if depth, err = f.pc.readUint(); err != nil {
					return Empty(), err
				}
			}
			done, err := f.branch(int(depth))
			if err != nil {
				return Empty(), err
			}
			if done {
				break dispatch
			}

		case opReturn:
			break dispatch

		case opCall:
			index, err := f.pc.readUint()
			if err != nil {
				return Empty(), err
			}
			if int(index) >= len(m.funcs) {
				return Empty(), fmt.Errorf("call of function %d: %w", index, ErrInternalInconsistency)
			}
			callee := &m.funcs[index]
			nparams := len(callee.typ.Params)
			if len(f.stack) < nparams {
				return Empty(), fmt.Errorf("call %s: %w", callee.name, ErrInternalInconsistency)
			}
			// Parameters are copied out of the caller's stack into fresh
			// callee arguments and popped before the callee runs, so the
			// two never alias.
			cells := f.stack[len(f.stack)-nparams:]

			var result Value
			if callee.host != nil {
				args := make([]Value, nparams)
				for i, t := range callee.typ.Params {
					args[i] = valueFromBits(t, cells[i])
				}
				f.stack = f.stack[:len(f.stack)-nparams]
				result, err = m.hostCall(callee, args)
			} else {
				calleeLocals := make([]uint64, nparams+len(callee.body.locals))
				copy(calleeLocals, cells)
				f.stack = f.stack[:len(f.stack)-nparams]
				result, err = m.executeListened(callee, calleeLocals)
			}
			if err != nil {
				return Empty(), err
			}
			if !result.IsEmpty() {
				f.push(result.bits)
			}

		case opDrop:
			if _, err := f.pop(); err != nil {
				return Empty(), err
			}

		case opSelect:
			cc, err := f.pop()
			if err != nil {
				return Empty(), err
			}
			b, err := f.pop()
			if err != nil {
				return Empty(), err
			}
			a, err := f.pop()
			if err != nil {
				return Empty(), err
			}
			if cc != 0 {
				f.push(a)
			} else {
				f.push(b)
			}

		case opLocalGet:
			index, err := f.pc.readUint()
			if err != nil {
				return Empty(), err
			}
			if int(index) >= len(f.locals) {
				return Empty(), fmt.Errorf("local %d: %w", index, ErrInternalInconsistency)
			}
			f.push(f.locals[index])

		case opLocalSet:
			index, err := f.pc.readUint()
			if err != nil {
				return Empty(), err
			}
			if int(index) >= len(f.locals) {
				return Empty(), fmt.Errorf("local %d: %w", index, ErrInternalInconsistency)
			}
			v, err := f.pop()
			if err != nil {
				return Empty(), err
			}
			f.locals[index] = v

		case opLocalTee:
			index, err := f.pc.readUint()
			if err != nil {
				return Empty(), err
			}
			if int(index) >= len(f.locals) {
				return Empty(), fmt.Errorf("local %d: %w", index, ErrInternalInconsistency)
			}
			v, err := f.last()
			if err != nil {
				return Empty(), err
			}
			f.locals[index] = *v

		case opGlobalGet:
			index, err := f.pc.readUint()
			if err != nil {
				return Empty(), err
			}
			if int(index) >= len(m.globals) {
				return Empty(), fmt.Errorf("global %d: %w", index, ErrInternalInconsistency)
			}
			f.push(m.globals[index].bits)

		case opGlobalSet:
			index, err := f.pc.readUint()
			if err != nil {
				return Empty(), err
			}
			if int(index) >= len(m.globals) {
				return Empty(), fmt.Errorf("global %d: %w", index, ErrInternalInconsistency)
			}
			v, err := f.pop()
			if err != nil {
				return Empty(), err
			}
			m.globals[index].bits = v

		case opI32Load, opI64Load32U:
			v, err := f.load(4)
			if err != nil {
				return Empty(), err
			}
			f.push(v)
		case opI64Load:
			v, err := f.load(8)
			if err != nil {
				return Empty(), err
			}
			f.push(v)
		case opI32Load8U, opI64Load8U:
			v, err := f.load(1)
			if err != nil {
				return Empty(), err
			}
			f.push(v)
		case opI32Load16U, opI64Load16U:
			v, err := f.load(2)
			if err != nil {
				return Empty(), err
			}
			f.push(v)
		case opI32Load8S:
			v, err := f.load(1)
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(uint32(int32(int8(v)))))
		case opI32Load16S:
			v, err := f.load(2)
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(uint32(int32(int16(v)))))
		case opI64Load8S:
			v, err := f.load(1)
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(int64(int8(v))))
		case opI64Load16S:
			v, err := f.load(2)
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(int64(int16(v))))
		case opI64Load32S:
			v, err := f.load(4)
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(int64(int32(uint32(v)))))

		case opI32Store, opI64Store32:
			if err := f.store(4); err != nil {
				return Empty(), err
			}
		case opI64Store:
			if err := f.store(8); err != nil {
				return Empty(), err
			}
		case opI32Store8, opI64Store8:
			if err := f.store(1); err != nil {
				return Empty(), err
			}
		case opI32Store16, opI64Store16:
			if err := f.store(2); err != nil {
				return Empty(), err
			}

		case opMemorySize:
			if _, err := f.pc.readUint(); err != nil {
				return Empty(), err
			}
			mem, err := f.memory()
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(mem.Size()))

		case opMemoryGrow:
			if _, err := f.pc.readUint(); err != nil {
				return Empty(), err
			}
			mem, err := f.memory()
			if err != nil {
				return Empty(), err
			}
			delta, err := f.popU32()
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(uint32(mem.Grow(delta))))

		case opI32Const:
			v, err := f.pc.readSint()
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(uint32(int32(v))))
		case opI64Const:
			v, err := f.pc.readSint()
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(v))

		case opI32Eqz:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			if uint32(*last) == 0 {
				*last = 1
			} else {
				*last = 0
			}
		case opI64Eqz:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			if *last == 0 {
				*last = 1
			} else {
				*last = 0
			}

		case opI32Eq, opI32Ne, opI32LtS, opI32LtU, opI32GtS, opI32GtU,
			opI32LeS, opI32LeU, opI32GeS, opI32GeU:
			a, b, err := f.pop2U32()
			if err != nil {
				return Empty(), err
			}
			f.pushBool(compareI32(op, a, b))

		case opI64Eq, opI64Ne, opI64LtS, opI64LtU, opI64GtS, opI64GtU,
			opI64LeS, opI64LeU, opI64GeS, opI64GeU:
			a, b, err := f.pop2U64()
			if err != nil {
				return Empty(), err
			}
			f.pushBool(compareI64(op, a, b))

		case opI32Clz:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(bits.LeadingZeros32(uint32(*last)))
		case opI32Ctz:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(bits.TrailingZeros32(uint32(*last)))
		case opI32Popcnt:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(bits.OnesCount32(uint32(*last)))

		case opI64Clz:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(bits.LeadingZeros64(*last))
		case opI64Ctz:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(bits.TrailingZeros64(*last))
		case opI64Popcnt:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(bits.OnesCount64(*last))

		case opI32Add, opI32Sub, opI32Mul, opI32And, opI32Or, opI32Xor,
			opI32Shl, opI32ShrS, opI32ShrU, opI32Rotl, opI32Rotr:
			a, b, err := f.pop2U32()
			if err != nil {
				return Empty(), err
			}
			f.push(uint64(arithI32(op, a, b)))

		case opI32DivS:
			a, b, err := f.pop2U32()
			if err != nil {
				return Empty(), err
			}
			if b == 0 {
				return Empty(), ErrDivideByZero
			}
			if int32(a) == math.MinInt32 && int32(b) == -1 {
				return Empty(), ErrIntegerOverflow
			}
			f.push(uint64(uint32(int32(a) / int32(b))))
		case opI32DivU:
			a, b, err := f.pop2U32()
			if err != nil {
				return Empty(), err
			}
			if b == 0 {
				return Empty(), ErrDivideByZero
			}
			f.push(uint64(a / b))
		case opI32RemS:
			a, b, err := f.pop2U32()
			if err != nil {
				return Empty(), err
			}
			if b == 0 {
				return Empty(), ErrDivideByZero
			}
			if int32(b) == -1 {
				f.push(0)
			} else {
				f.push(uint64(uint32(int32(a) % int32(b))))
			}
		case opI32RemU:
			a, b, err := f.pop2U32()
			if err != nil {
				return Empty(), err
			}
			if b == 0 {
				return Empty(), ErrDivideByZero
			}
			f.push(uint64(a % b))

		case opI64Add, opI64Sub, opI64Mul, opI64And, opI64Or, opI64Xor,
			opI64Shl, opI64ShrS, opI64ShrU, opI64Rotl, opI64Rotr:
			a, b, err := f.pop2U64()
			if err != nil {
				return Empty(), err
			}
			f.push(arithI64(op, a, b))

		case opI64DivS:
			a, b, err := f.pop2U64()
			if err != nil {
				return Empty(), err
			}
			if b == 0 {
				return Empty(), ErrDivideByZero
			}
			if int64(a) == math.MinInt64 && int64(b) == -1 {
				return Empty(), ErrIntegerOverflow
			}
			f.push(uint64(int64(a) / int64(b)))
		case opI64DivU:
			a, b, err := f.pop2U64()
			if err != nil {
				return Empty(), err
			}
			if b == 0 {
				return Empty(), ErrDivideByZero
			}
			f.push(a / b)
		case opI64RemS:
			a, b, err := f.pop2U64()
			if err != nil {
				return Empty(), err
			}
			if b == 0 {
				return Empty(), ErrDivideByZero
			}
			if int64(b) == -1 {
				f.push(0)
			} else {
				f.push(uint64(int64(a) % int64(b)))
			}
		case opI64RemU:
			a, b, err := f.pop2U64()
			if err != nil {
				return Empty(), err
			}
			if b == 0 {
				return Empty(), ErrDivideByZero
			}
			f.push(a % b)

		case opI32WrapI64:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last &= 0xffffffff
		case opI64ExtendI32S:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(int64(int32(uint32(*last))))
		case opI64ExtendI32U:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(uint32(*last))

		case opI32Extend8S:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(uint32(int32(int8(*last))))
		case opI32Extend16S:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(uint32(int32(int16(*last))))
		case opI64Extend8S:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(int64(int8(*last)))
		case opI64Extend16S:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(int64(int16(*last)))
		case opI64Extend32S:
			last, err := f.last()
			if err != nil {
				return Empty(), err
			}
			*last = uint64(int64(int32(uint32(*last))))

		default:
			return Empty(), fmt.Errorf("opcode %#x: %w", op, ErrInvalidBytecode)
		}
	}

	if len(body.results) > 0 {
		cell, err := f.pop()
		if err != nil {
			return Empty(), err
		}
		switch body.results[0] {
		case TypeI32:
			return I32(int32(uint32(cell))), nil
		case TypeI64:
			return I64(int64(cell)), nil
		default:
			return Empty(), fmt.Errorf("%s result: %w", body.results[0], ErrInvalidParameter)
		}
	}
	return Empty(), nil
}

// load pops the base address, reads size little-endian bytes at
// base+offset and returns them zero-extended. Callers apply sign extension.
func (f *frame) load(size int) (uint64, error) {
	arg, err := f.pc.readMemarg()
	if err != nil {
		return 0, err
	}
	mem, err := f.memory()
	if err != nil {
		return 0, err
	}
	base, err := f.popU32()
	if err != nil {
		return 0, err
	}
	addr := arg.offsetBy(base)
	switch size {
	case 1:
		v, err := mem.loadU8(addr)
		return uint64(v), err
	case 2:
		v, err := mem.loadU16(addr)
		return uint64(v), err
	case 4:
		v, err := mem.loadU32(addr)
		return uint64(v), err
	default:
		v, err := mem.loadU64(addr)
		return v, err
	}
}

// store pops the value then the base address and writes the low size bytes
// little-endian at base+offset.
func (f *frame) store(size int) error {
	arg, err := f.pc.readMemarg()
	if err != nil {
		return err
	}
	mem, err := f.memory()
	if err != nil {
		return err
	}
	val, err := f.pop()
	if err != nil {
		return err
	}
	base, err := f.popU32()
	if err != nil {
		return err
	}
	addr := arg.offsetBy(base)
	switch size {
	case 1:
		err = mem.storeU8(addr, byte(val))
	case 2:
		err = mem.storeU16(addr, uint16(val))
	case 4:
		err = mem.storeU32(addr, uint32(val))
	default:
		err = mem.storeU64(addr, val)
	}
	if err != nil {
		return err
	}
	f.m.storeObserved(size)
	return nil
}

func compareI32(op byte, a, b uint32) bool {
	switch op {
	case opI32Eq:
		return a == b
	case opI32Ne:
		return a != b
	case opI32LtS:
		return int32(a) < int32(b)
	case opI32LtU:
		return a < b
	case opI32GtS:
		return int32(a) > int32(b)
	case opI32GtU:
		return a > b
	case opI32LeS:
		return int32(a) <= int32(b)
	case opI32LeU:
		return a <= b
	case opI32GeS:
		return int32(a) >= int32(b)
	default:
		return a >= b
	}
}

func compareI64(op byte, a, b uint64) bool {
	switch op {
	case opI64Eq:
		return a == b
	case opI64Ne:
		return a != b
	case opI64LtS:
		return int64(a) < int64(b)
	case opI64LtU:
		return a < b
	case opI64GtS:
		return int64(a) > int64(b)
	case opI64GtU:
		return a > b
	case opI64LeS:
		return int64(a) <= int64(b)
	case opI64LeU:
		return a <= b
	case opI64GeS:
		return int64(a) >= int64(b)
	default:
		return a >= b
	}
}

func arithI32(op byte, a, b uint32) uint32 {
	switch op {
	case opI32Add:
		return a + b
	case opI32Sub:
		return a - b
	case opI32Mul:
		return a * b
	case opI32And:
		return a & b
	case opI32Or:
		return a | b
	case opI32Xor:
		return a ^ b
	case opI32Shl:
		return a << (b & 31)
	case opI32ShrS:
		return uint32(int32(a) >> (b & 31))
	case opI32ShrU:
		return a >> (b & 31)
	case opI32Rotl:
		return bits.RotateLeft32(a, int(b&31))
	default: // opI32Rotr
		return bits.RotateLeft32(a, -int(b&31))
	}
}

func arithI64(op byte, a, b uint64) uint64 {
	switch op {
	case opI64Add:
		return a + b
	case opI64Sub:
		return a - b
	case opI64Mul:
		return a * b
	case opI64And:
		return a & b
	case opI64Or:
		return a | b
	case opI64Xor:
		return a ^ b
	case opI64Shl:
		return a << (b & 63)
	case opI64ShrS:
		return uint64(int64(a) >> (b & 63))
	case opI64ShrU:
		return a >> (b & 63)
	case opI64Rotl:
		return bits.RotateLeft64(a, int(b&63))
	default: // opI64Rotr
		return bits.RotateLeft64(a, -int(b&63))
	}
}
