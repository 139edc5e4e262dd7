package wasmo

import "fmt"

// blockInfo is the pre-computed metadata for one structured block, keyed in
// codeBody.blocks by the byte offset following the opening opcode and its
// signature immediate.
type blockInfo struct {
	kind            byte // opBlock, opLoop or opIf
	blockType       ValueType
	stackLevel      int // operand depth at block entry
	elsePosition    int // byte after the else opcode, 0 if none
	endPosition     int // byte after the matching end
	preferredTarget int // loops re-enter at their opening opcode
}

type openBlock struct {
	kind       byte
	opcodePos  int // offset of the opening opcode itself
	position   int // offset after the signature immediate; the map key
	stackLevel int
	blockType  ValueType
	elsePos    int
}

// analyze walks a function body once, resolving every structured block and
// simulating the operand stack depth so branches run in constant time. It
// also records the stack and block-nesting maxima used to preallocate the
// activation's stacks.
func analyze(body *codeBody, funcs []compiledFunc, types []*FuncType) error {
	s := newStream(body.code)
	body.blocks = map[int]blockInfo{}

	depth := 0
	var shadow []openBlock

	adjust := func(delta int) {
		depth += delta
		if depth < 0 {
			// Depth only sinks below a block's entry level in code made
			// unreachable by br/return; end and else resynchronize it.
			depth = 0
		}
		if depth > body.maxStack {
			body.maxStack = depth
		}
	}

	for s.remaining() > 0 {
		opcodePos := s.fetchPosition()
		op, err := s.readU8()
		if err != nil {
			return err
		}

		switch op {
		case opUnreachable, opNop, opReturn:

		case opBlock, opLoop:
			blockType, err := readBlockType(s)
			if err != nil {
				return err
			}
			shadow = append(shadow, openBlock{
				kind:       op,
				opcodePos:  opcodePos,
				position:   s.fetchPosition(),
				stackLevel: depth,
				blockType:  blockType,
			})

		case opIf:
			blockType, err := readBlockType(s)
			if err != nil {
				return err
			}
			adjust(-1) // condition
			shadow = append(shadow, openBlock{
				kind:       opIf,
				opcodePos:  opcodePos,
				position:   s.fetchPosition(),
				stackLevel: depth,
				blockType:  blockType,
			})

		case opElse:
			if len(shadow) == 0 || shadow[len(shadow)-1].kind != opIf {
				return fmt.Errorf("else without if at %#x: %w", opcodePos, ErrInvalidBytecode)
			}
			top := &shadow[len(shadow)-1]
			top.elsePos = s.fetchPosition()
			depth = top.stackLevel

		case opEnd:
			if len(shadow) == 0 {
				// Closes the implicit function block.
				continue
			}
			top := shadow[len(shadow)-1]
			shadow = shadow[:len(shadow)-1]
			info := blockInfo{
				kind:         top.kind,
				blockType:    top.blockType,
				stackLevel:   top.stackLevel,
				elsePosition: top.elsePos,
				endPosition:  s.fetchPosition(),
			}
			if top.kind == opLoop {
				info.preferredTarget = top.opcodePos
			} else {
				info.preferredTarget = info.endPosition
			}
			body.blocks[top.position] = info
			depth = top.stackLevel
			if top.blockType != TypeEmpty {
				adjust(1)
			}

		case opBr:
			if _, err := s.readUint(); err != nil {
				return err
			}

		case opBrIf:
			if _, err := s.readUint(); err != nil {
				return err
			}
			adjust(-1)

		case opBrTable:
			n, err := s.readUint()
			if err != nil {
				return err
			}
			for i := uint64(0); i <= n; i++ { // labels plus default
				if _, err := s.readUint(); err != nil {
					return err
				}
			}
			adjust(-1)

		case opCall:
			index, err := s.readUint()
			if err != nil {
				return err
			}
			if int(index) >= len(funcs) {
				return fmt.Errorf("call of function %d at %#x: %w", index, opcodePos, ErrInvalidBytecode)
			}
			typ := types[funcs[index].typeIndex]
			adjust(len(typ.Results) - len(typ.Params))

		case opCallIndirect:
			typeIndex, err := s.readUint()
			if err != nil {
				return err
			}
			if _, err := s.readUint(); err != nil { // table index
				return err
			}
			if int(typeIndex) >= len(types) {
				return fmt.Errorf("call_indirect type %d at %#x: %w", typeIndex, opcodePos, ErrInvalidBytecode)
			}
			typ := types[typeIndex]
			adjust(len(typ.Results) - len(typ.Params) - 1)

		case opDrop:
			adjust(-1)
		case opSelect:
			adjust(-2)

		case opLocalGet, opGlobalGet:
			if _, err := s.readUint(); err != nil {
				return err
			}
			adjust(1)
		case opLocalSet, opGlobalSet:
			if _, err := s.readUint(); err != nil {
				return err
			}
			adjust(-1)
		case opLocalTee:
			if _, err := s.readUint(); err != nil {
				return err
			}

		case opI32Load, opI64Load, opF32Load, opF64Load,
			opI32Load8S, opI32Load8U, opI32Load16S, opI32Load16U,
			opI64Load8S, opI64Load8U, opI64Load16S, opI64Load16U,
			opI64Load32S, opI64Load32U:
			if _, err := s.readMemarg(); err != nil {
				return err
			}

		case opI32Store, opI64Store, opF32Store, opF64Store,
			opI32Store8, opI32Store16,
			opI64Store8, opI64Store16, opI64Store32:
			if _, err := s.readMemarg(); err != nil {
				return err
			}
			adjust(-2)

		case opMemorySize:
			if _, err := s.readUint(); err != nil {
				return err
			}
			adjust(1)
		case opMemoryGrow:
			if _, err := s.readUint(); err != nil {
				return err
			}

		case opI32Const, opI64Const:
			if _, err := s.readSint(); err != nil {
				return err
			}
			adjust(1)
		case opF32Const:
			if _, err := s.readBytes(4); err != nil {
				return ErrUnexpectedEOF
			}
			adjust(1)
		case opF64Const:
			if _, err := s.readBytes(8); err != nil {
				return ErrUnexpectedEOF
			}
			adjust(1)

		case opI32Eqz, opI64Eqz,
			opI32Clz, opI32Ctz, opI32Popcnt,
			opI64Clz, opI64Ctz, opI64Popcnt,
			opI32WrapI64, opI64ExtendI32S, opI64ExtendI32U,
			opI32Extend8S, opI32Extend16S,
			opI64Extend8S, opI64Extend16S, opI64Extend32S:
			// unary, depth unchanged

		case opI32Eq, opI32Ne, opI32LtS, opI32LtU, opI32GtS, opI32GtU,
			opI32LeS, opI32LeU, opI32GeS, opI32GeU,
			opI64Eq, opI64Ne, opI64LtS, opI64LtU, opI64GtS, opI64GtU,
			opI64LeS, opI64LeU, opI64GeS, opI64GeU,
			opI32Add, opI32Sub, opI32Mul, opI32DivS, opI32DivU,
			opI32RemS, opI32RemU, opI32And, opI32Or, opI32Xor,
			opI32Shl, opI32ShrS, opI32ShrU, opI32Rotl, opI32Rotr,
			opI64Add, opI64Sub, opI64Mul, opI64DivS, opI64DivU,
			opI64RemS, opI64RemU, opI64And, opI64Or, opI64Xor,
			opI64Shl, opI64ShrS, opI64ShrU, opI64Rotl, opI64Rotr:
			adjust(-1)

		default:
			// Float arithmetic and conversions carry no immediates; they
			// are skippable here and trap when executed.
			switch {
			case op >= 0x5b && op <= 0x66: // f32/f64 comparisons
				adjust(-1)
			case op >= 0x8b && op <= 0xa6: // f32/f64 arithmetic
				if isFloatBinary(op) {
					adjust(-1)
				}
			case op >= 0xa8 && op <= 0xbf: // float conversions, reinterpretations
			default:
				return fmt.Errorf("opcode %#x at %#x: %w", op, opcodePos, ErrInvalidBytecode)
			}
		}

		if len(shadow) > body.maxBlockLevel {
			body.maxBlockLevel = len(shadow)
		}
	}

	if len(shadow) != 0 {
		return fmt.Errorf("%d unterminated blocks: %w", len(shadow), ErrInvalidBytecode)
	}
	return nil
}

func isFloatBinary(op byte) bool {
	switch op {
	case 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98, // f32 add..copysign
		0xa0, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6: // f64 add..copysign
		return true
	}
	return false
}
