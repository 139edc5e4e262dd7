package wasmo

// Opcodes of the integer MVP subset plus the sign-extension operators.
// Encodings follow the WebAssembly 1.0 opcode table.
const (
	opUnreachable  byte = 0x00
	opNop          byte = 0x01
	opBlock        byte = 0x02
	opLoop         byte = 0x03
	opIf           byte = 0x04
	opElse         byte = 0x05
	opEnd          byte = 0x0b
	opBr           byte = 0x0c
	opBrIf         byte = 0x0d
	opBrTable      byte = 0x0e
	opReturn       byte = 0x0f
	opCall         byte = 0x10
	opCallIndirect byte = 0x11

	opDrop   byte = 0x1a
	opSelect byte = 0x1b

	opLocalGet  byte = 0x20
	opLocalSet  byte = 0x21
	opLocalTee  byte = 0x22
	opGlobalGet byte = 0x23
	opGlobalSet byte = 0x24

	opI32Load    byte = 0x28
	opI64Load    byte = 0x29
	opF32Load    byte = 0x2a
	opF64Load    byte = 0x2b
	opI32Load8S  byte = 0x2c
	opI32Load8U  byte = 0x2d
	opI32Load16S byte = 0x2e
	opI32Load16U byte = 0x2f
	opI64Load8S  byte = 0x30
	opI64Load8U  byte = 0x31
	opI64Load16S byte = 0x32
	opI64Load16U byte = 0x33
	opI64Load32S byte = 0x34
	opI64Load32U byte = 0x35
	opI32Store   byte = 0x36
	opI64Store   byte = 0x37
	opF32Store   byte = 0x38
	opF64Store   byte = 0x39
	opI32Store8  byte = 0x3a
	opI32Store16 byte = 0x3b
	opI64Store8  byte = 0x3c
	opI64Store16 byte = 0x3d
	opI64Store32 byte = 0x3e

	opMemorySize byte = 0x3f
	opMemoryGrow byte = 0x40

	opI32Const byte = 0x41
	opI64Const byte = 0x42
	opF32Const byte = 0x43
	opF64Const byte = 0x44

	opI32Eqz byte = 0x45
	opI32Eq  byte = 0x46
	opI32Ne  byte = 0x47
	opI32LtS byte = 0x48
	opI32LtU byte = 0x49
	opI32GtS byte = 0x4a
	opI32GtU byte = 0x4b
	opI32LeS byte = 0x4c
	opI32LeU byte = 0x4d
	opI32GeS byte = 0x4e
	opI32GeU byte = 0x4f

	opI64Eqz byte = 0x50
	opI64Eq  byte = 0x51
	opI64Ne  byte = 0x52
	opI64LtS byte = 0x53
	opI64LtU byte = 0x54
	opI64GtS byte = 0x55
	opI64GtU byte = 0x56
	opI64LeS byte = 0x57
	opI64LeU byte = 0x58
	opI64GeS byte = 0x59
	opI64GeU byte = 0x5a

	opI32Clz    byte = 0x67
	opI32Ctz    byte = 0x68
	opI32Popcnt byte = 0x69
	opI32Add    byte = 0x6a
	opI32Sub    byte = 0x6b
	opI32Mul    byte = 0x6c
	opI32DivS   byte = 0x6d
	opI32DivU   byte = 0x6e
	opI32RemS   byte = 0x6f
	opI32RemU   byte = 0x70
	opI32And    byte = 0x71
	opI32Or     byte = 0x72
	opI32Xor    byte = 0x73
	opI32Shl    byte = 0x74
	opI32ShrS   byte = 0x75
	opI32ShrU   byte = 0x76
	opI32Rotl   byte = 0x77
	opI32Rotr   byte = 0x78

	opI64Clz    byte = 0x79
	opI64Ctz    byte = 0x7a
	opI64Popcnt byte = 0x7b
	opI64Add    byte = 0x7c
	opI64Sub    byte = 0x7d
	opI64Mul    byte = 0x7e
	opI64DivS   byte = 0x7f
	opI64DivU   byte = 0x80
	opI64RemS   byte = 0x81
	opI64RemU   byte = 0x82
	opI64And    byte = 0x83
	opI64Or     byte = 0x84
	opI64Xor    byte = 0x85
	opI64Shl    byte = 0x86
	opI64ShrS   byte = 0x87
	opI64ShrU   byte = 0x88
	opI64Rotl   byte = 0x89
	opI64Rotr   byte = 0x8a

	opI32WrapI64    byte = 0xa7
	opI64ExtendI32S byte = 0xac
	opI64ExtendI32U byte = 0xad

	opI32Extend8S  byte = 0xc0
	opI32Extend16S byte = 0xc1
	opI64Extend8S  byte = 0xc2
	opI64Extend16S byte = 0xc3
	opI64Extend32S byte = 0xc4
)

// ValueType identifies a wasm value type. I32 and I64 are executable; F32
// and F64 are recognized in signatures only.
type ValueType byte

const (
	TypeEmpty ValueType = 0x40
	TypeI32   ValueType = 0x7f
	TypeI64   ValueType = 0x7e
	TypeF32   ValueType = 0x7d
	TypeF64   ValueType = 0x7c
)

func (t ValueType) String() string {
	switch t {
	case TypeEmpty:
		return "void"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	}
	return "unknown"
}

func readValType(s *stream) (ValueType, error) {
	b, err := s.readU8()
	if err != nil {
		return 0, err
	}
	switch t := ValueType(b); t {
	case TypeI32, TypeI64, TypeF32, TypeF64:
		return t, nil
	}
	return 0, ErrUnexpectedToken
}

// readBlockType reads a structured block signature: a value type or 0x40
// for empty. Multi-value type indexes are not supported.
func readBlockType(s *stream) (ValueType, error) {
	b, err := s.readU8()
	if err != nil {
		return 0, err
	}
	switch t := ValueType(b); t {
	case TypeEmpty, TypeI32, TypeI64, TypeF32, TypeF64:
		return t, nil
	}
	return 0, ErrUnexpectedToken
}
