package wasmo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instantiateRun(t *testing.T, params, results, locals []ValueType, code []byte, extra ...[]byte) (*Module, *Function) {
	t.Helper()
	m, err := Instantiate(oneFuncModule(params, results, locals, code, extra...), nil)
	require.NoError(t, err)
	fn, err := m.Func("run")
	require.NoError(t, err)
	return m, fn
}

func TestInvokeAdd(t *testing.T) {
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32, TypeI32}, []ValueType{TypeI32}, nil,
		[]byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b})

	v, err := fn.Invoke(I32(1234), I32(5678))
	require.NoError(t, err)
	assert.Equal(t, int32(6912), v.I32())

	v, err = fn.Invoke(I32(-559038737), I32(0x55555555)) // 0xDEADBEEF
	require.NoError(t, err)
	assert.Equal(t, int32(0x34031444), v.I32())
}

func TestInvokeSub(t *testing.T) {
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32, TypeI32}, []ValueType{TypeI32}, nil,
		[]byte{0x20, 0x00, 0x20, 0x01, 0x6b, 0x0b})

	v, err := fn.Invoke(I32(1234), I32(5678))
	require.NoError(t, err)
	assert.Equal(t, int32(-4444), v.I32())

	v, err = fn.Invoke(I32(0x55555555), I32(-559038737))
	require.NoError(t, err)
	assert.Equal(t, int32(0x76a79666), v.I32())
}

func TestInvokeCountdownLoop(t *testing.T) {
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32}, []ValueType{TypeI32}, []ValueType{TypeI32},
		[]byte{
			0x41, 0x00, 0x21, 0x01, 0x03, 0x40, 0x20, 0x01, 0x41, 0x01, 0x6a, 0x21, 0x01, 0x20,
			0x00, 0x41, 0x01, 0x6b, 0x22, 0x00, 0x0d, 0x00, 0x0b, 0x20, 0x01, 0x0b,
		})

	v, err := fn.Invoke(I32(42))
	require.NoError(t, err)
	assert.Equal(t, int32(42), v.I32())

	v, err = fn.Invoke(I32(1))
	require.NoError(t, err)
	assert.Equal(t, int32(1), v.I32())
}

func TestInvokeDivTraps(t *testing.T) {
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32, TypeI32}, []ValueType{TypeI32}, nil,
		[]byte{0x20, 0x00, 0x20, 0x01, 0x6d, 0x0b}) // i32.div_s

	v, err := fn.Invoke(I32(7), I32(2))
	require.NoError(t, err)
	assert.Equal(t, int32(3), v.I32())

	_, err = fn.Invoke(I32(7), I32(0))
	require.ErrorIs(t, err, ErrDivideByZero)

	_, err = fn.Invoke(I32(math.MinInt32), I32(-1))
	require.ErrorIs(t, err, ErrIntegerOverflow)

	// The module survives the trap.
	v, err = fn.Invoke(I32(-9), I32(3))
	require.NoError(t, err)
	assert.Equal(t, int32(-3), v.I32())
}

func TestInvokeOutOfBoundsStore(t *testing.T) {
	// i32.const 65534; i32.const 1; i32.store; end
	m, fn := instantiateRun(t, nil, nil, nil,
		cat([]byte{0x41}, sleb(65534), []byte{0x41, 0x01, 0x36, 0x02, 0x00, 0x0b}),
		memSec(1, -1))

	_, err := fn.Invoke()
	require.ErrorIs(t, err, ErrOutOfBounds)

	// The straddling store wrote nothing.
	b, err := m.Memory(0).ReadBytes(65532, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestInvokeHostCallPassthrough(t *testing.T) {
	const n = 16

	bin := buildModule(
		typeSec(
			funcTypeEnc([]ValueType{TypeI32, TypeI32}, []ValueType{TypeI32}),
			funcTypeEnc(nil, []ValueType{TypeI32}),
		),
		importSec(importFuncEnc("env", "print", 0)),
		funcSec(1),
		memSec(1, -1),
		exportSec(exportEnc("run", ExportFunc, 1)),
		codeSec(bodyEnc(nil, cat(
			[]byte{0x41, 0x00}, // i32.const 0
			cat([]byte{0x41}, sleb(n)),
			[]byte{0x10, 0x00, 0x0b}, // call 0; end
		))),
	)

	known := make([]byte, n)
	for i := range known {
		known[i] = byte(i * 3)
	}

	linker := func(module, name string, typ *FuncType) (HostFunc, error) {
		if module != "env" || name != "print" {
			return nil, ErrDynamicLink
		}
		return func(m *Module, params []Value) (Value, error) {
			base := params[0].U32()
			size := params[1].I32()
			b, err := m.Memory(0).ReadBytes(base, int(size))
			if err != nil {
				return Empty(), err
			}
			assert.Equal(t, known, b)
			return I32(size), nil
		}, nil
	}

	m, err := Instantiate(bin, linker)
	require.NoError(t, err)
	require.NoError(t, m.Memory(0).WriteBytes(0, known))

	fn, err := m.Func("run")
	require.NoError(t, err)
	v, err := fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(n), v.I32())
}

func TestInvokeHostError(t *testing.T) {
	bin := buildModule(
		typeSec(funcTypeEnc(nil, nil)),
		importSec(importFuncEnc("env", "boom", 0)),
		funcSec(0),
		exportSec(exportEnc("run", ExportFunc, 1)),
		codeSec(bodyEnc(nil, []byte{0x10, 0x00, 0x0b})),
	)
	m, err := Instantiate(bin, func(module, name string, typ *FuncType) (HostFunc, error) {
		return func(m *Module, params []Value) (Value, error) {
			return Empty(), ErrOutOfBounds
		}, nil
	})
	require.NoError(t, err)

	fn, err := m.Func("run")
	require.NoError(t, err)
	_, err = fn.Invoke()
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestInvokeCallDefined(t *testing.T) {
	bin := buildModule(
		typeSec(
			funcTypeEnc([]ValueType{TypeI32, TypeI32}, []ValueType{TypeI32}),
			funcTypeEnc(nil, []ValueType{TypeI32}),
		),
		funcSec(0, 1),
		exportSec(exportEnc("run", ExportFunc, 1)),
		codeSec(
			bodyEnc(nil, addCode),
			bodyEnc(nil, cat([]byte{0x41}, sleb(42), []byte{0x41}, sleb(100), []byte{0x10, 0x00, 0x0b})),
		),
	)
	m, err := Instantiate(bin, nil)
	require.NoError(t, err)

	fn, err := m.Func("run")
	require.NoError(t, err)
	v, err := fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(142), v.I32())
}

func TestInvokeIfElse(t *testing.T) {
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32}, []ValueType{TypeI32}, nil,
		[]byte{0x20, 0x00, 0x04, 0x7f, 0x41, 0x01, 0x05, 0x41, 0x02, 0x0b, 0x0b})

	v, err := fn.Invoke(I32(7))
	require.NoError(t, err)
	assert.Equal(t, int32(1), v.I32())

	v, err = fn.Invoke(I32(0))
	require.NoError(t, err)
	assert.Equal(t, int32(2), v.I32())
}

func TestInvokeIfWithoutElse(t *testing.T) {
	// if (cond) local.set 1 = 9; end; return local 1
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32}, []ValueType{TypeI32}, []ValueType{TypeI32},
		[]byte{0x20, 0x00, 0x04, 0x40, 0x41, 0x09, 0x21, 0x01, 0x0b, 0x20, 0x01, 0x0b})

	v, err := fn.Invoke(I32(1))
	require.NoError(t, err)
	assert.Equal(t, int32(9), v.I32())

	v, err = fn.Invoke(I32(0))
	require.NoError(t, err)
	assert.Equal(t, int32(0), v.I32())
}

func TestInvokeBrTable(t *testing.T) {
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32}, []ValueType{TypeI32}, nil,
		[]byte{
			0x02, 0x40, 0x02, 0x40, 0x02, 0x40,
			0x20, 0x00, 0x0e, 0x02, 0x00, 0x01, 0x02,
			0x0b, 0x41, 0x0a, 0x0f,
			0x0b, 0x41, 0x14, 0x0f,
			0x0b, 0x41, 0x1e, 0x0b,
		})

	for _, tt := range []struct{ arg, want int32 }{
		{0, 10}, {1, 20}, {2, 30}, {9, 30}, {-1, 30},
	} {
		v, err := fn.Invoke(I32(tt.arg))
		require.NoError(t, err)
		assert.Equal(t, tt.want, v.I32(), "arg %d", tt.arg)
	}
}

func TestInvokeBrToFunctionLevel(t *testing.T) {
	// block; br 1 escapes the implicit function block; end; i32.const 5
	// is never reached.
	_, fn := instantiateRun(t,
		nil, []ValueType{TypeI32}, nil,
		cat([]byte{0x41}, sleb(99), []byte{0x02, 0x40, 0x0c, 0x01, 0x0b, 0x41, 0x05, 0x0b}))

	v, err := fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(99), v.I32())
}

func TestInvokeReturn(t *testing.T) {
	_, fn := instantiateRun(t,
		nil, []ValueType{TypeI32}, nil,
		[]byte{0x41, 0x07, 0x0f, 0x41, 0x2a, 0x0b})

	v, err := fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(7), v.I32())
}

func TestInvokeBlockResult(t *testing.T) {
	// block (result i32): i32.const 11; br 0; end
	_, fn := instantiateRun(t,
		nil, []ValueType{TypeI32}, nil,
		[]byte{0x02, 0x7f, 0x41, 0x0b, 0x0c, 0x00, 0x0b, 0x0b})

	v, err := fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(11), v.I32())
}

func TestInvokeSelectDrop(t *testing.T) {
	// push and drop a scratch value, then select(a, b, cc)
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32, TypeI32, TypeI32}, []ValueType{TypeI32}, nil,
		[]byte{0x41, 0x07, 0x1a, 0x20, 0x00, 0x20, 0x01, 0x20, 0x02, 0x1b, 0x0b})

	v, err := fn.Invoke(I32(10), I32(20), I32(1))
	require.NoError(t, err)
	assert.Equal(t, int32(10), v.I32())

	v, err = fn.Invoke(I32(10), I32(20), I32(0))
	require.NoError(t, err)
	assert.Equal(t, int32(20), v.I32())
}

func TestInvokeGlobals(t *testing.T) {
	// global.get 0; i32.const 5; i32.add; global.set 0; global.get 0
	bin := buildModule(
		typeSec(funcTypeEnc(nil, []ValueType{TypeI32})),
		funcSec(0),
		globalSec(globalEnc(TypeI32, true, cat([]byte{0x41}, sleb(10), []byte{0x0b}))),
		exportSec(exportEnc("run", ExportFunc, 0)),
		codeSec(bodyEnc(nil, []byte{0x23, 0x00, 0x41, 0x05, 0x6a, 0x24, 0x00, 0x23, 0x00, 0x0b})),
	)
	m, err := Instantiate(bin, nil)
	require.NoError(t, err)
	fn, err := m.Func("run")
	require.NoError(t, err)

	v, err := fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(15), v.I32())

	// Global state persists across invocations.
	v, err = fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(20), v.I32())
}

func TestInvokeMemoryRoundTrip(t *testing.T) {
	// store i64 at 8; load back low u16
	m, fn := instantiateRun(t,
		[]ValueType{TypeI64}, []ValueType{TypeI32}, nil,
		[]byte{
			0x41, 0x08, 0x20, 0x00, 0x37, 0x03, 0x00, // i64.store align=8 offset=0
			0x41, 0x08, 0x2f, 0x01, 0x00, // i32.load16_u
			0x0b,
		},
		memSec(1, -1))

	v, err := fn.Invoke(I64(0x1122334455667788))
	require.NoError(t, err)
	assert.Equal(t, int32(0x7788), v.I32())

	b, err := m.Memory(0).ReadBytes(8, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}, b)
}

func TestInvokeSignedLoads(t *testing.T) {
	// store8 0x80 at 0; i32.load8_s -> -128; i32.load8_u -> 128
	_, fnS := instantiateRun(t, nil, []ValueType{TypeI32}, nil,
		[]byte{
			0x41, 0x00, 0x41, 0x80, 0x01, 0x3a, 0x00, 0x00, // i32.store8 0x80
			0x41, 0x00, 0x2c, 0x00, 0x00, // i32.load8_s
			0x0b,
		},
		memSec(1, -1))
	v, err := fnS.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(-128), v.I32())

	_, fnU := instantiateRun(t, nil, []ValueType{TypeI32}, nil,
		[]byte{
			0x41, 0x00, 0x41, 0x80, 0x01, 0x3a, 0x00, 0x00,
			0x41, 0x00, 0x2d, 0x00, 0x00, // i32.load8_u
			0x0b,
		},
		memSec(1, -1))
	v, err = fnU.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(128), v.I32())
}

func TestInvokeMemarg(t *testing.T) {
	// Effective address is base + offset: store at base 4 with offset 60.
	m, fn := instantiateRun(t, nil, nil, nil,
		[]byte{0x41, 0x04, 0x41, 0x7f, 0x36, 0x02, 0x3c, 0x0b}, // i32.store offset=60
		memSec(1, -1))

	_, err := fn.Invoke()
	require.NoError(t, err)
	v, err := m.Memory(0).ReadU32(64)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xffffffff), v)
}

func TestInvokeMemorySizeGrow(t *testing.T) {
	// memory.grow 1; memory.size; i32.add of old size and new size
	_, fn := instantiateRun(t,
		nil, []ValueType{TypeI32}, nil,
		[]byte{0x41, 0x01, 0x40, 0x00, 0x3f, 0x00, 0x6a, 0x0b},
		memSec(1, 2))

	v, err := fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(1+2), v.I32())

	// Growing past the maximum yields -1; size stays at 2.
	v, err = fn.Invoke()
	require.NoError(t, err)
	assert.Equal(t, int32(-1+2), v.I32())
}

func TestInvokeNoMemory(t *testing.T) {
	_, fn := instantiateRun(t, nil, []ValueType{TypeI32}, nil,
		[]byte{0x41, 0x00, 0x28, 0x02, 0x00, 0x0b})

	_, err := fn.Invoke()
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestInvokeUnreachable(t *testing.T) {
	_, fn := instantiateRun(t, nil, nil, nil, []byte{0x00, 0x0b})
	_, err := fn.Invoke()
	require.ErrorIs(t, err, ErrInvalidBytecode)
}

func TestInvokeArgumentValidation(t *testing.T) {
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32, TypeI32}, []ValueType{TypeI32}, nil, addCode)

	_, err := fn.Invoke(I32(1))
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = fn.Invoke(I32(1), I64(2))
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func binOpI32(t *testing.T, op byte) func(a, b int32) (int32, error) {
	t.Helper()
	_, fn := instantiateRun(t,
		[]ValueType{TypeI32, TypeI32}, []ValueType{TypeI32}, nil,
		[]byte{0x20, 0x00, 0x20, 0x01, op, 0x0b})
	return func(a, b int32) (int32, error) {
		v, err := fn.Invoke(I32(a), I32(b))
		return v.I32(), err
	}
}

func binOpI64(t *testing.T, op byte) func(a, b int64) (int64, error) {
	t.Helper()
	_, fn := instantiateRun(t,
		[]ValueType{TypeI64, TypeI64}, []ValueType{TypeI64}, nil,
		[]byte{0x20, 0x00, 0x20, 0x01, op, 0x0b})
	return func(a, b int64) (int64, error) {
		v, err := fn.Invoke(I64(a), I64(b))
		return v.I64(), err
	}
}

func TestArithmeticWrapLaws(t *testing.T) {
	add := binOpI32(t, opI32Add)
	mul := binOpI32(t, opI32Mul)

	v, err := add(math.MaxInt32, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), v)

	v, err = mul(0x10000, 0x10000)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)

	add64 := binOpI64(t, opI64Add)
	v64, err := add64(math.MaxInt64, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v64)
}

func TestShiftAndRotateLaws(t *testing.T) {
	shl := binOpI32(t, opI32Shl)
	shrS := binOpI32(t, opI32ShrS)
	shrU := binOpI32(t, opI32ShrU)
	rotl := binOpI32(t, opI32Rotl)

	// Shift counts are taken modulo the operand width.
	v, err := shl(1, 33)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)

	v, err = shrS(-8, 34)
	require.NoError(t, err)
	assert.Equal(t, int32(-2), v)

	v, err = shrU(-8, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(0x7ffffffc), v)

	v, err = rotl(int32(-0x80000000), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	shl64 := binOpI64(t, opI64Shl)
	v64, err := shl64(1, 65)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v64)
}

func TestDivRemLaws(t *testing.T) {
	divU := binOpI32(t, opI32DivU)
	remS := binOpI32(t, opI32RemS)
	remU := binOpI32(t, opI32RemU)

	v, err := divU(-2, 2) // 0xfffffffe / 2
	require.NoError(t, err)
	assert.Equal(t, int32(0x7fffffff), v)

	v, err = remS(-7, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)

	v, err = remS(math.MinInt32, -1)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)

	_, err = remU(1, 0)
	require.ErrorIs(t, err, ErrDivideByZero)

	divS64 := binOpI64(t, opI64DivS)
	_, err = divS64(math.MinInt64, -1)
	require.ErrorIs(t, err, ErrIntegerOverflow)
}

func TestComparisons(t *testing.T) {
	tests := []struct {
		op   byte
		a, b int32
		want int32
	}{
		{opI32Eq, 3, 3, 1},
		{opI32Ne, 3, 3, 0},
		{opI32LtS, -1, 0, 1},
		{opI32LtU, -1, 0, 0}, // 0xffffffff > 0 unsigned
		{opI32GtS, -1, 0, 0},
		{opI32GtU, -1, 0, 1},
		{opI32LeS, 2, 2, 1},
		{opI32GeU, 1, 2, 0},
	}
	for _, tt := range tests {
		got, err := binOpI32(t, tt.op)(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "op %#x %d %d", tt.op, tt.a, tt.b)
	}

	ltU64 := binOpI64(t, opI64LtU)
	got, err := ltU64(-1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestEqzAndBitCounts(t *testing.T) {
	unary := func(op byte) func(int32) int32 {
		_, fn := instantiateRun(t,
			[]ValueType{TypeI32}, []ValueType{TypeI32}, nil,
			[]byte{0x20, 0x00, op, 0x0b})
		return func(a int32) int32 {
			v, err := fn.Invoke(I32(a))
			require.NoError(t, err)
			return v.I32()
		}
	}

	eqz := unary(opI32Eqz)
	assert.Equal(t, int32(1), eqz(0))
	assert.Equal(t, int32(0), eqz(5))

	assert.Equal(t, int32(24), unary(opI32Clz)(0xff))
	assert.Equal(t, int32(3), unary(opI32Ctz)(8))
	assert.Equal(t, int32(8), unary(opI32Popcnt)(0xff))
}

func TestSignExtensionLaws(t *testing.T) {
	ext32 := func(op byte, a int32) int32 {
		_, fn := instantiateRun(t,
			[]ValueType{TypeI32}, []ValueType{TypeI32}, nil,
			[]byte{0x20, 0x00, op, 0x0b})
		v, err := fn.Invoke(I32(a))
		require.NoError(t, err)
		return v.I32()
	}
	ext64 := func(op byte, a int64) int64 {
		_, fn := instantiateRun(t,
			[]ValueType{TypeI64}, []ValueType{TypeI64}, nil,
			[]byte{0x20, 0x00, op, 0x0b})
		v, err := fn.Invoke(I64(a))
		require.NoError(t, err)
		return v.I64()
	}

	assert.Equal(t, int32(-1), ext32(opI32Extend8S, 0xff))
	assert.Equal(t, int32(127), ext32(opI32Extend8S, 0x7f))
	assert.Equal(t, int32(-1), ext32(opI32Extend16S, 0xffff))
	assert.Equal(t, int64(-1), ext64(opI64Extend8S, 0xff))
	assert.Equal(t, int64(-1), ext64(opI64Extend16S, 0xffff))
	assert.Equal(t, int64(-1), ext64(opI64Extend32S, 0xffffffff))
}

func TestConversions(t *testing.T) {
	// i32.wrap_i64
	_, wrap := instantiateRun(t,
		[]ValueType{TypeI64}, []ValueType{TypeI32}, nil,
		[]byte{0x20, 0x00, 0xa7, 0x0b})
	v, err := wrap.Invoke(I64(0x1122334455667788))
	require.NoError(t, err)
	assert.Equal(t, int32(0x55667788), v.I32())

	// i64.extend_i32_s
	_, extS := instantiateRun(t,
		[]ValueType{TypeI32}, []ValueType{TypeI64}, nil,
		[]byte{0x20, 0x00, 0xac, 0x0b})
	v, err = extS.Invoke(I32(-1))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v.I64())

	// i64.extend_i32_u
	_, extU := instantiateRun(t,
		[]ValueType{TypeI32}, []ValueType{TypeI64}, nil,
		[]byte{0x20, 0x00, 0xad, 0x0b})
	v, err = extU.Invoke(I32(-1))
	require.NoError(t, err)
	assert.Equal(t, int64(0xffffffff), v.I64())
}

func TestInvokeDeterminism(t *testing.T) {
	code := cat(
		[]byte{0x41, 0x00, 0x20, 0x00, 0x36, 0x02, 0x00}, // i32.store arg at 0
		[]byte{0x41, 0x00, 0x28, 0x02, 0x00},             // i32.load
		[]byte{0x41, 0x03, 0x6c, 0x0b},                   // *3
	)
	run := func() (int32, []byte) {
		m, fn := instantiateRun(t,
			[]ValueType{TypeI32}, []ValueType{TypeI32}, nil, code, memSec(1, -1))
		v, err := fn.Invoke(I32(14))
		require.NoError(t, err)
		b, err := m.Memory(0).ReadBytes(0, 8)
		require.NoError(t, err)
		return v.I32(), b
	}

	v1, mem1 := run()
	v2, mem2 := run()
	assert.Equal(t, v1, v2)
	assert.Equal(t, mem1, mem2)
	assert.Equal(t, int32(42), v1)
}
