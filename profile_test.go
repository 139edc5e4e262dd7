package wasmo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profiledModule(t *testing.T, opts ...ModuleOption) *Function {
	t.Helper()
	bin := buildModule(
		typeSec(
			funcTypeEnc([]ValueType{TypeI32, TypeI32}, []ValueType{TypeI32}),
			funcTypeEnc(nil, []ValueType{TypeI32}),
		),
		funcSec(0, 1),
		memSec(1, -1),
		exportSec(
			exportEnc("add", ExportFunc, 0),
			exportEnc("run", ExportFunc, 1),
		),
		codeSec(
			bodyEnc(nil, addCode),
			// store the call result at 0, load it back
			bodyEnc(nil, cat(
				[]byte{0x41, 0x00},
				[]byte{0x41, 0x02, 0x41, 0x03, 0x10, 0x00}, // call add(2, 3)
				[]byte{0x36, 0x02, 0x00},
				[]byte{0x41, 0x00, 0x28, 0x02, 0x00, 0x0b},
			)),
		),
	)
	m, err := Instantiate(bin, nil, opts...)
	require.NoError(t, err)
	fn, err := m.Func("run")
	require.NoError(t, err)
	return fn
}

func TestCPUProfiler(t *testing.T) {
	var now int64
	p := NewCPUProfiler(TimeFunc(func() int64 { now += 1000; return now }))
	fn := profiledModule(t, WithListener(p))

	require.True(t, p.StartProfile())
	require.False(t, p.StartProfile(), "already started")

	v, err := fn.Invoke()
	require.NoError(t, err)
	require.Equal(t, int32(5), v.I32())

	prof := p.StopProfile()
	require.NotNil(t, prof)
	require.NoError(t, prof.CheckValid())
	assert.Len(t, prof.Sample, 2, "one stack for run, one for run>add")

	names := make(map[string]bool)
	for _, f := range prof.Function {
		names[f.Name] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["add"])

	assert.Nil(t, p.StopProfile(), "stopped profiler yields no profile")
}

func TestCPUProfilerNotStarted(t *testing.T) {
	p := NewCPUProfiler()
	fn := profiledModule(t, WithListener(p))

	_, err := fn.Invoke()
	require.NoError(t, err)
	assert.Nil(t, p.StopProfile())
}

func TestMemoryProfiler(t *testing.T) {
	p := NewMemoryProfiler()
	fn := profiledModule(t, WithListener(p))

	_, err := fn.Invoke()
	require.NoError(t, err)

	prof := p.NewProfile()
	require.NotNil(t, prof)
	require.NoError(t, prof.CheckValid())
	require.Len(t, prof.Sample, 1)
	assert.Equal(t, int64(1), prof.Sample[0].Value[0], "one store")
	assert.Equal(t, int64(4), prof.Sample[0].Value[1], "four bytes stored")
}

func TestWriteProfile(t *testing.T) {
	p := NewCPUProfiler()
	fn := profiledModule(t, WithListener(p))

	p.StartProfile()
	_, err := fn.Invoke()
	require.NoError(t, err)
	prof := p.StopProfile()

	path := filepath.Join(t.TempDir(), "cpu.pprof")
	require.NoError(t, WriteProfile(path, prof))

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))
}
