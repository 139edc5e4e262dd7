package main

import (
	"fmt"
	"os"

	"github.com/wasmo-run/wasmo"
)

// hostLinker resolves the small host library the runner exposes to guest
// modules: a WASI-style fd_write and a generic write syscall.
func hostLinker(module, name string, typ *wasmo.FuncType) (wasmo.HostFunc, error) {
	switch name {
	case "fd_write":
		return fdWrite, nil
	case "syscall0", "syscall1", "syscall2", "syscall3", "syscall4":
		return syscall, nil
	}
	return nil, fmt.Errorf("%s.%s: %w", module, name, wasmo.ErrDynamicLink)
}

// fdWrite implements (i32 i32 i32 i32) -> i32. Only the first iovec is
// written, always to stdout.
func fdWrite(m *wasmo.Module, params []wasmo.Value) (wasmo.Value, error) {
	memory := m.Memory(0)
	if memory == nil {
		return wasmo.Empty(), wasmo.ErrOutOfMemory
	}
	if len(params) < 2 {
		return wasmo.Empty(), wasmo.ErrInvalidParameter
	}
	iovs := params[1].U32()

	iovBase, err := memory.ReadU32(iovs)
	if err != nil {
		return wasmo.Empty(), err
	}
	iovLen, err := memory.ReadU32(iovs + 4)
	if err != nil {
		return wasmo.Empty(), err
	}
	b, err := memory.ReadBytes(iovBase, int(iovLen))
	if err != nil {
		return wasmo.Empty(), err
	}
	n, err := os.Stdout.Write(b)
	if err != nil {
		return wasmo.Empty(), err
	}
	return wasmo.I32(int32(n)), nil
}

// syscall implements the original runner's generic entry point: function 1
// writes (base, len) bytes of linear memory to stdout.
func syscall(m *wasmo.Module, params []wasmo.Value) (wasmo.Value, error) {
	memory := m.Memory(0)
	if memory == nil {
		return wasmo.Empty(), wasmo.ErrOutOfMemory
	}
	if len(params) < 3 {
		return wasmo.Empty(), wasmo.ErrInvalidParameter
	}
	if params[0].U32() != 1 {
		return wasmo.Empty(), wasmo.ErrInvalidParameter
	}
	base := params[1].U32()
	size := params[2].U32()

	b, err := memory.ReadBytes(base, int(size))
	if err != nil {
		return wasmo.Empty(), err
	}
	n, err := os.Stdout.Write(b)
	if err != nil {
		return wasmo.Empty(), err
	}
	return wasmo.I32(int32(n)), nil
}
