// Package wasmo is an embeddable execution engine for WebAssembly 1.0 core
// modules, integer subset. It loads a module from a byte blob, resolves host
// imports through a caller supplied linker, and interprets function bodies
// over a typed value stack backed by a linear memory sandbox.
package wasmo

import (
	"fmt"
)

// Value is the tagged representation used at API boundaries: invocation
// arguments, results, and host function parameters.
type Value struct {
	typ  ValueType
	bits uint64
}

// Empty returns the result of a function with no result type.
func Empty() Value {
	return Value{typ: TypeEmpty}
}

// I32 boxes a 32-bit integer.
func I32(v int32) Value {
	return Value{typ: TypeI32, bits: uint64(uint32(v))}
}

// I64 boxes a 64-bit integer.
func I64(v int64) Value {
	return Value{typ: TypeI64, bits: uint64(v)}
}

func (v Value) Type() ValueType {
	if v.typ == 0 {
		return TypeEmpty
	}
	return v.typ
}

func (v Value) IsEmpty() bool {
	return v.Type() == TypeEmpty
}

func (v Value) I32() int32 { return int32(uint32(v.bits)) }

func (v Value) U32() uint32 { return uint32(v.bits) }

func (v Value) I64() int64 { return int64(v.bits) }

func (v Value) U64() uint64 { return v.bits }

func (v Value) String() string {
	switch v.Type() {
	case TypeI32:
		return fmt.Sprintf("%d", v.I32())
	case TypeI64:
		return fmt.Sprintf("%d", v.I64())
	case TypeEmpty:
		return "()"
	}
	return fmt.Sprintf("%s(%#x)", v.Type(), v.bits)
}

func valueFromBits(t ValueType, bits uint64) Value {
	switch t {
	case TypeI32:
		return I32(int32(uint32(bits)))
	case TypeI64:
		return I64(int64(bits))
	}
	return Value{typ: t, bits: bits}
}

// HostFunc is the calling convention for resolved imports. The module
// reference gives hosts access to linear memory and globals for the duration
// of the call; a returned error surfaces as a trap at the call site.
type HostFunc func(*Module, []Value) (Value, error)

// Linker resolves one imported function to a host callable. Rejecting an
// import is done by returning an error, conventionally wrapping
// ErrDynamicLink.
type Linker func(module, name string, typ *FuncType) (HostFunc, error)

// FunctionListener observes every function activation, wasm and host alike.
// Before/After pairs always match, including on traps.
type FunctionListener interface {
	Before(mod *Module, fn *Function)
	After(mod *Module, fn *Function, err error)
}

// MemoryListener observes successful linear memory stores. Listeners that
// also implement it receive the byte count of every store instruction.
type MemoryListener interface {
	OnStore(mod *Module, size int)
}

// ModuleOption configures a Module at instantiation.
type ModuleOption func(*Module)

// WithListener attaches a function listener to every invocation made
// through the module.
func WithListener(l FunctionListener) ModuleOption {
	return func(m *Module) {
		m.listeners = append(m.listeners, l)
		if ml, ok := l.(MemoryListener); ok {
			m.memListeners = append(m.memListeners, ml)
		}
	}
}

// globalVar is one instantiated global.
type globalVar struct {
	typ     ValueType
	mutable bool
	bits    uint64
}

// Module is an instance of a compiled module: resolved imports, linear
// memory and globals. It is read-only after instantiation except for memory
// contents and globals, and must be invoked by one caller at a time.
type Module struct {
	compiled     *CompiledModule
	funcs        []Function
	memory       *Memory
	globals      []globalVar
	listeners    []FunctionListener
	memListeners []MemoryListener
}

// Function is one entry of the module's flat function index space.
type Function struct {
	module *Module
	index  int
	typ    *FuncType
	body   *codeBody // nil for imports
	host   HostFunc  // nil for defined functions
	name   string
}

// Instantiate decodes bin and instantiates it in one step.
func Instantiate(bin []byte, linker Linker, opts ...ModuleOption) (*Module, error) {
	c, err := Compile(bin)
	if err != nil {
		return nil, err
	}
	return c.Instantiate(linker, opts...)
}

// Instantiate resolves imports through linker, allocates linear memory and
// evaluates global initializers into a fresh Module. The receiver is not
// modified and may instantiate any number of times.
func (c *CompiledModule) Instantiate(linker Linker, opts ...ModuleOption) (*Module, error) {
	m := &Module{compiled: c}

	m.funcs = make([]Function, len(c.funcs))
	for i := range c.funcs {
		cf := &c.funcs[i]
		fn := &m.funcs[i]
		fn.module = m
		fn.index = i
		fn.typ = c.types[cf.typeIndex]
		if cf.imp != nil {
			if linker == nil {
				return nil, fmt.Errorf("import %s.%s: %w", cf.imp.module, cf.imp.name, ErrDynamicLink)
			}
			host, err := linker(cf.imp.module, cf.imp.name, fn.typ)
			if err != nil {
				return nil, fmt.Errorf("import %s.%s: %w", cf.imp.module, cf.imp.name, err)
			}
			if host == nil {
				return nil, fmt.Errorf("import %s.%s: %w", cf.imp.module, cf.imp.name, ErrDynamicLink)
			}
			fn.host = host
			fn.name = cf.imp.module + "." + cf.imp.name
		} else {
			if cf.body == nil {
				return nil, fmt.Errorf("function %d has no body: %w", i, ErrUnexpectedEOF)
			}
			fn.body = cf.body
			fn.name = fmt.Sprintf("func[%d]", i)
		}
	}
	for name, exp := range c.exports {
		if exp.kind == ExportFunc && int(exp.index) < len(m.funcs) {
			m.funcs[exp.index].name = name
		}
	}

	if c.mem != nil {
		m.memory = newMemory(*c.mem)
	}

	for i, g := range c.globals {
		bits, err := evalInitExpr(g.init, m.globals)
		if err != nil {
			return nil, fmt.Errorf("global %d: %w", i, err)
		}
		m.globals = append(m.globals, globalVar{typ: g.typ, mutable: g.mutable, bits: bits})
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Func looks up an exported function by name.
func (m *Module) Func(name string) (*Function, error) {
	exp, ok := m.compiled.exports[name]
	if !ok || exp.kind != ExportFunc {
		return nil, fmt.Errorf("no exported function %q: %w", name, ErrInvalidParameter)
	}
	if int(exp.index) >= len(m.funcs) {
		return nil, fmt.Errorf("export %q index %d: %w", name, exp.index, ErrInternalInconsistency)
	}
	return &m.funcs[exp.index], nil
}

// Memory returns linear memory i, or nil. Only memory 0 exists in this
// engine.
func (m *Module) Memory(i int) *Memory {
	if i != 0 {
		return nil
	}
	return m.memory
}

// Type returns the function's signature.
func (f *Function) Type() *FuncType {
	return f.typ
}

// Name returns the export name, the import "module.name" pair, or a
// positional placeholder.
func (f *Function) Name() string {
	return f.name
}

// Index returns the function's position in the flat index space.
func (f *Function) Index() int {
	return f.index
}

// Invoke validates arity and argument types, runs the function to
// completion and returns its result. A trap leaves the module usable;
// memory reflects all writes performed before the trap.
func (f *Function) Invoke(args ...Value) (Value, error) {
	if len(args) != len(f.typ.Params) {
		return Empty(), fmt.Errorf("%s expects %d arguments, got %d: %w",
			f.name, len(f.typ.Params), len(args), ErrInvalidParameter)
	}
	for i, p := range f.typ.Params {
		if args[i].Type() != p {
			return Empty(), fmt.Errorf("%s argument %d: have %s, want %s: %w",
				f.name, i, args[i].Type(), p, ErrInvalidParameter)
		}
	}
	m := f.module

	if f.host != nil {
		return m.hostCall(f, args)
	}

	locals := make([]uint64, len(f.typ.Params)+len(f.body.locals))
	for i, a := range args {
		locals[i] = a.bits
	}
	return m.executeListened(f, locals)
}

func (m *Module) hostCall(f *Function, args []Value) (Value, error) {
	for _, l := range m.listeners {
		l.Before(m, f)
	}
	v, err := f.host(m, args)
	for _, l := range m.listeners {
		l.After(m, f, err)
	}
	return v, err
}

func (m *Module) executeListened(f *Function, locals []uint64) (Value, error) {
	for _, l := range m.listeners {
		l.Before(m, f)
	}
	v, err := m.execute(f, locals)
	for _, l := range m.listeners {
		l.After(m, f, err)
	}
	return v, err
}

func (m *Module) storeObserved(size int) {
	for _, l := range m.memListeners {
		l.OnStore(m, size)
	}
}
