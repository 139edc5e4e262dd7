package wasmo

import (
	"fmt"
)

const (
	wasmMagic   uint32 = 0x6d736100 // "\0asm"
	wasmVersion uint32 = 1
)

// Section ids of the wasm module format.
const (
	sectionCustom    = 0
	sectionType      = 1
	sectionImport    = 2
	sectionFunction  = 3
	sectionTable     = 4
	sectionMemory    = 5
	sectionGlobal    = 6
	sectionExport    = 7
	sectionStart     = 8
	sectionElement   = 9
	sectionCode      = 10
	sectionData      = 11
	sectionDataCount = 12
)

// Export kinds.
const (
	ExportFunc   byte = 0
	ExportTable  byte = 1
	ExportMemory byte = 2
	ExportGlobal byte = 3
)

// FuncType is a function signature: ordered parameter and result types.
// The MVP allows at most one result.
type FuncType struct {
	Params  []ValueType
	Results []ValueType
}

func (t *FuncType) String() string {
	s := "("
	for i, p := range t.Params {
		if i > 0 {
			s += ", "
		}
		s += p.String()
	}
	s += ")"
	for _, r := range t.Results {
		s += " -> " + r.String()
	}
	return s
}

type limits struct {
	min    uint32
	max    uint32
	hasMax bool
}

type importDesc struct {
	module    string
	name      string
	typeIndex int
}

type globalDef struct {
	typ     ValueType
	mutable bool
	init    []byte // constant expression, terminated by end
}

type exportEntry struct {
	kind  byte
	index uint32
}

// codeBody is the executable image of one defined function.
type codeBody struct {
	params        []ValueType
	locals        []ValueType
	results       []ValueType
	code          []byte
	blocks        map[int]blockInfo
	maxStack      int
	maxBlockLevel int
}

// compiledFunc addresses the flat function index space: imports first, then
// defined functions.
type compiledFunc struct {
	typeIndex int
	imp       *importDesc // nil for defined functions
	body      *codeBody   // nil for imports
}

// CompiledModule is the immutable result of decoding and pre-analyzing a
// binary module. Instances created from it own all mutable state.
type CompiledModule struct {
	types   []*FuncType
	funcs   []compiledFunc
	mem     *limits
	globals []globalDef
	exports map[string]exportEntry
}

// Compile decodes a binary module, indexes its structure and pre-analyzes
// every function body. It performs everything Instantiate does not need a
// linker for.
func Compile(bin []byte) (*CompiledModule, error) {
	s := newStream(bin)

	magic, err := s.readU32()
	if err != nil || magic != wasmMagic {
		return nil, ErrBadExecutable
	}
	version, err := s.readU32()
	if err != nil {
		return nil, ErrBadExecutable
	}
	if version != wasmVersion {
		return nil, ErrBadVersion
	}

	m := &CompiledModule{exports: map[string]exportEntry{}}

	lastID := 0
	for s.remaining() > 0 {
		id, err := s.readU8()
		if err != nil {
			return nil, err
		}
		size, err := s.readUint()
		if err != nil {
			return nil, err
		}
		payload, err := s.readBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, ErrUnexpectedEOF)
		}
		if id != sectionCustom {
			// Non-custom sections must appear in ascending id order.
			if int(id) <= lastID {
				return nil, fmt.Errorf("section %d out of order: %w", id, ErrUnexpectedToken)
			}
			lastID = int(id)
		}

		ps := newStream(payload)
		switch id {
		case sectionCustom:
			continue
		case sectionType:
			err = m.decodeTypeSection(ps)
		case sectionImport:
			err = m.decodeImportSection(ps)
		case sectionFunction:
			err = m.decodeFunctionSection(ps)
		case sectionMemory:
			err = m.decodeMemorySection(ps)
		case sectionGlobal:
			err = m.decodeGlobalSection(ps)
		case sectionExport:
			err = m.decodeExportSection(ps)
		case sectionCode:
			err = m.decodeCodeSection(ps)
		case sectionTable, sectionStart, sectionElement, sectionData, sectionDataCount:
			// Accepted but outside this engine's execution model.
			continue
		default:
			return nil, fmt.Errorf("section id %d: %w", id, ErrUnsupportedSection)
		}
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
		if ps.remaining() != 0 {
			return nil, fmt.Errorf("section %d has %d trailing bytes: %w", id, ps.remaining(), ErrUnexpectedToken)
		}
	}
	return m, nil
}

func (m *CompiledModule) decodeTypeSection(s *stream) error {
	count, err := s.readUint()
	if err != nil {
		return err
	}
	m.types = make([]*FuncType, 0, count)
	for i := uint64(0); i < count; i++ {
		form, err := s.readU8()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return fmt.Errorf("functype tag %#x: %w", form, ErrUnexpectedToken)
		}
		ft := &FuncType{}
		if ft.Params, err = readValTypeVec(s); err != nil {
			return err
		}
		if ft.Results, err = readValTypeVec(s); err != nil {
			return err
		}
		m.types = append(m.types, ft)
	}
	return nil
}

func readValTypeVec(s *stream) ([]ValueType, error) {
	n, err := s.readUint()
	if err != nil {
		return nil, err
	}
	types := make([]ValueType, 0, n)
	for i := uint64(0); i < n; i++ {
		t, err := readValType(s)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func readLimits(s *stream) (limits, error) {
	flag, err := s.readU8()
	if err != nil {
		return limits{}, err
	}
	var lim limits
	switch flag {
	case 0x00:
	case 0x01:
		lim.hasMax = true
	default:
		return limits{}, fmt.Errorf("limits flag %#x: %w", flag, ErrUnexpectedToken)
	}
	min, err := s.readUint()
	if err != nil {
		return limits{}, err
	}
	lim.min = uint32(min)
	if lim.hasMax {
		max, err := s.readUint()
		if err != nil {
			return limits{}, err
		}
		lim.max = uint32(max)
	}
	return lim, nil
}

func (m *CompiledModule) decodeImportSection(s *stream) error {
	count, err := s.readUint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		module, err := s.readString()
		if err != nil {
			return err
		}
		name, err := s.readString()
		if err != nil {
			return err
		}
		kind, err := s.readU8()
		if err != nil {
			return err
		}
		switch kind {
		case ExportFunc:
			typeIndex, err := s.readUint()
			if err != nil {
				return err
			}
			if int(typeIndex) >= len(m.types) {
				return fmt.Errorf("import %s.%s type index %d: %w", module, name, typeIndex, ErrInvalidParameter)
			}
			m.funcs = append(m.funcs, compiledFunc{
				typeIndex: int(typeIndex),
				imp:       &importDesc{module: module, name: name, typeIndex: int(typeIndex)},
			})
		case ExportTable:
			if _, err := s.readU8(); err != nil { // elemtype
				return err
			}
			if _, err := readLimits(s); err != nil {
				return err
			}
		case ExportMemory:
			if _, err := readLimits(s); err != nil {
				return err
			}
		case ExportGlobal:
			if _, err := readValType(s); err != nil {
				return err
			}
			if _, err := s.readU8(); err != nil { // mutability
				return err
			}
		default:
			return fmt.Errorf("import kind %d: %w", kind, ErrUnexpectedToken)
		}
	}
	return nil
}

func (m *CompiledModule) decodeFunctionSection(s *stream) error {
	count, err := s.readUint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		typeIndex, err := s.readUint()
		if err != nil {
			return err
		}
		if int(typeIndex) >= len(m.types) {
			return fmt.Errorf("function type index %d: %w", typeIndex, ErrInvalidParameter)
		}
		m.funcs = append(m.funcs, compiledFunc{typeIndex: int(typeIndex)})
	}
	return nil
}

func (m *CompiledModule) decodeMemorySection(s *stream) error {
	count, err := s.readUint()
	if err != nil {
		return err
	}
	if count > 1 {
		return fmt.Errorf("%d memories: %w", count, ErrUnsupportedSection)
	}
	if count == 1 {
		lim, err := readLimits(s)
		if err != nil {
			return err
		}
		m.mem = &lim
	}
	return nil
}

func (m *CompiledModule) decodeGlobalSection(s *stream) error {
	count, err := s.readUint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		typ, err := readValType(s)
		if err != nil {
			return err
		}
		mut, err := s.readU8()
		if err != nil {
			return err
		}
		if mut > 1 {
			return fmt.Errorf("global mutability %d: %w", mut, ErrUnexpectedToken)
		}
		expr, err := readInitExpr(s)
		if err != nil {
			return err
		}
		m.globals = append(m.globals, globalDef{typ: typ, mutable: mut == 1, init: expr})
	}
	return nil
}

// readInitExpr captures the bytes of a constant expression up to and
// including its end opcode. Only i32.const, i64.const and global.get are
// admitted; evaluation happens at instantiation.
func readInitExpr(s *stream) ([]byte, error) {
	start := s.fetchPosition()
	for {
		op, err := s.readU8()
		if err != nil {
			return nil, err
		}
		switch op {
		case opI32Const, opI64Const:
			if _, err := s.readSint(); err != nil {
				return nil, err
			}
		case opGlobalGet:
			if _, err := s.readUint(); err != nil {
				return nil, err
			}
		case opEnd:
			return s.b[start:s.fetchPosition()], nil
		default:
			return nil, fmt.Errorf("init expression opcode %#x: %w", op, ErrUnexpectedToken)
		}
	}
}

func (m *CompiledModule) decodeExportSection(s *stream) error {
	count, err := s.readUint()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		name, err := s.readString()
		if err != nil {
			return err
		}
		kind, err := s.readU8()
		if err != nil {
			return err
		}
		if kind > ExportGlobal {
			return fmt.Errorf("export kind %d: %w", kind, ErrUnexpectedToken)
		}
		index, err := s.readUint()
		if err != nil {
			return err
		}
		// Duplicate names overwrite, last wins.
		m.exports[name] = exportEntry{kind: kind, index: uint32(index)}
	}
	return nil
}

func (m *CompiledModule) decodeCodeSection(s *stream) error {
	count, err := s.readUint()
	if err != nil {
		return err
	}
	defined := 0
	for i := range m.funcs {
		if m.funcs[i].imp == nil {
			defined++
		}
	}
	if int(count) != defined {
		return fmt.Errorf("%d bodies for %d functions: %w", count, defined, ErrUnexpectedToken)
	}

	next := 0
	for i := uint64(0); i < count; i++ {
		for next < len(m.funcs) && m.funcs[next].imp != nil {
			next++
		}
		fn := &m.funcs[next]
		next++

		bodySize, err := s.readUint()
		if err != nil {
			return err
		}
		raw, err := s.readBytes(int(bodySize))
		if err != nil {
			return err
		}
		bs := newStream(raw)

		groups, err := bs.readUint()
		if err != nil {
			return err
		}
		var localTypes []ValueType
		for g := uint64(0); g < groups; g++ {
			n, err := bs.readUint()
			if err != nil {
				return err
			}
			t, err := readValType(bs)
			if err != nil {
				return err
			}
			if n > uint64(len(raw))*8 {
				// A locals count this far beyond the body size is garbage.
				return fmt.Errorf("local count %d: %w", n, ErrInvalidParameter)
			}
			for j := uint64(0); j < n; j++ {
				localTypes = append(localTypes, t)
			}
		}

		typ := m.types[fn.typeIndex]
		body := &codeBody{
			params:  typ.Params,
			locals:  localTypes,
			results: typ.Results,
			code:    raw[bs.fetchPosition():],
		}
		if err := analyze(body, m.funcs, m.types); err != nil {
			return fmt.Errorf("body %d: %w", i, err)
		}
		fn.body = body
	}
	return nil
}

// evalInitExpr executes a restricted constant expression. global.get may
// only reference an already initialized global.
func evalInitExpr(expr []byte, globals []globalVar) (uint64, error) {
	s := newStream(expr)
	var bits uint64
	var assigned bool
	for {
		op, err := s.readU8()
		if err != nil {
			return 0, err
		}
		switch op {
		case opI32Const:
			v, err := s.readSint()
			if err != nil {
				return 0, err
			}
			bits, assigned = uint64(uint32(int32(v))), true
		case opI64Const:
			v, err := s.readSint()
			if err != nil {
				return 0, err
			}
			bits, assigned = uint64(v), true
		case opGlobalGet:
			idx, err := s.readUint()
			if err != nil {
				return 0, err
			}
			if int(idx) >= len(globals) {
				return 0, fmt.Errorf("global %d: %w", idx, ErrInvalidParameter)
			}
			bits, assigned = globals[idx].bits, true
		case opEnd:
			if !assigned {
				return 0, ErrUnexpectedToken
			}
			return bits, nil
		default:
			return 0, fmt.Errorf("init expression opcode %#x: %w", op, ErrUnexpectedToken)
		}
	}
}
