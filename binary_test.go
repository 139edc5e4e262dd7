package wasmo

// Helpers assembling wasm binaries by hand for tests.

func uleb(v uint64) []byte {
	var b []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func sleb(v int64) []byte {
	var b []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func cat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

func wasmHeader() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

func section(id byte, payload []byte) []byte {
	return cat([]byte{id}, uleb(uint64(len(payload))), payload)
}

func vec(entries ...[]byte) []byte {
	return cat(append([][]byte{uleb(uint64(len(entries)))}, entries...)...)
}

func valTypes(types ...ValueType) []byte {
	b := uleb(uint64(len(types)))
	for _, t := range types {
		b = append(b, byte(t))
	}
	return b
}

func funcTypeEnc(params, results []ValueType) []byte {
	return cat([]byte{0x60}, valTypes(params...), valTypes(results...))
}

func typeSec(types ...[]byte) []byte {
	return section(sectionType, vec(types...))
}

func importFuncEnc(module, name string, typeIndex int) []byte {
	return cat(
		uleb(uint64(len(module))), []byte(module),
		uleb(uint64(len(name))), []byte(name),
		[]byte{ExportFunc}, uleb(uint64(typeIndex)),
	)
}

func importSec(entries ...[]byte) []byte {
	return section(sectionImport, vec(entries...))
}

func funcSec(typeIndexes ...int) []byte {
	entries := make([][]byte, len(typeIndexes))
	for i, idx := range typeIndexes {
		entries[i] = uleb(uint64(idx))
	}
	return section(sectionFunction, vec(entries...))
}

// memSec encodes one memory; max < 0 means no maximum.
func memSec(min uint32, max int) []byte {
	var lim []byte
	if max < 0 {
		lim = cat([]byte{0x00}, uleb(uint64(min)))
	} else {
		lim = cat([]byte{0x01}, uleb(uint64(min)), uleb(uint64(max)))
	}
	return section(sectionMemory, vec(lim))
}

func globalEnc(t ValueType, mutable bool, init []byte) []byte {
	mut := byte(0)
	if mutable {
		mut = 1
	}
	return cat([]byte{byte(t), mut}, init)
}

func globalSec(entries ...[]byte) []byte {
	return section(sectionGlobal, vec(entries...))
}

func exportEnc(name string, kind byte, index int) []byte {
	return cat(uleb(uint64(len(name))), []byte(name), []byte{kind}, uleb(uint64(index)))
}

func exportSec(entries ...[]byte) []byte {
	return section(sectionExport, vec(entries...))
}

// bodyEnc encodes one code entry with its locals compressed into
// (count, type) runs.
func bodyEnc(locals []ValueType, code []byte) []byte {
	var groups [][]byte
	for i := 0; i < len(locals); {
		j := i
		for j < len(locals) && locals[j] == locals[i] {
			j++
		}
		groups = append(groups, cat(uleb(uint64(j-i)), []byte{byte(locals[i])}))
		i = j
	}
	payload := cat(vec(groups...), code)
	return cat(uleb(uint64(len(payload))), payload)
}

func codeSec(bodies ...[]byte) []byte {
	return section(sectionCode, vec(bodies...))
}

func buildModule(sections ...[]byte) []byte {
	return cat(append([][]byte{wasmHeader()}, sections...)...)
}

// oneFuncModule builds a module with a single defined function exported as
// "run".
func oneFuncModule(params, results, locals []ValueType, code []byte, extra ...[]byte) []byte {
	sections := [][]byte{
		typeSec(funcTypeEnc(params, results)),
		funcSec(0),
	}
	sections = append(sections, extra...) // memory/global sections sort here
	sections = append(sections,
		exportSec(exportEnc("run", ExportFunc, 0)),
		codeSec(bodyEnc(locals, code)),
	)
	return buildModule(sections...)
}
