package wasmo

import (
	"fmt"
	"io"
	"os"
	"slices"
)

// WriteStat renders a human readable dump of the decoded module structure.
func (m *Module) WriteStat(w io.Writer) {
	c := m.compiled

	fmt.Fprintf(w, "types: %d\n", len(c.types))
	for i, t := range c.types {
		fmt.Fprintf(w, "  type[%d] %s\n", i, t)
	}

	fmt.Fprintf(w, "functions: %d\n", len(m.funcs))
	for i := range m.funcs {
		fn := &m.funcs[i]
		kind := "wasm"
		detail := ""
		if fn.host != nil {
			kind = "import"
		} else {
			detail = fmt.Sprintf(" code=%dB locals=%d stack=%d",
				len(fn.body.code), len(fn.body.locals), fn.body.maxStack)
		}
		fmt.Fprintf(w, "  func[%d] %s %s %s%s\n", i, kind, fn.name, fn.typ, detail)
	}

	if m.memory != nil {
		if c.mem.hasMax {
			fmt.Fprintf(w, "memory: %d pages (max %d)\n", m.memory.Size(), c.mem.max)
		} else {
			fmt.Fprintf(w, "memory: %d pages\n", m.memory.Size())
		}
	} else {
		fmt.Fprintf(w, "memory: none\n")
	}

	fmt.Fprintf(w, "globals: %d\n", len(m.globals))
	for i, g := range m.globals {
		mut := "const"
		if g.mutable {
			mut = "mut"
		}
		fmt.Fprintf(w, "  global[%d] %s %s = %#x\n", i, mut, g.typ, g.bits)
	}

	names := make([]string, 0, len(c.exports))
	for name := range c.exports {
		names = append(names, name)
	}
	slices.Sort(names)
	fmt.Fprintf(w, "exports: %d\n", len(names))
	for _, name := range names {
		exp := c.exports[name]
		fmt.Fprintf(w, "  %q kind=%d index=%d\n", name, exp.kind, exp.index)
	}
}

// PrintStat dumps the module structure to stdout.
func (m *Module) PrintStat() {
	m.WriteStat(os.Stdout)
}
