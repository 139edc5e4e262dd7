package wasmo

import (
	"sync"

	"github.com/cespare/xxhash"
)

// Cache memoizes Compile results keyed by a digest of the module blob, so
// embedders instantiating the same module repeatedly decode and pre-analyze
// it once. Safe for concurrent use.
type Cache struct {
	mutex   sync.Mutex
	modules map[uint64]*CompiledModule
}

func NewCache() *Cache {
	return &Cache{modules: make(map[uint64]*CompiledModule)}
}

// Compile returns the cached compilation of bin, compiling on first sight.
// Hits return the identical *CompiledModule.
func (c *Cache) Compile(bin []byte) (*CompiledModule, error) {
	key := xxhash.Sum64(bin)

	c.mutex.Lock()
	cached := c.modules[key]
	c.mutex.Unlock()
	if cached != nil {
		return cached, nil
	}

	m, err := Compile(bin)
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	c.modules[key] = m
	c.mutex.Unlock()
	return m, nil
}

// Instantiate is Compile followed by CompiledModule.Instantiate.
func (c *Cache) Instantiate(bin []byte, linker Linker, opts ...ModuleOption) (*Module, error) {
	m, err := c.Compile(bin)
	if err != nil {
		return nil, err
	}
	return m.Instantiate(linker, opts...)
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.modules)
}
