package collect

import (
	"pyforge/internal/pyres"
)

// InMemoryModuleSources returns the module sources registered for
// in-memory placement, keyed by name.
func (c *Collector) InMemoryModuleSources() map[string]pyres.ModuleSource {
	out := make(map[string]pyres.ModuleSource)
	for name, r := range c.resources {
		if r.InMemorySource == nil {
			continue
		}
		out[name] = pyres.ModuleSource{
			Name:      name,
			Source:    *r.InMemorySource,
			IsPackage: r.IsPackage,
			CacheTag:  c.cacheTag,
		}
	}
	return out
}

// InMemoryModuleBytecodes returns the pending in-memory bytecode
// compilation requests, keyed by name.
func (c *Collector) InMemoryModuleBytecodes() map[string][]pyres.ModuleBytecodeFromSource {
	out := make(map[string][]pyres.ModuleBytecodeFromSource)
	for name, r := range c.resources {
		for level := range r.InMemoryBytecodeSource {
			src := r.InMemoryBytecodeSource[level]
			if src == nil {
				continue
			}
			out[name] = append(out[name], pyres.ModuleBytecodeFromSource{
				Name:          name,
				Source:        *src,
				OptimizeLevel: pyres.OptimizationLevel(level), // #nosec G115 -- level < NumOptimizationLevels
				IsPackage:     r.IsPackage,
				CacheTag:      c.cacheTag,
			})
		}
	}
	return out
}

// InMemoryPackageResources returns embedded package resource data as
// package -> resource name -> bytes.
func (c *Collector) InMemoryPackageResources() (map[string]map[string][]byte, error) {
	out := make(map[string]map[string][]byte)
	for name, r := range c.resources {
		if len(r.InMemoryResources) == 0 {
			continue
		}
		files := make(map[string][]byte, len(r.InMemoryResources))
		for res, loc := range r.InMemoryResources {
			data, err := loc.Resolve()
			if err != nil {
				return nil, err
			}
			files[res] = data
		}
		out[name] = files
	}
	return out, nil
}
