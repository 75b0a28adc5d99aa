package collect

import (
	"bytes"
	"sort"

	"pyforge/internal/pyres"
)

// FileInstall is one file to place on disk relative to the produced
// binary, derived from a relative-path placement.
type FileInstall struct {
	Path       string
	Location   pyres.DataLocation
	Executable bool
}

// DeriveFileInstalls lists every install implied by relative-path
// placements, in deterministic (name, then path) order. Bytecode files
// are absent here: they only exist once the pipeline has compiled them.
// The executable flag is set for loadable binaries (extension module
// shared libraries and standalone shared libraries).
func (c *Collector) DeriveFileInstalls() []FileInstall {
	var installs []FileInstall
	for _, name := range c.Names() {
		r := c.resources[name]
		if r.RelativePathSource != nil {
			installs = append(installs, FileInstall{
				Path:     r.RelativePathSource.Path,
				Location: r.RelativePathSource.Source,
			})
		}
		if r.RelativePathExtensionModuleSharedLibrary != nil {
			installs = append(installs, FileInstall{
				Path:       r.RelativePathExtensionModuleSharedLibrary.Path,
				Location:   r.RelativePathExtensionModuleSharedLibrary.Source,
				Executable: true,
			})
		}
		if r.RelativePathSharedLibrary != nil {
			installs = append(installs, FileInstall{
				Path:       r.RelativePathSharedLibrary.Path,
				Location:   r.RelativePathSharedLibrary.Source,
				Executable: true,
			})
		}
		installs = append(installs, sortedFileInstalls(r.RelativePathResources)...)
		installs = append(installs, sortedFileInstalls(r.RelativePathDistributionResources)...)
	}
	return installs
}

func sortedFileInstalls(files map[string]RelativeFile) []FileInstall {
	if len(files) == 0 {
		return nil
	}
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]FileInstall, 0, len(keys))
	for _, k := range keys {
		out = append(out, FileInstall{Path: files[k].Path, Location: files[k].Source})
	}
	return out
}

var dunderFile = []byte("__file__")

// FindDunderFile returns the sorted names of modules whose source text
// references __file__. The produced runtime does not set __file__, so
// such modules may misbehave; callers surface this as a warning.
func (c *Collector) FindDunderFile() ([]string, error) {
	var found []string
	for _, name := range c.Names() {
		r := c.resources[name]
		sources := make([]*pyres.DataLocation, 0, 2+2*pyres.NumOptimizationLevels)
		sources = append(sources, r.InMemorySource)
		for i := range r.InMemoryBytecodeSource {
			sources = append(sources, r.InMemoryBytecodeSource[i])
		}
		if r.RelativePathSource != nil {
			src := r.RelativePathSource.Source
			sources = append(sources, &src)
		}
		for i := range r.RelativePathBytecodeSource {
			if r.RelativePathBytecodeSource[i] != nil {
				src := r.RelativePathBytecodeSource[i].Source
				sources = append(sources, &src)
			}
		}
		for _, loc := range sources {
			if loc == nil {
				continue
			}
			data, err := loc.Resolve()
			if err != nil {
				return nil, err
			}
			if bytes.Contains(data, dunderFile) {
				found = append(found, name)
				break
			}
		}
	}
	return found, nil
}
