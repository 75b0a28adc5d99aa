package collect

import (
	"pyforge/internal/pyres"
)

// RelativeFile is a payload destined for disk: the install prefix it was
// requested under, the derived destination path and the byte source.
type RelativeFile struct {
	Prefix string
	Path   string
	Source pyres.DataLocation
}

// RelativeBytecode is a deferred bytecode compilation whose output lands
// on disk; the destination path is derived at packaging time from the
// module name, package flag, cache tag and optimization level.
type RelativeBytecode struct {
	Prefix   string
	CacheTag string
	Source   pyres.DataLocation
}

// PrePackagedResource is the in-memory record describing one named
// resource before packaging. Later adds for the same name merge fields
// rather than replace the entry.
type PrePackagedResource struct {
	Flavor    pyres.Flavor
	Name      string
	IsPackage bool

	InMemorySource             *pyres.DataLocation
	InMemoryBytecodeSource     [pyres.NumOptimizationLevels]*pyres.DataLocation
	RelativePathSource         *RelativeFile
	RelativePathBytecodeSource [pyres.NumOptimizationLevels]*RelativeBytecode

	InMemoryExtensionModuleSharedLibrary     *pyres.DataLocation
	RelativePathExtensionModuleSharedLibrary *RelativeFile

	InMemorySharedLibrary        *pyres.DataLocation
	RelativePathSharedLibrary    *RelativeFile
	SharedLibraryDependencyNames []string

	InMemoryResources                 map[string]pyres.DataLocation
	RelativePathResources             map[string]RelativeFile
	InMemoryDistributionResources     map[string]pyres.DataLocation
	RelativePathDistributionResources map[string]RelativeFile
}

// Clone returns a deep copy; the packaging pipeline snapshots entries so
// the finalized result cannot alias collector state.
func (r *PrePackagedResource) Clone() *PrePackagedResource {
	out := *r
	out.SharedLibraryDependencyNames = append([]string(nil), r.SharedLibraryDependencyNames...)
	out.InMemoryResources = cloneLocations(r.InMemoryResources)
	out.RelativePathResources = cloneFiles(r.RelativePathResources)
	out.InMemoryDistributionResources = cloneLocations(r.InMemoryDistributionResources)
	out.RelativePathDistributionResources = cloneFiles(r.RelativePathDistributionResources)
	return &out
}

func cloneLocations(in map[string]pyres.DataLocation) map[string]pyres.DataLocation {
	if in == nil {
		return nil
	}
	out := make(map[string]pyres.DataLocation, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneFiles(in map[string]RelativeFile) map[string]RelativeFile {
	if in == nil {
		return nil
	}
	out := make(map[string]RelativeFile, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
