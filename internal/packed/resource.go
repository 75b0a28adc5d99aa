// Package packed defines the finalized resource entry and the versioned
// binary writer that serializes the resource table for embedding. The byte
// format is: magic, big-endian schema version, big-endian entry count,
// then one msgpack-encoded record per entry in table order.
package packed

import (
	"pyforge/internal/pyres"
)

// Resource is one finalized entry of the embedded resource table. Payload
// fields are optional; a nil/empty field means the payload variant is
// absent. Optimization-level variants are indexed 0/1/2.
type Resource struct {
	Name      string `msgpack:"name"`
	Flavor    uint8  `msgpack:"flavor"`
	IsPackage bool   `msgpack:"is_package"`

	InMemorySource   []byte                              `msgpack:"in_memory_source,omitempty"`
	InMemoryBytecode [pyres.NumOptimizationLevels][]byte `msgpack:"in_memory_bytecode,omitempty"`

	RelativePathModuleSource   string                              `msgpack:"relative_path_module_source,omitempty"`
	RelativePathModuleBytecode [pyres.NumOptimizationLevels]string `msgpack:"relative_path_module_bytecode,omitempty"`

	InMemoryExtensionModuleSharedLibrary     []byte `msgpack:"in_memory_extension_module_shared_library,omitempty"`
	RelativePathExtensionModuleSharedLibrary string `msgpack:"relative_path_extension_module_shared_library,omitempty"`

	InMemorySharedLibrary        []byte   `msgpack:"in_memory_shared_library,omitempty"`
	RelativePathSharedLibrary    string   `msgpack:"relative_path_shared_library,omitempty"`
	SharedLibraryDependencyNames []string `msgpack:"shared_library_dependency_names,omitempty"`

	InMemoryResources             map[string][]byte `msgpack:"in_memory_resources,omitempty"`
	RelativePathResources         map[string]string `msgpack:"relative_path_resources,omitempty"`
	InMemoryDistributionResources map[string][]byte `msgpack:"in_memory_distribution_resources,omitempty"`
	RelativePathDistributionResources map[string]string `msgpack:"relative_path_distribution_resources,omitempty"`
}

// HasPayload reports whether any payload variant is present.
func (r *Resource) HasPayload() bool {
	for i := 0; i < pyres.NumOptimizationLevels; i++ {
		if len(r.InMemoryBytecode[i]) > 0 || r.RelativePathModuleBytecode[i] != "" {
			return true
		}
	}
	return len(r.InMemorySource) > 0 ||
		r.RelativePathModuleSource != "" ||
		len(r.InMemoryExtensionModuleSharedLibrary) > 0 ||
		r.RelativePathExtensionModuleSharedLibrary != "" ||
		len(r.InMemorySharedLibrary) > 0 ||
		r.RelativePathSharedLibrary != "" ||
		len(r.InMemoryResources) > 0 ||
		len(r.RelativePathResources) > 0 ||
		len(r.InMemoryDistributionResources) > 0 ||
		len(r.RelativePathDistributionResources) > 0
}
