package pyres

import (
	"path"
	"strings"
)

// LibraryDependency describes a native library an extension module links
// against, as recorded by the runtime distribution.
type LibraryDependency struct {
	// Name is the library name without prefix/suffix decorations.
	Name string
	// System marks a library provided by the operating system.
	System bool
	// Framework marks an Apple framework.
	Framework bool
	// StaticPath points at a static library archive, "" if none.
	StaticPath string
	// DynamicPath points at a shared library, "" if none.
	DynamicPath string
}

// DistributionExtensionModule is an extension module shipped with a Python
// distribution, with pre-built artifacts.
type DistributionExtensionModule struct {
	// Module is the fully qualified dotted module name.
	Module string
	// InitFn is the C initialization function symbol, "" if none.
	InitFn string
	// BuiltinDefault marks modules already linked into the core runtime;
	// they contribute no extra object files.
	BuiltinDefault bool
	// ObjectPaths are object files to link when building the runtime.
	ObjectPaths []string
	// SharedLibrary points at the module's shared library, "" if none.
	SharedLibrary string
	// Links are native library dependencies.
	Links []LibraryDependency
}

// ExtensionModule is an extension module supplied by the caller, typically
// produced by compiling C sources during packaging.
type ExtensionModule struct {
	// Name is the fully qualified dotted module name.
	Name string
	// InitFn is the C initialization function symbol, "" if none.
	InitFn string
	// ExtensionFileSuffix is the platform shared-library suffix (".so",
	// ".pyd", ...), including the leading dot.
	ExtensionFileSuffix string
	// ExtensionData holds the compiled shared library, nil if none.
	ExtensionData *DataLocation
	// ObjectFileData holds object files for linking the module as builtin.
	ObjectFileData [][]byte
	// IsPackage marks the extension as a package.
	IsPackage bool
	// Libraries are library names the module links against.
	Libraries []string
}

// ResolvePath derives the shared-library install path under prefix:
// "foo.bar" with suffix ".so" maps to prefix/foo/bar.so.
func (m *ExtensionModule) ResolvePath(prefix string) string {
	parts := strings.Split(m.Name, ".")
	parts[len(parts)-1] += m.ExtensionFileSuffix
	return path.Join(append([]string{prefix}, parts...)...)
}
