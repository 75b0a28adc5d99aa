package pyres

// Flavor identifies the kind of a resource entry.
type Flavor uint8

const (
	// FlavorNone marks an entry whose kind has not been established yet.
	FlavorNone Flavor = iota
	// FlavorModule is a source module.
	FlavorModule
	// FlavorPackage is a package (possibly synthesized from dotted names).
	FlavorPackage
	// FlavorExtension is a native extension module.
	FlavorExtension
	// FlavorSharedLibrary is a standalone shared library.
	FlavorSharedLibrary
	// FlavorResource is opaque package resource data.
	FlavorResource
)

func (f Flavor) String() string {
	switch f {
	case FlavorNone:
		return "none"
	case FlavorModule:
		return "module"
	case FlavorPackage:
		return "package"
	case FlavorExtension:
		return "extension"
	case FlavorSharedLibrary:
		return "shared_library"
	case FlavorResource:
		return "resource"
	}
	return "unknown"
}

// OptimizationLevel selects one of the three bytecode generation modes.
type OptimizationLevel uint8

const (
	// Opt0 produces unoptimized bytecode.
	Opt0 OptimizationLevel = iota
	// Opt1 strips assertions.
	Opt1
	// Opt2 additionally strips docstrings.
	Opt2

	// NumOptimizationLevels is the number of distinct levels.
	NumOptimizationLevels = 3
)

func (l OptimizationLevel) String() string {
	switch l {
	case Opt0:
		return "0"
	case Opt1:
		return "1"
	case Opt2:
		return "2"
	}
	return "?"
}

// PycSuffix returns the optimization suffix embedded in bytecode cache file
// names: no suffix at level 0, ".opt-1"/".opt-2" otherwise.
func (l OptimizationLevel) PycSuffix() string {
	switch l {
	case Opt1:
		return ".opt-1"
	case Opt2:
		return ".opt-2"
	default:
		return ""
	}
}
