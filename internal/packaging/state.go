package packaging

import (
	"pyforge/internal/pyres"
)

// ExtensionModuleBuildState accumulates everything a builtin extension
// module contributes to linking the embedded interpreter library.
type ExtensionModuleBuildState struct {
	// InitFn is the C initialization function symbol, "" if none.
	InitFn string
	// LinkObjectFiles are object files linked into the library.
	LinkObjectFiles []pyres.DataLocation
	// LinkFrameworks are Apple frameworks to link against.
	LinkFrameworks StringSet
	// LinkSystemLibraries are OS-provided libraries to link against.
	LinkSystemLibraries StringSet
	// LinkStaticLibraries are static library names to link against.
	LinkStaticLibraries StringSet
	// LinkDynamicLibraries are shared library names to link against.
	LinkDynamicLibraries StringSet
	// LinkExternalLibraries are library names with no recorded artifact.
	LinkExternalLibraries StringSet
}

func newBuildState(initFn string) *ExtensionModuleBuildState {
	return &ExtensionModuleBuildState{
		InitFn:                initFn,
		LinkFrameworks:        NewStringSet(),
		LinkSystemLibraries:   NewStringSet(),
		LinkStaticLibraries:   NewStringSet(),
		LinkDynamicLibraries:  NewStringSet(),
		LinkExternalLibraries: NewStringSet(),
	}
}

func (s *ExtensionModuleBuildState) clone() *ExtensionModuleBuildState {
	out := &ExtensionModuleBuildState{
		InitFn:                s.InitFn,
		LinkObjectFiles:       append([]pyres.DataLocation(nil), s.LinkObjectFiles...),
		LinkFrameworks:        s.LinkFrameworks.Clone(),
		LinkSystemLibraries:   s.LinkSystemLibraries.Clone(),
		LinkStaticLibraries:   s.LinkStaticLibraries.Clone(),
		LinkDynamicLibraries:  s.LinkDynamicLibraries.Clone(),
		LinkExternalLibraries: s.LinkExternalLibraries.Clone(),
	}
	return out
}

// recordLink files dep into the set matching its kind. Framework beats
// system beats static beats dynamic when a dependency carries several
// markers, matching how distributions describe their link requirements.
func (s *ExtensionModuleBuildState) recordLink(dep pyres.LibraryDependency) {
	switch {
	case dep.Framework:
		s.LinkFrameworks.Add(dep.Name)
	case dep.System:
		s.LinkSystemLibraries.Add(dep.Name)
	case dep.StaticPath != "":
		s.LinkStaticLibraries.Add(dep.Name)
	case dep.DynamicPath != "":
		s.LinkDynamicLibraries.Add(dep.Name)
	}
}
