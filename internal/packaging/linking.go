package packaging

import (
	"pyforge/internal/diag"
)

// LibpythonLinkingInfo is everything needed to link the embedded
// interpreter library: object files in module order, then the deduplicated
// library sets. Static and dynamic libraries collapse into LinkLibraries;
// the linker resolves the artifact kind by search path.
type LibpythonLinkingInfo struct {
	ObjectFiles           [][]byte
	LinkLibraries         []string
	LinkFrameworks        []string
	LinkSystemLibraries   []string
	LinkLibrariesExternal []string
}

// ResolveLibpythonLinkingInfo walks the builtin extension build states in
// module name order and aggregates their link requirements. reporter
// receives one line per (module, dependency) pair and may be nil.
func (e *Embedded) ResolveLibpythonLinkingInfo(reporter diag.Reporter) (*LibpythonLinkingInfo, error) {
	info := &LibpythonLinkingInfo{}
	libraries := NewStringSet()
	frameworks := NewStringSet()
	systemLibraries := NewStringSet()
	externalLibraries := NewStringSet()

	for _, name := range sortedResourceNames(e.extensionModules) {
		state := e.extensionModules[name]
		if len(state.LinkObjectFiles) > 0 {
			diag.ReportInfof(reporter, diag.LinkObjectFiles, name,
				"adding %d object files for %s extension module", len(state.LinkObjectFiles), name)
			for _, loc := range state.LinkObjectFiles {
				data, err := loc.Resolve()
				if err != nil {
					return nil, err
				}
				info.ObjectFiles = append(info.ObjectFiles, data)
			}
		}
		for _, framework := range state.LinkFrameworks.Sorted() {
			diag.ReportInfof(reporter, diag.LinkFramework, name,
				"framework %s required by %s", framework, name)
			frameworks.Add(framework)
		}
		for _, lib := range state.LinkSystemLibraries.Sorted() {
			diag.ReportInfof(reporter, diag.LinkSystemLibrary, name,
				"system library %s required by %s", lib, name)
			systemLibraries.Add(lib)
		}
		for _, lib := range state.LinkStaticLibraries.Sorted() {
			diag.ReportInfof(reporter, diag.LinkStaticLibrary, name,
				"static library %s required by %s", lib, name)
			libraries.Add(lib)
		}
		for _, lib := range state.LinkDynamicLibraries.Sorted() {
			diag.ReportInfof(reporter, diag.LinkDynamicLibrary, name,
				"dynamic library %s required by %s", lib, name)
			libraries.Add(lib)
		}
		for _, lib := range state.LinkExternalLibraries.Sorted() {
			diag.ReportInfof(reporter, diag.LinkExternalLibrary, name,
				"library %s required by %s", lib, name)
			externalLibraries.Add(lib)
		}
	}

	info.LinkLibraries = libraries.Sorted()
	info.LinkFrameworks = frameworks.Sorted()
	info.LinkSystemLibraries = systemLibraries.Sorted()
	info.LinkLibrariesExternal = externalLibraries.Sorted()
	return info, nil
}
