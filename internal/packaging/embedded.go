package packaging

import (
	"io"

	"pyforge/internal/manifest"
	"pyforge/internal/packed"
)

// Embedded is the finalized packaging result. It is immutable: every
// accessor returns copies or read-only views, and enumeration order is
// name-lexicographic throughout.
type Embedded struct {
	names            []string
	resources        map[string]*packed.Resource
	extraFiles       *manifest.FileManifest
	extensionModules map[string]*ExtensionModuleBuildState
}

// Names returns every packaged resource name in order.
func (e *Embedded) Names() []string {
	return append([]string(nil), e.names...)
}

// Len returns the number of packaged resources.
func (e *Embedded) Len() int {
	return len(e.names)
}

// Resource returns the packed entry for name.
func (e *Embedded) Resource(name string) (packed.Resource, bool) {
	r, ok := e.resources[name]
	if !ok {
		return packed.Resource{}, false
	}
	return *r, true
}

// WriteBlobs emits the two embedding artifacts: the newline-separated
// module name list and the packed resource table, both in table order.
func (e *Embedded) WriteBlobs(namesW, resourcesW io.Writer) error {
	for _, name := range e.names {
		if _, err := io.WriteString(namesW, name+"\n"); err != nil {
			return err
		}
	}
	entries := make([]packed.Resource, 0, len(e.names))
	for _, name := range e.names {
		entries = append(entries, *e.resources[name])
	}
	return packed.WriteResources(resourcesW, entries)
}

// BuiltinExtension pairs a builtin extension module with its C init
// function, for generating the interpreter's inittab.
type BuiltinExtension struct {
	Name   string
	InitFn string
}

// BuiltinExtensions lists the builtin extension modules that expose an
// init function, in name order. Modules without one are linked for their
// side effects only and are excluded.
func (e *Embedded) BuiltinExtensions() []BuiltinExtension {
	var out []BuiltinExtension
	for _, name := range sortedResourceNames(e.extensionModules) {
		state := e.extensionModules[name]
		if state.InitFn == "" {
			continue
		}
		out = append(out, BuiltinExtension{Name: name, InitFn: state.InitFn})
	}
	return out
}

// ExtraInstallFiles returns the files to install next to the produced
// binary: relative-path payloads plus compiled .pyc files.
func (e *Embedded) ExtraInstallFiles() (*manifest.FileManifest, error) {
	out := manifest.New()
	if err := out.AddManifest(e.extraFiles); err != nil {
		return nil, err
	}
	return out, nil
}
