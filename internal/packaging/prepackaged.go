// Package packaging drives resource packaging end to end: callers fill a
// PrePackaged aggregate with modules, extension modules, resource data and
// shared libraries, then Package() compiles bytecode, infers the package
// hierarchy and freezes everything into an immutable Embedded result that
// can emit blobs, install manifests and libpython linking info.
package packaging

import (
	"context"
	"path"
	"path/filepath"
	"sort"

	"pyforge/internal/collect"
	"pyforge/internal/diag"
	"pyforge/internal/pyres"
	"pyforge/internal/scan"
)

// PrePackaged aggregates the mutable packaging state: the resource
// collector plus per-module build state for builtin extension modules.
// Not safe for concurrent use.
type PrePackaged struct {
	collector             *collect.Collector
	extensionModuleStates map[string]*ExtensionModuleBuildState
	reporter              diag.Reporter
}

// NewPrePackaged returns an empty aggregate enforcing policy. cacheTag
// names the interpreter bytecode cache tag. reporter may be nil.
func NewPrePackaged(policy collect.Policy, cacheTag string, reporter diag.Reporter) *PrePackaged {
	return &PrePackaged{
		collector:             collect.New(policy, cacheTag, reporter),
		extensionModuleStates: make(map[string]*ExtensionModuleBuildState),
		reporter:              reporter,
	}
}

// Policy returns the active placement policy.
func (p *PrePackaged) Policy() collect.Policy {
	return p.collector.Policy()
}

// Names returns every collected resource and builtin extension name in
// lexicographic order.
func (p *PrePackaged) Names() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0, p.collector.Len()+len(p.extensionModuleStates))
	for _, name := range p.collector.Names() {
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for name := range p.extensionModuleStates {
		if _, ok := seen[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AddInMemoryModuleSource embeds a module's source in the binary.
func (p *PrePackaged) AddInMemoryModuleSource(m *pyres.ModuleSource) error {
	return p.collector.AddInMemoryModuleSource(m)
}

// AddRelativePathModuleSource installs a module's .py file on disk.
func (p *PrePackaged) AddRelativePathModuleSource(m *pyres.ModuleSource, prefix string) error {
	return p.collector.AddRelativePathModuleSource(m, prefix)
}

// AddInMemoryModuleBytecodeFromSource schedules bytecode compilation for
// in-memory embedding.
func (p *PrePackaged) AddInMemoryModuleBytecodeFromSource(m *pyres.ModuleBytecodeFromSource) error {
	return p.collector.AddInMemoryModuleBytecodeFromSource(m)
}

// AddRelativePathModuleBytecodeFromSource schedules bytecode compilation
// whose .pyc lands on disk under prefix.
func (p *PrePackaged) AddRelativePathModuleBytecodeFromSource(m *pyres.ModuleBytecodeFromSource, prefix string) error {
	return p.collector.AddRelativePathModuleBytecodeFromSource(m, prefix)
}

// AddInMemoryPackageResource embeds package resource data.
func (p *PrePackaged) AddInMemoryPackageResource(r *pyres.PackageResource) error {
	return p.collector.AddInMemoryPackageResource(r)
}

// AddRelativePathPackageResource installs package resource data on disk.
func (p *PrePackaged) AddRelativePathPackageResource(prefix string, r *pyres.PackageResource) error {
	return p.collector.AddRelativePathPackageResource(prefix, r)
}

// AddInMemoryDistributionResource embeds package distribution metadata.
func (p *PrePackaged) AddInMemoryDistributionResource(r *pyres.PackageDistributionResource) error {
	return p.collector.AddInMemoryDistributionResource(r)
}

// AddRelativePathDistributionResource installs package distribution
// metadata on disk.
func (p *PrePackaged) AddRelativePathDistributionResource(prefix string, r *pyres.PackageDistributionResource) error {
	return p.collector.AddRelativePathDistributionResource(prefix, r)
}

// AddBuiltinDistributionExtensionModule links a distribution-provided
// extension module directly into the produced library. Modules marked
// builtin-default are already part of the core runtime and contribute no
// object files; everything else contributes its object files plus link
// dependencies.
func (p *PrePackaged) AddBuiltinDistributionExtensionModule(em *pyres.DistributionExtensionModule) error {
	name := pyres.NormalizeName(em.Module)
	state := newBuildState(em.InitFn)
	if !em.BuiltinDefault {
		for _, objPath := range em.ObjectPaths {
			state.LinkObjectFiles = append(state.LinkObjectFiles, pyres.PathLocation(objPath))
		}
	}
	for _, dep := range em.Links {
		state.recordLink(dep)
	}
	p.extensionModuleStates[name] = state
	return nil
}

// AddInMemoryDistributionExtensionModule embeds a distribution-provided
// extension module's shared library for in-memory import. Shared library
// dependencies of the extension are embedded alongside it and recorded so
// the importer can resolve them before loading the module.
func (p *PrePackaged) AddInMemoryDistributionExtensionModule(em *pyres.DistributionExtensionModule) error {
	if em.SharedLibrary == "" {
		return &collect.MissingPayloadError{
			Module: em.Module,
			Reason: "for in-memory loading because it lacks a shared library",
		}
	}
	if err := p.collector.CheckPolicy(collect.LocationInMemory, em.Module); err != nil {
		return err
	}
	data, err := pyres.PathLocation(em.SharedLibrary).Resolve()
	if err != nil {
		return err
	}
	if err := p.collector.AddInMemoryExtensionModuleSharedLibrary(em.Module, false, data); err != nil {
		return err
	}
	for _, dep := range em.Links {
		if dep.DynamicPath == "" {
			continue
		}
		libName := filepath.Base(dep.DynamicPath)
		if err := p.collector.AddInMemorySharedLibrary(libName, pyres.PathLocation(dep.DynamicPath)); err != nil {
			return err
		}
		p.collector.RecordSharedLibraryDependency(em.Module, libName)
	}
	return nil
}

// AddRelativePathDistributionExtensionModule installs a distribution-
// provided extension module's shared library on disk under prefix, along
// with the shared libraries it depends on.
func (p *PrePackaged) AddRelativePathDistributionExtensionModule(prefix string, em *pyres.DistributionExtensionModule) error {
	if em.SharedLibrary == "" {
		return &collect.MissingPayloadError{
			Module: em.Module,
			Reason: "as path relative because it lacks a shared library",
		}
	}
	if err := p.collector.CheckPolicy(collect.LocationRelativePath, em.Module); err != nil {
		return err
	}
	installPath := path.Join(prefix, filepath.Base(em.SharedLibrary))
	err := p.collector.AddRelativePathExtensionModuleFile(
		em.Module, prefix, installPath, pyres.PathLocation(em.SharedLibrary))
	if err != nil {
		return err
	}
	for _, dep := range em.Links {
		if dep.DynamicPath == "" {
			continue
		}
		libName := filepath.Base(dep.DynamicPath)
		if err := p.collector.AddRelativePathSharedLibrary(prefix, libName, pyres.PathLocation(dep.DynamicPath)); err != nil {
			return err
		}
		p.collector.RecordSharedLibraryDependency(em.Module, libName)
	}
	return nil
}

// AddBuiltinExtensionModule links a caller-supplied extension module into
// the produced library from its object file data.
func (p *PrePackaged) AddBuiltinExtensionModule(em *pyres.ExtensionModule) error {
	if len(em.ObjectFileData) == 0 {
		return &collect.MissingPayloadError{
			Module: em.Name,
			Reason: "as builtin because it lacks object file data",
		}
	}
	if err := p.collector.AddBuiltinExtensionModule(em); err != nil {
		return err
	}
	state := newBuildState(em.InitFn)
	for _, obj := range em.ObjectFileData {
		state.LinkObjectFiles = append(state.LinkObjectFiles, pyres.MemoryLocation(obj))
	}
	for _, lib := range em.Libraries {
		state.LinkExternalLibraries.Add(lib)
	}
	p.extensionModuleStates[pyres.NormalizeName(em.Name)] = state
	return nil
}

// AddInMemoryExtensionModuleSharedLibrary embeds a caller-supplied
// extension module's shared library for in-memory import.
func (p *PrePackaged) AddInMemoryExtensionModuleSharedLibrary(name string, isPackage bool, data []byte) error {
	return p.collector.AddInMemoryExtensionModuleSharedLibrary(name, isPackage, data)
}

// AddRelativePathExtensionModule installs a caller-supplied extension
// module's shared library on disk under prefix.
func (p *PrePackaged) AddRelativePathExtensionModule(em *pyres.ExtensionModule, prefix string) error {
	return p.collector.AddRelativePathExtensionModule(em, prefix)
}

// FilterFromFiles restricts both the resource table and the builtin
// extension set to names listed in the given annotation files and glob
// matches.
func (p *PrePackaged) FilterFromFiles(ctx context.Context, files, globPatterns []string) error {
	keep, err := scan.ResolveResourceNames(ctx, files, globPatterns)
	if err != nil {
		return err
	}

	diag.ReportInfof(p.reporter, diag.ResInfo, "", "filtering %d module entries", p.collector.Len())
	p.collector.Filter(keep)

	diag.ReportInfof(p.reporter, diag.ResInfo, "", "filtering %d embedded extension modules", len(p.extensionModuleStates))
	for _, name := range p.extensionModuleNames() {
		if _, ok := keep[name]; !ok {
			diag.ReportInfof(p.reporter, diag.ResFiltered, name, "removing extension module %s", name)
			delete(p.extensionModuleStates, name)
		}
	}
	return nil
}

func (p *PrePackaged) extensionModuleNames() []string {
	names := make([]string, 0, len(p.extensionModuleStates))
	for name := range p.extensionModuleStates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
