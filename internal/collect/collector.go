// Package collect implements the resource collector: an ordered table of
// pre-packaged resource entries keyed by dotted name, with the active
// placement policy enforced on every add. All "check policy, then
// insert-or-merge" operations are expressed as one method per resource
// category; on failure the table is left unchanged.
package collect

import (
	"path"
	"sort"

	"pyforge/internal/diag"
	"pyforge/internal/pyres"
)

// Collector owns the resource table during the mutation phase. It is not
// safe for concurrent use; the pipeline is single-threaded by design.
type Collector struct {
	policy    Policy
	cacheTag  string
	reporter  diag.Reporter
	resources map[string]*PrePackagedResource
}

// New returns an empty collector enforcing policy. cacheTag is the
// interpreter cache tag used for derived bytecode file names. reporter
// receives non-fatal diagnostics and may be nil.
func New(policy Policy, cacheTag string, reporter diag.Reporter) *Collector {
	return &Collector{
		policy:    policy,
		cacheTag:  cacheTag,
		reporter:  reporter,
		resources: make(map[string]*PrePackagedResource),
	}
}

// Policy returns the active placement policy.
func (c *Collector) Policy() Policy {
	return c.policy
}

// CacheTag returns the interpreter cache tag.
func (c *Collector) CacheTag() string {
	return c.cacheTag
}

// Len returns the number of collected entries.
func (c *Collector) Len() int {
	return len(c.resources)
}

// Names returns every collected name in lexicographic order.
func (c *Collector) Names() []string {
	names := make([]string, 0, len(c.resources))
	for name := range c.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the entry for name.
func (c *Collector) Get(name string) (*PrePackagedResource, bool) {
	r, ok := c.resources[pyres.NormalizeName(name)]
	return r, ok
}

// CheckPolicy fails with PolicyViolationError when the active policy
// forbids placement at loc.
func (c *Collector) CheckPolicy(loc Location, name string) error {
	if !c.policy.allows(loc) {
		return &PolicyViolationError{Policy: c.policy, Location: loc, Name: name}
	}
	return nil
}

// entry returns the record for name, creating it if absent. A conflicting
// existing flavor is overwritten (last writer wins, модуль и расширение
// для одного имени взаимоисключающие) with a non-fatal diagnostic.
func (c *Collector) entry(name string, flavor pyres.Flavor) *PrePackagedResource {
	name = pyres.NormalizeName(name)
	if existing, ok := c.resources[name]; ok {
		if existing.Flavor != flavor && existing.Flavor != pyres.FlavorNone {
			diag.ReportWarningf(c.reporter, diag.ResFlavorConflict, name,
				"resource %s re-added as %s, was %s; keeping last", name, flavor, existing.Flavor)
		}
		existing.Flavor = flavor
		return existing
	}
	r := &PrePackagedResource{Flavor: flavor, Name: name}
	c.resources[name] = r
	return r
}

// entryKeepFlavor is entry() for attachment-style adds (package data,
// distribution metadata) that must not disturb an established flavor.
func (c *Collector) entryKeepFlavor(name string, flavor pyres.Flavor) *PrePackagedResource {
	name = pyres.NormalizeName(name)
	if existing, ok := c.resources[name]; ok {
		if existing.Flavor == pyres.FlavorNone {
			existing.Flavor = flavor
		}
		return existing
	}
	r := &PrePackagedResource{Flavor: flavor, Name: name}
	c.resources[name] = r
	return r
}

// AddInMemoryModuleSource embeds a module's source in the binary.
func (c *Collector) AddInMemoryModuleSource(m *pyres.ModuleSource) error {
	if err := c.CheckPolicy(LocationInMemory, m.Name); err != nil {
		return err
	}
	e := c.entry(m.Name, pyres.FlavorModule)
	e.IsPackage = m.IsPackage
	src := m.Source
	e.InMemorySource = &src
	return nil
}

// AddRelativePathModuleSource installs a module's .py file on disk under
// prefix.
func (c *Collector) AddRelativePathModuleSource(m *pyres.ModuleSource, prefix string) error {
	if err := c.CheckPolicy(LocationRelativePath, m.Name); err != nil {
		return err
	}
	e := c.entry(m.Name, pyres.FlavorModule)
	e.IsPackage = m.IsPackage
	e.RelativePathSource = &RelativeFile{
		Prefix: prefix,
		Path:   m.ResolvePath(prefix),
		Source: m.Source,
	}
	return nil
}

// AddInMemoryModuleBytecodeFromSource records a request to embed bytecode
// compiled from the given source at the given optimization level.
func (c *Collector) AddInMemoryModuleBytecodeFromSource(m *pyres.ModuleBytecodeFromSource) error {
	if err := c.CheckPolicy(LocationInMemory, m.Name); err != nil {
		return err
	}
	e := c.entry(m.Name, pyres.FlavorModule)
	e.IsPackage = m.IsPackage
	src := m.Source
	e.InMemoryBytecodeSource[m.OptimizeLevel] = &src
	return nil
}

// AddRelativePathModuleBytecodeFromSource records a request to compile
// bytecode that is installed on disk under prefix.
func (c *Collector) AddRelativePathModuleBytecodeFromSource(m *pyres.ModuleBytecodeFromSource, prefix string) error {
	if err := c.CheckPolicy(LocationRelativePath, m.Name); err != nil {
		return err
	}
	cacheTag := m.CacheTag
	if cacheTag == "" {
		cacheTag = c.cacheTag
	}
	e := c.entry(m.Name, pyres.FlavorModule)
	e.IsPackage = m.IsPackage
	e.RelativePathBytecodeSource[m.OptimizeLevel] = &RelativeBytecode{
		Prefix:   prefix,
		CacheTag: cacheTag,
		Source:   m.Source,
	}
	return nil
}

// AddInMemoryPackageResource embeds package resource data.
func (c *Collector) AddInMemoryPackageResource(r *pyres.PackageResource) error {
	if err := c.CheckPolicy(LocationInMemory, r.LeafPackage); err != nil {
		return err
	}
	e := c.entryKeepFlavor(r.LeafPackage, pyres.FlavorResource)
	e.IsPackage = true
	if e.InMemoryResources == nil {
		e.InMemoryResources = make(map[string]pyres.DataLocation)
	}
	e.InMemoryResources[r.RelativeName] = r.Data
	return nil
}

// AddRelativePathPackageResource installs package resource data on disk.
func (c *Collector) AddRelativePathPackageResource(prefix string, r *pyres.PackageResource) error {
	if err := c.CheckPolicy(LocationRelativePath, r.LeafPackage); err != nil {
		return err
	}
	e := c.entryKeepFlavor(r.LeafPackage, pyres.FlavorResource)
	e.IsPackage = true
	if e.RelativePathResources == nil {
		e.RelativePathResources = make(map[string]RelativeFile)
	}
	e.RelativePathResources[r.RelativeName] = RelativeFile{
		Prefix: prefix,
		Path:   r.ResolvePath(prefix),
		Source: r.Data,
	}
	return nil
}

// AddInMemoryDistributionResource embeds package distribution metadata.
func (c *Collector) AddInMemoryDistributionResource(r *pyres.PackageDistributionResource) error {
	if err := c.CheckPolicy(LocationInMemory, r.Package); err != nil {
		return err
	}
	e := c.entryKeepFlavor(r.Package, pyres.FlavorResource)
	e.IsPackage = true
	if e.InMemoryDistributionResources == nil {
		e.InMemoryDistributionResources = make(map[string]pyres.DataLocation)
	}
	e.InMemoryDistributionResources[r.Name] = r.Data
	return nil
}

// AddRelativePathDistributionResource installs package distribution
// metadata on disk.
func (c *Collector) AddRelativePathDistributionResource(prefix string, r *pyres.PackageDistributionResource) error {
	if err := c.CheckPolicy(LocationRelativePath, r.Package); err != nil {
		return err
	}
	e := c.entryKeepFlavor(r.Package, pyres.FlavorResource)
	e.IsPackage = true
	if e.RelativePathDistributionResources == nil {
		e.RelativePathDistributionResources = make(map[string]RelativeFile)
	}
	e.RelativePathDistributionResources[r.Name] = RelativeFile{
		Prefix: prefix,
		Path:   r.ResolvePath(prefix),
		Source: r.Data,
	}
	return nil
}

// AddBuiltinExtensionModule registers an extension module linked directly
// into the produced binary. Builtin extensions bypass the placement
// policy: they are neither embedded data nor installed files.
func (c *Collector) AddBuiltinExtensionModule(em *pyres.ExtensionModule) error {
	e := c.entry(em.Name, pyres.FlavorExtension)
	e.IsPackage = em.IsPackage
	return nil
}

// AddInMemoryExtensionModuleSharedLibrary embeds an extension module's
// shared library for in-memory import.
func (c *Collector) AddInMemoryExtensionModuleSharedLibrary(name string, isPackage bool, data []byte) error {
	if err := c.CheckPolicy(LocationInMemory, name); err != nil {
		return err
	}
	e := c.entry(name, pyres.FlavorExtension)
	e.IsPackage = isPackage
	loc := pyres.MemoryLocation(data)
	e.InMemoryExtensionModuleSharedLibrary = &loc
	return nil
}

// AddRelativePathExtensionModule installs an extension module's shared
// library on disk under prefix.
func (c *Collector) AddRelativePathExtensionModule(em *pyres.ExtensionModule, prefix string) error {
	if err := c.CheckPolicy(LocationRelativePath, em.Name); err != nil {
		return err
	}
	if em.ExtensionData == nil {
		return &MissingPayloadError{Module: em.Name, Reason: "as path relative because it lacks a shared library"}
	}
	e := c.entry(em.Name, pyres.FlavorExtension)
	e.IsPackage = em.IsPackage
	e.RelativePathExtensionModuleSharedLibrary = &RelativeFile{
		Prefix: prefix,
		Path:   em.ResolvePath(prefix),
		Source: *em.ExtensionData,
	}
	return nil
}

// AddRelativePathExtensionModuleFile installs a pre-built extension
// module shared library on disk at an explicit path under prefix. Used
// for distribution extensions, whose install path is the original file
// name rather than one derived from the dotted module name.
func (c *Collector) AddRelativePathExtensionModuleFile(name, prefix, installPath string, loc pyres.DataLocation) error {
	if err := c.CheckPolicy(LocationRelativePath, name); err != nil {
		return err
	}
	e := c.entry(name, pyres.FlavorExtension)
	e.RelativePathExtensionModuleSharedLibrary = &RelativeFile{
		Prefix: prefix,
		Path:   installPath,
		Source: loc,
	}
	return nil
}

// AddInMemorySharedLibrary embeds a standalone shared library under its
// file name.
func (c *Collector) AddInMemorySharedLibrary(name string, loc pyres.DataLocation) error {
	if err := c.CheckPolicy(LocationInMemory, name); err != nil {
		return err
	}
	e := c.entryKeepFlavor(name, pyres.FlavorSharedLibrary)
	e.InMemorySharedLibrary = &loc
	return nil
}

// AddRelativePathSharedLibrary installs a standalone shared library next
// to the resource tree under prefix.
func (c *Collector) AddRelativePathSharedLibrary(prefix, name string, loc pyres.DataLocation) error {
	if err := c.CheckPolicy(LocationRelativePath, name); err != nil {
		return err
	}
	e := c.entryKeepFlavor(name, pyres.FlavorSharedLibrary)
	e.RelativePathSharedLibrary = &RelativeFile{
		Prefix: prefix,
		Path:   path.Join(prefix, name),
		Source: loc,
	}
	return nil
}

// RecordSharedLibraryDependency notes that module loads the named shared
// library at run time.
func (c *Collector) RecordSharedLibraryDependency(module, library string) {
	e := c.entryKeepFlavor(module, pyres.FlavorExtension)
	for _, existing := range e.SharedLibraryDependencyNames {
		if existing == library {
			return
		}
	}
	e.SharedLibraryDependencyNames = append(e.SharedLibraryDependencyNames, library)
	sort.Strings(e.SharedLibraryDependencyNames)
}

// Filter restricts the table to names in keep. It never fails; unknown
// names are ignored and remaining entries keep their order.
func (c *Collector) Filter(keep map[string]struct{}) {
	for _, name := range c.Names() {
		if _, ok := keep[name]; !ok {
			diag.ReportInfof(c.reporter, diag.ResFiltered, name, "removing %s from resource table", name)
			delete(c.resources, name)
		}
	}
}

// Snapshot returns a deep copy of the table for the packaging pipeline.
func (c *Collector) Snapshot() map[string]*PrePackagedResource {
	out := make(map[string]*PrePackagedResource, len(c.resources))
	for name, r := range c.resources {
		out[name] = r.Clone()
	}
	return out
}
