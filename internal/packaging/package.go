package packaging

import (
	"context"
	"sort"
	"time"

	"pyforge/internal/collect"
	"pyforge/internal/compile"
	"pyforge/internal/diag"
	"pyforge/internal/manifest"
	"pyforge/internal/packed"
	"pyforge/internal/pyres"
)

// PackageRequest carries the collaborators for one packaging run.
type PackageRequest struct {
	// Compiler materializes bytecode; acquired once per run and reused
	// sequentially across all modules and optimization levels.
	Compiler compile.Compiler
	// Progress receives per-resource pipeline events, nil to disable.
	Progress ProgressSink
}

// Package finalizes the aggregate: it scans sources for __file__ usage,
// synthesizes missing parent packages, compiles all pending bytecode and
// returns the immutable Embedded result. The aggregate itself is left
// untouched, so a caller can package once, mutate and package again.
func (p *PrePackaged) Package(ctx context.Context, req *PackageRequest) (*Embedded, error) {
	if err := p.warnDunderFile(req.Progress); err != nil {
		return nil, err
	}

	input := p.collector.Snapshot()
	p.synthesizeParents(input, req.Progress)

	extraFiles := manifest.New()
	resources := make(map[string]*packed.Resource, len(input))
	for _, name := range sortedResourceNames(input) {
		start := time.Now()
		emit(req.Progress, name, StageCompile, StatusWorking, nil, 0)
		entry, err := p.finalizeResource(ctx, req.Compiler, input[name], extraFiles)
		if err != nil {
			emit(req.Progress, name, StageCompile, StatusError, err, time.Since(start))
			return nil, err
		}
		resources[name] = entry
		emit(req.Progress, name, StageCompile, StatusDone, nil, time.Since(start))
	}

	p.correctDerivedPackages(resources)

	emit(req.Progress, "", StageWrite, StatusWorking, nil, 0)
	start := time.Now()
	for _, install := range p.collector.DeriveFileInstalls() {
		data, err := install.Location.Resolve()
		if err != nil {
			emit(req.Progress, "", StageWrite, StatusError, err, time.Since(start))
			return nil, err
		}
		err = extraFiles.AddFile(install.Path, manifest.FileContent{Data: data, Executable: install.Executable})
		if err != nil {
			emit(req.Progress, "", StageWrite, StatusError, err, time.Since(start))
			return nil, err
		}
	}
	emit(req.Progress, "", StageWrite, StatusDone, nil, time.Since(start))

	states := make(map[string]*ExtensionModuleBuildState, len(p.extensionModuleStates))
	for name, state := range p.extensionModuleStates {
		states[name] = state.clone()
	}

	return &Embedded{
		names:            sortedResourceNames(resources),
		resources:        resources,
		extraFiles:       extraFiles,
		extensionModules: states,
	}, nil
}

// warnDunderFile surfaces modules whose source references __file__. The
// embedded importer does not set __file__, so these may fail at run time.
func (p *PrePackaged) warnDunderFile(progress ProgressSink) error {
	start := time.Now()
	emit(progress, "", StageScan, StatusWorking, nil, 0)
	found, err := p.collector.FindDunderFile()
	if err != nil {
		emit(progress, "", StageScan, StatusError, err, time.Since(start))
		return err
	}
	for _, name := range found {
		diag.ReportWarningf(p.reporter, diag.PkgDunderFile, name, "warning: %s contains __file__", name)
	}
	if len(found) > 0 {
		diag.ReportWarningf(p.reporter, diag.PkgDunderFileNotice, "",
			"__file__ is not available to embedded modules and may cause errors at run time")
	}
	emit(progress, "", StageScan, StatusDone, nil, time.Since(start))
	return nil
}

// synthesizeParents creates empty package entries for every ancestor
// implied by a collected name, so that "a.b.c" is importable even when
// nothing was explicitly added for "a" or "a.b". Existing entries are
// left alone here; correctDerivedPackages fixes their flag later.
func (p *PrePackaged) synthesizeParents(input map[string]*collect.PrePackagedResource, progress ProgressSink) {
	start := time.Now()
	emit(progress, "", StageInfer, StatusWorking, nil, 0)
	for _, parent := range pyres.AncestorPackages(sortedResourceNames(input)) {
		if _, ok := input[parent]; ok {
			continue
		}
		input[parent] = &collect.PrePackagedResource{
			Name:      parent,
			Flavor:    pyres.FlavorPackage,
			IsPackage: true,
		}
	}
	emit(progress, "", StageInfer, StatusDone, nil, time.Since(start))
}

// correctDerivedPackages runs after compilation over the finalized table
// plus builtin extension names: every derived ancestor must exist and be
// flagged as a package. A present entry with the flag unset indicates the
// input mis-declared a package; it is corrected with a warning.
func (p *PrePackaged) correctDerivedPackages(resources map[string]*packed.Resource) {
	names := sortedResourceNames(resources)
	names = append(names, p.extensionModuleNames()...)
	for _, derived := range pyres.AncestorPackages(names) {
		entry, ok := resources[derived]
		if !ok {
			resources[derived] = &packed.Resource{
				Name:      derived,
				Flavor:    uint8(pyres.FlavorPackage),
				IsPackage: true,
			}
			continue
		}
		if !entry.IsPackage {
			diag.ReportWarningf(p.reporter, diag.PkgParentCorrected, derived,
				"package %s not initially detected as such; possible package detection bug", derived)
			entry.IsPackage = true
		}
	}
}

// finalizeResource converts one collected entry into its packed form,
// compiling pending bytecode. Relative-path bytecode lands in extraFiles
// under its __pycache__ path; only the path is recorded in the entry.
func (p *PrePackaged) finalizeResource(
	ctx context.Context,
	compiler compile.Compiler,
	r *collect.PrePackagedResource,
	extraFiles *manifest.FileManifest,
) (*packed.Resource, error) {
	entry := &packed.Resource{
		Name:      r.Name,
		Flavor:    uint8(r.Flavor),
		IsPackage: r.IsPackage,
	}

	var err error
	if r.InMemorySource != nil {
		if entry.InMemorySource, err = r.InMemorySource.Resolve(); err != nil {
			return nil, err
		}
	}
	if r.RelativePathSource != nil {
		entry.RelativePathModuleSource = r.RelativePathSource.Path
	}

	for level := 0; level < pyres.NumOptimizationLevels; level++ {
		optLevel := pyres.OptimizationLevel(level) // #nosec G115 -- level < NumOptimizationLevels

		if src := r.InMemoryBytecodeSource[level]; src != nil {
			source, err := src.Resolve()
			if err != nil {
				return nil, err
			}
			code, err := compiler.Compile(ctx, source, r.Name, optLevel, compile.ModeBytecode)
			if err != nil {
				return nil, err
			}
			entry.InMemoryBytecode[level] = code
		}

		if rb := r.RelativePathBytecodeSource[level]; rb != nil {
			source, err := rb.Source.Resolve()
			if err != nil {
				return nil, err
			}
			code, err := compiler.Compile(ctx, source, r.Name, optLevel, compile.ModePycUncheckedHash)
			if err != nil {
				return nil, err
			}
			mb := pyres.ModuleBytecodeFromSource{
				Name:          r.Name,
				OptimizeLevel: optLevel,
				IsPackage:     r.IsPackage,
				CacheTag:      rb.CacheTag,
			}
			pycPath := mb.ResolvePath(rb.Prefix)
			if err := extraFiles.AddFile(pycPath, manifest.FileContent{Data: code}); err != nil {
				return nil, err
			}
			entry.RelativePathModuleBytecode[level] = pycPath
		}
	}

	if r.InMemoryExtensionModuleSharedLibrary != nil {
		if entry.InMemoryExtensionModuleSharedLibrary, err = r.InMemoryExtensionModuleSharedLibrary.Resolve(); err != nil {
			return nil, err
		}
	}
	if r.RelativePathExtensionModuleSharedLibrary != nil {
		entry.RelativePathExtensionModuleSharedLibrary = r.RelativePathExtensionModuleSharedLibrary.Path
	}

	if r.InMemorySharedLibrary != nil {
		if entry.InMemorySharedLibrary, err = r.InMemorySharedLibrary.Resolve(); err != nil {
			return nil, err
		}
	}
	if r.RelativePathSharedLibrary != nil {
		entry.RelativePathSharedLibrary = r.RelativePathSharedLibrary.Path
	}
	entry.SharedLibraryDependencyNames = append([]string(nil), r.SharedLibraryDependencyNames...)

	if entry.InMemoryResources, err = resolveDataMap(r.InMemoryResources); err != nil {
		return nil, err
	}
	entry.RelativePathResources = pathMap(r.RelativePathResources)
	if entry.InMemoryDistributionResources, err = resolveDataMap(r.InMemoryDistributionResources); err != nil {
		return nil, err
	}
	entry.RelativePathDistributionResources = pathMap(r.RelativePathDistributionResources)

	return entry, nil
}

func resolveDataMap(in map[string]pyres.DataLocation) (map[string][]byte, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string][]byte, len(in))
	for name, loc := range in {
		data, err := loc.Resolve()
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

func pathMap(in map[string]collect.RelativeFile) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for name, file := range in {
		out[name] = file.Path
	}
	return out
}

func sortedResourceNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
