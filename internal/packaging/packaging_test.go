package packaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"pyforge/internal/collect"
	"pyforge/internal/compile"
	"pyforge/internal/diag"
	"pyforge/internal/packed"
	"pyforge/internal/pyres"
)

const testCacheTag = "cpython-39"

type compileCall struct {
	Name  string
	Level pyres.OptimizationLevel
	Mode  compile.Mode
}

// fakeCompiler records calls and returns deterministic output derived
// from the request, so tests can assert both sequencing and payloads.
type fakeCompiler struct {
	calls []compileCall
	err   error
}

func (c *fakeCompiler) Compile(_ context.Context, _ []byte, name string, level pyres.OptimizationLevel, mode compile.Mode) ([]byte, error) {
	c.calls = append(c.calls, compileCall{Name: name, Level: level, Mode: mode})
	if c.err != nil {
		return nil, &compile.Error{Module: name, Level: level, Err: c.err}
	}
	return []byte(fmt.Sprintf("code(%s,%s,%s)", name, level, mode)), nil
}

func (c *fakeCompiler) Close() error { return nil }

func newTestAggregate(kind collect.PolicyKind, reporter diag.Reporter) *PrePackaged {
	return NewPrePackaged(collect.Policy{Kind: kind}, testCacheTag, reporter)
}

func mustPackage(t *testing.T, p *PrePackaged) (*Embedded, *fakeCompiler) {
	t.Helper()
	fc := &fakeCompiler{}
	embedded, err := p.Package(context.Background(), &PackageRequest{Compiler: fc})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	return embedded, fc
}

func TestPackageRelativePathModuleSource(t *testing.T) {
	p := newTestAggregate(collect.PolicyFilesystemRelativeOnly, nil)
	err := p.AddRelativePathModuleSource(&pyres.ModuleSource{
		Name:     "foo",
		Source:   pyres.MemoryLocation([]byte{42}),
		CacheTag: testCacheTag,
	}, "")
	if err != nil {
		t.Fatalf("AddRelativePathModuleSource: %v", err)
	}

	embedded, fc := mustPackage(t, p)
	if len(fc.calls) != 0 {
		t.Errorf("compiler invoked %d times for a source-only module", len(fc.calls))
	}

	r, ok := embedded.Resource("foo")
	if !ok {
		t.Fatal("foo not packaged")
	}
	if r.RelativePathModuleSource != "foo.py" {
		t.Errorf("source path = %q, want foo.py", r.RelativePathModuleSource)
	}

	files, err := embedded.ExtraInstallFiles()
	if err != nil {
		t.Fatalf("ExtraInstallFiles: %v", err)
	}
	content, ok := files.Get("foo.py")
	if !ok {
		t.Fatal("foo.py not in install manifest")
	}
	if content.Executable || !bytes.Equal(content.Data, []byte{42}) {
		t.Errorf("foo.py = %+v, want non-executable [42]", content)
	}
}

func TestPackageBuiltinDistributionExtensionModule(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	err := p.AddBuiltinDistributionExtensionModule(&pyres.DistributionExtensionModule{
		Module:         "foo.bar",
		InitFn:         "PyInit_bar",
		BuiltinDefault: true,
	})
	if err != nil {
		t.Fatalf("AddBuiltinDistributionExtensionModule: %v", err)
	}

	state := p.extensionModuleStates["foo.bar"]
	if state == nil {
		t.Fatal("no build state recorded")
	}
	if len(state.LinkObjectFiles) != 0 {
		t.Errorf("builtin-default contributed %d object files", len(state.LinkObjectFiles))
	}
	for _, set := range []StringSet{
		state.LinkFrameworks, state.LinkSystemLibraries,
		state.LinkStaticLibraries, state.LinkDynamicLibraries,
		state.LinkExternalLibraries,
	} {
		if len(set) != 0 {
			t.Errorf("builtin-default recorded link deps: %v", set.Sorted())
		}
	}

	embedded, _ := mustPackage(t, p)
	builtins := embedded.BuiltinExtensions()
	if len(builtins) != 1 || builtins[0] != (BuiltinExtension{Name: "foo.bar", InitFn: "PyInit_bar"}) {
		t.Errorf("builtins = %v, want [{foo.bar PyInit_bar}]", builtins)
	}

	// ancestor inference runs over extension names too
	parent, ok := embedded.Resource("foo")
	if !ok || !parent.IsPackage {
		t.Errorf("parent foo = %+v (ok=%v), want synthesized package", parent, ok)
	}
}

func TestPackageBuiltinExtensionModuleFromObjectData(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	err := p.AddBuiltinExtensionModule(&pyres.ExtensionModule{
		Name:           "foo.bar",
		InitFn:         "PyInit_bar",
		ObjectFileData: [][]byte{{42}},
		Libraries:      []string{"z"},
	})
	if err != nil {
		t.Fatalf("AddBuiltinExtensionModule: %v", err)
	}

	embedded, _ := mustPackage(t, p)
	info, err := embedded.ResolveLibpythonLinkingInfo(nil)
	if err != nil {
		t.Fatalf("ResolveLibpythonLinkingInfo: %v", err)
	}
	if len(info.ObjectFiles) != 1 || !bytes.Equal(info.ObjectFiles[0], []byte{42}) {
		t.Errorf("object files = %v, want [[42]]", info.ObjectFiles)
	}
	if !reflect.DeepEqual(info.LinkLibrariesExternal, []string{"z"}) {
		t.Errorf("external libraries = %v, want [z]", info.LinkLibrariesExternal)
	}
}

func TestAddBuiltinExtensionModuleMissingObjectData(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	err := p.AddBuiltinExtensionModule(&pyres.ExtensionModule{Name: "foo.bar"})
	var missing *collect.MissingPayloadError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingPayloadError, got %v", err)
	}
	if missing.Module != "foo.bar" {
		t.Errorf("error names %q, want foo.bar", missing.Module)
	}
	if len(p.extensionModuleStates) != 0 {
		t.Error("state recorded despite rejected add")
	}
}

func TestPackageRelativePathExtensionModule(t *testing.T) {
	p := newTestAggregate(collect.PolicyFilesystemRelativeOnly, nil)
	data := pyres.MemoryLocation([]byte{42})
	err := p.AddRelativePathExtensionModule(&pyres.ExtensionModule{
		Name:                "foo.bar",
		InitFn:              "PyInit_bar",
		ExtensionFileSuffix: ".so",
		ExtensionData:       &data,
	}, "prefix")
	if err != nil {
		t.Fatalf("AddRelativePathExtensionModule: %v", err)
	}

	embedded, _ := mustPackage(t, p)
	r, ok := embedded.Resource("foo.bar")
	if !ok {
		t.Fatal("foo.bar not packaged")
	}
	if r.RelativePathExtensionModuleSharedLibrary != "prefix/foo/bar.so" {
		t.Errorf("library path = %q, want prefix/foo/bar.so", r.RelativePathExtensionModuleSharedLibrary)
	}

	files, err := embedded.ExtraInstallFiles()
	if err != nil {
		t.Fatalf("ExtraInstallFiles: %v", err)
	}
	content, ok := files.Get("prefix/foo/bar.so")
	if !ok {
		t.Fatal("prefix/foo/bar.so not in install manifest")
	}
	if !content.Executable || !bytes.Equal(content.Data, []byte{42}) {
		t.Errorf("install = %+v, want executable [42]", content)
	}
}

func TestPackageParentInference(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	err := p.AddInMemoryModuleSource(&pyres.ModuleSource{
		Name:   "a.b.c",
		Source: pyres.MemoryLocation([]byte("x = 1\n")),
	})
	if err != nil {
		t.Fatal(err)
	}

	embedded, _ := mustPackage(t, p)
	want := []string{"a", "a.b", "a.b.c"}
	if !reflect.DeepEqual(embedded.Names(), want) {
		t.Fatalf("names = %v, want %v", embedded.Names(), want)
	}
	for _, name := range []string{"a", "a.b"} {
		r, _ := embedded.Resource(name)
		if !r.IsPackage || r.Flavor != uint8(pyres.FlavorPackage) {
			t.Errorf("%s = flavor %d package %v, want synthesized package", name, r.Flavor, r.IsPackage)
		}
		if r.HasPayload() {
			t.Errorf("synthesized package %s carries payload", name)
		}
	}
}

func TestPackageParentCorrection(t *testing.T) {
	bag := diag.NewBag(10)
	p := newTestAggregate(collect.PolicyInMemoryOnly, diag.BagReporter{Bag: bag})
	for _, name := range []string{"a", "a.b"} {
		err := p.AddInMemoryModuleSource(&pyres.ModuleSource{
			Name:   name,
			Source: pyres.MemoryLocation([]byte("x = 1\n")),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	embedded, _ := mustPackage(t, p)
	r, _ := embedded.Resource("a")
	if !r.IsPackage {
		t.Error("a not corrected to a package")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.PkgParentCorrected && d.Subject == "a" {
			found = true
		}
	}
	if !found {
		t.Error("no package correction diagnostic emitted")
	}
}

func TestPackageCompilesBytecode(t *testing.T) {
	p := newTestAggregate(collect.PolicyPreferInMemory, nil)
	source := pyres.MemoryLocation([]byte("x = 1\n"))
	for _, level := range []pyres.OptimizationLevel{pyres.Opt0, pyres.Opt2} {
		err := p.AddInMemoryModuleBytecodeFromSource(&pyres.ModuleBytecodeFromSource{
			Name:          "foo",
			Source:        source,
			OptimizeLevel: level,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	err := p.AddRelativePathModuleBytecodeFromSource(&pyres.ModuleBytecodeFromSource{
		Name:          "foo",
		Source:        source,
		OptimizeLevel: pyres.Opt1,
	}, "lib")
	if err != nil {
		t.Fatal(err)
	}

	embedded, fc := mustPackage(t, p)
	wantCalls := []compileCall{
		{Name: "foo", Level: pyres.Opt0, Mode: compile.ModeBytecode},
		{Name: "foo", Level: pyres.Opt1, Mode: compile.ModePycUncheckedHash},
		{Name: "foo", Level: pyres.Opt2, Mode: compile.ModeBytecode},
	}
	if !reflect.DeepEqual(fc.calls, wantCalls) {
		t.Fatalf("compiler calls = %v, want %v", fc.calls, wantCalls)
	}

	r, _ := embedded.Resource("foo")
	if string(r.InMemoryBytecode[0]) != "code(foo,0,bytecode)" {
		t.Errorf("level 0 bytecode = %q", r.InMemoryBytecode[0])
	}
	if len(r.InMemoryBytecode[1]) != 0 {
		t.Errorf("unexpected in-memory bytecode at level 1: %q", r.InMemoryBytecode[1])
	}
	if string(r.InMemoryBytecode[2]) != "code(foo,2,bytecode)" {
		t.Errorf("level 2 bytecode = %q", r.InMemoryBytecode[2])
	}

	pycPath := "lib/__pycache__/foo.cpython-39.opt-1.pyc"
	if r.RelativePathModuleBytecode[1] != pycPath {
		t.Errorf("level 1 path = %q, want %q", r.RelativePathModuleBytecode[1], pycPath)
	}
	files, err := embedded.ExtraInstallFiles()
	if err != nil {
		t.Fatal(err)
	}
	content, ok := files.Get(pycPath)
	if !ok {
		t.Fatalf("%s not in install manifest", pycPath)
	}
	if content.Executable || string(content.Data) != "code(foo,1,pyc-unchecked-hash)" {
		t.Errorf("pyc install = %+v", content)
	}
}

func TestPackageCompileErrorAborts(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	err := p.AddInMemoryModuleBytecodeFromSource(&pyres.ModuleBytecodeFromSource{
		Name:   "bad",
		Source: pyres.MemoryLocation([]byte("x =\n")),
	})
	if err != nil {
		t.Fatal(err)
	}

	fc := &fakeCompiler{err: errors.New("SyntaxError")}
	_, err = p.Package(context.Background(), &PackageRequest{Compiler: fc})
	var cerr *compile.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected compile.Error, got %v", err)
	}
	if cerr.Module != "bad" || cerr.Level != pyres.Opt0 {
		t.Errorf("error = %+v, want module bad at level 0", cerr)
	}
}

func TestPackageDunderFileWarning(t *testing.T) {
	bag := diag.NewBag(10)
	p := newTestAggregate(collect.PolicyInMemoryOnly, diag.BagReporter{Bag: bag})
	err := p.AddInMemoryModuleSource(&pyres.ModuleSource{
		Name:   "dunder",
		Source: pyres.MemoryLocation([]byte("print(__file__)\n")),
	})
	if err != nil {
		t.Fatal(err)
	}

	mustPackage(t, p)
	var perModule, notice bool
	for _, d := range bag.Items() {
		switch d.Code {
		case diag.PkgDunderFile:
			perModule = d.Subject == "dunder"
		case diag.PkgDunderFileNotice:
			notice = true
		}
	}
	if !perModule || !notice {
		t.Errorf("dunder diagnostics: perModule=%v notice=%v, want both", perModule, notice)
	}
}

func TestWriteBlobs(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	for _, name := range []string{"zebra", "apple"} {
		err := p.AddInMemoryModuleSource(&pyres.ModuleSource{
			Name:   name,
			Source: pyres.MemoryLocation([]byte("x = 1\n")),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	embedded, _ := mustPackage(t, p)
	var names, resources bytes.Buffer
	if err := embedded.WriteBlobs(&names, &resources); err != nil {
		t.Fatalf("WriteBlobs: %v", err)
	}
	if names.String() != "apple\nzebra\n" {
		t.Errorf("name list = %q, want sorted apple,zebra", names.String())
	}
	if !bytes.HasPrefix(resources.Bytes(), packed.Magic) {
		t.Error("resource blob missing magic")
	}

	// byte-identical on repeat
	var names2, resources2 bytes.Buffer
	if err := embedded.WriteBlobs(&names2, &resources2); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(resources.Bytes(), resources2.Bytes()) {
		t.Error("resource blob differs between writes")
	}
}

func TestBuiltinExtensionsSkipMissingInitFn(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	mods := []*pyres.DistributionExtensionModule{
		{Module: "with_init", InitFn: "PyInit_with_init", BuiltinDefault: true},
		{Module: "no_init", BuiltinDefault: true},
	}
	for _, em := range mods {
		if err := p.AddBuiltinDistributionExtensionModule(em); err != nil {
			t.Fatal(err)
		}
	}

	embedded, _ := mustPackage(t, p)
	builtins := embedded.BuiltinExtensions()
	if len(builtins) != 1 || builtins[0].Name != "with_init" {
		t.Errorf("builtins = %v, want only with_init", builtins)
	}
}

func TestLinkingDeduplicatesLibraries(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	mods := []*pyres.DistributionExtensionModule{
		{
			Module: "mod_a",
			InitFn: "PyInit_mod_a",
			Links:  []pyres.LibraryDependency{{Name: "z", StaticPath: "/lib/libz.a"}},
		},
		{
			Module: "mod_b",
			InitFn: "PyInit_mod_b",
			Links: []pyres.LibraryDependency{
				{Name: "z", DynamicPath: "/lib/libz.so"},
				{Name: "Security", Framework: true},
				{Name: "c", System: true},
			},
		},
	}
	for _, em := range mods {
		if err := p.AddBuiltinDistributionExtensionModule(em); err != nil {
			t.Fatal(err)
		}
	}

	bag := diag.NewBag(32)
	embedded, _ := mustPackage(t, p)
	info, err := embedded.ResolveLibpythonLinkingInfo(diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("ResolveLibpythonLinkingInfo: %v", err)
	}
	if !reflect.DeepEqual(info.LinkLibraries, []string{"z"}) {
		t.Errorf("libraries = %v, want [z] deduplicated across static and dynamic", info.LinkLibraries)
	}
	if !reflect.DeepEqual(info.LinkFrameworks, []string{"Security"}) {
		t.Errorf("frameworks = %v, want [Security]", info.LinkFrameworks)
	}
	if !reflect.DeepEqual(info.LinkSystemLibraries, []string{"c"}) {
		t.Errorf("system libraries = %v, want [c]", info.LinkSystemLibraries)
	}
	if len(bag.Items()) == 0 {
		t.Error("no per-dependency diagnostics emitted")
	}
}

func TestInMemoryDistributionExtensionModule(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "bar.so")
	depPath := filepath.Join(dir, "libdep.so")
	if err := os.WriteFile(libPath, []byte{42}, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(depPath, []byte{7}, 0o600); err != nil {
		t.Fatal(err)
	}

	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	err := p.AddInMemoryDistributionExtensionModule(&pyres.DistributionExtensionModule{
		Module:        "foo.bar",
		InitFn:        "PyInit_bar",
		SharedLibrary: libPath,
		Links:         []pyres.LibraryDependency{{Name: "dep", DynamicPath: depPath}},
	})
	if err != nil {
		t.Fatalf("AddInMemoryDistributionExtensionModule: %v", err)
	}

	embedded, _ := mustPackage(t, p)
	r, ok := embedded.Resource("foo.bar")
	if !ok {
		t.Fatal("foo.bar not packaged")
	}
	if !bytes.Equal(r.InMemoryExtensionModuleSharedLibrary, []byte{42}) {
		t.Errorf("extension library = %v, want [42]", r.InMemoryExtensionModuleSharedLibrary)
	}
	if !reflect.DeepEqual(r.SharedLibraryDependencyNames, []string{"libdep.so"}) {
		t.Errorf("dependency names = %v, want [libdep.so]", r.SharedLibraryDependencyNames)
	}
	lib, ok := embedded.Resource("libdep.so")
	if !ok {
		t.Fatal("libdep.so not packaged")
	}
	if !bytes.Equal(lib.InMemorySharedLibrary, []byte{7}) {
		t.Errorf("shared library = %v, want [7]", lib.InMemorySharedLibrary)
	}
}

func TestInMemoryDistributionExtensionModuleMissingLibrary(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	err := p.AddInMemoryDistributionExtensionModule(&pyres.DistributionExtensionModule{
		Module: "foo.bar",
	})
	var missing *collect.MissingPayloadError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingPayloadError, got %v", err)
	}
}

func TestFilterFromFiles(t *testing.T) {
	dir := t.TempDir()
	namesFile := filepath.Join(dir, "names.txt")
	if err := os.WriteFile(namesFile, []byte("# keep set\nkeep\nkept_ext\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	for _, name := range []string{"keep", "drop"} {
		err := p.AddInMemoryModuleSource(&pyres.ModuleSource{
			Name:   name,
			Source: pyres.MemoryLocation([]byte("x = 1\n")),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	exts := []*pyres.DistributionExtensionModule{
		{Module: "kept_ext", InitFn: "PyInit_kept_ext", BuiltinDefault: true},
		{Module: "dropped_ext", InitFn: "PyInit_dropped_ext", BuiltinDefault: true},
	}
	for _, em := range exts {
		if err := p.AddBuiltinDistributionExtensionModule(em); err != nil {
			t.Fatal(err)
		}
	}

	if err := p.FilterFromFiles(context.Background(), []string{namesFile}, nil); err != nil {
		t.Fatalf("FilterFromFiles: %v", err)
	}

	embedded, _ := mustPackage(t, p)
	if _, ok := embedded.Resource("drop"); ok {
		t.Error("drop survived filtering")
	}
	if _, ok := embedded.Resource("keep"); !ok {
		t.Error("keep was filtered out")
	}
	builtins := embedded.BuiltinExtensions()
	if len(builtins) != 1 || builtins[0].Name != "kept_ext" {
		t.Errorf("builtins = %v, want only kept_ext", builtins)
	}
}

func TestPackageEmitsProgressEvents(t *testing.T) {
	p := newTestAggregate(collect.PolicyInMemoryOnly, nil)
	err := p.AddInMemoryModuleSource(&pyres.ModuleSource{
		Name:   "foo",
		Source: pyres.MemoryLocation([]byte("x = 1\n")),
	})
	if err != nil {
		t.Fatal(err)
	}

	ch := make(chan Event, 64)
	fc := &fakeCompiler{}
	_, err = p.Package(context.Background(), &PackageRequest{Compiler: fc, Progress: ChannelSink{Ch: ch}})
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	close(ch)

	seen := make(map[Stage]bool)
	var fooDone bool
	for evt := range ch {
		seen[evt.Stage] = true
		if evt.Resource == "foo" && evt.Stage == StageCompile && evt.Status == StatusDone {
			fooDone = true
		}
	}
	for _, stage := range []Stage{StageScan, StageInfer, StageCompile, StageWrite} {
		if !seen[stage] {
			t.Errorf("no event for stage %s", stage)
		}
	}
	if !fooDone {
		t.Error("no done event for resource foo")
	}
}
