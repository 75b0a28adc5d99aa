package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pyforge/internal/collect"
	"pyforge/internal/compile"
	"pyforge/internal/diag"
	"pyforge/internal/packaging"
	"pyforge/internal/pyres"
)

const (
	moduleNamesFile     = "module-names.txt"
	packedResourcesFile = "packed-resources.bin"
)

var (
	packManifestFlag string
	packOutDir       string
	packUIFlag       string
	packShowLinking  bool
)

func init() {
	packCmd.Flags().StringVarP(&packManifestFlag, "manifest", "m", "", "path to pyforge.toml (default: search upward from cwd)")
	packCmd.Flags().StringVarP(&packOutDir, "out", "o", "build", "output directory")
	packCmd.Flags().StringVar(&packUIFlag, "ui", "auto", "interactive progress UI (auto|on|off)")
	packCmd.Flags().BoolVar(&packShowLinking, "show-linking", false, "print libpython linking info after packaging")
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Package Python resources into embeddable blobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")
		colorMode, _ := cmd.Flags().GetString("color")
		applyColorMode(colorMode)

		manifestPath := packManifestFlag
		if manifestPath == "" {
			found, ok, err := findPyforgeToml(".")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s", noPyforgeTomlMessage)
			}
			manifestPath = found
		}
		manifest, err := loadPackManifest(manifestPath)
		if err != nil {
			return err
		}

		bag := diag.NewBag(1024)
		reporter := diag.NewDedupReporter(diag.BagReporter{Bag: bag})
		defer printDiagnostics(bag, quiet)

		policy, err := collect.ParsePolicy(manifest.Config.Packaging.Policy)
		if err != nil {
			return fmt.Errorf("%s: %w", manifest.Path, err)
		}

		p := packaging.NewPrePackaged(policy, manifest.Config.Packaging.CacheTag, reporter)
		if err := populateFromManifest(p, manifest, policy); err != nil {
			return err
		}

		ctx := cmd.Context()
		filter := manifest.Config.Filter
		if len(filter.Files) > 0 || len(filter.Globs) > 0 {
			files := make([]string, 0, len(filter.Files))
			for _, f := range filter.Files {
				files = append(files, manifest.resolvePath(f))
			}
			globs := make([]string, 0, len(filter.Globs))
			for _, g := range filter.Globs {
				globs = append(globs, manifest.resolvePath(g))
			}
			if err := p.FilterFromFiles(ctx, files, globs); err != nil {
				return err
			}
		}

		compiler, err := compile.NewWorker(manifest.Config.Packaging.Python)
		if err != nil {
			return err
		}
		defer func() {
			_ = compiler.Close()
		}()

		mode, err := readUIMode(packUIFlag)
		if err != nil {
			return err
		}
		var embedded *packaging.Embedded
		title := fmt.Sprintf("packing %s", manifest.Config.Package.Name)
		if shouldUseTUI(mode) && !quiet {
			embedded, err = runPackageWithUI(ctx, title, p, compiler)
		} else {
			embedded, err = p.Package(ctx, &packaging.PackageRequest{Compiler: compiler})
		}
		if err != nil {
			return err
		}

		if err := writeOutputs(embedded, packOutDir); err != nil {
			return err
		}

		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "packaged %d resources into %s\n", embedded.Len(), packOutDir)
			for _, ext := range embedded.BuiltinExtensions() {
				fmt.Fprintf(cmd.OutOrStdout(), "builtin extension %s (%s)\n", ext.Name, ext.InitFn)
			}
		}
		if packShowLinking {
			info, err := embedded.ResolveLibpythonLinkingInfo(reporter)
			if err != nil {
				return err
			}
			printLinkingInfo(cmd.OutOrStdout(), info)
		}
		return nil
	},
}

// populateFromManifest feeds every manifest entry into the aggregate.
// Payloads stay path-backed: bytes are read lazily at packaging time.
func populateFromManifest(p *packaging.PrePackaged, manifest *packManifest, policy collect.Policy) error {
	prefix := manifest.Config.Packaging.Prefix
	for _, mod := range manifest.Config.Modules {
		relative, err := placementIsRelative(mod.Placement, policy)
		if err != nil {
			return fmt.Errorf("%s: module %s: %w", manifest.Path, mod.Name, err)
		}
		source := pyres.PathLocation(manifest.resolvePath(mod.Path))
		// a module with no explicit payload selection ships its source
		wantSource := mod.Source || len(mod.Bytecode) == 0
		if wantSource {
			ms := &pyres.ModuleSource{
				Name:      mod.Name,
				Source:    source,
				IsPackage: mod.IsPackage,
				CacheTag:  manifest.Config.Packaging.CacheTag,
			}
			if relative {
				err = p.AddRelativePathModuleSource(ms, prefix)
			} else {
				err = p.AddInMemoryModuleSource(ms)
			}
			if err != nil {
				return err
			}
		}
		for _, level := range mod.Bytecode {
			mb := &pyres.ModuleBytecodeFromSource{
				Name:          mod.Name,
				Source:        source,
				OptimizeLevel: pyres.OptimizationLevel(level), // #nosec G115 -- validated to 0..2 at load
				IsPackage:     mod.IsPackage,
				CacheTag:      manifest.Config.Packaging.CacheTag,
			}
			if relative {
				err = p.AddRelativePathModuleBytecodeFromSource(mb, prefix)
			} else {
				err = p.AddInMemoryModuleBytecodeFromSource(mb)
			}
			if err != nil {
				return err
			}
		}
	}

	for _, res := range manifest.Config.Resources {
		relative, err := placementIsRelative(res.Placement, policy)
		if err != nil {
			return fmt.Errorf("%s: resource %s/%s: %w", manifest.Path, res.Package, res.Name, err)
		}
		pr := &pyres.PackageResource{
			LeafPackage:  res.Package,
			RelativeName: res.Name,
			Data:         pyres.PathLocation(manifest.resolvePath(res.Path)),
		}
		if relative {
			err = p.AddRelativePathPackageResource(prefix, pr)
		} else {
			err = p.AddInMemoryPackageResource(pr)
		}
		if err != nil {
			return err
		}
	}

	for _, ext := range manifest.Config.Extensions {
		relative, err := placementIsRelative(ext.Placement, policy)
		if err != nil {
			return fmt.Errorf("%s: extension %s: %w", manifest.Path, ext.Name, err)
		}
		libPath := manifest.resolvePath(ext.SharedLibrary)
		if relative {
			suffix := ext.Suffix
			if suffix == "" {
				suffix = filepath.Ext(libPath)
			}
			data := pyres.PathLocation(libPath)
			err = p.AddRelativePathExtensionModule(&pyres.ExtensionModule{
				Name:                ext.Name,
				InitFn:              ext.InitFn,
				ExtensionFileSuffix: suffix,
				ExtensionData:       &data,
			}, prefix)
		} else {
			var payload []byte
			payload, err = pyres.PathLocation(libPath).Resolve()
			if err == nil {
				err = p.AddInMemoryExtensionModuleSharedLibrary(ext.Name, false, payload)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// placementIsRelative resolves a per-entry placement override against the
// run policy default.
func placementIsRelative(placement string, policy collect.Policy) (bool, error) {
	switch placement {
	case "":
		return policy.Kind == collect.PolicyFilesystemRelativeOnly, nil
	case "in-memory":
		return false, nil
	case "relative-path":
		return true, nil
	default:
		return false, fmt.Errorf("invalid placement %q (expected in-memory|relative-path)", placement)
	}
}

func writeOutputs(embedded *packaging.Embedded, outDir string) error {
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	var names, resources bytes.Buffer
	if err := embedded.WriteBlobs(&names, &resources); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, moduleNamesFile), names.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", moduleNamesFile, err)
	}
	if err := os.WriteFile(filepath.Join(outDir, packedResourcesFile), resources.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", packedResourcesFile, err)
	}
	installs, err := embedded.ExtraInstallFiles()
	if err != nil {
		return err
	}
	return installs.WriteToDir(outDir)
}

func printLinkingInfo(out io.Writer, info *packaging.LibpythonLinkingInfo) {
	fmt.Fprintf(out, "object files: %d\n", len(info.ObjectFiles))
	for _, lib := range info.LinkLibraries {
		fmt.Fprintf(out, "link library: %s\n", lib)
	}
	for _, fw := range info.LinkFrameworks {
		fmt.Fprintf(out, "link framework: %s\n", fw)
	}
	for _, lib := range info.LinkSystemLibraries {
		fmt.Fprintf(out, "link system library: %s\n", lib)
	}
	for _, lib := range info.LinkLibrariesExternal {
		fmt.Fprintf(out, "link external library: %s\n", lib)
	}
}

func applyColorMode(mode string) {
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		// auto: let the library detect the terminal
	}
}

func printDiagnostics(bag *diag.Bag, quiet bool) {
	bag.Sort()
	warn := color.New(color.FgYellow)
	for _, d := range bag.Items() {
		if d.Severity < diag.SevWarning && quiet {
			continue
		}
		line := fmt.Sprintf("%s %s: %s\n", d.Code, d.Severity, d.Message)
		if d.Severity >= diag.SevWarning {
			warn.Fprint(os.Stderr, line)
		} else {
			fmt.Fprint(os.Stderr, line)
		}
	}
}
