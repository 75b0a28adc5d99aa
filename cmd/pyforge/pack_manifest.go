package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const noPyforgeTomlMessage = "no pyforge.toml found\nplease specify the manifest explicitly, e.g.:\n  pyforge pack --manifest path/to/pyforge.toml"

type packManifest struct {
	Path   string
	Root   string
	Config packConfig
}

type packConfig struct {
	Package    packageConfig     `toml:"package"`
	Packaging  packagingConfig   `toml:"packaging"`
	Modules    []moduleConfig    `toml:"module"`
	Resources  []resourceConfig  `toml:"resource"`
	Extensions []extensionConfig `toml:"extension"`
	Filter     filterConfig      `toml:"filter"`
}

type packageConfig struct {
	Name string `toml:"name"`
}

type packagingConfig struct {
	// Policy is the textual placement policy, e.g. "in-memory-only" or
	// "filesystem-relative-only:lib".
	Policy   string `toml:"policy"`
	CacheTag string `toml:"cache_tag"`
	Python   string `toml:"python"`
	Prefix   string `toml:"prefix"`
}

type moduleConfig struct {
	Name      string `toml:"name"`
	Path      string `toml:"path"`
	IsPackage bool   `toml:"package"`
	Placement string `toml:"placement"`
	Source    bool   `toml:"source"`
	Bytecode  []int  `toml:"bytecode"`
}

type resourceConfig struct {
	Package   string `toml:"package"`
	Name      string `toml:"name"`
	Path      string `toml:"path"`
	Placement string `toml:"placement"`
}

type extensionConfig struct {
	Name          string `toml:"name"`
	InitFn        string `toml:"init_fn"`
	Suffix        string `toml:"suffix"`
	SharedLibrary string `toml:"shared_library"`
	Placement     string `toml:"placement"`
}

type filterConfig struct {
	Files []string `toml:"files"`
	Globs []string `toml:"globs"`
}

func findPyforgeToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "pyforge.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadPackManifest(path string) (*packManifest, error) {
	cfg, err := loadPackConfig(path)
	if err != nil {
		return nil, err
	}
	return &packManifest{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
	}, nil
}

func loadPackConfig(path string) (packConfig, error) {
	var cfg packConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return packConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return packConfig{}, fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return packConfig{}, fmt.Errorf("%s: missing [package].name", path)
	}
	if !meta.IsDefined("packaging", "policy") || strings.TrimSpace(cfg.Packaging.Policy) == "" {
		return packConfig{}, fmt.Errorf("%s: missing [packaging].policy", path)
	}
	if strings.TrimSpace(cfg.Packaging.CacheTag) == "" {
		return packConfig{}, fmt.Errorf("%s: missing [packaging].cache_tag", path)
	}
	if cfg.Packaging.Python == "" {
		cfg.Packaging.Python = "python3"
	}
	for i, mod := range cfg.Modules {
		if strings.TrimSpace(mod.Name) == "" {
			return packConfig{}, fmt.Errorf("%s: [[module]] #%d missing name", path, i+1)
		}
		if strings.TrimSpace(mod.Path) == "" {
			return packConfig{}, fmt.Errorf("%s: module %s missing path", path, mod.Name)
		}
		for _, level := range mod.Bytecode {
			if level < 0 || level > 2 {
				return packConfig{}, fmt.Errorf("%s: module %s has bytecode level %d (must be 0..2)", path, mod.Name, level)
			}
		}
	}
	for i, res := range cfg.Resources {
		if strings.TrimSpace(res.Package) == "" || strings.TrimSpace(res.Name) == "" {
			return packConfig{}, fmt.Errorf("%s: [[resource]] #%d missing package or name", path, i+1)
		}
		if strings.TrimSpace(res.Path) == "" {
			return packConfig{}, fmt.Errorf("%s: resource %s/%s missing path", path, res.Package, res.Name)
		}
	}
	for i, ext := range cfg.Extensions {
		if strings.TrimSpace(ext.Name) == "" {
			return packConfig{}, fmt.Errorf("%s: [[extension]] #%d missing name", path, i+1)
		}
		if strings.TrimSpace(ext.SharedLibrary) == "" {
			return packConfig{}, fmt.Errorf("%s: extension %s missing shared_library", path, ext.Name)
		}
	}
	return cfg, nil
}

// resolvePath makes a manifest-relative path absolute against the
// manifest's directory.
func (m *packManifest) resolvePath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.Root, filepath.FromSlash(rel))
}
