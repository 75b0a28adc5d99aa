package pyres

import (
	"path"
	"strings"
)

// ModuleSource describes a Python source module destined for packaging.
type ModuleSource struct {
	// Name is the fully qualified dotted module name.
	Name string
	// Source holds the module's source code.
	Source DataLocation
	// IsPackage marks the module as a package (__init__ module).
	IsPackage bool
	// CacheTag is the interpreter cache tag used for bytecode file names.
	CacheTag string
}

// ResolvePath derives the install path of the .py file under prefix.
// "foo.bar" maps to foo/bar.py, packages map to .../__init__.py.
func (m *ModuleSource) ResolvePath(prefix string) string {
	parts := strings.Split(m.Name, ".")
	if m.IsPackage {
		parts = append(parts, "__init__")
	}
	parts[len(parts)-1] += ".py"
	return path.Join(append([]string{prefix}, parts...)...)
}

// ModuleBytecodeFromSource describes a request to compile a module's source
// into bytecode at a given optimization level.
type ModuleBytecodeFromSource struct {
	Name          string
	Source        DataLocation
	OptimizeLevel OptimizationLevel
	IsPackage     bool
	CacheTag      string
}

// ResolvePath derives the bytecode cache install path under prefix,
// mirroring CPython's __pycache__ layout: "foo.bar" with cache tag
// "cpython-39" at level 1 maps to foo/__pycache__/bar.cpython-39.opt-1.pyc.
func (m *ModuleBytecodeFromSource) ResolvePath(prefix string) string {
	parts := strings.Split(m.Name, ".")
	stem := parts[len(parts)-1]
	dirs := parts[:len(parts)-1]
	if m.IsPackage {
		dirs = parts
		stem = "__init__"
	}
	file := stem + "." + m.CacheTag + m.OptimizeLevel.PycSuffix() + ".pyc"
	elems := append([]string{prefix}, dirs...)
	elems = append(elems, "__pycache__", file)
	return path.Join(elems...)
}

// PackageResource is opaque data belonging to a Python package.
type PackageResource struct {
	// LeafPackage is the package the resource lives in.
	LeafPackage string
	// RelativeName is the resource name within the package.
	RelativeName string
	// Data holds the resource payload.
	Data DataLocation
}

// ResolvePath derives the install path of the resource file under prefix.
func (r *PackageResource) ResolvePath(prefix string) string {
	elems := append([]string{prefix}, strings.Split(r.LeafPackage, ".")...)
	return path.Join(append(elems, r.RelativeName)...)
}

// PackageDistributionResource is a file belonging to a package's
// distribution metadata (e.g. *.dist-info contents).
type PackageDistributionResource struct {
	// Package is the package the metadata belongs to.
	Package string
	// Version is the package version string.
	Version string
	// Name is the file name within the metadata directory.
	Name string
	// Data holds the file payload.
	Data DataLocation
}

// ResolvePath derives the install path of the metadata file under prefix.
func (r *PackageDistributionResource) ResolvePath(prefix string) string {
	dir := r.Package + "-" + r.Version + ".dist-info"
	return path.Join(prefix, dir, r.Name)
}
