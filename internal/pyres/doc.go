// Package pyres defines the value types shared by the packaging pipeline.
//
// # Purpose
//
//   - Describe Python resources before packaging: module sources, bytecode
//     requests, package data, extension modules and shared libraries.
//   - Provide DataLocation, a payload reference that is either resident in
//     memory or read lazily from a filesystem path.
//   - Derive deterministic install paths for sources and bytecode cache
//     files from dotted module names.
//
// # Scope
//
// Package pyres performs no policy checks and no IO beyond resolving a
// DataLocation. Collection rules live in internal/collect, orchestration in
// internal/packaging.
package pyres
