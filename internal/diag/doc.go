// Package diag defines the diagnostic model shared by all packaging phases.
//
// # Purpose
//
//   - Provide deterministic data structures that capture non-fatal findings
//     produced by the collector, the packaging pipeline and the linking
//     resolver.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to concrete storage or formatting layers.
//
// # Scope
//
// Package diag does not perform any formatting, IO, or CLI integration.
// Rendering lives in cmd/pyforge. Diagnostics are observability only: they
// never alter control flow and failures are expressed as errors instead.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Subject – the dotted resource name the finding is about, "" when the
//     finding concerns the run as a whole.
//   - Message – human oriented text; keep it short and actionable.
package diag
