package collect

import (
	"fmt"
	"strings"
)

// Location distinguishes the two resource placements.
type Location uint8

const (
	// LocationInMemory embeds the payload in the produced binary.
	LocationInMemory Location = iota
	// LocationRelativePath installs the payload on disk relative to the
	// produced binary.
	LocationRelativePath
)

func (l Location) String() string {
	switch l {
	case LocationInMemory:
		return "in-memory"
	case LocationRelativePath:
		return "filesystem-relative"
	}
	return "unknown"
}

// PolicyKind selects which placements a packaging run permits.
type PolicyKind uint8

const (
	// PolicyInMemoryOnly permits only in-memory placement.
	PolicyInMemoryOnly PolicyKind = iota
	// PolicyFilesystemRelativeOnly permits only relative-path placement.
	PolicyFilesystemRelativeOnly
	// PolicyPreferInMemory permits both placements.
	PolicyPreferInMemory
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyInMemoryOnly:
		return "in-memory-only"
	case PolicyFilesystemRelativeOnly:
		return "filesystem-relative-only"
	case PolicyPreferInMemory:
		return "prefer-in-memory-fallback-filesystem-relative"
	}
	return "unknown"
}

// Policy is the active placement policy of a packaging run.
type Policy struct {
	Kind PolicyKind
	// RelativePathPrefix is the default install prefix for relative
	// placements; informational for the collector itself.
	RelativePathPrefix string
}

// ParsePolicy reads the textual policy forms "in-memory-only",
// "filesystem-relative-only:<prefix>" and
// "prefer-in-memory-fallback-filesystem-relative:<prefix>".
func ParsePolicy(value string) (Policy, error) {
	if value == PolicyInMemoryOnly.String() {
		return Policy{Kind: PolicyInMemoryOnly}, nil
	}
	for _, kind := range []PolicyKind{PolicyFilesystemRelativeOnly, PolicyPreferInMemory} {
		head := kind.String() + ":"
		if strings.HasPrefix(value, head) {
			return Policy{Kind: kind, RelativePathPrefix: value[len(head):]}, nil
		}
	}
	return Policy{}, fmt.Errorf("unknown resources policy %q", value)
}

func (p Policy) allows(loc Location) bool {
	switch p.Kind {
	case PolicyInMemoryOnly:
		return loc == LocationInMemory
	case PolicyFilesystemRelativeOnly:
		return loc == LocationRelativePath
	case PolicyPreferInMemory:
		return true
	}
	return false
}

// PolicyViolationError reports a resource add whose placement the active
// policy forbids.
type PolicyViolationError struct {
	Policy   Policy
	Location Location
	Name     string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("cannot add resource %q at %s location: policy is %s",
		e.Name, e.Location, e.Policy.Kind)
}

// MissingPayloadError reports byte data absent for a requested placement,
// e.g. an extension module without shared library data.
type MissingPayloadError struct {
	Module string
	Reason string
}

func (e *MissingPayloadError) Error() string {
	return fmt.Sprintf("cannot add extension module %s %s", e.Module, e.Reason)
}
