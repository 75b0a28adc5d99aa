package pyres

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName puts a dotted resource name into NFKC form, the same
// normalization CPython applies to identifiers. Names that are already
// ASCII come back unchanged.
func NormalizeName(name string) string {
	if isASCII(name) {
		return name
	}
	return norm.NFKC.String(name)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// AncestorPackages returns every package name implied by the dotted names,
// sorted lexicographically. "a.b.c" implies "a" and "a.b".
func AncestorPackages(names []string) []string {
	seen := make(map[string]struct{})
	for _, name := range names {
		parts := strings.Split(name, ".")
		for i := 1; i < len(parts); i++ {
			seen[strings.Join(parts[:i], ".")] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
