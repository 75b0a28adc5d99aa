package pyres

import (
	"fmt"
	"os"
)

// DataLocation references payload bytes either resident in memory or behind
// a filesystem path that is read lazily. Resolution is idempotent within one
// packaging run: re-reading the same path yields the same bytes.
type DataLocation struct {
	data     []byte
	path     string
	inMemory bool
}

// MemoryLocation wraps in-memory payload bytes.
func MemoryLocation(data []byte) DataLocation {
	return DataLocation{data: data, inMemory: true}
}

// PathLocation references payload bytes stored at path.
func PathLocation(path string) DataLocation {
	return DataLocation{path: path}
}

// InMemory reports whether the payload is resident in memory.
func (l DataLocation) InMemory() bool {
	return l.inMemory
}

// Path returns the backing path, or "" for in-memory payloads.
func (l DataLocation) Path() string {
	return l.path
}

// Resolve returns the payload bytes, reading the backing path if needed.
func (l DataLocation) Resolve() ([]byte, error) {
	if l.inMemory {
		return l.data, nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", l.path, err)
	}
	return data, nil
}

func (l DataLocation) String() string {
	if l.inMemory {
		return fmt.Sprintf("memory(%d bytes)", len(l.data))
	}
	return fmt.Sprintf("path(%s)", l.path)
}
