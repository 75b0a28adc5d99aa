package packed

import (
	"encoding/binary"
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"pyforge/internal/pyres"
)

// Magic identifies a packed resource table blob.
var Magic = []byte("PYFRES")

// SchemaVersion is bumped whenever the record format changes.
const SchemaVersion uint16 = 1

// EncodeError reports a structurally invalid entry handed to the writer.
// It indicates an internal invariant violation upstream, not bad input.
type EncodeError struct {
	Name   string
	Reason string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("cannot encode resource %q: %s", e.Name, e.Reason)
}

// WriteResources serializes entries in the order given. Callers pass the
// table in name-lexicographic order; combined with sorted msgpack map keys
// this makes the output byte-identical across runs.
func WriteResources(w io.Writer, entries []Resource) error {
	if err := validate(entries); err != nil {
		return err
	}
	count, err := safecast.Convert[uint32](len(entries))
	if err != nil {
		return &EncodeError{Reason: fmt.Sprintf("entry count overflows u32: %v", err)}
	}

	if _, err := w.Write(Magic); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	header := make([]byte, 6)
	binary.BigEndian.PutUint16(header[0:2], SchemaVersion)
	binary.BigEndian.PutUint32(header[2:6], count)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("failed to encode resource %q: %w", entries[i].Name, err)
		}
	}
	return nil
}

func validate(entries []Resource) error {
	for i := range entries {
		r := &entries[i]
		if r.Name == "" {
			return &EncodeError{Reason: "empty resource name"}
		}
		if r.Flavor == uint8(pyres.FlavorNone) {
			return &EncodeError{Name: r.Name, Reason: "flavor not established"}
		}
		if !r.IsPackage && (len(r.InMemoryResources) > 0 || len(r.RelativePathResources) > 0) {
			return &EncodeError{Name: r.Name, Reason: "package resources attached to non-package"}
		}
		for level := 0; level < pyres.NumOptimizationLevels; level++ {
			if len(r.InMemoryBytecode[level]) > 0 && r.RelativePathModuleBytecode[level] != "" {
				return &EncodeError{
					Name:   r.Name,
					Reason: fmt.Sprintf("both in-memory and relative-path bytecode at optimization level %d", level),
				}
			}
		}
		if len(r.InMemoryExtensionModuleSharedLibrary) > 0 && r.RelativePathExtensionModuleSharedLibrary != "" {
			return &EncodeError{Name: r.Name, Reason: "both in-memory and relative-path extension shared library"}
		}
	}
	return nil
}
