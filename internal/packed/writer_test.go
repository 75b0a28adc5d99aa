package packed

import (
	"bytes"
	"errors"
	"testing"

	"pyforge/internal/pyres"
)

func moduleEntry(name string) Resource {
	return Resource{
		Name:           name,
		Flavor:         uint8(pyres.FlavorModule),
		InMemorySource: []byte("x = 1\n"),
	}
}

func TestWriteResourcesDeterministic(t *testing.T) {
	entries := []Resource{
		{
			Name:   "pkg",
			Flavor: uint8(pyres.FlavorPackage), IsPackage: true,
			InMemoryResources: map[string][]byte{"b": {2}, "a": {1}},
		},
		moduleEntry("pkg.mod"),
	}

	var first, second bytes.Buffer
	if err := WriteResources(&first, entries); err != nil {
		t.Fatalf("WriteResources: %v", err)
	}
	if err := WriteResources(&second, entries); err != nil {
		t.Fatalf("WriteResources: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("repeated encoding differs")
	}
	if !bytes.HasPrefix(first.Bytes(), Magic) {
		t.Error("output missing magic")
	}
}

func TestWriteResourcesValidation(t *testing.T) {
	tests := []struct {
		name  string
		entry Resource
	}{
		{
			name:  "empty name",
			entry: Resource{Flavor: uint8(pyres.FlavorModule)},
		},
		{
			name:  "flavor none",
			entry: Resource{Name: "foo"},
		},
		{
			name: "resources on non-package",
			entry: Resource{
				Name:              "foo",
				Flavor:            uint8(pyres.FlavorModule),
				InMemoryResources: map[string][]byte{"x": {1}},
			},
		},
		{
			name: "conflicting bytecode placement",
			entry: func() Resource {
				r := moduleEntry("foo")
				r.InMemoryBytecode[1] = []byte{1}
				r.RelativePathModuleBytecode[1] = "foo.pyc"
				return r
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := WriteResources(&buf, []Resource{tt.entry})
			var encodeErr *EncodeError
			if !errors.As(err, &encodeErr) {
				t.Fatalf("expected EncodeError, got %v", err)
			}
		})
	}
}
