package manifest

import (
	"errors"
	"testing"
)

func TestAddFileConflict(t *testing.T) {
	m := New()
	if err := m.AddFile("a/b", FileContent{Data: []byte{1}}); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	// identical re-add is fine
	if err := m.AddFile("a/b", FileContent{Data: []byte{1}}); err != nil {
		t.Fatalf("identical re-add: %v", err)
	}
	err := m.AddFile("a/b", FileContent{Data: []byte{2}})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Path != "a/b" {
		t.Errorf("conflict path = %q", conflict.Path)
	}
}

func TestEntriesSorted(t *testing.T) {
	m := New()
	for _, p := range []string{"z", "a", "m/n"} {
		if err := m.AddFile(p, FileContent{}); err != nil {
			t.Fatalf("AddFile(%q): %v", p, err)
		}
	}
	entries := m.Entries()
	want := []string{"a", "m/n", "z"}
	for i, e := range entries {
		if e.Path != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Path, want[i])
		}
	}
}

func TestAddManifest(t *testing.T) {
	a := New()
	b := New()
	if err := a.AddFile("x", FileContent{Data: []byte{1}}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddFile("y", FileContent{Data: []byte{2}, Executable: true}); err != nil {
		t.Fatal(err)
	}
	if err := a.AddManifest(b); err != nil {
		t.Fatalf("AddManifest: %v", err)
	}
	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}
	c, ok := a.Get("y")
	if !ok || !c.Executable {
		t.Error("merged entry lost executable flag")
	}
}
