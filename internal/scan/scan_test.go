package scan

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeNames(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestResolveResourceNames(t *testing.T) {
	dir := t.TempDir()
	a := writeNames(t, dir, "a.txt", "foo\nfoo.bar\n\n# comment\n")
	writeNames(t, dir, "b.txt", "baz\nfoo\n")

	names, err := ResolveResourceNames(context.Background(), []string{a}, []string{filepath.Join(dir, "*.txt")})
	if err != nil {
		t.Fatalf("ResolveResourceNames: %v", err)
	}
	got := SortedNames(names)
	want := []string{"baz", "foo", "foo.bar"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
}

func TestResolveResourceNamesMissingFile(t *testing.T) {
	_, err := ResolveResourceNames(context.Background(), []string{"/nonexistent/names.txt"}, nil)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
