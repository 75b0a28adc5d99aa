// Package scan resolves the set of resource names referenced by a build:
// the input is a list of annotation files (one dotted resource name per
// line, "#" comments allowed) plus glob patterns expanding to more such
// files. Filtering uses the resulting set to shrink the packaged table.
package scan

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ResolveResourceNames reads every file plus every glob match and returns
// the union of names they list.
func ResolveResourceNames(ctx context.Context, files []string, globPatterns []string) (map[string]struct{}, error) {
	paths := append([]string(nil), files...)
	for _, pattern := range globPatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	names := make(map[string]struct{})
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found, err := readResourceNamesFile(path)
			if err != nil {
				return err
			}
			mu.Lock()
			for name := range found {
				names[name] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

func readResourceNamesFile(path string) (map[string]struct{}, error) {
	f, err := os.Open(path) // #nosec G304 -- caller-supplied annotation file
	if err != nil {
		return nil, fmt.Errorf("failed to open resource names file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	names := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return names, nil
}

// SortedNames returns the set's contents in lexicographic order.
func SortedNames(names map[string]struct{}) []string {
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
