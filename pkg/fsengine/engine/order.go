package engine

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/arthur-debert/fsengine/pkg/fsengine/core"
)

// containersFirst orders items so that every directory precedes the items
// inside it. Unrelated items keep their relative order.
func containersFirst(items []core.PathWithType) ([]int, error) {
	edges := make([]toposort.Edge, 0)
	for i, outer := range items {
		if !outer.IsDir() {
			continue
		}
		for j, inner := range items {
			if i != j && below(outer.Path, inner.Path) {
				// Edge is [2]interface{}: element 0 comes before element 1
				edges = append(edges, toposort.Edge{strconv.Itoa(i), strconv.Itoa(j)})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("circular containment: %w", err)
	}

	order := make([]int, 0, len(items))
	seen := make(map[int]bool, len(items))
	for _, node := range sorted {
		idStr, ok := node.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected type in topological sort result: %T", node)
		}
		idx, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, err
		}
		order = append(order, idx)
		seen[idx] = true
	}
	// Items outside every containment relation were not in the graph
	for i := range items {
		if !seen[i] {
			order = append(order, i)
		}
	}
	return order, nil
}

// contentsFirst is the reverse of containersFirst, for deletes.
func contentsFirst(items []core.PathWithType) ([]int, error) {
	order, err := containersFirst(items)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// below reports whether inner lies strictly inside outer.
func below(outer, inner string) bool {
	if isLogical(outer) || isLogical(inner) {
		o := strings.ToLower(strings.TrimRight(outer, `\`)) + `\`
		return strings.HasPrefix(strings.ToLower(inner), o) && len(inner) > len(o)
	}
	rel, err := filepath.Rel(filepath.Clean(outer), filepath.Clean(inner))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
