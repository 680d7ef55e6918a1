package model

import (
	"cmp"
	"slices"
)

// ReachableExcludes decides whether a "pkg.Class.field" name is skipped by
// reachability queries.
type ReachableExcludes interface {
	IsExcluded(fieldName string) bool
}

// ReachableObjects is the set of objects reachable from a root object.
type ReachableObjects struct {
	root           JavaHeapObject
	reachables     []JavaHeapObject
	totalSize      int64
	excludedFields []string
	usedFields     []string
}

// NewReachableObjects walks everything reachable from root depth first.
// Zero-size things are skipped, root itself is left out of the result, and
// the result is sorted by descending size. excludes may be nil.
func NewReachableObjects(root JavaHeapObject, excludes ReachableExcludes) *ReachableObjects {
	bag := make(map[JavaHeapObject]struct{})
	excluded := make(map[string]struct{})
	used := make(map[string]struct{})

	var exclude func(*JavaClass, *JavaField) bool
	if excludes != nil {
		exclude = func(c *JavaClass, f *JavaField) bool {
			name := c.Name() + "." + f.Name()
			if excludes.IsExcluded(name) {
				excluded[name] = struct{}{}
				return true
			}
			used[name] = struct{}{}
			return false
		}
	}

	var stack []JavaHeapObject
	push := func(t JavaHeapObject) {
		if t == nil || t.Size() <= 0 {
			return
		}
		if _, ok := bag[t]; ok {
			return
		}
		bag[t] = struct{}{}
		stack = append(stack, t)
	}
	push(root)
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visitReferencedObjects(t, push, exclude)
	}
	delete(bag, root)

	things := make([]JavaHeapObject, 0, len(bag))
	for t := range bag {
		things = append(things, t)
	}
	sizes := make(map[JavaHeapObject]int64, len(things))
	for _, t := range things {
		sizes[t] = t.Size()
	}
	slices.SortFunc(things, func(a, b JavaHeapObject) int {
		if d := cmp.Compare(sizes[b], sizes[a]); d != 0 {
			return d
		}
		return Compare(a, b)
	})

	total := root.Size()
	for _, t := range things {
		total += sizes[t]
	}
	return &ReachableObjects{
		root:           root,
		reachables:     things,
		totalSize:      total,
		excludedFields: sortedKeys(excluded),
		usedFields:     sortedKeys(used),
	}
}

// Root returns the starting object.
func (r *ReachableObjects) Root() JavaHeapObject { return r.root }

// Reachables returns the reachable objects, largest first.
func (r *ReachableObjects) Reachables() []JavaHeapObject { return r.reachables }

// TotalSize is the size of the root plus every reachable object.
func (r *ReachableObjects) TotalSize() int64 { return r.totalSize }

// ExcludedFields lists the excluded field names that were encountered.
func (r *ReachableObjects) ExcludedFields() []string { return r.excludedFields }

// UsedFields lists the field names that were followed.
func (r *ReachableObjects) UsedFields() []string { return r.usedFields }
