package model

// ReferenceChain is a path of referrers ending at a target object. Next
// points one step closer to the target.
type ReferenceChain struct {
	obj  JavaHeapObject
	next *ReferenceChain
}

// Obj returns the object at this link.
func (c *ReferenceChain) Obj() JavaHeapObject { return c.obj }

// Next returns the following link, nil at the target.
func (c *ReferenceChain) Next() *ReferenceChain { return c.next }

// Depth counts the links.
func (c *ReferenceChain) Depth() int {
	n := 0
	for l := c; l != nil; l = l.next {
		n++
	}
	return n
}

// Objects returns the chain from the rooted object to the target.
func (c *ReferenceChain) Objects() []JavaHeapObject {
	var out []JavaHeapObject
	for l := c; l != nil; l = l.next {
		out = append(out, l.obj)
	}
	return out
}

// RootsetReferencesTo finds, breadth first over referrers, the shortest
// chains from rooted objects to target. Rooted objects are explored
// further since their referrers may be more interesting roots. Unless
// includeWeak is set, referrers that only hold target weakly are skipped.
// It panics if referrers were not computed.
func (s *Snapshot) RootsetReferencesTo(target JavaHeapObject, includeWeak bool) []*ReferenceChain {
	visited := map[JavaHeapObject]struct{}{target: {}}
	fifo := []*ReferenceChain{{obj: target}}
	var result []*ReferenceChain
	for len(fifo) > 0 {
		chain := fifo[0]
		fifo = fifo[1:]
		curr := chain.obj
		if curr.Root() != nil {
			result = append(result, chain)
		}
		for _, t := range curr.Referrers() {
			if _, ok := visited[t]; ok {
				continue
			}
			if includeWeak || !t.RefersOnlyWeaklyTo(curr) {
				visited[t] = struct{}{}
				fifo = append(fifo, &ReferenceChain{obj: t, next: chain})
			}
		}
	}
	return result
}
