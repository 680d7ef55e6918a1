package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reachableFixture() *fixture {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.class(2, 1, "com.foo.Bar", ref("cache"), ref("name"))
	f.class(3, 1, "Node", ref("next"))
	f.instance(100, 2, f.values().ID(101).ID(103).Bytes())
	f.instance(101, 3, f.values().ID(102).Bytes())
	f.instance(102, 3, f.values().ID(0).Bytes())
	f.instance(103, 3, f.values().ID(0).Bytes())
	return f
}

func containsThing(things []JavaHeapObject, t JavaHeapObject) bool {
	for _, x := range things {
		if x == t {
			return true
		}
	}
	return false
}

func TestReachableObjects_Exclusion(t *testing.T) {
	s := reachableFixture().build(t)
	s.Resolve(false)

	root := s.FindThing(100)
	r := NewReachableObjects(root, excludeSet{"com.foo.Bar.cache": true})

	got := r.Reachables()
	assert.False(t, containsThing(got, root), "root is never part of the result")
	assert.False(t, containsThing(got, s.FindThing(101)))
	assert.False(t, containsThing(got, s.FindThing(102)))
	assert.True(t, containsThing(got, s.FindThing(103)))
	assert.True(t, containsThing(got, s.FindClass("com.foo.Bar")))

	assert.Equal(t, []string{"com.foo.Bar.cache"}, r.ExcludedFields())
	assert.Equal(t, []string{"Node.next", "com.foo.Bar.name"}, r.UsedFields())
	assert.Same(t, root, r.Root())
}

func TestReachableObjects_NoExcludes(t *testing.T) {
	s := reachableFixture().build(t)
	s.Resolve(false)

	root := s.FindThing(100)
	r := NewReachableObjects(root, nil)
	got := r.Reachables()
	for _, id := range []ID{101, 102, 103} {
		assert.True(t, containsThing(got, s.FindThing(id)), id.Hex())
	}
	assert.Empty(t, r.ExcludedFields())
	assert.Empty(t, r.UsedFields())

	total := root.Size()
	for i, o := range got {
		total += o.Size()
		if i > 0 {
			prev := got[i-1]
			require.GreaterOrEqual(t, prev.Size(), o.Size())
			if prev.Size() == o.Size() {
				assert.Negative(t, Compare(prev, o))
			}
		}
	}
	assert.Equal(t, total, r.TotalSize())
}

func TestReachableObjects_Cycle(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "Node", ref("next"))
	f.instance(100, 1, f.values().ID(101).Bytes())
	f.instance(101, 1, f.values().ID(100).Bytes())
	s := f.build(t)
	s.Resolve(false)

	r := NewReachableObjects(s.FindThing(100), nil)
	assert.True(t, containsThing(r.Reachables(), s.FindThing(101)))
	assert.False(t, containsThing(r.Reachables(), s.FindThing(100)))
}

func TestReachableObjects_StaticExclusion(t *testing.T) {
	f := newFixture(4)
	f.class(1, 0, "java.lang.Object")
	f.classInfo(ClassInfo{ID: 2, SuperID: 1, Name: "Registry", Statics: []*JavaStatic{
		NewJavaStatic(ref("all"), NewObjectRef(100)),
	}})
	f.instance(100, 1, nil)
	s := f.build(t)
	s.Resolve(false)

	r := NewReachableObjects(s.FindClass("Registry"), excludeSet{"Registry.all": true})
	assert.False(t, containsThing(r.Reachables(), s.FindThing(100)))
	assert.Equal(t, []string{"Registry.all"}, r.ExcludedFields())
}
