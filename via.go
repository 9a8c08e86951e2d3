package memory

import "fmt"

// Via records which parent first discovered each object. Later edges to an
// already recorded object are ignored, even across walks that share one Via.
// Attribution is only stable under single-threaded, deterministic-order
// traversal; map elements enumerate in runtime order.
type Via struct {
	parents map[uint64]Object
}

func NewVia() *Via {
	m := new(Via)
	m.parents = make(map[uint64]Object)
	return m
}

// Register notes that parent discovered child. First discoverer wins.
func (v *Via) Register(parent Object, child Object) {
	if _, ok := v.parents[child.ID()]; ok {
		return
	}
	v.parents[child.ID()] = parent
}

// Discoverer returns the parent that first reached obj.
func (v *Via) Discoverer(obj Object) (Object, bool) {
	parent, ok := v.parents[obj.ID()]
	return parent, ok
}

func (v *Via) Size() int {
	return len(v.parents)
}

// PathToRoot reconstructs the reference chain from a discovered object back
// to the root of the walk that found it, using the discovery map. Edges the
// resolver cannot describe are rendered with a visible placeholder.
func PathToRoot(obj Object, via *Via, resolver ReferenceResolver) string {
	var labels []string
	current := obj
	for {
		parent, ok := via.Discoverer(current)
		if !ok {
			break
		}
		label, resolved := resolver.Resolve(parent, current)
		if !resolved {
			label = unresolvedLabel
		}
		labels = append(labels, label)
		current = parent
	}

	path := fmt.Sprintf("%s(0x%x)", current.Kind(), current.ID())
	for i := len(labels) - 1; i >= 0; i-- {
		path += labels[i]
	}
	return path
}
