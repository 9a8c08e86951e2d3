package memory

import (
	"reflect"
	"sync"
)

// IgnorePredicate reports whether an object belongs to an ignored kind.
type IgnorePredicate func(obj Object) bool

// IgnoreSet excludes whole kinds of objects from traversal: a matching
// object is never counted, never expanded and never enters a Seen set.
// Matching is polymorphic; a predicate may test the dynamic type, the
// reflect kind, or interface satisfaction.
type IgnoreSet struct {
	predicates []IgnorePredicate
}

func NewIgnoreSet(predicates ...IgnorePredicate) *IgnoreSet {
	m := new(IgnoreSet)
	m.predicates = predicates
	return m
}

func (s *IgnoreSet) Append(p IgnorePredicate) {
	s.predicates = append(s.predicates, p)
}

func (s *IgnoreSet) Matches(obj Object) bool {
	for _, p := range s.predicates {
		if p(obj) {
			return true
		}
	}
	return false
}

// IgnoreKinds matches live Go values by reflect kind.
func IgnoreKinds(kinds ...reflect.Kind) IgnorePredicate {
	return func(obj Object) bool {
		v, ok := obj.(*refValue)
		if !ok {
			return false
		}
		k := v.rv.Kind()
		for _, kind := range kinds {
			if k == kind {
				return true
			}
		}
		return false
	}
}

// IgnoreTypes matches live Go values whose dynamic type is one of the given
// types, points at one, or satisfies one of the given interface types. The
// interface check is what makes matching cover "ancestors".
func IgnoreTypes(types ...reflect.Type) IgnorePredicate {
	return func(obj Object) bool {
		v, ok := obj.(*refValue)
		if !ok {
			return false
		}
		t := v.rv.Type()
		for _, it := range types {
			switch {
			case t == it:
				return true
			case it.Kind() == reflect.Interface && t.Implements(it):
				return true
			case t.Kind() == reflect.Ptr && t.Elem() == it:
				return true
			}
		}
		return false
	}
}

// DefaultIgnores is the standard ignore set: type descriptors (shared global
// metadata, not per-instance memory), functions and closures, channels, and
// sync primitives. These anchor effectively-global state unrelated to the
// structure being measured.
func DefaultIgnores() *IgnoreSet {
	return NewIgnoreSet(
		IgnoreKinds(reflect.Func, reflect.Chan),
		IgnoreTypes(
			reflect.TypeOf((*reflect.Type)(nil)).Elem(),
			reflect.TypeOf(sync.Mutex{}),
			reflect.TypeOf(sync.RWMutex{}),
			reflect.TypeOf(sync.WaitGroup{}),
			reflect.TypeOf(sync.Cond{}),
			reflect.TypeOf(sync.Once{}),
		),
	)
}
