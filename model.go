package memory

// Object is an opaque handle to a heap value, compared strictly by identity.
// Two handles with equal IDs refer to the same heap value; structurally
// equal values at different addresses are different objects.
type Object interface {
	// ID is a stable per-process identity token.
	ID() uint64
	// Kind names the object's dynamic type, for display and ignore matching.
	Kind() string
}

// ObjectModel is the capability the traversal consults to expand the graph.
type ObjectModel interface {
	// ShallowSize reports the object's own size in bytes. ok is false when
	// the object cannot be introspected; the walker then charges size zero
	// but still counts the object.
	ShallowSize(obj Object) (size uint64, ok bool)
	// DirectReferences enumerates the objects obj directly references.
	DirectReferences(obj Object) []Object
	// IsInternalProxy reports whether obj is a runtime-internal artifact
	// that must never be expanded or counted.
	IsInternalProxy(obj Object) bool
}

// ReferenceResolver describes how a parent holds a reference to a child:
// a field name, an element index, a map value slot or a map key slot.
type ReferenceResolver interface {
	// Resolve returns a label for the parent->child edge. When the parent
	// holds several references to the same child, the first one found in
	// enumeration order wins. ok is false when no structural description
	// can be determined.
	Resolve(parent, child Object) (label string, ok bool)
}
