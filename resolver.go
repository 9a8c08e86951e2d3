package memory

// Resolver labels edges between live Go values: struct field names,
// sequential indexes, map value slots and, distinctly, map key slots.
// It is a display aid, not an accounting mechanism; when a parent holds
// several references to the same child only the first is reported.
type Resolver struct {
	model *ReflectModel
}

func NewResolver(model *ReflectModel) *Resolver {
	m := new(Resolver)
	m.model = model
	return m
}

func (r *Resolver) Resolve(parent, child Object) (string, bool) {
	pv, ok := parent.(*refValue)
	if !ok || !pv.heap {
		return "", false
	}
	for _, e := range r.model.edges(pv) {
		if e.child.ID() == child.ID() {
			return e.label, true
		}
	}
	return "", false
}
