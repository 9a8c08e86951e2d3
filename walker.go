package memory

// Walker computes total Usage over everything reachable from a root,
// charging each distinct object exactly once across every walk that shares
// one Seen set. Single-threaded by contract: callers must not run walks
// concurrently against shared Seen or Via state, and the measured graph
// must stay quiescent while a walk runs.
type Walker struct {
	logger *Logger
	model  ObjectModel
	ignore *IgnoreSet
}

// NewWalker builds a walker over the given object model. A nil ignore set
// selects DefaultIgnores.
func NewWalker(logger *Logger, model ObjectModel, ignore *IgnoreSet) *Walker {
	m := new(Walker)
	m.logger = logger
	m.model = model
	if ignore == nil {
		ignore = DefaultIgnores()
	}
	m.ignore = ignore
	return m
}

// Walk traverses breadth-first from root and returns the aggregate usage of
// the reachable, non-ignored set. seen may be pre-populated from earlier
// walks, in which case objects already counted contribute nothing here; the
// root itself is always processed once regardless. A nil via skips
// discovery recording; a nil root is the absence value and reports zero.
func (w *Walker) Walk(root Object, seen *Seen, via *Via) Usage {
	var usage Usage
	if root == nil {
		return usage
	}
	if seen == nil {
		seen = NewSeen()
	}

	// The root enters seen before its references are examined, so a
	// structure that reaches back to its own root terminates.
	w.countObject(root, &usage)
	seen.Add(root.ID())
	w.logger.Debug("walk root %v (0x%x)", root.Kind(), root.ID())

	queue := w.enqueueReferences(root, seen, via, nil)
	for len(queue) > 0 {
		obj := queue[0]
		queue = queue[1:]
		if seen.HasKey(obj.ID()) {
			// Queued twice before its first visit.
			continue
		}
		seen.Add(obj.ID())
		w.countObject(obj, &usage)
		queue = w.enqueueReferences(obj, seen, via, queue)
	}

	w.logger.Debug("walk done: %v, seen=%v", usage, seen.Size())
	return usage
}

func (w *Walker) countObject(obj Object, usage *Usage) {
	size, ok := w.model.ShallowSize(obj)
	if !ok {
		// Not introspectable; count the object without a size.
		size = 0
	}
	usage.AddObject(size)
}

func (w *Walker) enqueueReferences(parent Object, seen *Seen, via *Via, queue []Object) []Object {
	for _, child := range w.model.DirectReferences(parent) {
		if child == nil {
			continue
		}
		if w.ignore.Matches(child) {
			w.logger.Trace("ignored: %v", child.Kind())
			continue
		}
		if w.model.IsInternalProxy(child) {
			continue
		}
		if seen.HasKey(child.ID()) {
			continue
		}
		if via != nil {
			via.Register(parent, child)
		}
		queue = append(queue, child)
	}
	return queue
}
