package memory

import (
	"encoding/json"
	"errors"
	"fmt"
)

const unresolvedLabel = "<?>"

// Depth bounds how deep Build expands the tree. Unlimited is a distinct
// value, not a sentinel integer; Limit rejects negative budgets. Depth
// bounds tree shape only: truncated leaves still walk their whole subtree
// so totals stay exact.
type Depth struct {
	unlimited bool
	limit     int
}

var Unlimited = Depth{unlimited: true}

// Limit returns a bounded depth budget.
func Limit(n int) (Depth, error) {
	if n < 0 {
		return Depth{}, fmt.Errorf("memory: invalid depth %d: must be non-negative", n)
	}
	return Depth{limit: n}, nil
}

func (d Depth) exhausted() bool {
	return !d.unlimited && d.limit <= 0
}

func (d Depth) next() Depth {
	if d.unlimited {
		return d
	}
	return Depth{limit: d.limit - 1}
}

// Node is one object in the annotated reference tree. Nodes are immutable
// once built; the derived total usage and path are computed on first
// request and cached.
type Node struct {
	object   Object
	ownUsage Usage
	parent   *Node
	label    string
	labeled  bool

	childOrder []string
	children   map[string]*Node

	total     *Usage
	pathCache string
}

func (n *Node) Object() Object {
	return n.object
}

// OwnUsage is the node's own charge. For a depth-truncated leaf it already
// covers the entire unexpanded subtree.
func (n *Node) OwnUsage() Usage {
	return n.ownUsage
}

func (n *Node) Parent() *Node {
	return n.parent
}

// Label returns the resolved reference label for the edge from the parent,
// false for the root or when the edge could not be resolved.
func (n *Node) Label() (string, bool) {
	return n.label, n.labeled
}

// Leaf reports whether the node has no expanded children, either because
// nothing live hangs off it or because the depth budget ran out here.
func (n *Node) Leaf() bool {
	return n.children == nil
}

// ChildKeys lists the child map keys in discovery order.
func (n *Node) ChildKeys() []string {
	return n.childOrder
}

func (n *Node) Child(key string) *Node {
	return n.children[key]
}

// Children returns the expanded children in discovery order.
func (n *Node) Children() []*Node {
	nodes := make([]*Node, 0, len(n.childOrder))
	for _, key := range n.childOrder {
		nodes = append(nodes, n.children[key])
	}
	return nodes
}

// TotalUsage is the usage of this node and everything under it, memoized on
// first call. For a leaf it equals OwnUsage by construction.
func (n *Node) TotalUsage() Usage {
	if n.total == nil {
		total := n.ownUsage
		for _, key := range n.childOrder {
			total.Merge(n.children[key].TotalUsage())
		}
		n.total = &total
	}
	return *n.total
}

// Describe renders the object as its kind plus a per-process identity token.
func (n *Node) Describe() string {
	return fmt.Sprintf("%s(0x%x)", n.object.Kind(), n.object.ID())
}

// Path renders the reference chain from the root down to this node. The
// string is built once and cached; unresolved edges show as a placeholder
// token rather than vanishing.
func (n *Node) Path() string {
	if n.pathCache == "" {
		if n.parent == nil {
			n.pathCache = n.Describe()
		} else {
			label := n.label
			if !n.labeled {
				label = unresolvedLabel
			}
			n.pathCache = n.parent.Path() + label
		}
	}
	return n.pathCache
}

type nodeRecord struct {
	Path     string           `json:"path"`
	Object   string           `json:"object"`
	Own      Usage            `json:"own_usage"`
	Total    *Usage           `json:"total_usage,omitempty"`
	Children map[string]*Node `json:"children,omitempty"`
}

// MarshalJSON exports a compact form for leaves (path, object descriptor and
// own usage) and a full form for internal nodes that adds the subtree total
// and the label-keyed children.
func (n *Node) MarshalJSON() ([]byte, error) {
	record := nodeRecord{
		Path:   n.Path(),
		Object: n.Describe(),
		Own:    n.ownUsage,
	}
	if n.children != nil {
		total := n.TotalUsage()
		record.Total = &total
		record.Children = n.children
	}
	return json.Marshal(record)
}

// GraphBuilder constructs depth-bounded reference trees whose aggregate
// usage matches a plain walk of the same root.
type GraphBuilder struct {
	logger   *Logger
	model    ObjectModel
	ignore   *IgnoreSet
	resolver ReferenceResolver
	walker   *Walker
}

// NewGraphBuilder builds a graph builder. A nil ignore set selects
// DefaultIgnores; a nil resolver labels every edge as unresolved.
func NewGraphBuilder(logger *Logger, model ObjectModel, ignore *IgnoreSet, resolver ReferenceResolver) *GraphBuilder {
	m := new(GraphBuilder)
	m.logger = logger
	m.model = model
	if ignore == nil {
		ignore = DefaultIgnores()
	}
	m.ignore = ignore
	if resolver == nil {
		resolver = unresolved{}
	}
	m.resolver = resolver
	m.walker = NewWalker(logger, model, ignore)
	return m
}

type unresolved struct{}

func (unresolved) Resolve(parent, child Object) (string, bool) {
	return "", false
}

// Build expands the reference tree under root. When the depth budget runs
// out at an object, that object becomes a leaf whose own usage absorbs its
// entire remaining subtree, so truncation never loses accounting. A shared
// seen set makes objects counted by earlier calls invisible here; within
// one tree the first reference to a shared object wins and later edges to
// it are skipped.
func (b *GraphBuilder) Build(root Object, depth Depth, seen *Seen) (*Node, error) {
	if root == nil {
		return nil, errors.New("memory: nil root")
	}
	if seen == nil {
		seen = NewSeen()
	}
	return b.build(root, nil, "", false, depth, seen), nil
}

func (b *GraphBuilder) build(obj Object, parent *Node, label string, labeled bool, depth Depth, seen *Seen) *Node {
	node := new(Node)
	node.object = obj
	node.parent = parent
	node.label = label
	node.labeled = labeled

	if depth.exhausted() {
		// The budget ran out here: absorb the whole unexpanded subtree so
		// the truncated view still accounts for everything under it.
		node.ownUsage = b.walker.Walk(obj, seen, nil)
		return node
	}

	seen.Add(obj.ID())
	size, ok := b.model.ShallowSize(obj)
	if !ok {
		size = 0
	}
	node.ownUsage.AddObject(size)

	b.logger.Indent()
	defer b.logger.Dedent()
	b.logger.Trace("build %v (0x%x)", obj.Kind(), obj.ID())

	for _, child := range b.model.DirectReferences(obj) {
		if child == nil {
			continue
		}
		if b.ignore.Matches(child) || b.model.IsInternalProxy(child) {
			continue
		}
		if seen.HasKey(child.ID()) {
			continue
		}
		childLabel, resolved := b.resolver.Resolve(obj, child)
		childNode := b.build(child, node, childLabel, resolved, depth.next(), seen)
		b.attach(node, childNode)
	}
	return node
}

// attach keys the child under its resolved label, falling back to a
// synthetic positional key so distinct children never collide.
func (b *GraphBuilder) attach(parent *Node, child *Node) {
	if parent.children == nil {
		parent.children = make(map[string]*Node)
	}
	key := child.label
	if !child.labeled {
		key = fmt.Sprintf("%s#%d", unresolvedLabel, len(parent.childOrder))
	}
	if _, taken := parent.children[key]; taken {
		key = fmt.Sprintf("%s#%d", key, len(parent.childOrder))
	}
	parent.children[key] = child
	parent.childOrder = append(parent.childOrder, key)
}
