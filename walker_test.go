package memory

import (
	"reflect"
	"testing"
)

type plainObject struct {
	a, b int64
}

type pairObject struct {
	first  *plainObject
	second *plainObject
}

type ringObject struct {
	next *ringObject
}

type holderObject struct {
	child *plainObject
}

type walkTester struct {
	t      *testing.T
	walker *Walker
	model  *ReflectModel
}

func newWalkTester(t *testing.T) *walkTester {
	m := new(walkTester)
	m.t = t
	m.model = NewReflectModel()
	m.walker = NewWalker(NewLogger(LogLevel_INFO), m.model, nil)
	return m
}

func (a *walkTester) Walk(root interface{}) Usage {
	return a.walker.Walk(a.model.Object(root), nil, nil)
}

func (a *walkTester) AssertCount(root interface{}, expected uint64) {
	usage := a.Walk(root)
	if usage.Count != expected {
		a.t.Fatalf("count should be %v. But %v (usage=%v)", expected, usage.Count, usage)
	}
}

func TestWalkNilRoot(t *testing.T) {
	tester := newWalkTester(t)
	usage := tester.Walk(nil)
	if usage.Size != 0 || usage.Count != 0 {
		t.Fatalf("nil root should report zero usage. But %v", usage)
	}
}

func TestWalkScalarRoot(t *testing.T) {
	tester := newWalkTester(t)
	usage := tester.Walk(42)
	if usage.Size != 0 || usage.Count != 1 {
		t.Fatalf("scalar root should report {0, 1}. But %v", usage)
	}
}

func TestWalkEmptyContainer(t *testing.T) {
	tester := newWalkTester(t)
	usage := tester.Walk(make([]int, 0))
	if usage.Count != 1 {
		t.Fatalf("empty container should count once. But %v", usage.Count)
	}
	if usage.Size != sliceHeaderSize {
		t.Fatalf("empty container size should be its own header. But %v", usage.Size)
	}
}

func TestWalkContainerWithTwoObjects(t *testing.T) {
	tester := newWalkTester(t)
	root := []*plainObject{{a: 1}, {a: 2}}
	tester.AssertCount(root, 3)

	// header + 2 pointers + 2 instances
	usage := tester.Walk(root)
	expected := uint64(sliceHeaderSize + 2*8 + 2*16)
	if usage.Size != expected {
		t.Fatalf("size should be %v. But %v", expected, usage.Size)
	}
}

func TestWalkNestedContainers(t *testing.T) {
	tester := newWalkTester(t)
	inner := &plainObject{}
	l1 := []interface{}{inner}
	l2 := []interface{}{l1}
	l3 := []interface{}{l2}
	l4 := []interface{}{l3}
	tester.AssertCount(l4, 5)
}

func TestWalkSharing(t *testing.T) {
	tester := newWalkTester(t)
	shared := &plainObject{}
	tester.AssertCount(&pairObject{first: shared, second: shared}, 2)
}

func TestWalkCycle(t *testing.T) {
	tester := newWalkTester(t)

	self := &ringObject{}
	self.next = self
	tester.AssertCount(self, 1)

	a := &ringObject{}
	b := &ringObject{next: a}
	a.next = b
	tester.AssertCount(a, 2)
}

func TestWalkStringSharing(t *testing.T) {
	tester := newWalkTester(t)
	s := "shared backing store"
	root := &struct {
		left  string
		right string
	}{left: s, right: s}
	// root + one string payload
	tester.AssertCount(root, 2)
}

func TestWalkSharedSeenAcrossCalls(t *testing.T) {
	tester := newWalkTester(t)
	shared := &plainObject{}
	a := &holderObject{child: shared}
	b := &holderObject{child: shared}

	seen := NewSeen()
	first := tester.walker.Walk(tester.model.Object(a), seen, nil)
	if first.Count != 2 {
		t.Fatalf("first walk should count holder and child. But %v", first.Count)
	}
	second := tester.walker.Walk(tester.model.Object(b), seen, nil)
	if second.Count != 1 {
		t.Fatalf("second walk should not recount the shared child. But %v", second.Count)
	}
}

func TestWalkViaFirstDiscoverer(t *testing.T) {
	tester := newWalkTester(t)
	shared := &plainObject{}
	root := &struct {
		array1 []*plainObject
		array2 []*plainObject
	}{
		array1: []*plainObject{shared},
		array2: []*plainObject{shared},
	}

	via := NewVia()
	tester.walker.Walk(tester.model.Object(root), nil, via)

	discoverer, ok := via.Discoverer(tester.model.Object(shared))
	if !ok {
		t.Fatal("shared object should have a discoverer")
	}
	expected := tester.model.Object(root.array1).ID()
	if discoverer.ID() != expected {
		t.Fatalf("discoverer should be array1 (0x%x). But 0x%x", expected, discoverer.ID())
	}

	// Stable across repeated lookups.
	again, _ := via.Discoverer(tester.model.Object(shared))
	if again.ID() != discoverer.ID() {
		t.Fatal("discoverer lookup should be stable")
	}
}

func TestWalkIgnoresChannels(t *testing.T) {
	tester := newWalkTester(t)
	root := &struct {
		done  chan int
		child *plainObject
	}{
		done:  make(chan int, 4),
		child: &plainObject{},
	}

	via := NewVia()
	usage := tester.walker.Walk(tester.model.Object(root), nil, via)
	if usage.Count != 2 {
		t.Fatalf("channel should be ignored. But count=%v", usage.Count)
	}
	if via.Size() != 1 {
		t.Fatalf("ignored objects should be absent from via. But %v entries", via.Size())
	}
}

func TestWalkCustomIgnoreType(t *testing.T) {
	model := NewReflectModel()
	ignore := DefaultIgnores()
	ignore.Append(IgnoreTypes(reflect.TypeOf(plainObject{})))
	walker := NewWalker(NewLogger(LogLevel_INFO), model, ignore)

	root := &holderObject{child: &plainObject{}}
	usage := walker.Walk(model.Object(root), nil, nil)
	if usage.Count != 1 {
		t.Fatalf("ignored kind should contribute nothing. But count=%v", usage.Count)
	}
}

func TestWalkRootAlwaysCounted(t *testing.T) {
	tester := newWalkTester(t)
	root := &plainObject{}

	seen := NewSeen()
	tester.walker.Walk(tester.model.Object(root), seen, nil)
	usage := tester.walker.Walk(tester.model.Object(root), seen, nil)
	if usage.Count != 1 {
		t.Fatalf("the outermost root is always processed once. But count=%v", usage.Count)
	}
}
