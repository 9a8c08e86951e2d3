package memory

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Size arithmetic is an estimate, not a byte-for-byte copy of the runtime's
// allocator. Headers follow the usual 64-bit layout: 16 bytes for a plain
// allocation, 24 for a slice (header + length + capacity), 48 for a map
// table, 96 for a channel ring.
const (
	stringHeaderSize = 16
	sliceHeaderSize  = 24
	mapHeaderSize    = 48
	chanHeaderSize   = 96
)

// syntheticBase marks identity tokens handed out to values that have no
// heap address of their own. Address-derived tokens never set this bit.
const syntheticBase = uint64(1) << 63

// refValue is a live Go value addressed through reflect.
type refValue struct {
	rv   reflect.Value
	id   uint64
	heap bool
}

func (v *refValue) ID() uint64 {
	return v.id
}

func (v *refValue) Kind() string {
	return v.rv.Type().String()
}

type edge struct {
	label string
	child Object
}

// ReflectModel is an ObjectModel over live Go values. Objects are the
// referenceable heap cells: pointer targets, map tables, slice backing
// arrays, string payloads and boxed interface elements. Interior scalars
// fold into their owner's shallow size.
//
// The model relies on the collector not moving values while a traversal
// runs, and the measured structure must stay quiescent for the duration.
type ReflectModel struct {
	synthetic uint64
}

func NewReflectModel() *ReflectModel {
	return new(ReflectModel)
}

// Object wraps a live Go value for traversal. Pass pointers, maps, slices
// or strings directly; pass a pointer to anything else you want expanded.
// A nil value (or nil pointer) yields a nil Object, the explicit absence
// value that walks report as zero usage.
func (m *ReflectModel) Object(v interface{}) Object {
	if v == nil {
		return nil
	}
	return m.objectFor(reflect.ValueOf(v))
}

func (m *ReflectModel) objectFor(rv reflect.Value) Object {
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return m.objectFor(rv.Elem())
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return nil
		}
		return m.heapValue(rv)
	case reflect.UnsafePointer:
		if rv.Pointer() == 0 {
			return nil
		}
		return m.heapValue(rv)
	case reflect.String:
		if rv.Len() == 0 {
			return m.scalarValue(rv)
		}
		return m.heapValue(rv)
	default:
		return m.scalarValue(rv)
	}
}

func (m *ReflectModel) heapValue(rv reflect.Value) Object {
	id := identityFor(rv)
	if id == 0 {
		id = m.nextSynthetic()
	}
	return &refValue{rv: rv, id: id, heap: true}
}

// scalarValue wraps a value that has no heap identity. Every wrap gets a
// fresh token, so scalars never alias.
func (m *ReflectModel) scalarValue(rv reflect.Value) Object {
	return &refValue{rv: rv, id: m.nextSynthetic(), heap: false}
}

func (m *ReflectModel) nextSynthetic() uint64 {
	m.synthetic++
	return syntheticBase | m.synthetic
}

// identityFor derives the identity token from the value's data address,
// salted with the kind so that overlapping cells of different shapes stay
// distinct. Returns 0 when no address is available.
func identityFor(rv reflect.Value) uint64 {
	var addr uintptr
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		addr = rv.Pointer()
	case reflect.String:
		s := rv.String()
		addr = (*reflect.StringHeader)(unsafe.Pointer(&s)).Data
	}
	if addr == 0 {
		return 0
	}
	return uint64(addr) ^ uint64(rv.Kind()+1)<<56
}

func (m *ReflectModel) ShallowSize(obj Object) (uint64, bool) {
	v, ok := obj.(*refValue)
	if !ok || !v.heap {
		return 0, false
	}
	rv := v.rv
	t := rv.Type()
	switch rv.Kind() {
	case reflect.Ptr:
		return uint64(t.Elem().Size()), true
	case reflect.Slice:
		return sliceHeaderSize + uint64(rv.Len())*uint64(t.Elem().Size()), true
	case reflect.Map:
		entry := uint64(t.Key().Size()) + uint64(t.Elem().Size()) + 8
		return mapHeaderSize + uint64(rv.Len())*entry, true
	case reflect.String:
		return stringHeaderSize + uint64(rv.Len()), true
	case reflect.Chan:
		return chanHeaderSize + uint64(rv.Cap())*uint64(t.Elem().Size()), true
	default:
		// Funcs and unsafe pointers carry no measurable payload.
		return 0, false
	}
}

func (m *ReflectModel) DirectReferences(obj Object) []Object {
	v, ok := obj.(*refValue)
	if !ok || !v.heap {
		return nil
	}
	es := m.edges(v)
	if len(es) == 0 {
		return nil
	}
	refs := make([]Object, 0, len(es))
	for _, e := range es {
		refs = append(refs, e.child)
	}
	return refs
}

func (m *ReflectModel) IsInternalProxy(obj Object) bool {
	v, ok := obj.(*refValue)
	if !ok {
		return false
	}
	return v.rv.Kind() == reflect.UnsafePointer
}

// edges enumerates the labeled heap references held by a value. The same
// enumeration backs DirectReferences and the Resolver, so labels always
// agree with traversal order.
func (m *ReflectModel) edges(v *refValue) []edge {
	var es []edge
	rv := v.rv
	switch rv.Kind() {
	case reflect.Ptr:
		m.collect(rv.Elem(), "", &es)
	case reflect.Slice:
		for i := 0; i < rv.Len(); i++ {
			m.collect(rv.Index(i), fmt.Sprintf("[%d]", i), &es)
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			repr := safeRepr(iter.Key())
			m.collect(iter.Value(), "["+repr+"]", &es)
			m.collect(iter.Key(), ".key("+repr+")", &es)
		}
	}
	return es
}

// collect scans through the inline structure of a value (struct fields,
// array elements, interface boxes) and emits an edge for every heap cell
// it reaches, with a label describing the slot that holds it.
func (m *ReflectModel) collect(rv reflect.Value, label string, es *[]edge) {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func:
		if !rv.IsNil() {
			m.emit(es, label, m.heapValue(rv))
		}
	case reflect.Slice:
		if !rv.IsNil() {
			m.emit(es, label, m.heapValue(rv))
		}
	case reflect.UnsafePointer:
		if rv.Pointer() != 0 {
			m.emit(es, label, m.heapValue(rv))
		}
	case reflect.String:
		if rv.Len() > 0 {
			m.emit(es, label, m.heapValue(rv))
		}
	case reflect.Interface:
		if !rv.IsNil() {
			// A boxed pointer-like value becomes the child itself; a boxed
			// aggregate contributes its inner heap cells instead.
			m.collect(rv.Elem(), label, es)
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			m.collect(rv.Field(i), label+"."+t.Field(i).Name, es)
		}
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			m.collect(rv.Index(i), fmt.Sprintf("%s[%d]", label, i), es)
		}
	}
}

func (m *ReflectModel) emit(es *[]edge, label string, child Object) {
	if label == "" {
		label = "*"
	}
	*es = append(*es, edge{label: label, child: child})
}

// safeRepr renders a map key for display without panicking on values that
// reflection refuses to hand out.
func safeRepr(rv reflect.Value) string {
	var repr string
	if rv.CanInterface() {
		repr = fmt.Sprintf("%v", rv.Interface())
	} else {
		repr = rv.Type().String()
	}
	if len(repr) > 32 {
		repr = repr[:32] + "..."
	}
	return repr
}
