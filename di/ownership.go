package di

import "reflect"

// Ownership is the tag a dependency edge carries, derived from the declared
// parameter or field type. Allocation and destruction logic dispatch on it.
type Ownership uint8

const (
	// OwnershipValue is a plain value: structs, pointers to structs, scalars.
	OwnershipValue Ownership = iota
	// OwnershipRaw is an interface referenced without ownership.
	OwnershipRaw
	// OwnershipExclusive is an Owned[T] dependency.
	OwnershipExclusive
	// OwnershipShared is a Shared[T] dependency.
	OwnershipShared
)

func (o Ownership) String() string {
	switch o {
	case OwnershipValue:
		return "value"
	case OwnershipRaw:
		return "raw"
	case OwnershipExclusive:
		return "exclusive"
	case OwnershipShared:
		return "shared"
	default:
		return "unknown"
	}
}

// lifetime tracks one handle. Releasing it runs destroy at most once.
type lifetime struct {
	typ      reflect.Type
	destroy  func()
	block    *refBlock
	released bool
}

func (l *lifetime) release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	if l.destroy != nil {
		l.destroy()
	}
}

func (l *lifetime) check() {
	if l != nil && l.released {
		panic(UseAfterReleaseError{Type: l.typ})
	}
}

// refBlock is the reference count shared by every Shared handle of one
// object lifetime.
type refBlock struct {
	count   int
	destroy func()
}

func (b *refBlock) handle(typ reflect.Type) *lifetime {
	b.count++
	return &lifetime{typ: typ, block: b, destroy: b.drop}
}

func (b *refBlock) drop() {
	b.count--
	if b.count == 0 && b.destroy != nil {
		b.destroy()
	}
}

func (b *refBlock) alive() bool { return b != nil && b.count > 0 }

// Owned is an exclusively owned dependency: the owner releases it once, when
// the owner itself goes away. Declare a constructor parameter or field as
// Owned[T] to receive one.
//
// When the injector delivers a double through Owned, the handle does not own
// the double (the injector's registry does); Release only records that the
// dependency was destroyed.
type Owned[T any] struct {
	val  T
	life *lifetime
}

// NewOwned wraps v so that Release calls destroy. destroy may be nil.
func NewOwned[T any](v T, destroy func()) Owned[T] {
	return Owned[T]{val: v, life: &lifetime{typ: reflect.TypeFor[T](), destroy: destroy}}
}

// Get returns the dependency. It panics with UseAfterReleaseError once the
// handle has been released.
func (o Owned[T]) Get() T {
	o.life.check()
	return o.val
}

// Release destroys the dependency. Later calls do nothing.
func (o Owned[T]) Release() { o.life.release() }

// Released reports whether Release has been called.
func (o Owned[T]) Released() bool { return o.life != nil && o.life.released }

func (Owned[T]) ownership() Ownership { return OwnershipExclusive }

func (Owned[T]) elem() reflect.Type { return reflect.TypeFor[T]() }

func (Owned[T]) wrap(v reflect.Value, life *lifetime) reflect.Value {
	return reflect.ValueOf(Owned[T]{val: valueAs[T](v), life: life})
}

// Shared is a reference-counted dependency. Every handle must be released;
// the object is destroyed when the last one is.
type Shared[T any] struct {
	val  T
	life *lifetime
}

// NewShared wraps v in a fresh reference count of one. destroy runs when the
// count drops to zero and may be nil.
func NewShared[T any](v T, destroy func()) Shared[T] {
	b := &refBlock{destroy: destroy}
	return Shared[T]{val: v, life: b.handle(reflect.TypeFor[T]())}
}

// Get returns the dependency. It panics with UseAfterReleaseError once this
// handle has been released.
func (s Shared[T]) Get() T {
	s.life.check()
	return s.val
}

// Clone returns a new handle on the same object, incrementing the count.
func (s Shared[T]) Clone() Shared[T] {
	s.life.check()
	if s.life == nil {
		return s
	}
	return Shared[T]{val: s.val, life: s.life.block.handle(s.life.typ)}
}

// Release drops this handle. Later calls on the same handle do nothing.
func (s Shared[T]) Release() { s.life.release() }

// Released reports whether this handle has been released.
func (s Shared[T]) Released() bool { return s.life != nil && s.life.released }

// UseCount returns the number of live handles on the object.
func (s Shared[T]) UseCount() int {
	if s.life == nil || s.life.block == nil {
		return 0
	}
	return s.life.block.count
}

func (Shared[T]) ownership() Ownership { return OwnershipShared }

func (Shared[T]) elem() reflect.Type { return reflect.TypeFor[T]() }

func (Shared[T]) wrap(v reflect.Value, life *lifetime) reflect.Value {
	return reflect.ValueOf(Shared[T]{val: valueAs[T](v), life: life})
}

// wrapper is implemented by Owned and Shared only.
type wrapper interface {
	ownership() Ownership
	elem() reflect.Type
	wrap(v reflect.Value, life *lifetime) reflect.Value
}

var wrapperType = reflect.TypeFor[wrapper]()

// classify returns the ownership tag of a declared type and the plain type
// behind it.
func classify(t reflect.Type) (Ownership, reflect.Type) {
	if isWrapper(t) {
		w := wrapperOf(t)
		return w.ownership(), w.elem()
	}
	if polymorphic(t) {
		return OwnershipRaw, t
	}
	return OwnershipValue, t
}

func isWrapper(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.Implements(wrapperType)
}

func wrapperOf(t reflect.Type) wrapper {
	return reflect.Zero(t).Interface().(wrapper)
}

func valueAs[T any](v reflect.Value) T {
	var out T
	if !v.IsValid() {
		return out
	}
	if t, ok := v.Interface().(T); ok {
		out = t
	}
	return out
}
