package di

import (
	"fmt"
	"reflect"
)

type bindingKind uint8

const (
	bindValue bindingKind = iota + 1
	bindImpl
	bindCtor
)

type binding struct {
	kind  bindingKind
	value reflect.Value
	impl  reflect.Type
	ctor  reflect.Value
}

var errorType = reflect.TypeFor[error]()

// Bindings tells the graph builder how real values of a type are produced:
// a fixed value, a concrete type standing in for an interface, or a
// constructor. Types without a binding are built by default rules.
//
// Bindings is read-only once an injector is created from it.
type Bindings struct {
	items map[reflect.Type]binding
}

// NewBindings returns an empty binding set.
func NewBindings() *Bindings {
	return &Bindings{items: map[reflect.Type]binding{}}
}

// Value binds t to v. v must be assignable to t.
func (b *Bindings) Value(t reflect.Type, v any) *Bindings {
	b.items[t] = valueBinding(t, v)
	return b
}

// Impl binds interface iface to the concrete type impl, which is built like
// any other real type whenever iface is needed.
func (b *Bindings) Impl(iface, impl reflect.Type) *Bindings {
	b.items[iface] = implBinding(iface, impl)
	return b
}

// Constructor binds the first result type of ctor to ctor. ctor must be a
// function returning T or (T, error); its parameters are resolved as
// dependencies, in order.
func (b *Bindings) Constructor(ctor any) *Bindings {
	t, bd := ctorBinding(ctor)
	b.items[t] = bd
	return b
}

func valueBinding(t reflect.Type, v any) binding {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		rv = reflect.Zero(t)
	}
	if !rv.Type().AssignableTo(t) {
		panic(InvalidBindingError{Type: t, Reason: typeName(rv.Type()) + " is not assignable"})
	}
	return binding{kind: bindValue, value: rv}
}

func implBinding(iface, impl reflect.Type) binding {
	if iface.Kind() != reflect.Interface {
		panic(InvalidBindingError{Type: iface, Reason: "not an interface"})
	}
	if impl.Kind() == reflect.Interface {
		panic(InvalidBindingError{Type: iface, Reason: "implementation " + typeName(impl) + " is an interface"})
	}
	if !impl.Implements(iface) {
		panic(InvalidBindingError{Type: iface, Reason: typeName(impl) + " does not implement it"})
	}
	return binding{kind: bindImpl, impl: impl}
}

func ctorBinding(ctor any) (reflect.Type, binding) {
	rv := reflect.ValueOf(ctor)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		panic(InvalidBindingError{Type: reflect.TypeOf(ctor), Reason: "constructor must be a non-nil function"})
	}
	t := rv.Type()
	switch {
	case t.NumOut() == 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		panic(InvalidBindingError{Type: t, Reason: "constructor must return T or (T, error)"})
	}
	if t.IsVariadic() {
		panic(InvalidBindingError{Type: t, Reason: "variadic constructors are not supported"})
	}
	return t.Out(0), binding{kind: bindCtor, ctor: rv}
}

// Has reports whether t is bound.
func (b *Bindings) Has(t reflect.Type) bool {
	_, ok := b.items[t]
	return ok
}

// Len returns the number of bound types.
func (b *Bindings) Len() int { return len(b.items) }

func (b *Bindings) lookup(t reflect.Type) (binding, bool) {
	bd, ok := b.items[t]
	return bd, ok
}

// call invokes a bound constructor and converts both its error result and
// any panic into a ConstructorError.
func (bd binding) call(t reflect.Type, args []reflect.Value) (out reflect.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = reflect.Value{}
			err = ConstructorError{Type: t, Err: fmt.Errorf("%w: %v", ErrConstructorPanic, rec)}
		}
	}()

	res := bd.ctor.Call(args)
	if len(res) == 2 && !res[1].IsNil() {
		return reflect.Value{}, ConstructorError{Type: t, Err: res[1].Interface().(error)}
	}
	return res[0], nil
}
