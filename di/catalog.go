package di

import (
	"reflect"

	"go.uber.org/mock/gomock"
)

// TypeID identifies an abstract type within one Catalog. Two lookups of the
// same interface type through the same catalog always yield equal TypeIDs,
// which is what ties expectation binding and allocation to the same double.
type TypeID struct {
	seq uint32
	typ reflect.Type
}

// Type returns the interface type the identity stands for.
func (id TypeID) Type() reflect.Type { return id.typ }

// IsZero reports whether id was never issued by a catalog.
func (id TypeID) IsZero() bool { return id.seq == 0 }

func (id TypeID) String() string { return typeName(id.typ) }

// DoubleFactory builds the double for one interface type from the ledger's
// controller. Create factories with Mock.
type DoubleFactory struct {
	iface reflect.Type
	build func(ctrl *gomock.Controller) any
}

// Type returns the interface type the factory substitutes.
func (f DoubleFactory) Type() reflect.Type { return f.iface }

// Mock returns the factory of the double for interface I. ctor is usually a
// mockgen constructor:
//
//	di.Mock[greeter.Logger](mocks.NewMockLogger)
//
// It panics with NonSubstitutableError if I is not an interface with methods,
// and with InvalidBindingError if ctor is nil.
func Mock[I any, M any](ctor func(ctrl *gomock.Controller) M) DoubleFactory {
	iface := reflect.TypeFor[I]()
	if !polymorphic(iface) {
		panic(NonSubstitutableError{Type: iface})
	}
	if ctor == nil {
		panic(InvalidBindingError{Type: iface, Reason: "nil double constructor"})
	}
	return DoubleFactory{
		iface: iface,
		build: func(ctrl *gomock.Controller) any { return ctor(ctrl) },
	}
}

type capability struct {
	polymorphic bool
	id          TypeID
}

// Catalog is the per-type capability table: which types expose dynamic
// dispatch, the identity token of each abstract type, and the factories
// able to fabricate doubles. Capabilities are computed once per type.
type Catalog struct {
	caps      map[reflect.Type]capability
	factories map[reflect.Type]DoubleFactory
	next      uint32
}

// NewCatalog returns a catalog holding the given factories. A later factory
// for the same interface replaces an earlier one.
func NewCatalog(factories ...DoubleFactory) *Catalog {
	c := &Catalog{
		caps:      make(map[reflect.Type]capability),
		factories: make(map[reflect.Type]DoubleFactory),
	}
	c.Add(factories...)
	return c
}

// Add registers factories and returns the catalog for chaining.
func (c *Catalog) Add(factories ...DoubleFactory) *Catalog {
	for _, f := range factories {
		if f.iface == nil {
			continue
		}
		c.factories[f.iface] = f
	}
	return c
}

// Merge copies every factory of src into c.
func (c *Catalog) Merge(src *Catalog) *Catalog {
	if src == nil {
		return c
	}
	for _, f := range src.factories {
		c.factories[f.iface] = f
	}
	return c
}

// Polymorphic reports whether t exposes at least one dynamically dispatched
// operation, i.e. whether it may be substituted by a double.
func (c *Catalog) Polymorphic(t reflect.Type) bool {
	return c.capability(t).polymorphic
}

// Identify returns the identity token of t, issuing one on first sight.
func (c *Catalog) Identify(t reflect.Type) (TypeID, error) {
	cp := c.capability(t)
	if !cp.polymorphic {
		return TypeID{}, NonSubstitutableError{Type: t}
	}
	return cp.id, nil
}

// Has reports whether a double factory is registered for t.
func (c *Catalog) Has(t reflect.Type) bool {
	_, ok := c.factories[t]
	return ok
}

// Len returns the number of registered factories.
func (c *Catalog) Len() int { return len(c.factories) }

func (c *Catalog) factory(t reflect.Type) (DoubleFactory, bool) {
	f, ok := c.factories[t]
	return f, ok
}

func (c *Catalog) capability(t reflect.Type) capability {
	if cp, ok := c.caps[t]; ok {
		return cp
	}
	cp := capability{polymorphic: polymorphic(t)}
	if cp.polymorphic {
		c.next++
		cp.id = TypeID{seq: c.next, typ: t}
	}
	c.caps[t] = cp
	return cp
}

func polymorphic(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Interface && t.NumMethod() > 0
}
