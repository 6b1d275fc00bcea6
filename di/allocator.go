package di

import (
	"reflect"

	"github.com/rs/zerolog"
)

// allocator substitutes every polymorphic dependency with the registry's
// double, except the type under test and interfaces bound to a real
// implementation. Everything else is constructed for real.
type allocator struct {
	root     reflect.Type
	catalog  *Catalog
	bindings *Bindings
	mocks    *MockRegistry
	shared   map[reflect.Type]*sharedNode
	log      zerolog.Logger
}

// sharedNode is the live shared lifetime of a real dependency. Every
// Shared edge to the same type reuses it until its last handle is released.
type sharedNode struct {
	value reflect.Value
	block *refBlock
}

var _ Allocator = (*allocator)(nil)

func (a *allocator) Allocate(e *Edge, construct Constructor) (Delivery, error) {
	if a.substitutes(e) {
		return a.double(e)
	}
	return a.real(e, construct)
}

func (a *allocator) substitutes(e *Edge) bool {
	if e.Root || (a.root != nil && e.Type == a.root) {
		return false
	}
	if !a.catalog.Polymorphic(e.Type) {
		return false
	}
	return !a.bindings.Has(e.Type)
}

func (a *allocator) double(e *Edge) (Delivery, error) {
	id, err := a.catalog.Identify(e.Type)
	if err != nil {
		return Delivery{}, err
	}
	h, err := a.mocks.handle(id)
	if err != nil {
		return Delivery{}, err
	}
	e.Double = true
	double := h.double
	v := reflect.ValueOf(double)

	var d Delivery
	switch e.Ownership {
	case OwnershipExclusive:
		life := &lifetime{typ: e.Type, destroy: func() { a.mocks.ledger.Destroyed(double) }}
		d = Delivery{Value: wrapperOf(e.Requested).wrap(v, life), double: double, release: life.release}
	case OwnershipShared:
		blk, fresh := a.mocks.shared(h)
		e.Fresh = fresh
		life := blk.handle(e.Type)
		d = Delivery{Value: wrapperOf(e.Requested).wrap(v, life), double: double, release: life.release}
	default:
		d = Delivery{Value: v, double: double}
	}

	a.log.Debug().
		Str("type", typeName(e.Type)).
		Str("owner", typeName(e.Owner)).
		Stringer("ownership", e.Ownership).
		Bool("fresh", e.Fresh).
		Msg("delivered double")
	return d, nil
}

func (a *allocator) real(e *Edge, construct Constructor) (Delivery, error) {
	if e.Ownership == OwnershipShared {
		if n, ok := a.shared[e.Type]; ok && n.block.alive() {
			life := n.block.handle(e.Type)
			a.log.Debug().
				Str("type", typeName(e.Type)).
				Str("owner", typeName(e.Owner)).
				Int("uses", n.block.count).
				Msg("reused shared dependency")
			return Delivery{Value: wrapperOf(e.Requested).wrap(n.value, life), release: life.release}, nil
		}
	}

	v, destroy, err := construct()
	if err != nil {
		return Delivery{}, err
	}

	var d Delivery
	switch e.Ownership {
	case OwnershipExclusive:
		life := &lifetime{typ: e.Type, destroy: destroy}
		d = Delivery{Value: wrapperOf(e.Requested).wrap(v, life), release: life.release}
	case OwnershipShared:
		blk := &refBlock{destroy: destroy}
		if a.shared != nil {
			a.shared[e.Type] = &sharedNode{value: v, block: blk}
		}
		life := blk.handle(e.Type)
		d = Delivery{Value: wrapperOf(e.Requested).wrap(v, life), release: life.release}
	default:
		life := &lifetime{typ: e.Type, destroy: destroy}
		d = Delivery{Value: v, release: life.release}
	}

	a.log.Debug().
		Str("type", typeName(e.Type)).
		Str("owner", typeName(e.Owner)).
		Stringer("ownership", e.Ownership).
		Bool("root", e.Root).
		Msg("constructed real dependency")
	return d, nil
}
