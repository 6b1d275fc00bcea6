package di

import (
	"reflect"

	"github.com/rs/zerolog"
)

type pendingDestruction struct {
	id     TypeID
	double any
}

// expectationScope turns completed edges into destruction expectations.
// Exclusive doubles are expected immediately, in the order their owners
// are completed. Shared doubles are stacked when their lifetime opens and
// expected in reverse acquisition order when the scope closes, after every
// exclusive expectation of the same graph.
type expectationScope struct {
	root    reflect.Type
	catalog *Catalog
	mocks   *MockRegistry
	ledger  *Ledger
	log     zerolog.Logger

	stack  []pendingDestruction
	closed bool
}

var _ Completer = (*expectationScope)(nil)

func (s *expectationScope) Complete(e *Edge, d Delivery) {
	if e.Root || (s.root != nil && e.Type == s.root) {
		return
	}
	if !e.Double || !s.catalog.Polymorphic(e.Type) {
		return
	}
	if e.Ownership != OwnershipExclusive && e.Ownership != OwnershipShared {
		return
	}
	id, err := s.catalog.Identify(e.Type)
	if err != nil {
		return
	}
	double, err := s.mocks.Acquire(id)
	if err != nil {
		return
	}
	if !sameDouble(double, d.double) {
		panic(IdentityMismatchError{Want: e.Type, Got: reflect.TypeOf(d.double)})
	}

	switch e.Ownership {
	case OwnershipExclusive:
		s.ledger.RegisterDestruction(id, double, OrderImmediate)
		s.log.Debug().Str("type", typeName(e.Type)).Stringer("order", OrderImmediate).Msg("expecting destruction")
	case OwnershipShared:
		if e.Fresh {
			s.stack = append(s.stack, pendingDestruction{id: id, double: double})
		}
	}
}

// Close registers the stacked shared expectations, last acquired first.
// Later calls do nothing.
func (s *expectationScope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for i := len(s.stack) - 1; i >= 0; i-- {
		p := s.stack[i]
		s.ledger.RegisterDestruction(p.id, p.double, OrderDeferred)
		s.log.Debug().Str("type", typeName(p.id.Type())).Stringer("order", OrderDeferred).Msg("expecting destruction")
	}
	s.stack = nil
}

func sameDouble(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil || !ta.Comparable() {
		return true
	}
	return a == b
}
