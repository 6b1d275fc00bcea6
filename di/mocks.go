package di

import "reflect"

// handle owns the one double of an abstract type, plus the reference count
// of its current shared lifetime.
type handle struct {
	id     TypeID
	double any
	shared *refBlock
}

// MockRegistry caches one double per abstract type. Doubles are created on
// first acquisition and live as long as the registry; every later
// acquisition of the same type returns the same instance.
type MockRegistry struct {
	catalog *Catalog
	ledger  *Ledger
	handles map[TypeID]*handle
	built   map[TypeID]int
}

func newMockRegistry(c *Catalog, l *Ledger) *MockRegistry {
	return &MockRegistry{
		catalog: c,
		ledger:  l,
		handles: make(map[TypeID]*handle),
		built:   make(map[TypeID]int),
	}
}

// Acquire returns the double for id, creating it on first use.
func (r *MockRegistry) Acquire(id TypeID) (any, error) {
	h, err := r.handle(id)
	if err != nil {
		return nil, err
	}
	return h.double, nil
}

// AcquireType identifies t through the catalog and acquires its double.
func (r *MockRegistry) AcquireType(t reflect.Type) (any, error) {
	id, err := r.catalog.Identify(t)
	if err != nil {
		return nil, err
	}
	return r.Acquire(id)
}

// Len returns the number of doubles created so far.
func (r *MockRegistry) Len() int { return len(r.handles) }

// Constructed returns how many times the double for id was fabricated. It is
// at most one.
func (r *MockRegistry) Constructed(id TypeID) int { return r.built[id] }

func (r *MockRegistry) handle(id TypeID) (*handle, error) {
	if id.IsZero() {
		return nil, NonSubstitutableError{Type: id.Type()}
	}
	if h, ok := r.handles[id]; ok {
		if h.id != id {
			panic(IdentityMismatchError{Want: id.Type(), Got: h.id.Type()})
		}
		return h, nil
	}
	f, ok := r.catalog.factory(id.Type())
	if !ok {
		return nil, MissingDoubleError{Type: id.Type()}
	}
	double := f.build(r.ledger.Controller())
	if double == nil || !reflect.TypeOf(double).Implements(id.Type()) {
		panic(IdentityMismatchError{Want: id.Type(), Got: reflect.TypeOf(double)})
	}
	h := &handle{id: id, double: double}
	r.handles[id] = h
	r.built[id]++
	return h, nil
}

// shared returns the live shared lifetime of h's double, opening a new one
// when none is alive. fresh reports whether it was opened by this call.
func (r *MockRegistry) shared(h *handle) (blk *refBlock, fresh bool) {
	if h.shared.alive() {
		return h.shared, false
	}
	double := h.double
	h.shared = &refBlock{destroy: func() { r.ledger.Destroyed(double) }}
	return h.shared, true
}
