package di

import (
	"reflect"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

// Injector builds object graphs for one test. Every polymorphic dependency
// of the requested type is replaced with a gomock double, every double
// handed out under ownership is expected to be destroyed, and all
// expectations are checked when the test ends.
//
// An Injector is not safe for concurrent use.
type Injector struct {
	ledger   *Ledger
	catalog  *Catalog
	bindings *Bindings
	mocks    *MockRegistry
	shared   map[reflect.Type]*sharedNode
	log      zerolog.Logger

	owned  []Delivery
	closed bool
}

// New returns an injector reporting to t. When t has a Cleanup method (as
// *testing.T does) the injector tears down its graphs and verifies every
// expectation when the test ends; otherwise call Verify or Close.
//
// t may be nil, in which case violations are only recorded and fatal ones
// panic.
func New(t gomock.TestReporter, opts ...Option) *Injector {
	s := newSettings(opts)
	l := newLedger(t)
	inj := &Injector{
		ledger:   l,
		catalog:  s.catalog,
		bindings: s.bindings,
		mocks:    newMockRegistry(s.catalog, l),
		shared:   make(map[reflect.Type]*sharedNode),
		log:      s.log,
	}
	// Registered after the controller's own finish, so it runs first.
	if c, ok := t.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(inj.Close)
	}
	return inj
}

// Create builds T with every polymorphic dependency substituted, T itself
// excepted. T may be wrapped (Owned[*Example], Shared[*Example]) to receive
// an owning handle. Destruction expectations for the graph are registered
// before Create returns.
//
// On error nothing is kept: partially built dependencies are released.
func Create[T any](inj *Injector) (T, error) {
	var zero T
	d, err := inj.build(reflect.TypeFor[T](), true)
	if err != nil {
		return zero, err
	}
	return valueAs[T](d.Value), nil
}

// MustCreate is like Create but fails the test on error.
func MustCreate[T any](inj *Injector) T {
	inj.ledger.rep.Helper()
	v, err := Create[T](inj)
	if err != nil {
		inj.fatal(err)
	}
	return v
}

// Arg resolves a single dependency handle, for building the object under
// test by hand:
//
//	sut := greeter.NewExample(di.Arg[di.Shared[greeter.Logger]](inj), di.Arg[di.Owned[greeter.Logic]](inj), "hi")
//
// Unlike Create there is no exempt root type: an interface T is always a
// double. Arg handles are released when the injector is closed.
func Arg[T any](inj *Injector) T {
	inj.ledger.rep.Helper()
	d, err := inj.build(reflect.TypeFor[T](), false)
	if err != nil {
		inj.fatal(err)
	}
	return valueAs[T](d.Value)
}

func (inj *Injector) build(t reflect.Type, asRoot bool) (Delivery, error) {
	if inj.closed {
		return Delivery{}, ErrInjectorClosed
	}
	var root reflect.Type
	if asRoot {
		_, root = classify(t)
	}
	scope := &expectationScope{
		root:    root,
		catalog: inj.catalog,
		mocks:   inj.mocks,
		ledger:  inj.ledger,
		log:     inj.log,
	}
	g := &graph{
		root:     root,
		bindings: inj.bindings,
		alloc: &allocator{
			root:     root,
			catalog:  inj.catalog,
			bindings: inj.bindings,
			mocks:    inj.mocks,
			shared:   inj.shared,
			log:      inj.log,
		},
		done: scope,
		log:  inj.log,
	}

	d, err := g.resolve(g.edge(nil, t, -1))
	scope.Close()
	if err != nil {
		inj.log.Debug().Err(err).Str("type", typeName(t)).Msg("graph abandoned")
		g.releaseOrphans()
		return Delivery{}, err
	}
	inj.owned = append(inj.owned, d)
	return d, nil
}

func (inj *Injector) fatal(err error) {
	inj.ledger.rep.Helper()
	inj.ledger.rep.Fatalf("%s", err.Error())
}

// Verify tears down every graph the injector built and checks all
// expectations. It returns every violation recorded during the test; each
// one has also been reported to the test. Later calls return the same
// violations without checking again.
func (inj *Injector) Verify() []Violation {
	inj.teardown()
	return inj.ledger.Verify()
}

// Close releases every root and Arg handle, last created first, and then
// verifies the ledger if the injector's reporter cannot do it on cleanup.
// Close is idempotent.
func (inj *Injector) Close() {
	inj.teardown()
	inj.ledger.rep.runCleanups()
}

func (inj *Injector) teardown() {
	if inj.closed {
		return
	}
	inj.closed = true
	inj.log.Debug().Int("handles", len(inj.owned)).Msg("tearing down")
	for i := len(inj.owned) - 1; i >= 0; i-- {
		inj.owned[i].Release()
	}
	inj.owned = nil
}

// Ledger returns the expectation ledger.
func (inj *Injector) Ledger() *Ledger { return inj.ledger }

// Registry returns the double registry.
func (inj *Injector) Registry() *MockRegistry { return inj.mocks }

// Catalog returns the injector's capability catalog.
func (inj *Injector) Catalog() *Catalog { return inj.catalog }
