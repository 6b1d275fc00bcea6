// Package di builds object graphs for tests with every polymorphic
// dependency replaced by a gomock double.
//
// An Injector resolves the type under test the way a dependency injector
// would: constructor parameters (registered with Provide) or exported struct
// fields are resolved depth-first, in declaration order. Whenever a
// dependency is an interface with methods, the injector delivers the one
// double it keeps for that interface instead of a real implementation:
//
//   - the type under test itself is never substituted;
//   - an interface bound with BindTo, BindAs or Provide is built for real.
//
// The declared type of a dependency carries its ownership:
//
//   - I (a plain interface) borrows the double;
//   - Owned[I] owns it exclusively;
//   - Shared[I] shares it through a reference count.
//
// Every double delivered under ownership is expected to be destroyed.
// Exclusive dependencies are expected in declaration order while the graph
// is built; shared ones are expected once per lifetime, last acquired first,
// after the graph is complete. Tearing the graph down (Verify, Close, or the
// test's cleanup) releases every handle and so meets those expectations,
// unless the object under test leaks or double-releases a dependency.
//
// Call expectations go through the same doubles:
//
//	inj := di.New(t,
//	    di.WithCatalog(mocks.Doubles()),
//	    di.Bind("hello world"),
//	    di.BindTo[greeter.Logic, *greeter.RealLogic](),
//	    di.Provide(greeter.NewExample),
//	    di.Provide(greeter.NewApp),
//	)
//	di.ExpectCall[greeter.Logger](inj, "Log", "hello world")
//	app := di.MustCreate[*greeter.App](inj)
//	app.Run()
//
// Unexpected calls fail the test when they happen; unmet expectations fail
// it when the injector is verified. Verify returns both as Violations.
//
// For hand-built objects under test, Arg resolves single dependency
// handles:
//
//	sut := greeter.NewExample(di.Arg[di.Shared[greeter.Logger]](inj), di.Arg[di.Owned[greeter.Logic]](inj), "hello world")
//
// Double factories are usually generated with cmd/mockdigen, which emits a
// Doubles() catalog for a set of mockgen mocks.
//
// Import
//
//	"github.com/sghaida/mockdi/di"
package di
