package di

import (
	"reflect"

	"github.com/rs/zerolog"
)

type settings struct {
	bindings *Bindings
	catalog  *Catalog
	log      zerolog.Logger
}

func newSettings(opts []Option) settings {
	s := settings{
		bindings: NewBindings(),
		catalog:  NewCatalog(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// Option configures an Injector. Options validate their arguments when they
// are constructed and panic with InvalidBindingError on misuse.
type Option func(*settings)

// Bind binds the dynamic type of v to v.
//
//	di.New(t, di.Bind("hello world"), di.Bind(42))
func Bind(v any) Option {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		panic(InvalidBindingError{Reason: "untyped nil value, use BindAs"})
	}
	t := rv.Type()
	bd := valueBinding(t, v)
	return func(s *settings) { s.bindings.items[t] = bd }
}

// BindAs binds T to v. Binding an interface type this way resolves it to v
// instead of a double.
func BindAs[T any](v T) Option {
	t := reflect.TypeFor[T]()
	bd := valueBinding(t, v)
	return func(s *settings) { s.bindings.items[t] = bd }
}

// BindTo binds interface I to the concrete type C. I is then built for real
// from C whenever it is needed, and never substituted.
func BindTo[I any, C any]() Option {
	iface, impl := reflect.TypeFor[I](), reflect.TypeFor[C]()
	bd := implBinding(iface, impl)
	return func(s *settings) { s.bindings.items[iface] = bd }
}

// Provide registers a constructor for its first result type. ctor must
// return T or (T, error); its parameters are resolved as dependencies.
func Provide(ctor any) Option {
	t, bd := ctorBinding(ctor)
	return func(s *settings) { s.bindings.items[t] = bd }
}

// WithBindings copies every binding of b.
func WithBindings(b *Bindings) Option {
	return func(s *settings) {
		if b == nil {
			return
		}
		for t, bd := range b.items {
			s.bindings.items[t] = bd
		}
	}
}

// WithDoubles registers double factories.
func WithDoubles(factories ...DoubleFactory) Option {
	return func(s *settings) { s.catalog.Add(factories...) }
}

// WithCatalog registers every double factory of c, typically a generated
// Doubles() catalog.
func WithCatalog(c *Catalog) Option {
	return func(s *settings) { s.catalog.Merge(c) }
}

// WithLogger traces allocation and expectation decisions to log at debug
// level. The default logger discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *settings) { s.log = log }
}
