package di

import (
	"io"
	"reflect"
	"slices"

	"github.com/rs/zerolog"
)

// Edge is one dependency being resolved: a constructor parameter or struct
// field of Owner, or the root request itself.
type Edge struct {
	// Owner is the type whose construction needs the dependency. It is nil
	// for the root request.
	Owner reflect.Type
	// Requested is the declared type, wrappers included.
	Requested reflect.Type
	// Type is the plain type behind Requested.
	Type reflect.Type
	// Ownership is the tag derived from Requested.
	Ownership Ownership
	// Index is the parameter or field position within Owner, -1 for the root.
	Index int
	// Root reports whether Type is the type under test.
	Root bool
	// Double and Fresh are filled in by the allocator: whether a double was
	// delivered and whether it opened a new shared lifetime.
	Double bool
	Fresh  bool
}

// Delivery is what an allocator hands to the owner of an edge.
type Delivery struct {
	Value   reflect.Value
	double  any
	release func()
}

// Release ends the delivered handle. It is a no-op for deliveries the owner
// does not own.
func (d Delivery) Release() {
	if d.release != nil {
		d.release()
	}
}

// Constructor builds the real value behind an edge. destroy tears it down:
// Close when the value is an io.Closer, then its own members in reverse
// declaration order.
type Constructor func() (v reflect.Value, destroy func(), err error)

// Allocator decides what is delivered for an edge. construct builds the
// real value; an allocator substituting a double never calls it.
type Allocator interface {
	Allocate(e *Edge, construct Constructor) (Delivery, error)
}

// Completer observes every successfully allocated edge, in the order the
// graph completes them (dependencies before their owner).
type Completer interface {
	Complete(e *Edge, d Delivery)
}

// graph resolves one object graph depth-first. Parameters and fields are
// visited in declaration order.
type graph struct {
	root     reflect.Type
	bindings *Bindings
	alloc    Allocator
	done     Completer
	log      zerolog.Logger

	path    []reflect.Type
	orphans []func()
}

func (g *graph) edge(owner, declared reflect.Type, index int) *Edge {
	own, plain := classify(declared)
	return &Edge{
		Owner:     owner,
		Requested: declared,
		Type:      plain,
		Ownership: own,
		Index:     index,
		Root:      g.root != nil && plain == g.root,
	}
}

func (g *graph) resolve(e *Edge) (Delivery, error) {
	if isWrapper(e.Type) {
		return Delivery{}, InvalidBindingError{Type: e.Requested, Reason: "nested ownership wrappers"}
	}
	d, err := g.alloc.Allocate(e, func() (reflect.Value, func(), error) {
		return g.construct(e.Owner, e.Type)
	})
	if err != nil {
		return Delivery{}, err
	}
	g.done.Complete(e, d)
	return d, nil
}

func (g *graph) construct(owner, t reflect.Type) (reflect.Value, func(), error) {
	if slices.Contains(g.path, t) {
		return reflect.Value{}, nil, CycleError{Path: append(slices.Clone(g.path), t)}
	}
	g.path = append(g.path, t)
	defer func() { g.path = g.path[:len(g.path)-1] }()

	if bd, ok := g.bindings.lookup(t); ok {
		switch bd.kind {
		case bindValue:
			return bd.value, nil, nil
		case bindImpl:
			v, destroy, err := g.construct(owner, bd.impl)
			if err != nil {
				return reflect.Value{}, nil, err
			}
			return v, destroy, nil
		case bindCtor:
			return g.call(t, bd)
		}
	}

	switch {
	case t.Kind() == reflect.Interface && t.NumMethod() > 0:
		return reflect.Value{}, nil, UnresolvableError{Type: t, Owner: owner}
	case t.Kind() == reflect.Struct:
		return g.autowire(t, false)
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return g.autowire(t.Elem(), true)
	default:
		return reflect.Zero(t), nil, nil
	}
}

func (g *graph) call(t reflect.Type, bd binding) (reflect.Value, func(), error) {
	ct := bd.ctor.Type()
	args := make([]reflect.Value, ct.NumIn())
	members := make([]func(), 0, len(args))
	for i := range args {
		d, err := g.resolve(g.edge(t, ct.In(i), i))
		if err != nil {
			g.orphan(members)
			return reflect.Value{}, nil, err
		}
		args[i] = d.Value
		members = append(members, d.release)
	}
	v, err := bd.call(t, args)
	if err != nil {
		g.orphan(members)
		return reflect.Value{}, nil, err
	}
	return v, g.destroyer(t, v, members), nil
}

// autowire builds st by resolving every exported field. Unexported fields
// keep their zero value.
func (g *graph) autowire(st reflect.Type, ptr bool) (reflect.Value, func(), error) {
	owner := st
	if ptr {
		owner = reflect.PointerTo(st)
	}
	obj := reflect.New(st).Elem()
	var members []func()
	for i := range st.NumField() {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		d, err := g.resolve(g.edge(owner, f.Type, i))
		if err != nil {
			g.orphan(members)
			return reflect.Value{}, nil, err
		}
		obj.Field(i).Set(d.Value)
		members = append(members, d.release)
	}
	if ptr {
		return obj.Addr(), g.destroyer(owner, obj.Addr(), members), nil
	}
	return obj, g.destroyer(owner, obj, members), nil
}

func (g *graph) destroyer(t reflect.Type, v reflect.Value, members []func()) func() {
	log := g.log
	return func() {
		if c, ok := closerOf(v); ok {
			if err := c.Close(); err != nil {
				log.Warn().Err(err).Str("type", typeName(t)).Msg("close failed during teardown")
			}
		}
		for i := len(members) - 1; i >= 0; i-- {
			if members[i] != nil {
				members[i]()
			}
		}
	}
}

// orphan keeps the handles of a construction that failed halfway so they
// can be released once the graph is abandoned.
func (g *graph) orphan(members []func()) {
	g.orphans = append(g.orphans, members...)
}

func (g *graph) releaseOrphans() {
	for i := len(g.orphans) - 1; i >= 0; i-- {
		if g.orphans[i] != nil {
			g.orphans[i]()
		}
	}
	g.orphans = nil
}

func closerOf(v reflect.Value) (io.Closer, bool) {
	if !v.IsValid() || !v.CanInterface() {
		return nil, false
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false
	}
	c, ok := v.Interface().(io.Closer)
	return c, ok
}
