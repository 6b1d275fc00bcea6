package di

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrConstructorPanic is wrapped by ConstructorError when a provided
	// constructor panics instead of returning an error.
	ErrConstructorPanic = errors.New("di: panic during construction")

	// ErrInjectorClosed is returned when a graph is requested from an
	// injector that has already been torn down.
	ErrInjectorClosed = errors.New("di: injector closed")
)

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// NonSubstitutableError is returned when a double is requested for a type
// that has no dynamic dispatch (anything but a non-empty interface).
type NonSubstitutableError struct{ Type reflect.Type }

// Error implements the error interface.
func (e NonSubstitutableError) Error() string {
	// Example: di: cannot substitute a double for greeter.Config: not an interface with methods
	return "di: cannot substitute a double for " + typeName(e.Type) + ": not an interface with methods"
}

// MissingDoubleError is returned when an interface needs a double but no
// factory for it was registered in the catalog.
type MissingDoubleError struct{ Type reflect.Type }

// Error implements the error interface.
func (e MissingDoubleError) Error() string {
	return "di: no double registered for " + typeName(e.Type)
}

// UnresolvableError is returned when the real implementation of a type is
// required but nothing says how to build it, e.g. an interface root with no
// binding.
type UnresolvableError struct {
	Type  reflect.Type
	Owner reflect.Type
}

// Error implements the error interface.
func (e UnresolvableError) Error() string {
	msg := "di: cannot resolve " + typeName(e.Type)
	if e.Owner != nil {
		msg += " (dependency of " + typeName(e.Owner) + ")"
	}
	return msg
}

// CycleError is returned when a type depends on itself, directly or not.
type CycleError struct{ Path []reflect.Type }

// Error implements the error interface.
func (e CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, t := range e.Path {
		names[i] = typeName(t)
	}
	return "di: cyclic dependencies in graph: " + strings.Join(names, " -> ")
}

// ConstructorError wraps a failure returned (or panicked) by a provided
// constructor.
type ConstructorError struct {
	Type reflect.Type
	Err  error
}

// Error implements the error interface.
func (e ConstructorError) Error() string {
	return "di: constructing " + typeName(e.Type) + ": " + e.Err.Error()
}

// Unwrap returns the constructor's own error.
func (e ConstructorError) Unwrap() error { return e.Err }

// InvalidBindingError reports a binding option that can never be satisfied.
// Options panic with it when they are created.
type InvalidBindingError struct {
	Type   reflect.Type
	Reason string
}

// Error implements the error interface.
func (e InvalidBindingError) Error() string {
	return "di: invalid binding for " + typeName(e.Type) + ": " + e.Reason
}

// IdentityMismatchError signals that the registry returned a double of the
// wrong abstract type. It is never a user error.
type IdentityMismatchError struct {
	Want reflect.Type
	Got  reflect.Type
}

// Error implements the error interface.
func (e IdentityMismatchError) Error() string {
	return "di: internal consistency violation: double for " + typeName(e.Want) +
		" resolved to " + typeName(e.Got)
}

// UseAfterReleaseError is the panic value of Owned.Get and Shared.Get once
// the handle has been released.
type UseAfterReleaseError struct{ Type reflect.Type }

// Error implements the error interface.
func (e UseAfterReleaseError) Error() string {
	return "di: use of released " + typeName(e.Type)
}

// UnknownMethodError is returned when an expectation names a method the
// abstract type does not declare.
type UnknownMethodError struct {
	Type   reflect.Type
	Method string
}

// Error implements the error interface.
func (e UnknownMethodError) Error() string {
	return "di: " + typeName(e.Type) + " has no method " + strconv.Quote(e.Method)
}

// ArgumentCountError is returned when an expectation constrains a different
// number of arguments than the method accepts.
type ArgumentCountError struct {
	Type   reflect.Type
	Method string
	Want   int
	Got    int
}

// Error implements the error interface.
func (e ArgumentCountError) Error() string {
	return "di: " + typeName(e.Type) + "." + e.Method + " takes " + strconv.Itoa(e.Want) +
		" argument(s), expectation gives " + strconv.Itoa(e.Got)
}
