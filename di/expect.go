package di

import (
	"reflect"

	"go.uber.org/mock/gomock"
)

// ExpectCall expects method to be called on the double standing for I. It
// is the same double every graph of the injector receives for I.
//
// Without args every parameter matches anything; otherwise there must be
// one argument per parameter, compared with gomock.Eq unless it already is
// a gomock.Matcher. The call is expected exactly once unless the returned
// call says otherwise:
//
//	di.ExpectCall[greeter.Logic](inj, "Do").Return(true)
//	di.ExpectCall[greeter.Logger](inj, "Log", "hello world")
func ExpectCall[I any](inj *Injector, method string, args ...any) *gomock.Call {
	rep := inj.ledger.rep
	rep.Helper()
	t := reflect.TypeFor[I]()
	id, double, err := inj.acquire(t)
	if err != nil {
		inj.fatal(err)
	}
	call, err := inj.ledger.RegisterCall(id, double, method, args...)
	if err != nil {
		inj.fatal(err)
	}
	return call
}

// Acquire returns the double standing for I, for use with its generated
// EXPECT() recorder. It is the same double ExpectCall configures.
func Acquire[I any](inj *Injector) I {
	inj.ledger.rep.Helper()
	_, double, err := inj.acquire(reflect.TypeFor[I]())
	if err != nil {
		inj.fatal(err)
	}
	return double.(I)
}

func (inj *Injector) acquire(t reflect.Type) (TypeID, any, error) {
	id, err := inj.catalog.Identify(t)
	if err != nil {
		return TypeID{}, nil, err
	}
	double, err := inj.mocks.Acquire(id)
	if err != nil {
		return TypeID{}, nil, err
	}
	return id, double, nil
}
