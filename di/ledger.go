package di

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/mock/gomock"
)

// DestructorMethod is the pseudo-method under which destruction expectations
// are recorded on a double. Doubles never implement it; the ledger invokes it
// on their behalf when a handle releases them.
const DestructorMethod = "Destructor"

var destructorType = reflect.TypeOf(func() {})

const (
	unexpectedPrefix = "Unexpected call"
	abortPrefix      = "aborting test"
)

// ViolationKind classifies a ledger failure.
type ViolationKind uint8

const (
	// UnmetExpectation is an expected call or destruction that never happened.
	UnmetExpectation ViolationKind = iota + 1
	// UnexpectedCall is a call no expectation matched, reported when it happens.
	UnexpectedCall
	// Misuse is any other fatal report from the double framework, such as
	// Return values that do not fit the method.
	Misuse
)

func (k ViolationKind) String() string {
	switch k {
	case UnmetExpectation:
		return "unmet expectation"
	case UnexpectedCall:
		return "unexpected call"
	case Misuse:
		return "misuse"
	default:
		return "unknown"
	}
}

// Violation is one failure reported by the ledger.
type Violation struct {
	Kind    ViolationKind
	Message string
}

// Error implements the error interface.
func (v Violation) Error() string {
	return "di: " + v.Kind.String() + ": " + v.Message
}

// ExpectationKind says what an Expectation asserts.
type ExpectationKind uint8

const (
	KindCall ExpectationKind = iota + 1
	KindDestruction
)

// Order is the ordering class of a destruction expectation.
type Order uint8

const (
	// OrderNone is used by call expectations.
	OrderNone Order = iota
	// OrderImmediate marks exclusively owned dependencies, registered as the
	// edge is completed.
	OrderImmediate
	// OrderDeferred marks shared dependencies, registered in reverse
	// acquisition order once construction completes.
	OrderDeferred
)

func (o Order) String() string {
	switch o {
	case OrderImmediate:
		return "immediate"
	case OrderDeferred:
		return "deferred"
	default:
		return "none"
	}
}

// Expectation is one registration made through the ledger, in order.
type Expectation struct {
	Kind   ExpectationKind
	Type   TypeID
	Method string
	Order  Order
	Call   *gomock.Call
}

type verifyAbort struct{}

// reporter sits between gomock and the test. It records every failure as a
// Violation before forwarding it, and guarantees that Fatalf never returns.
type reporter struct {
	parent     gomock.TestReporter
	verifying  bool
	violations []Violation
	cleanups   []func()
}

func (r *reporter) Helper() {
	if h, ok := r.parent.(interface{ Helper() }); ok {
		h.Helper()
	}
}

func (r *reporter) Errorf(format string, args ...any) {
	r.Helper()
	msg := fmt.Sprintf(format, args...)
	if !strings.HasPrefix(msg, abortPrefix) {
		r.violations = append(r.violations, Violation{Kind: UnmetExpectation, Message: msg})
	}
	if r.parent != nil {
		r.parent.Errorf("%s", msg)
	}
}

func (r *reporter) Fatalf(format string, args ...any) {
	r.Helper()
	msg := fmt.Sprintf(format, args...)
	if r.verifying && strings.HasPrefix(msg, abortPrefix) {
		panic(verifyAbort{})
	}
	v := Violation{Kind: Misuse, Message: msg}
	if strings.HasPrefix(msg, unexpectedPrefix) {
		v.Kind = UnexpectedCall
	}
	r.violations = append(r.violations, v)
	if r.parent != nil {
		r.parent.Fatalf("%s", msg)
	}
	// The parent returned (it is not a *testing.T): a fatal failure must
	// still stop the caller.
	panic(v)
}

func (r *reporter) Cleanup(f func()) {
	if c, ok := r.parent.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(f)
		return
	}
	r.cleanups = append(r.cleanups, f)
}

func (r *reporter) runCleanups() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
	r.cleanups = nil
}

// Ledger records call and destruction expectations against doubles and
// checks them. It is backed by a gomock controller.
type Ledger struct {
	ctrl         *gomock.Controller
	rep          *reporter
	expectations []Expectation
	verified     bool
}

func newLedger(t gomock.TestReporter) *Ledger {
	rep := &reporter{parent: t}
	return &Ledger{ctrl: gomock.NewController(rep), rep: rep}
}

// Controller returns the gomock controller doubles are built with.
func (l *Ledger) Controller() *gomock.Controller { return l.ctrl }

// RegisterCall expects method to be called on double, which stands for the
// abstract type id. Without args any arguments match; otherwise there must be
// one argument (or gomock.Matcher) per parameter. The returned call defaults
// to exactly once.
func (l *Ledger) RegisterCall(id TypeID, double any, method string, args ...any) (*gomock.Call, error) {
	iface := id.Type()
	if _, ok := iface.MethodByName(method); !ok {
		return nil, UnknownMethodError{Type: iface, Method: method}
	}
	m := reflect.ValueOf(double).MethodByName(method)
	if !m.IsValid() {
		panic(IdentityMismatchError{Want: iface, Got: reflect.TypeOf(double)})
	}
	mt := m.Type()
	matchers, err := callArgs(iface, method, mt, args)
	if err != nil {
		return nil, err
	}
	l.ctrl.T.Helper()
	call := l.ctrl.RecordCallWithMethodType(double, method, mt, matchers...)
	l.expectations = append(l.expectations, Expectation{Kind: KindCall, Type: id, Method: method, Call: call})
	return call, nil
}

// RegisterDestruction expects double to be destroyed exactly once.
func (l *Ledger) RegisterDestruction(id TypeID, double any, order Order) *gomock.Call {
	l.ctrl.T.Helper()
	call := l.ctrl.RecordCallWithMethodType(double, DestructorMethod, destructorType)
	l.expectations = append(l.expectations, Expectation{
		Kind:   KindDestruction,
		Type:   id,
		Method: DestructorMethod,
		Order:  order,
		Call:   call,
	})
	return call
}

// Destroyed reports that double was destroyed by its owner.
func (l *Ledger) Destroyed(double any) {
	l.ctrl.T.Helper()
	l.ctrl.Call(double, DestructorMethod)
}

// Expectations returns every registration in the order it was made.
func (l *Ledger) Expectations() []Expectation { return slices.Clone(l.expectations) }

// Destructions returns the destruction registrations in order.
func (l *Ledger) Destructions() []Expectation {
	var out []Expectation
	for _, e := range l.expectations {
		if e.Kind == KindDestruction {
			out = append(out, e)
		}
	}
	return out
}

// Satisfied reports whether every expectation has been met so far.
func (l *Ledger) Satisfied() bool { return l.ctrl.Satisfied() }

// Violations returns the failures recorded so far without verifying.
func (l *Ledger) Violations() []Violation { return slices.Clone(l.rep.violations) }

// Verify checks every expectation once and returns all violations seen
// during the test: unexpected calls as they happened and unmet expectations
// found now. Each unmet expectation is also reported to the test.
func (l *Ledger) Verify() []Violation {
	if !l.verified {
		l.verified = true
		l.finish()
	}
	return l.Violations()
}

func (l *Ledger) finish() {
	l.rep.verifying = true
	defer func() {
		l.rep.verifying = false
		if r := recover(); r != nil {
			if _, ok := r.(verifyAbort); !ok {
				panic(r)
			}
		}
	}()
	l.ctrl.Finish()
}

func callArgs(iface reflect.Type, method string, mt reflect.Type, args []any) ([]any, error) {
	n := mt.NumIn()
	if len(args) == 0 {
		out := make([]any, n)
		for i := range out {
			out[i] = gomock.Any()
		}
		return out, nil
	}
	if mt.IsVariadic() {
		if len(args) < n-1 {
			return nil, ArgumentCountError{Type: iface, Method: method, Want: n - 1, Got: len(args)}
		}
		return args, nil
	}
	if len(args) != n {
		return nil, ArgumentCountError{Type: iface, Method: method, Want: n, Got: len(args)}
	}
	return args, nil
}
