package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerFixture struct {
	rep    *fakeReporter
	ledger *Ledger
	id     TypeID
	double *mockLogger
}

func newLedgerFixture(t *testing.T) ledgerFixture {
	t.Helper()
	rep := &fakeReporter{}
	l := newLedger(rep)
	id, err := NewCatalog().Identify(loggerType)
	require.NoError(t, err)
	return ledgerFixture{rep: rep, ledger: l, id: id, double: newMockLogger(l.Controller())}
}

//
// -----------------------------------------------------------------------------
// RegisterCall
// -----------------------------------------------------------------------------

// TestLedger_RegisterCallAnyArgs verifies omitted arguments match anything.
func TestLedger_RegisterCallAnyArgs(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	call, err := f.ledger.RegisterCall(f.id, f.double, "Log")
	require.NoError(t, err)
	require.NotNil(t, call)

	f.double.Log("whatever")
	assert.True(t, f.ledger.Satisfied())
	assert.Empty(t, f.ledger.Verify())

	exps := f.ledger.Expectations()
	require.Len(t, exps, 1)
	assert.Equal(t, KindCall, exps[0].Kind)
	assert.Equal(t, "Log", exps[0].Method)
	assert.Equal(t, OrderNone, exps[0].Order)
	assert.Same(t, call, exps[0].Call)
}

// TestLedger_RegisterCallChaining verifies the returned call keeps gomock's
// cardinality controls.
func TestLedger_RegisterCallChaining(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	call, err := f.ledger.RegisterCall(f.id, f.double, "Log", gomock.Any())
	require.NoError(t, err)
	call.Times(2)

	f.double.Log("a")
	assert.False(t, f.ledger.Satisfied())
	f.double.Log("b")
	assert.True(t, f.ledger.Satisfied())
}

// TestLedger_RegisterCallErrors verifies unknown methods and wrong arity.
func TestLedger_RegisterCallErrors(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)

	_, err := f.ledger.RegisterCall(f.id, f.double, "Warn")
	var um UnknownMethodError
	require.ErrorAs(t, err, &um)
	assert.Equal(t, `di: di.logger has no method "Warn"`, err.Error())

	_, err = f.ledger.RegisterCall(f.id, f.double, "Log", "a", "b")
	var ac ArgumentCountError
	require.ErrorAs(t, err, &ac)
	assert.Equal(t, 1, ac.Want)
	assert.Equal(t, 2, ac.Got)

	assert.Empty(t, f.ledger.Expectations())
}

//
// -----------------------------------------------------------------------------
// Violations
// -----------------------------------------------------------------------------

// TestLedger_UnexpectedCallIsFatal verifies unexpected calls fail at call
// time, even when the reporter's Fatalf returns.
func TestLedger_UnexpectedCallIsFatal(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	_, err := f.ledger.RegisterCall(f.id, f.double, "Log", "hello world")
	require.NoError(t, err)

	require.Panics(t, func() { f.double.Log("") })
	require.Len(t, f.rep.fatals, 1)
	assert.Contains(t, f.rep.fatals[0], "Unexpected call")

	v := f.ledger.Violations()
	require.Len(t, v, 1)
	assert.Equal(t, UnexpectedCall, v[0].Kind)
	assert.Contains(t, v[0].Error(), "di: unexpected call: ")
}

// TestLedger_VerifyReportsUnmet verifies unmet expectations are collected
// once and reported to the test.
func TestLedger_VerifyReportsUnmet(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	_, err := f.ledger.RegisterCall(f.id, f.double, "Log", "hello world")
	require.NoError(t, err)
	f.ledger.RegisterDestruction(f.id, f.double, OrderImmediate)

	v := f.ledger.Verify()
	require.Len(t, v, 2)
	for _, got := range v {
		assert.Equal(t, UnmetExpectation, got.Kind)
	}
	assert.Empty(t, f.rep.fatals)
	errs := len(f.rep.errors)
	assert.Equal(t, 2, errs)

	assert.Len(t, f.ledger.Verify(), 2)
	assert.Len(t, f.rep.errors, errs)
}

//
// -----------------------------------------------------------------------------
// Destruction
// -----------------------------------------------------------------------------

// TestLedger_Destruction verifies destruction expectations are met by
// Destroyed and listed in registration order.
func TestLedger_Destruction(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	logicID, err := NewCatalog().Identify(logicType)
	require.NoError(t, err)
	other := newMockLogic(f.ledger.Controller())

	f.ledger.RegisterDestruction(logicID, other, OrderImmediate)
	f.ledger.RegisterDestruction(f.id, f.double, OrderDeferred)

	d := f.ledger.Destructions()
	require.Len(t, d, 2)
	assert.Equal(t, logicType, d[0].Type.Type())
	assert.Equal(t, OrderImmediate, d[0].Order)
	assert.Equal(t, loggerType, d[1].Type.Type())
	assert.Equal(t, OrderDeferred, d[1].Order)
	assert.Equal(t, DestructorMethod, d[1].Method)

	f.ledger.Destroyed(f.double)
	f.ledger.Destroyed(other)
	assert.Empty(t, f.ledger.Verify())
}

// TestLedger_UnexpectedDestruction verifies destroying a double twice fails.
func TestLedger_UnexpectedDestruction(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t)
	f.ledger.RegisterDestruction(f.id, f.double, OrderImmediate)
	f.ledger.Destroyed(f.double)

	require.Panics(t, func() { f.ledger.Destroyed(f.double) })
	require.Len(t, f.ledger.Violations(), 1)
	assert.Equal(t, UnexpectedCall, f.ledger.Violations()[0].Kind)
}

// TestKinds_String verifies names used in violation messages and traces.
func TestKinds_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unmet expectation", UnmetExpectation.String())
	assert.Equal(t, "unexpected call", UnexpectedCall.String())
	assert.Equal(t, "misuse", Misuse.String())
	assert.Equal(t, "unknown", ViolationKind(0).String())
	assert.Equal(t, "immediate", OrderImmediate.String())
	assert.Equal(t, "deferred", OrderDeferred.String())
	assert.Equal(t, "none", OrderNone.String())
}
