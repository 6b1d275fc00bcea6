package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExpectCall_SameDoubleAsGraph verifies expectations bound before and
// after construction reach the double the graph holds.
func TestExpectCall_SameDoubleAsGraph(t *testing.T) {
	t.Parallel()

	inj := New(t, testDoubles(), Provide(newExampleSPUP))
	ExpectCall[logger](inj, "Log", "hello world")

	sut := MustCreate[*exampleSPUP](inj)
	ExpectCall[logic](inj, "Do")

	assert.Same(t, Acquire[logger](inj), sut.logger.Get())
	assert.Same(t, Acquire[logic](inj), sut.logic.Get())
	sut.Run()
	assert.Empty(t, inj.Verify())
}

// TestAcquire_ConstructsOnce verifies repeated acquisition reuses the double.
func TestAcquire_ConstructsOnce(t *testing.T) {
	t.Parallel()

	inj := New(t, testDoubles())
	first := Acquire[logger](inj)
	for range 3 {
		assert.Same(t, first, Acquire[logger](inj))
	}
	assert.Equal(t, 1, inj.Registry().Constructed(mustIdentify(t, inj, loggerType)))
}

// TestAcquire_GeneratedRecorder verifies mockgen-style EXPECT() works on the
// acquired double.
func TestAcquire_GeneratedRecorder(t *testing.T) {
	t.Parallel()

	inj := New(t, testDoubles(), Provide(newExampleSP))
	Acquire[logger](inj).(*mockLogger).EXPECT().Log("hello world")
	Acquire[logic](inj).(*mockLogic).EXPECT().Do()

	MustCreate[*exampleSP](inj).Run()
	assert.Empty(t, inj.Verify())
}

// TestExpectCall_Misuse verifies bad expectations fail the test.
func TestExpectCall_Misuse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		fn   func(inj *Injector)
		msg  string
	}{
		{"unknown method", func(inj *Injector) { ExpectCall[logger](inj, "Warn") }, `has no method "Warn"`},
		{"wrong arity", func(inj *Injector) { ExpectCall[logger](inj, "Log", "a", "b") }, "takes 1 argument(s)"},
		{"not an interface", func(inj *Injector) { ExpectCall[*realLogic](inj, "Do") }, "cannot substitute"},
		{"no factory", func(inj *Injector) { Acquire[error](inj) }, "no double registered for error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := &fakeReporter{}
			inj := New(rep, testDoubles())

			require.Panics(t, func() { tc.fn(inj) })
			require.Len(t, rep.fatals, 1)
			assert.Contains(t, rep.fatals[0], tc.msg)
			assert.Empty(t, inj.Ledger().Expectations())
		})
	}
}
