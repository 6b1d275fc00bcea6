package di

import (
	"fmt"
	"reflect"

	"go.uber.org/mock/gomock"
)

//
// -----------------------------------------------------------------------------
// Abstract types and their gomock doubles
// -----------------------------------------------------------------------------

type logger interface {
	Log(text string)
}

type logic interface {
	Do()
}

type mockLogger struct {
	ctrl     *gomock.Controller
	recorder *mockLoggerMockRecorder
}

type mockLoggerMockRecorder struct {
	mock *mockLogger
}

func newMockLogger(ctrl *gomock.Controller) *mockLogger {
	mock := &mockLogger{ctrl: ctrl}
	mock.recorder = &mockLoggerMockRecorder{mock}
	return mock
}

func (m *mockLogger) EXPECT() *mockLoggerMockRecorder { return m.recorder }

func (m *mockLogger) Log(text string) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Log", text)
}

func (mr *mockLoggerMockRecorder) Log(text any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Log", reflect.TypeOf((*mockLogger)(nil).Log), text)
}

type mockLogic struct {
	ctrl     *gomock.Controller
	recorder *mockLogicMockRecorder
}

type mockLogicMockRecorder struct {
	mock *mockLogic
}

func newMockLogic(ctrl *gomock.Controller) *mockLogic {
	mock := &mockLogic{ctrl: ctrl}
	mock.recorder = &mockLogicMockRecorder{mock}
	return mock
}

func (m *mockLogic) EXPECT() *mockLogicMockRecorder { return m.recorder }

func (m *mockLogic) Do() {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Do")
}

func (mr *mockLogicMockRecorder) Do() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Do", reflect.TypeOf((*mockLogic)(nil).Do))
}

func testDoubles() Option {
	return WithDoubles(Mock[logger](newMockLogger), Mock[logic](newMockLogic))
}

var (
	loggerType = reflect.TypeFor[logger]()
	logicType  = reflect.TypeFor[logic]()
)

//
// -----------------------------------------------------------------------------
// Objects under test
// -----------------------------------------------------------------------------

type realLogic struct{ calls int }

func (l *realLogic) Do() { l.calls++ }

// exampleSP holds both dependencies shared, logic first.
type exampleSP struct {
	logic  Shared[logic]
	logger Shared[logger]
}

func newExampleSP(lg Shared[logic], lo Shared[logger]) *exampleSP {
	return &exampleSP{logic: lg, logger: lo}
}

func (e *exampleSP) Run() {
	e.logic.Get().Do()
	e.logger.Get().Log("hello world")
}

// exampleSPOrder declares the same dependencies in the opposite order.
type exampleSPOrder struct {
	logger Shared[logger]
	logic  Shared[logic]
}

func newExampleSPOrder(lo Shared[logger], lg Shared[logic]) *exampleSPOrder {
	return &exampleSPOrder{logger: lo, logic: lg}
}

func (e *exampleSPOrder) Run() {
	e.logic.Get().Do()
	e.logger.Get().Log("hello world")
}

// exampleSPUP shares the logger and owns the logic.
type exampleSPUP struct {
	logger Shared[logger]
	logic  Owned[logic]
}

func newExampleSPUP(lo Shared[logger], lg Owned[logic]) *exampleSPUP {
	return &exampleSPUP{logger: lo, logic: lg}
}

func (e *exampleSPUP) Run() {
	e.logic.Get().Do()
	e.logger.Get().Log("hello world")
}

type exampleUPInt struct {
	logic Owned[logic]
	i     int
}

func newExampleUPInt(lg Owned[logic], i int) *exampleUPInt {
	return &exampleUPInt{logic: lg, i: i}
}

func (e *exampleUPInt) Run() { e.logic.Get().Do() }

// greeting prints a configured text.
type greeting struct {
	logger Shared[logger]
	logic  Owned[logic]
	text   string
}

func newGreeting(lo Shared[logger], lg Owned[logic], text string) *greeting {
	return &greeting{logger: lo, logic: lg, text: text}
}

func (g *greeting) Run() int {
	g.logic.Get().Do()
	g.logger.Get().Log(g.text)
	return 0
}

type app struct {
	greeting Shared[*greeting]
}

func newApp(g Shared[*greeting]) *app { return &app{greeting: g} }

func (a *app) Run() int { return a.greeting.Get().Run() }

// wired is built by field autowiring.
type wired struct {
	Logger logger
	Logic  Owned[logic]
	Count  int
	hidden string
}

// logicHolder owns a logic, so sharing it must not duplicate the logic's
// destruction.
type logicHolder struct {
	Logic Owned[logic]
}

type closer struct {
	Logic  Owned[logic]
	closed *int
}

func (c *closer) Close() error {
	*c.closed++
	return nil
}

type cycA struct{ B *cycB }

type cycB struct{ A *cycA }

//
// -----------------------------------------------------------------------------
// Reporter without Cleanup, so failures are observable
// -----------------------------------------------------------------------------

type fakeReporter struct {
	errors []string
	fatals []string
}

func (r *fakeReporter) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *fakeReporter) Fatalf(format string, args ...any) {
	r.fatals = append(r.fatals, fmt.Sprintf(format, args...))
}

func (r *fakeReporter) Helper() {}

func destructionTypes(l *Ledger) []reflect.Type {
	var out []reflect.Type
	for _, e := range l.Destructions() {
		out = append(out, e.Type.Type())
	}
	return out
}

func destructionOrders(l *Ledger) []Order {
	var out []Order
	for _, e := range l.Destructions() {
		out = append(out, e.Order)
	}
	return out
}
