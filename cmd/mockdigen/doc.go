// Command mockdigen generates the double catalog of a mocks package.
//
// A mocks package holds mockgen mocks for the interfaces of some target
// package. To let di substitute them, a test needs a *di.Catalog naming the
// factory of every mock. mockdigen writes that catalog from a small spec, so
// adding an interface to the catalog is one line in the spec.
//
// What mockdigen generates
//
// For a spec naming the doubles Logger and Logic of package greeter:
//
//	func Doubles() *di.Catalog {
//		return di.NewCatalog(
//			di.Mock[greeter.Logger](NewMockLogger),
//			di.Mock[greeter.Logic](NewMockLogic),
//		)
//	}
//
//	func LoggerDouble(inj *di.Injector) *MockLogger { ... }
//	func LogicDouble(inj *di.Injector) *MockLogic { ... }
//
// The accessors return the same double the injector delivers, typed as the
// mock, for tests that prefer EXPECT() over di.ExpectCall.
//
// Spec
//
// Specs are TOML or JSON, chosen by file extension. Unknown keys are errors.
//
//	package = "mocks"          # default: base name of the -out directory
//	func = "Doubles"           # default: Doubles
//	accessors = true           # default: true
//
//	[imports]
//	target = "example.com/proj/greeter"  # default: parent of the -out directory
//	di = "github.com/sghaida/mockdi/di"  # default: inferred
//
//	[[doubles]]
//	name = "Logger"            # interface name in the target package
//	mock = "MockLogger"        # default: Mock<name>
//	ctor = "NewMockLogger"     # default: New<mock>
//
// Imports already present in the mocks package, or added by hand to a
// previously generated file, are reused. The generated file records the spec
// path and its SHA-256.
//
// Typical go:generate usage
//
//	//go:generate go run ../../../cmd/mockdigen -spec specs/doubles.toml -out doubles_gen.go
//
// Flags
//
//	-spec  path to the spec (.toml or .json)
//	-out   output .go file
//	-v     log every generated double
package main
