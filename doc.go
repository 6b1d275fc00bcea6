// Package mockdi builds test object graphs with gomock doubles standing in
// for every interface dependency.
//
// Subpackages:
//   - di: the injector, double catalog, ownership wrappers and expectation ledger
//   - cmd/mockdigen: generates the double catalog of a mocks package
//   - examples/greeter: unit and integration tests written against di
package mockdi
