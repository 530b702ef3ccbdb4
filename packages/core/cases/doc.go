// Package cases defines the declarative test case model and the filters used
// to select which cases a run schedules.
//
// A TestCase is built once by a loader and is never mutated afterwards.
// Placeholders in Path, Headers, Params and Body are resolved into a copy at
// execution time.
package cases
