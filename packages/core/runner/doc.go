// Package runner executes a suite of test cases in dependency order.
//
// It provides functionality for:
//   - Validating the case graph and planning batches before anything runs
//   - Running each batch on a bounded worker pool with a join barrier
//   - Executing every case at most once, whether it is reached from its own
//     batch or while resolving another case's dependency
//   - Failing dependents of a failed case without sending their requests
//   - Passing extracted values between cases through a run-scoped store
//   - Fail-fast and cancellation between batches
//
// Transport, extraction, assertion evaluation and reporting are injected
// through the Transport, Extractor, Evaluator and Sink interfaces.
package runner
