// Package output renders run results.
//
// Supported reporters:
//   - console: colored terminal output, streamed per case
//   - json: machine-readable run report
//   - junit: JUnit XML grouped by module, for CI
//   - tap: Test Anything Protocol
//   - allure: an allure-results directory, cleared of the previous run's files
//   - html: a self-contained report.html with batches, assertions and extracted variables
//   - xlsx: an Excel workbook with one row per case
//
// File based reporters write into Options.Dir. Use Lock to keep two runs
// from writing the same directory at once.
package output
