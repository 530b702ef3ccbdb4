// Package loader reads test cases from suite files.
//
// Supported formats:
//   - YAML or JSON suites (.yaml, .yml, .json) with a test_cases list
//   - Excel workbooks (.xlsx) with one case per row
//
// Both formats share the column names test_case_id, name, module, tags,
// priority, method, path, headers, params, body, extract_vars, extract_ttl,
// asserts, pre_condition_tc and is_run. In a workbook the structured columns
// hold JSON text.
//
// Assertion rules are compiled while loading, so an invalid rule is reported
// with its file and case id before anything runs.
package loader
