// Package assertions evaluates response assertions for hitchain test cases.
//
// Rules are compiled once when a suite is loaded. Supported rule types:
//   - status_code: expected status, or a list of accepted statuses
//   - json_path: value at a JSON path compared with an operator
//   - text_contains: raw body contains a substring
//   - header: header value compared with an operator
//   - response_time: response duration in milliseconds under a limit
//   - json_schema: body (or a sub-path) validates against an inline schema
//   - contains_json: body contains the given object as a partial match
//
// Comparisons accept the operators ==, !=, >, >=, <, <=, contains,
// not_contains, starts_with, ends_with, matches, exists, not_exists, in,
// length and type. The default operator is ==.
package assertions
