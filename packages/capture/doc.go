// Package capture extracts values from HTTP responses so later test cases
// can reference them as ${name} placeholders.
//
// Extraction sources:
//   - JSON body paths ($.data.id, data.items[0].name)
//   - Response headers (header:Location)
//   - Status code (status)
//   - Response duration in milliseconds (duration)
package capture
