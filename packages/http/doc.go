// Package http provides the HTTP transport used to send test case requests.
//
// It wraps the standard library's http package with additional features:
//   - Base URL resolution for relative case paths
//   - Configurable timeouts and redirect handling
//   - Retries on transport errors with a fixed delay
//   - Client-side rate limiting
//   - OAuth2 bearer tokens
//   - JSON or form encoding of structured request bodies
package http
