// Package builtin provides the functions that can be called from request data.
//
// Available functions:
//   - uuid(): Random UUID v4
//   - now(): Current UTC time in RFC 3339
//   - timestamp(), timestampMs(): Current Unix time in seconds or milliseconds
//   - date(layout): Current UTC date, default layout 2006-01-02
//   - random(min, max): Random integer in range
//   - randomString(length), randomEmail(): Random test data
//   - base64(value), sha256(value), urlEncode(value): Encoders
//
// Functions are invoked with the ${functionName(args)} syntax.
package builtin
