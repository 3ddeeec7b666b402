// Package rfc9111 implements the parts of HTTP Caching (RFC 9111) that a
// response store needs for matching: list header parsing and Vary.
//
// Sections are quoted with a leading § next to the code implementing them.
package rfc9111
