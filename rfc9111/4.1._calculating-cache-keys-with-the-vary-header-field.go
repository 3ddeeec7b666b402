package rfc9111

import (
	"net/http"
	"strings"
)

// §  4.1.  Calculating Cache Keys with the Vary Header Field
// §
// §     When a cache receives a request that can be satisfied by a stored
// §     response and that stored response contains a Vary header field
// §     (Section 12.5.5 of [HTTP]), the cache MUST NOT use that stored
// §     response without revalidation unless all the presented request header
// §     fields nominated by that Vary field value match those fields in the
// §     original request (i.e., the request that caused the cached response
// §     to be stored).
//
// There is no revalidation here: a stored response either matches or it does not.
func HeaderFieldsMatch(presented, original *http.Request, stored *http.Response) bool {
	if VaryWildcard(stored.Header) {
		return false
	}
	for _, name := range GetListHeader(stored.Header, "Vary") {
		if FieldAbsent(presented.Header, name) != FieldAbsent(original.Header, name) {
			return false
		}
		if combinedFieldValue(presented.Header, name) != combinedFieldValue(original.Header, name) {
			return false
		}
	}
	return true
}

// §     A stored response with a Vary header field value containing a member
// §     "*" always fails to match.
func VaryWildcard(header http.Header) bool {
	for _, name := range GetListHeader(header, "Vary") {
		if name == "*" {
			return true
		}
	}
	return false
}

// VaryFields returns the lowercased request header names nominated by Vary.
func VaryFields(header http.Header) []string {
	fields := make([]string, 0)
	for _, name := range GetListHeader(header, "Vary") {
		if name != "*" {
			fields = append(fields, strings.ToLower(name))
		}
	}
	return fields
}
