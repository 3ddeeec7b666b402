package rfc9111

import (
	"net/http"
	"strings"
)

// §  5.6.1.  Lists (#rule ABNF Extension)
// §
// §     A recipient MUST accept lists that satisfy the following syntax:
// §
// §       #element => [ element ] *( OWS "," OWS [ element ] )
// §
// §     Empty elements do not contribute to the count of elements present.
//
// (This section is from the HTTP specification (RFC9110).)
func GetListHeader(header http.Header, field string) []string {
	list := make([]string, 0)
	for _, hdr := range header.Values(field) {
		for _, item := range strings.Split(hdr, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}

// §     If (after any normalization that might take place) a header field is
// §     absent from a request, it can only match another request if it is
// §     also absent there.
func FieldAbsent(header http.Header, field string) bool {
	return len(header.Values(field)) == 0
}

// §     *  combining multiple header field lines with the same field name
// §        (see Section 5.2 of [HTTP])
func combinedFieldValue(header http.Header, field string) string {
	values := make([]string, 0)
	for _, v := range header.Values(field) {
		values = append(values, strings.TrimSpace(v))
	}
	return strings.Join(values, ", ")
}
