package rfc9111

import (
	"net/http"
	"testing"
)

func TestVaryAcceptEncoding(t *testing.T) {
	original := &http.Request{Header: http.Header{"Accept-Encoding": {"gzip"}}}
	res := &http.Response{
		Header: http.Header{
			"Vary": {"Accept-Encoding"},
		},
	}
	if !HeaderFieldsMatch(&http.Request{Header: http.Header{"Accept-Encoding": {"gzip"}}}, original, res) {
		t.Fatal("Requests with equal accept encoding should match")
	}
	if HeaderFieldsMatch(&http.Request{Header: http.Header{"Accept-Encoding": {"br"}}}, original, res) {
		t.Fatal("Requests with different accept encoding should not match")
	}
	if HeaderFieldsMatch(&http.Request{Header: http.Header{}}, original, res) {
		t.Fatal("Absent field should only match absent field")
	}
}

func TestVaryCombinesFieldLines(t *testing.T) {
	original := &http.Request{Header: http.Header{"Accept-Language": {"en, fi"}}}
	presented := &http.Request{Header: http.Header{"Accept-Language": {"en", " fi"}}}
	res := &http.Response{Header: http.Header{"Vary": {"accept-language"}}}
	if !HeaderFieldsMatch(presented, original, res) {
		t.Fatal("Field lines should be combined before comparing")
	}
}

func TestVaryWildcardNeverMatches(t *testing.T) {
	req := &http.Request{Header: http.Header{}}
	res := &http.Response{Header: http.Header{"Vary": {"Accept, *"}}}
	if HeaderFieldsMatch(req, req, res) {
		t.Fatal("Vary * must not match")
	}
	if fields := VaryFields(res.Header); len(fields) != 1 || fields[0] != "accept" {
		t.Fatalf("Vary fields are %v", fields)
	}
}

func TestNoVaryMatches(t *testing.T) {
	req := &http.Request{Header: http.Header{"Accept": {"text/html"}}}
	if !HeaderFieldsMatch(req, &http.Request{Header: http.Header{}}, &http.Response{Header: http.Header{}}) {
		t.Fatal("Response without Vary should match any request")
	}
}

func TestGetListHeaderSkipsEmpty(t *testing.T) {
	header := http.Header{"Vary": {"Accept, ,Accept-Language", "Origin"}}
	list := GetListHeader(header, "Vary")
	if len(list) != 3 || list[0] != "Accept" || list[1] != "Accept-Language" || list[2] != "Origin" {
		t.Fatalf("List is %v", list)
	}
}
