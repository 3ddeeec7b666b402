package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
)

var delim = []byte("\r\n\r\n----\r\n\r\n")

// ResponseToBytes returns the HTTP/1.1 representation of the request that
// resulted in the response, followed by the response itself.
// The response body is read fully and set back, so the response stays usable.
func ResponseToBytes(res *http.Response) ([]byte, error) {
	if res.Request == nil {
		return nil, fmt.Errorf("response has no request")
	}
	buf := &bytes.Buffer{}
	req := res.Request.Clone(res.Request.Context())
	req.Body = nil
	req.ContentLength = 0
	if err := req.Write(buf); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	buf.Write(delim)

	bts, err := responseToBytes(res)
	if err != nil {
		return nil, err
	}
	buf.Write(bts)
	return buf.Bytes(), nil
}

// BytesToResponse converts bytes written by ResponseToBytes back into a response.
// The returned response has its Request set to the stored request.
func BytesToResponse(b []byte) (*http.Response, error) {
	bParts := bytes.SplitN(b, delim, 2)
	if len(bParts) != 2 {
		return nil, fmt.Errorf("malformed stored response")
	}
	reqBytes := bParts[0]
	resBytes := bParts[1]
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(reqBytes)))
	if err != nil {
		return nil, fmt.Errorf("read stored request: %w", err)
	}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(resBytes)), req)
	if err != nil {
		return nil, fmt.Errorf("read stored response: %w", err)
	}
	return res, nil
}

// responseToBytes converts a response to a byte slice.
// It returns the HTTP/1.1 representation of the response
func responseToBytes(res *http.Response) ([]byte, error) {
	var body []byte
	if res.Body != nil {
		var err error
		body, err = io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
	// set response body back
	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))

	// write a copy, so the content length framing does not leak to the caller
	out := *res
	out.ProtoMajor, out.ProtoMinor = 1, 1
	out.TransferEncoding = nil
	out.Close = false
	out.Body = io.NopCloser(bytes.NewReader(body))
	buf := &bytes.Buffer{}
	if err := out.Write(buf); err != nil {
		return nil, fmt.Errorf("write response: %w", err)
	}
	return buf.Bytes(), nil
}
