package cachekey

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/always-cache/offline-cache/rfc9111"
)

var ErrorMethodNotSupported = fmt.Errorf("Method not supported")

const (
	originSeparator = ":"
	methodSeparator = ":"
	varySeparator   = "\t"
)

type CacheKeyer struct {
	// Unique identifier for the scope.
	// Usually this should be the origin the unit intercepts requests for.
	OriginId string
	// Cache key prefix for this origin
	OriginPrefix string
}

func NewCacheKeyer(originId string) CacheKeyer {
	return CacheKeyer{
		OriginId:     originId,
		OriginPrefix: originId + originSeparator,
	}
}

// Supported reports whether responses to the request can be stored or matched.
// Like the platform cache, only GET requests are.
func Supported(r *http.Request) bool {
	return r.Method == http.MethodGet
}

// GetKeyPrefix returns the cache key for a request without the vary headers (i.e. a key prefix).
// The returned key is suitable for finding all stored response variants for a particular request.
// Fragments never reach the key since they are not part of the request URI.
func (c CacheKeyer) GetKeyPrefix(r *http.Request) string {
	return c.OriginPrefix + r.Method + methodSeparator + r.URL.RequestURI() + varySeparator
}

// AddVaryKeys returns the full cache key (including vary headers) based on a previously generated
// cache key prefix and the request and response involved.
func (c CacheKeyer) AddVaryKeys(prefix string, req *http.Request, res *http.Response) string {
	key := prefix
	for _, name := range rfc9111.VaryFields(res.Header) {
		if !rfc9111.FieldAbsent(req.Header, name) {
			key = key + "\n" + name + ": " + strings.Join(req.Header.Values(name), ", ")
		}
	}
	return key
}

// GetKey returns the full key the response to the request is stored under.
func (c CacheKeyer) GetKey(req *http.Request, res *http.Response) (string, error) {
	if !Supported(req) {
		return "", ErrorMethodNotSupported
	}
	return c.AddVaryKeys(c.GetKeyPrefix(req), req, res), nil
}

// GetRequestFromKey generates a caching-wise equal request than the request that resulted in the
// provided key. This means it takes vary headers into account.
// It returns an error if the request cannot for some reason be deducted.
func (c CacheKeyer) GetRequestFromKey(key string) (*http.Request, error) {
	if !strings.HasPrefix(key, c.OriginPrefix) {
		return nil, fmt.Errorf("Key and origin do not match")
	}
	keyNoOrigin := strings.TrimPrefix(key, c.OriginPrefix)
	keyNoVary, _, found := strings.Cut(keyNoOrigin, varySeparator)
	if !found {
		return nil, fmt.Errorf("Malformed key: %s", key)
	}
	method, uri, found := strings.Cut(keyNoVary, methodSeparator)
	if !found {
		return nil, fmt.Errorf("Malformed key: %s", key)
	}
	if method != http.MethodGet {
		return nil, ErrorMethodNotSupported
	}
	req, err := http.NewRequest(method, uri, nil)
	if err != nil {
		return req, err
	}
	req.Header = c.GetVaryHeaders(key)
	return req, nil
}

// GetVaryHeaders creates a http.Header instance containing all the vary keys included in a key.
func (c CacheKeyer) GetVaryHeaders(key string) http.Header {
	header := make(http.Header)
	lines := strings.Split(key, "\n")
	for i := 1; i < len(lines); i++ {
		entry := strings.SplitN(lines[i], ": ", 2)
		if len(entry) == 2 {
			header.Add(entry[0], entry[1])
		}
	}
	return header
}
