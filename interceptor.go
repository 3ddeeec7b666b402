package offlinecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	cachekey "github.com/always-cache/offline-cache/pkg/cache-key"
	serializer "github.com/always-cache/offline-cache/pkg/response-serializer"
	"github.com/always-cache/offline-cache/rfc9111"
)

// Fetch serves an intercepted request network-first.
// Any response the network produces is returned as is, error statuses included.
// Only when no response arrives at all is the store consulted; a stored
// response for the request is returned in that case, otherwise the request fails.
// Fetch never writes to the store.
//
// Fetch has the signature of http.RoundTripper's RoundTrip.
func (o *OfflineCache) Fetch(req *http.Request) (*http.Response, error) {
	res, err := o.networkAttempt(req)
	if err == nil {
		return res, nil
	}
	// abandoned by the requester, nobody is waiting for a fallback
	if req.Context().Err() != nil {
		return nil, err
	}
	o.log.Debug().
		Err(err).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Network failed, looking up stored response")

	stored := o.match(req)
	if stored == nil {
		o.log.Debug().Str("url", req.URL.String()).Msg("No stored response")
		return nil, fmt.Errorf("%w: %w", ErrNoMatch, err)
	}
	o.log.Debug().Str("url", req.URL.String()).Int("status", stored.StatusCode).Msg("Serving stored response")
	stored.Request = req
	return stored, nil
}

// RoundTrip implements http.RoundTripper, so the unit can be used
// directly as an http.Client transport.
func (o *OfflineCache) RoundTrip(req *http.Request) (*http.Response, error) {
	return o.Fetch(req)
}

func (o *OfflineCache) networkAttempt(req *http.Request) (*http.Response, error) {
	if o.networkTimeout <= 0 {
		return o.transport.RoundTrip(req)
	}
	// the timeout only covers waiting for the response, not reading its body
	ctx, cancel := context.WithCancel(req.Context())
	timer := time.AfterFunc(o.networkTimeout, cancel)
	res, err := o.transport.RoundTrip(req.WithContext(ctx))
	if !timer.Stop() {
		if err == nil {
			res.Body.Close()
		}
		cancel()
		return nil, fmt.Errorf("%w after %s", ErrNetworkTimeout, o.networkTimeout)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	res.Body = &cancelOnClose{ReadCloser: res.Body, cancel: cancel}
	return res, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// match returns a fresh copy of the stored response for the request, or nil.
// Requests for other origins never match.
// Lookup errors are logged and count as a miss.
func (o *OfflineCache) match(req *http.Request) *http.Response {
	if !cachekey.Supported(req) {
		return nil
	}
	if !o.inScope(req) {
		o.log.Trace().Str("url", req.URL.String()).Msg("Request outside origin, not looking up")
		return nil
	}
	store, err := o.openedStore()
	if err != nil {
		o.log.Error().Err(err).Msg("Could not open store")
		return nil
	}
	if store == nil {
		return nil
	}
	prefix := o.keyer.GetKeyPrefix(req)
	o.log.Trace().Str("key", prefix).Msg("Getting stored entries")
	entries, err := store.All(prefix)
	if err != nil {
		o.log.Error().Err(err).Msg("Could not retrieve from store")
		return nil
	}
	o.log.Trace().Str("key", prefix).Msgf("Found %v stored entries", len(entries))
	for _, ce := range entries {
		original, err := o.keyer.GetRequestFromKey(ce.Key)
		if err != nil {
			o.log.Error().Err(err).Str("key", ce.Key).Msg("Could not get request from key")
			continue
		}
		res, err := serializer.BytesToResponse(ce.Bytes)
		if err != nil {
			o.log.Error().Err(err).Str("key", ce.Key).Msg("Could not create response")
			continue
		}
		if rfc9111.HeaderFieldsMatch(req, original, res) {
			return res
		}
		res.Body.Close()
	}
	return nil
}
