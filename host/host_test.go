package host

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func textResponse(r *http.Request, body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func network(body string) roundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		return textResponse(r, body), nil
	}
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestInstallWaitsForWork(t *testing.T) {
	h := New(network("network"), nil)
	var done atomic.Bool
	h.OnInstall(func(e *InstallEvent) {
		e.WaitUntil(func(ctx context.Context) error {
			time.Sleep(50 * time.Millisecond)
			done.Store(true)
			return nil
		})
	})

	require.NoError(t, h.Install(context.Background()))
	assert.True(t, done.Load(), "install returned before its work finished")
	assert.Equal(t, StateInstalled, h.State())
}

func TestFailedInstallIsRedundant(t *testing.T) {
	h := New(network("network"), nil)
	failure := errors.New("seed failed")
	h.OnInstall(func(e *InstallEvent) {
		e.WaitUntil(func(ctx context.Context) error { return failure })
	})
	var fetched atomic.Bool
	h.OnFetch(func(e *FetchEvent) {
		fetched.Store(true)
		e.RespondWith(network("unit").RoundTrip)
	})

	err := h.Install(context.Background())
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, StateRedundant, h.State())

	req, _ := http.NewRequest("GET", "http://localhost/", nil)
	res, err := h.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "network", readBody(t, res))
	assert.False(t, fetched.Load(), "fetch dispatched to a unit that is not installed")
}

func TestFailedReinstallKeepsInstalledUnit(t *testing.T) {
	h := New(network("network"), nil)
	fail := false
	h.OnInstall(func(e *InstallEvent) {
		e.WaitUntil(func(ctx context.Context) error {
			if fail {
				return errors.New("update failed")
			}
			return nil
		})
	})
	require.NoError(t, h.Install(context.Background()))
	fail = true
	assert.Error(t, h.Install(context.Background()))
	assert.Equal(t, StateInstalled, h.State())
}

func TestReinstallKeepsServingFetches(t *testing.T) {
	h := New(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("offline")
	}), nil)
	var reinstalling atomic.Bool
	started := make(chan struct{})
	release := make(chan struct{})
	h.OnInstall(func(e *InstallEvent) {
		if !reinstalling.Load() {
			return
		}
		e.WaitUntil(func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	})
	h.OnFetch(func(e *FetchEvent) {
		e.RespondWith(network("unit").RoundTrip)
	})
	require.NoError(t, h.Install(context.Background()))

	reinstalling.Store(true)
	done := make(chan error, 1)
	go func() { done <- h.Install(context.Background()) }()
	<-started
	assert.Equal(t, StateInstalling, h.State())

	req, _ := http.NewRequest("GET", "http://localhost/", nil)
	res, err := h.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "unit", readBody(t, res))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateInstalled, h.State())
}

func TestInstallCancelsSiblingWork(t *testing.T) {
	h := New(network("network"), nil)
	h.OnInstall(func(e *InstallEvent) {
		e.WaitUntil(func(ctx context.Context) error { return errors.New("fail fast") })
		e.WaitUntil(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return errors.New("context was not cancelled")
			}
		})
	})
	err := h.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail fast")
}

func TestFirstResponderWins(t *testing.T) {
	h := New(network("network"), nil)
	h.OnInstall(func(e *InstallEvent) {})
	h.OnFetch(func(e *FetchEvent) {
		e.RespondWith(network("first").RoundTrip)
		e.RespondWith(network("ignored").RoundTrip)
	})
	h.OnFetch(func(e *FetchEvent) {
		t.Fatal("second handler should not run after a response")
	})
	require.NoError(t, h.Install(context.Background()))

	req, _ := http.NewRequest("GET", "http://localhost/", nil)
	res, err := h.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "first", readBody(t, res))
}

func TestNoResponderUsesNetwork(t *testing.T) {
	h := New(network("network"), nil)
	h.OnFetch(func(e *FetchEvent) {
		assert.Equal(t, "/page", e.Request.URL.Path)
	})
	require.NoError(t, h.Install(context.Background()))

	req, _ := http.NewRequest("GET", "http://localhost/page", nil)
	res, err := h.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "network", readBody(t, res))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "parsed", StateParsed.String())
	assert.Equal(t, "redundant", StateRedundant.String())
	assert.Equal(t, "State(9)", State(9).String())
}
