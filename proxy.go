package offlinecache

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type ProxyConfig struct {
	// URL of the origin server.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname to use for HTTP requests.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Transport requests are sent through, usually the unit's host.
	Transport http.RoundTripper
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

// NetworkTransport returns the transport for reaching the origin.
// If originHost is set, it is used for TLS negotiation.
func NetworkTransport(originHost string) http.RoundTripper {
	if originHost == "" {
		return http.DefaultTransport
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		ServerName: originHost,
	}
	return transport
}

// NewProxy returns a reverse proxy in front of the origin, so that browsers
// pointed at it have their requests intercepted by the transport.
// Requests that fail without any response, stored or live, get a 502.
func NewProxy(config ProxyConfig) http.Handler {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	host := config.OriginURL.Host
	hostHeader := host
	if config.OriginHost != "" {
		hostHeader = config.OriginHost
	}
	reverseproxy := &httputil.ReverseProxy{
		Director:     createDirector(config.OriginURL.Scheme, host, hostHeader),
		Transport:    config.Transport,
		ErrorHandler: proxyError,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.AccessHandler(logRequest))
	r.Use(middleware.Recoverer)
	r.Handle("/*", reverseproxy)
	return r
}

func createDirector(scheme, host, hostHeader string) func(req *http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = scheme
		req.URL.Host = host
		if hostHeader != "" {
			req.Host = hostHeader
		}
	}
}

func proxyError(w http.ResponseWriter, r *http.Request, err error) {
	event := hlog.FromRequest(r).Debug()
	if !errors.Is(err, ErrNoMatch) {
		event = hlog.FromRequest(r).Error()
	}
	event.Err(err).Str("url", r.URL.String()).Msg("Request failed")
	w.WriteHeader(http.StatusBadGateway)
}

func logRequest(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("requestId", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", r.RemoteAddr).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Sending response to client")
}
