// Package host runs an interception unit the way a browser runs a service
// worker: handlers are registered for named lifecycle events, the install
// event is held open until its work completes, and fetch events only reach
// the unit after it installed successfully.
package host

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type State int

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateRedundant:
		return "redundant"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Event string

const (
	EventInstall Event = "install"
	EventFetch   Event = "fetch"
)

type Host struct {
	network http.RoundTripper
	log     zerolog.Logger

	installMutex sync.Mutex
	mutex        sync.RWMutex
	state        State
	active       bool
	onInstall    []func(*InstallEvent)
	onFetch      []func(*FetchEvent)
}

// New creates a host that sends requests to network when the unit does not
// respond to them. The global zerolog logger is used if logger is nil.
func New(network http.RoundTripper, logger *zerolog.Logger) *Host {
	if network == nil {
		network = http.DefaultTransport
	}
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Host{
		network: network,
		log:     l.With().Str("component", "host").Logger(),
	}
}

// OnInstall registers a handler for the install event.
func (h *Host) OnInstall(handler func(*InstallEvent)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onInstall = append(h.onInstall, handler)
}

// OnFetch registers a handler for the fetch event.
func (h *Host) OnFetch(handler func(*FetchEvent)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onFetch = append(h.onFetch, handler)
}

func (h *Host) State() State {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.state
}

func (h *Host) setState(s State) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.state = s
	if s == StateInstalled {
		h.active = true
	}
}

// Active reports whether fetch events reach the unit. It stays true while
// an installed unit is re-installed.
func (h *Host) Active() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.active
}

// Install dispatches the install event and waits for all the work the
// handlers handed to WaitUntil. Calling it again re-runs installation, which
// is how an update or a retry after failure happens.
// A previously installed unit keeps handling fetches while the re-install
// runs, and stays in place if it fails.
func (h *Host) Install(ctx context.Context) error {
	h.installMutex.Lock()
	defer h.installMutex.Unlock()

	previous := h.State()
	h.setState(StateInstalling)
	h.log.Debug().Str("event", string(EventInstall)).Str("previous", previous.String()).Msg("Dispatching event")

	h.mutex.RLock()
	handlers := append([]func(*InstallEvent){}, h.onInstall...)
	h.mutex.RUnlock()

	event := newInstallEvent(ctx)
	for _, handler := range handlers {
		handler(event)
	}
	if err := event.wait(); err != nil {
		if previous == StateInstalled {
			h.setState(StateInstalled)
		} else {
			h.setState(StateRedundant)
		}
		h.log.Error().Err(err).Msg("Install failed")
		return fmt.Errorf("install: %w", err)
	}
	h.setState(StateInstalled)
	h.log.Info().Msg("Installed")
	return nil
}

// RoundTrip implements http.RoundTripper.
// Requests go to the first fetch handler that responds, or to the network
// if none do or the unit never installed.
func (h *Host) RoundTrip(req *http.Request) (*http.Response, error) {
	if !h.Active() {
		h.log.Trace().Str("url", req.URL.String()).Msg("Not installed, using network")
		return h.network.RoundTrip(req)
	}

	h.mutex.RLock()
	handlers := h.onFetch
	h.mutex.RUnlock()

	h.log.Trace().Str("event", string(EventFetch)).Str("url", req.URL.String()).Msg("Dispatching event")
	event := &FetchEvent{Request: req}
	for _, handler := range handlers {
		handler(event)
		if event.responded() {
			return event.responder(req)
		}
	}
	return h.network.RoundTrip(req)
}
