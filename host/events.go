package host

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// InstallEvent is dispatched once per activation attempt.
// The host does not consider the install finished until all work handed
// to WaitUntil has returned.
type InstallEvent struct {
	ctx   context.Context
	group *errgroup.Group
}

func newInstallEvent(ctx context.Context) *InstallEvent {
	group, groupCtx := errgroup.WithContext(ctx)
	return &InstallEvent{ctx: groupCtx, group: group}
}

// Context is cancelled as soon as any work handed to WaitUntil fails.
func (e *InstallEvent) Context() context.Context {
	return e.ctx
}

// WaitUntil extends the lifetime of the event until work returns.
// If work returns an error, the install fails.
func (e *InstallEvent) WaitUntil(work func(ctx context.Context) error) {
	e.group.Go(func() error {
		return work(e.ctx)
	})
}

func (e *InstallEvent) wait() error {
	return e.group.Wait()
}

// Responder produces the response for an intercepted request.
type Responder func(req *http.Request) (*http.Response, error)

// FetchEvent is dispatched for every request under the unit's scope.
type FetchEvent struct {
	Request   *http.Request
	responder Responder
}

// RespondWith replaces the default network behavior for the request.
// Only the first responder is used; later calls are ignored.
func (e *FetchEvent) RespondWith(responder Responder) {
	if e.responder == nil {
		e.responder = responder
	}
}

func (e *FetchEvent) responded() bool {
	return e.responder != nil
}
