package filter

import (
	"net/http"

	"github.com/rb3ckers/dualwrite/internal/upstream"
	"github.com/rs/zerolog/log"
)

// ProxyFilter is the contract between the host proxy engine and this filter.
// The engine calls SelectPeer to pick the primary upstream, then
// FilterUpstreamRequest just before forwarding, then FilterUpstreamResponse
// once the upstream has answered.
type ProxyFilter interface {
	SelectPeer(req *http.Request) (upstream.Peer, error)
	FilterUpstreamRequest(req *http.Request) error
	FilterUpstreamResponse(res *http.Response) error
}

// Dispatcher receives ownership of snapshots for delivery to the shadow
// upstream. Dispatch must not block on the delivery itself; an error means
// the snapshot was not accepted (for example a full queue) and is dropped.
type Dispatcher interface {
	Dispatch(snapshot *Snapshot) error
}

// Filter replicates requests to a shadow upstream: every request goes to the
// primary unchanged, and the first time a request passes through (no marker
// header yet) a buffered copy is handed to the dispatcher.
type Filter struct {
	resolver   upstream.Resolver
	guard      *Guard
	decorator  *Decorator
	dispatcher Dispatcher
}

func New(resolver upstream.Resolver, dispatcher Dispatcher, responseTag string) *Filter {
	return &Filter{
		resolver:   resolver,
		guard:      NewGuard(),
		decorator:  NewDecorator(responseTag),
		dispatcher: dispatcher,
	}
}

// SelectPeer returns the primary peer. The only error it can surface is a
// missing primary configuration, which is fatal for this request.
func (f *Filter) SelectPeer(req *http.Request) (upstream.Peer, error) {
	return f.resolver.Primary(req)
}

// FilterUpstreamRequest annotates the outbound request and, at most once per
// logical request, snapshots it and hands the snapshot to the dispatcher.
// Every failure past peer selection is absorbed here: the primary exchange
// must not notice the shadow machinery.
func (f *Filter) FilterUpstreamRequest(req *http.Request) error {
	// The annotation is applied after the snapshot is taken, so the shadow
	// copy carries the headers as the client sent them plus the marker.
	defer func() {
		if err := f.decorator.DecorateRequest(req.Header); err != nil {
			log.Warn().Err(err).Msg("Skipping upstream request annotation")
		}
	}()

	dispatch, err := f.guard.Evaluate(req.Header)
	if err != nil {
		log.Warn().Err(err).Msg("Idempotency marker could not be set, skipping shadow dispatch")
		return nil
	}

	if !dispatch {
		log.Debug().Str("method", req.Method).Str("uri", req.URL.RequestURI()).Msg("Request already shadowed, skipping dispatch")
		return nil
	}

	shadow, ok := f.resolver.Shadow()
	if !ok {
		log.Debug().Msg("No shadow peer configured, skipping dispatch")
		return nil
	}

	snapshot := CaptureSnapshot(req, shadow)

	if err := f.dispatcher.Dispatch(snapshot); err != nil {
		log.Warn().Err(err).Str("uri", snapshot.URL.String()).Msg("Shadow dispatch not accepted")
	}

	return nil
}

// FilterUpstreamResponse stamps the diagnostic header on the response headed
// back to the client.
func (f *Filter) FilterUpstreamResponse(res *http.Response) error {
	if err := f.decorator.DecorateResponse(res.Header); err != nil {
		log.Warn().Err(err).Msg("Skipping response annotation")
	}

	return nil
}
