package proxy

import (
	"net/http"
	"net/http/httputil"

	"github.com/rb3ckers/dualwrite/internal/filter"
	"github.com/rs/zerolog/log"
)

// ReverseProxyHandler serves every inbound request: it selects the primary
// peer, runs the pre-upstream filter hook (annotation, idempotency guard,
// shadow snapshot), forwards to the primary, and runs the post-upstream hook
// on the response. Only peer selection may fail the request; everything the
// shadow path does is absorbed inside the filter.
func ReverseProxyHandler(f filter.ProxyFilter) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		peer, err := f.SelectPeer(req)
		if err != nil {
			log.Error().Err(err).Str("uri", req.URL.RequestURI()).Msg("Cannot select primary upstream")
			http.Error(res, "no primary upstream configured", http.StatusBadGateway)

			return
		}

		// The filter snapshots the request before the URL is rewritten, so
		// the shadow copy carries the original path and query.
		if err := f.FilterUpstreamRequest(req); err != nil {
			log.Warn().Err(err).Msg("Upstream request filter failed")
		}

		target := peer.BaseURL()

		// Update the headers to allow for SSL redirection
		req.URL.Host = target.Host
		req.URL.Scheme = target.Scheme
		req.Host = target.Host

		proxyTo := httputil.NewSingleHostReverseProxy(target)
		proxyTo.ModifyResponse = f.FilterUpstreamResponse

		proxyTo.ServeHTTP(res, req)
	}
}
