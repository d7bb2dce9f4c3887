package filter

import (
	"bytes"
	"io"
	"net/http"
	"net/url"

	"github.com/rb3ckers/dualwrite/internal/upstream"
	"github.com/rs/zerolog/log"
)

// Snapshot is an immutable, fully buffered copy of a request, aimed at the
// shadow peer. It owns its header map and body bytes, so the dispatcher can
// use it long after the original request has been served and recycled.
type Snapshot struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// CaptureSnapshot buffers the inbound body, restores req.Body so the primary
// forward reads the exact same bytes, and clones method, headers and target
// into a Snapshot addressed at the shadow peer. The marker header set by the
// guard is part of the clone.
//
// A body read failure degrades to an empty body: the shadow copy is still
// sent, just without a payload, and the primary path is unaffected.
func CaptureSnapshot(req *http.Request, shadow upstream.Peer) *Snapshot {
	body := BufferBody(req)

	target := shadow.BaseURL()
	target.Path = req.URL.Path
	target.RawPath = req.URL.RawPath
	target.RawQuery = req.URL.RawQuery

	return &Snapshot{
		Method: req.Method,
		URL:    target,
		Header: req.Header.Clone(),
		Body:   body,
	}
}

// BufferBody drains the request body and restores it with a replayable
// buffer, so both the snapshot and the primary upstream can consume it.
func BufferBody(req *http.Request) []byte {
	if req.Body == nil {
		return nil
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		log.Error().Err(err).Msg("Error buffering request body, shadow copy will have no body")

		body = nil
	}

	req.Body = io.NopCloser(bytes.NewBuffer(body))

	return body
}
