package filter

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rb3ckers/dualwrite/internal/config"
	"github.com/rb3ckers/dualwrite/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	snapshots []*Snapshot
	err       error
}

func (d *recordingDispatcher) Dispatch(snapshot *Snapshot) error {
	if d.err != nil {
		return d.err
	}

	d.snapshots = append(d.snapshots, snapshot)

	return nil
}

func newTestFilter(t *testing.T, primary, shadow string) (*Filter, *recordingDispatcher) {
	t.Helper()

	cfg := config.Default()
	cfg.PrimaryTarget = primary
	cfg.ShadowTarget = shadow

	resolver, err := upstream.NewStaticResolver(cfg)
	require.NoError(t, err)

	dispatcher := &recordingDispatcher{}

	return New(resolver, dispatcher, "tagged"), dispatcher
}

func TestFilterDispatchesAtMostOnce(t *testing.T) {
	f, dispatcher := newTestFilter(t, "http://localhost:3000", "http://localhost:3001")

	req := httptest.NewRequest("POST", "http://proxy.local/users", bytes.NewReader([]byte(`{"name":"Alice"}`)))

	require.NoError(t, f.FilterUpstreamRequest(req))
	// Re-entry with the same request object, as happens on a retry or a
	// chained pass through the filter.
	require.NoError(t, f.FilterUpstreamRequest(req))

	require.Len(t, dispatcher.snapshots, 1)

	snap := dispatcher.snapshots[0]
	assert.Equal(t, "POST", snap.Method)
	assert.Equal(t, "http://localhost:3001/users", snap.URL.String())
	assert.Equal(t, `{"name":"Alice"}`, string(snap.Body))
	assert.Equal(t, MarkerValue, snap.Header.Get(MarkerHeader))
	// The upstream-only annotation is not part of the shadow copy.
	assert.Empty(t, snap.Header.Values(AnnotationHeader))
	assert.Equal(t, MarkerValue, req.Header.Get(MarkerHeader))
	assert.Equal(t, RequestAnnotationValue, req.Header.Get(AnnotationHeader))
}

func TestFilterSkipsMarkedRequests(t *testing.T) {
	f, dispatcher := newTestFilter(t, "http://localhost:3000", "http://localhost:3001")

	req := httptest.NewRequest("GET", "http://proxy.local/users", nil)
	req.Header.Set(MarkerHeader, "true")

	require.NoError(t, f.FilterUpstreamRequest(req))
	assert.Empty(t, dispatcher.snapshots)
	// The upstream annotation is applied regardless.
	assert.Equal(t, RequestAnnotationValue, req.Header.Get(AnnotationHeader))
}

func TestFilterWithoutShadowPeer(t *testing.T) {
	f, dispatcher := newTestFilter(t, "http://localhost:3000", "")

	req := httptest.NewRequest("GET", "http://proxy.local/users", nil)

	require.NoError(t, f.FilterUpstreamRequest(req))
	assert.Empty(t, dispatcher.snapshots)
}

func TestFilterAbsorbsDispatcherRejection(t *testing.T) {
	f, dispatcher := newTestFilter(t, "http://localhost:3000", "http://localhost:3001")
	dispatcher.err = errors.New("queue full")

	req := httptest.NewRequest("GET", "http://proxy.local/users", nil)

	assert.NoError(t, f.FilterUpstreamRequest(req))
}

func TestFilterSelectPeer(t *testing.T) {
	f, _ := newTestFilter(t, "http://localhost:3000", "http://localhost:3001")

	peer, err := f.SelectPeer(httptest.NewRequest("GET", "http://proxy.local/", nil))
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", peer.Address())
}

func TestFilterSelectPeerWithoutPrimary(t *testing.T) {
	f, _ := newTestFilter(t, "", "http://localhost:3001")

	_, err := f.SelectPeer(httptest.NewRequest("GET", "http://proxy.local/", nil))
	assert.ErrorIs(t, err, upstream.ErrNoPrimaryPeer)
}

func TestFilterDecoratesResponse(t *testing.T) {
	f, _ := newTestFilter(t, "http://localhost:3000", "http://localhost:3001")

	res := &http.Response{Header: http.Header{}}

	require.NoError(t, f.FilterUpstreamResponse(res))
	assert.Equal(t, "tagged", res.Header.Get(AnnotationHeader))
}
