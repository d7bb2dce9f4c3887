package shadow

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rb3ckers/dualwrite/internal/config"
	"github.com/rb3ckers/dualwrite/internal/filter"
	"github.com/rb3ckers/dualwrite/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkSnapshot(t *testing.T, method, rawURL, body string) *filter.Snapshot {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)

	header := http.Header{}
	header.Set(filter.MarkerHeader, filter.MarkerValue)

	return &filter.Snapshot{
		Method: method,
		URL:    u,
		Header: header,
		Body:   []byte(body),
	}
}

func TestDispatcherDeliversSnapshot(t *testing.T) {
	type received struct {
		method string
		body   string
		marker string
	}

	got := make(chan received, 1)

	sink := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		got <- received{
			method: req.Method,
			body:   string(body),
			marker: req.Header.Get(filter.MarkerHeader),
		}
	}))
	defer sink.Close()

	peer, err := upstream.ParsePeer(sink.URL)
	require.NoError(t, err)

	d := NewDispatcher(peer, config.Default())
	d.Start()

	defer d.Stop()

	require.NoError(t, d.Dispatch(mkSnapshot(t, "POST", sink.URL+"/users", `{"name":"Alice"}`)))

	select {
	case rec := <-got:
		assert.Equal(t, "POST", rec.method)
		assert.Equal(t, `{"name":"Alice"}`, rec.body)
		assert.Equal(t, filter.MarkerValue, rec.marker)
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot was never delivered")
	}

	assert.Eventually(t, func() bool {
		return d.Outcomes()["2xx"] == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDispatcherAbsorbsUnreachableShadow(t *testing.T) {
	peer, err := upstream.ParsePeer("http://localhost:1")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.ShadowTimeoutSeconds = 1

	d := NewDispatcher(peer, cfg)
	d.Start()

	defer d.Stop()

	require.NoError(t, d.Dispatch(mkSnapshot(t, "GET", "http://localhost:1/users", "")))

	assert.Eventually(t, func() bool {
		return d.Outcomes()["error"] == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDispatcherDropsNewestWhenQueueFull(t *testing.T) {
	peer, err := upstream.ParsePeer("http://localhost:1")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.MaxQueuedShadows = 1

	// Workers are never started, so the first snapshot stays queued.
	d := NewDispatcher(peer, cfg)

	require.NoError(t, d.Dispatch(mkSnapshot(t, "GET", "http://localhost:1/a", "")))
	assert.ErrorIs(t, d.Dispatch(mkSnapshot(t, "GET", "http://localhost:1/b", "")), ErrQueueFull)

	assert.Equal(t, 1, d.QueueDepth())
	assert.Equal(t, uint64(1), d.Outcomes()["dropped"])
}

func TestDispatcherNonSuccessStatusIsInformational(t *testing.T) {
	sink := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(http.StatusInternalServerError)
	}))
	defer sink.Close()

	peer, err := upstream.ParsePeer(sink.URL)
	require.NoError(t, err)

	d := NewDispatcher(peer, config.Default())
	d.Start()

	defer d.Stop()

	require.NoError(t, d.Dispatch(mkSnapshot(t, "GET", sink.URL+"/users", "")))

	assert.Eventually(t, func() bool {
		return d.Outcomes()["5xx"] == 1
	}, 5*time.Second, 10*time.Millisecond)

	// A non-2xx response is not a delivery failure.
	assert.Zero(t, d.Outcomes()["error"])
	assert.Equal(t, "closed", d.BreakerState())
}
