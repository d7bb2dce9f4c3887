package filter

import (
	"fmt"
	"net/http"

	"golang.org/x/net/http/httpguts"
)

// MarkerHeader flags a request whose shadow copy has already been dispatched.
// It travels with the request itself, so a retried or re-proxied request is
// recognized on any hop without shared state.
const (
	MarkerHeader = "x-dual-write-executed"
	MarkerValue  = "true"
)

// Guard implements the at-most-once check: the first evaluation of a request
// sets the marker and reports that a shadow dispatch is due, every later
// evaluation sees the marker and reports false.
type Guard struct {
	name  string
	value string
}

func NewGuard() *Guard {
	return &Guard{name: MarkerHeader, value: MarkerValue}
}

// Evaluate checks and sets the marker on the given header set. The returned
// error only ever reports an invalid marker name/value; callers skip
// replication on error and continue the primary path.
func (g *Guard) Evaluate(header http.Header) (dispatch bool, err error) {
	if header.Get(g.name) != "" {
		return false, nil
	}

	if err := setHeader(header, g.name, g.value); err != nil {
		return false, err
	}

	return true, nil
}

// setHeader validates name and value before mutating the header set, so a
// misconfigured header degrades to a skipped annotation instead of a request
// the upstream rejects.
func setHeader(header http.Header, name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return fmt.Errorf("invalid header name %q", name)
	}

	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("invalid value for header %q", name)
	}

	header.Set(name, value)

	return nil
}
