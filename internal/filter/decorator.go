package filter

import (
	"net/http"
)

// AnnotationHeader is stamped on both the request forwarded to the primary
// upstream and the response returned to the client. Pure diagnostics, no
// control-flow effect on either side.
const (
	AnnotationHeader       = "user-content"
	RequestAnnotationValue = "dual-write"
)

// Decorator stamps the diagnostic annotations. Both operations are
// idempotent and fail closed: an invalid configured value means the
// annotation is skipped, never that the exchange is aborted.
type Decorator struct {
	responseTag string
}

func NewDecorator(responseTag string) *Decorator {
	return &Decorator{responseTag: responseTag}
}

func (d *Decorator) DecorateRequest(header http.Header) error {
	return setHeader(header, AnnotationHeader, RequestAnnotationValue)
}

func (d *Decorator) DecorateResponse(header http.Header) error {
	return setHeader(header, AnnotationHeader, d.responseTag)
}
