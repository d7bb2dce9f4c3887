package filter

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecorateRequest(t *testing.T) {
	d := NewDecorator("tagged")
	header := http.Header{}

	assert.NoError(t, d.DecorateRequest(header))
	assert.Equal(t, RequestAnnotationValue, header.Get(AnnotationHeader))

	// Idempotent: decorating twice leaves a single value.
	assert.NoError(t, d.DecorateRequest(header))
	assert.Equal(t, []string{RequestAnnotationValue}, header.Values(AnnotationHeader))
}

func TestDecorateResponse(t *testing.T) {
	d := NewDecorator("tagged")
	header := http.Header{}

	assert.NoError(t, d.DecorateResponse(header))
	assert.Equal(t, "tagged", header.Get(AnnotationHeader))
}

func TestDecorateFailsClosedOnInvalidTag(t *testing.T) {
	d := NewDecorator("bad\nvalue")
	header := http.Header{}

	assert.Error(t, d.DecorateResponse(header))
	assert.Empty(t, header.Values(AnnotationHeader))
}
