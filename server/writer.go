package server

import (
	"bytes"
	"net/http"
)

// responseBuffer holds a handler's output until it has been signed. Headers
// go straight to the underlying writer's map.
type responseBuffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

// newResponseBuffer buffers output for w, sharing its header map.
func newResponseBuffer(w http.ResponseWriter) *responseBuffer {
	return &responseBuffer{header: w.Header()}
}

// Header returns the underlying writer's header map.
func (b *responseBuffer) Header() http.Header {
	return b.header
}

// WriteHeader records the first status code written.
func (b *responseBuffer) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

// Write appends p to the buffered body, implying a 200 status.
func (b *responseBuffer) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}

	return b.body.Write(p)
}

// statusCode returns the recorded status, defaulting to 200.
func (b *responseBuffer) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}

	return b.status
}
