package client

import (
	"encoding/json"
	"net/http"
)

// Response is the outcome of an Endpoint call. A response with any status
// other than 200 carries no result: OK reports false and Decode returns
// ErrNoResult.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the call produced a result.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == http.StatusOK
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if !r.OK() {
		return ErrNoResult
	}

	return json.Unmarshal(r.Body, v)
}

// Map decodes the JSON body into a generic object.
func (r *Response) Map() (map[string]any, error) {
	var out map[string]any
	if err := r.Decode(&out); err != nil {
		return nil, err
	}

	return out, nil
}
