// Package testutil provides common testing utilities for the fravik service.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
)

// RoundTripFunc lets a plain function act as an http.RoundTripper.
type RoundTripFunc func(req *http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// HTTPClient builds an *http.Client whose every request is served by fn.
func HTTPClient(fn RoundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

// JSONResponse builds an *http.Response carrying body marshalled as JSON.
func JSONResponse(t *testing.T, status int, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal response body: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}
