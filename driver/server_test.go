package driver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// httpPackServer serves a fixed pack body for every request, letting tests
// exercise the Loader's network path without a real origin.
type httpPackServer struct {
	ts *httptest.Server
}

func newHTTPPackServer(t *testing.T, body []byte) *httpPackServer {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	return &httpPackServer{ts: ts}
}

func (s *httpPackServer) URL() string { return s.ts.URL }
func (s *httpPackServer) Close()      { s.ts.Close() }
