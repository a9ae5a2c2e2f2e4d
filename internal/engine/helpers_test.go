package engine

import (
	"bytes"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBearerToken = "Bearer " + "foo"

// newTestServer builds an in-memory Server with the development auth
// bypass enabled and wires it to an httptest.Server, returning both so
// tests can either call engine methods directly or drive them over HTTP.
func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(NewConfig(WithDataPath(":memory:"), WithDevBypass(true)))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func withContentType(ct string) requestOption {
	return withHeader("Content-Type", ct)
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, body []byte, opts ...requestOption) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", testBearerToken)
	for _, opt := range opts {
		opt(req)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeS3Error(t *testing.T, resp *http.Response) xmlError {
	t.Helper()
	defer resp.Body.Close()
	var e xmlError
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(&e))
	return e
}

func requireXML(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, xml.NewDecoder(resp.Body).Decode(v))
}

// escapePathSegment percent-encodes s for use as one '/'-delimited path
// segment of a request URL, letting the server's single percent-decode
// (performed by net/http when it parses the request line) recover s
// byte-for-byte as the key.
func escapePathSegment(s string) string {
	return url.PathEscape(s)
}

// escapeQueryValue percent-encodes s for use as a query string value.
func escapeQueryValue(s string) string {
	return url.QueryEscape(s)
}
