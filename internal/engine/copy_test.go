package engine

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyObjectNonDestructive(t *testing.T) {
	_, ts := newTestServer(t)

	doRequest(t, ts, http.MethodPut, "/b/src.txt", []byte("hello")).Body.Close()

	resp := doRequest(t, ts, http.MethodPut, "/b/dst.txt", nil, withHeader("x-amz-copy-source", "/b/src.txt"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result copyObjectResult
	requireXML(t, resp, &result)
	require.NotEmpty(t, result.ETag)

	srcResp := doRequest(t, ts, http.MethodGet, "/b/src.txt", nil)
	srcBody, _ := io.ReadAll(srcResp.Body)
	srcResp.Body.Close()

	dstResp := doRequest(t, ts, http.MethodGet, "/b/dst.txt", nil)
	dstBody, _ := io.ReadAll(dstResp.Body)
	dstResp.Body.Close()

	require.Equal(t, srcBody, dstBody)
	require.Equal(t, "hello", string(srcBody))
}

func TestCopyObjectMissingSource(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPut, "/b/dst.txt", nil, withHeader("x-amz-copy-source", "/b/does-not-exist.txt"))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	e := decodeS3Error(t, resp)
	require.Equal(t, "NoSuchKey", e.Code)
}

func TestCopyObjectCrossBucketRejected(t *testing.T) {
	_, ts := newTestServer(t)

	doRequest(t, ts, http.MethodPut, "/b1/src.txt", []byte("hello")).Body.Close()

	resp := doRequest(t, ts, http.MethodPut, "/b2/dst.txt", nil, withHeader("x-amz-copy-source", "/b1/src.txt"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeS3Error(t, resp)
	require.Equal(t, "InvalidArgument", e.Code)
}
