package engine

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultipartUploadAssemblesPartsInOrder(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/b/m.txt?uploads", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var initiate initiateMultipartUploadResult
	requireXML(t, resp, &initiate)
	require.NotEmpty(t, initiate.UploadID)

	// Get(k) returns 404 before Complete.
	resp = doRequest(t, ts, http.MethodGet, "/b/m.txt", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	uploadPath := fmt.Sprintf("/b/m.txt?uploadId=%s&partNumber=1", initiate.UploadID)
	resp = doRequest(t, ts, http.MethodPut, uploadPath, []byte("part 1 data"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag1 := resp.Header.Get("ETag")
	resp.Body.Close()
	require.NotEmpty(t, etag1)

	uploadPath = fmt.Sprintf("/b/m.txt?uploadId=%s&partNumber=2", initiate.UploadID)
	resp = doRequest(t, ts, http.MethodPut, uploadPath, []byte("part 2 data"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag2 := resp.Header.Get("ETag")
	resp.Body.Close()
	require.NotEmpty(t, etag2)

	completeBody, err := xml.Marshal(completeMultipartUpload{
		Parts: []struct {
			PartNumber int    `xml:"PartNumber"`
			ETag       string `xml:"ETag"`
		}{
			{PartNumber: 1, ETag: etag1},
			{PartNumber: 2, ETag: etag2},
		},
	})
	require.NoError(t, err)

	completePath := fmt.Sprintf("/b/m.txt?uploadId=%s", initiate.UploadID)
	resp = doRequest(t, ts, http.MethodPost, completePath, completeBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var complete completeMultipartUploadResult
	requireXML(t, resp, &complete)
	require.Contains(t, complete.ETag, "-2")

	resp = doRequest(t, ts, http.MethodGet, "/b/m.txt", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "part 1 datapart 2 data", string(body))
}

func TestCompleteMultipartRequiresAtLeastOnePart(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/b/m.txt?uploads", nil)
	var initiate initiateMultipartUploadResult
	requireXML(t, resp, &initiate)

	completeBody, err := xml.Marshal(completeMultipartUpload{})
	require.NoError(t, err)

	completePath := fmt.Sprintf("/b/m.txt?uploadId=%s", initiate.UploadID)
	resp = doRequest(t, ts, http.MethodPost, completePath, completeBody)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeS3Error(t, resp)
	require.Equal(t, "InvalidPart", e.Code)
}

func TestAbortMultipartCleansUp(t *testing.T) {
	srv, ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/b/m.txt?uploads", nil)
	var initiate initiateMultipartUploadResult
	requireXML(t, resp, &initiate)

	uploadPath := fmt.Sprintf("/b/m.txt?uploadId=%s&partNumber=1", initiate.UploadID)
	doRequest(t, ts, http.MethodPut, uploadPath, []byte("part 1 data")).Body.Close()

	abortPath := fmt.Sprintf("/b/m.txt?uploadId=%s", initiate.UploadID)
	resp = doRequest(t, ts, http.MethodDelete, abortPath, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	var count int
	require.NoError(t, srv.db.QueryRow(`SELECT COUNT(*) FROM multipart_uploads WHERE upload_id = ?`, initiate.UploadID).Scan(&count))
	require.Zero(t, count)
	require.NoError(t, srv.db.QueryRow(`SELECT COUNT(*) FROM multipart_parts WHERE upload_id = ?`, initiate.UploadID).Scan(&count))
	require.Zero(t, count)

	resp = doRequest(t, ts, http.MethodGet, "/b/m.txt", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestListMultipartUploads(t *testing.T) {
	_, ts := newTestServer(t)

	for _, key := range []string{"a.txt", "b.txt", "c.txt"} {
		resp := doRequest(t, ts, http.MethodPost, "/b/"+key+"?uploads", nil)
		var initiate initiateMultipartUploadResult
		requireXML(t, resp, &initiate)
	}

	resp := doRequest(t, ts, http.MethodGet, "/b?uploads", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result listMultipartUploadsResult
	requireXML(t, resp, &result)
	require.Len(t, result.Upload, 3)
	require.False(t, result.IsTruncated)
}
