package engine

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"strconv"
)

func (s *Server) handleCreateMultipartUpload(w http.ResponseWriter, r *http.Request, requestID, bucket, key string) {
	uploadID, err := s.createMultipartUpload(bucket, key, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, requestID, "CreateMultipartUpload", err)
		return
	}
	writeXML(w, requestID, http.StatusOK, initiateMultipartUploadResult{
		Bucket:   bucket,
		Key:      key,
		UploadID: uploadID,
	})
}

func (s *Server) handleUploadPart(w http.ResponseWriter, r *http.Request, requestID, bucket, key string, q url.Values) {
	uploadID := q.Get("uploadId")
	partNumber, err := strconv.Atoi(q.Get("partNumber"))
	if err != nil {
		writeError(w, requestID, "UploadPart", errInvalidArgument("partNumber must be an integer"))
		return
	}

	exists, err := s.multipartUploadExists(bucket, key, uploadID)
	if err != nil {
		writeError(w, requestID, "UploadPart", err)
		return
	}
	if !exists {
		writeError(w, requestID, "UploadPart", errNoSuchUpload(uploadID))
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, requestID, "UploadPart", errInternal("failed to read request body"))
		return
	}

	etag, err := s.uploadPart(uploadID, partNumber, body)
	if err != nil {
		writeError(w, requestID, "UploadPart", err)
		return
	}

	w.Header().Set("ETag", `"`+etag+`"`)
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCompleteMultipartUpload(w http.ResponseWriter, r *http.Request, requestID, bucket, key, uploadID string) {
	exists, err := s.multipartUploadExists(bucket, key, uploadID)
	if err != nil {
		writeError(w, requestID, "CompleteMultipartUpload", err)
		return
	}
	if !exists {
		writeError(w, requestID, "CompleteMultipartUpload", errNoSuchUpload(uploadID))
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, requestID, "CompleteMultipartUpload", errInternal("failed to read request body"))
		return
	}

	var req completeMultipartUpload
	if len(body) > 0 {
		if err := xml.Unmarshal(body, &req); err != nil {
			writeError(w, requestID, "CompleteMultipartUpload", errInvalidArgument("malformed CompleteMultipartUpload body"))
			return
		}
	}

	parts := make([]completedPart, len(req.Parts))
	for i, p := range req.Parts {
		parts[i] = completedPart{PartNumber: p.PartNumber, ETag: p.ETag}
	}

	meta, err := s.completeMultipartUpload(bucket, key, uploadID, parts)
	if err != nil {
		writeError(w, requestID, "CompleteMultipartUpload", err)
		return
	}

	writeXML(w, requestID, http.StatusOK, completeMultipartUploadResult{
		Location: "/" + bucket + "/" + key,
		Bucket:   bucket,
		Key:      key,
		ETag:     `"` + meta.ETag + `"`,
	})
}

func (s *Server) handleAbortMultipartUpload(w http.ResponseWriter, requestID, uploadID string) {
	if err := s.abortMultipartUpload(uploadID); err != nil {
		writeError(w, requestID, "AbortMultipartUpload", err)
		return
	}
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMultipartUploads(w http.ResponseWriter, requestID, bucket string, q url.Values) {
	prefix := q.Get("prefix")
	keyMarker := q.Get("key-marker")
	uploadIDMarker := q.Get("upload-id-marker")
	maxUploads := defaultMaxKeys
	if mu := q.Get("max-uploads"); mu != "" {
		if n, err := strconv.Atoi(mu); err == nil && n > 0 {
			maxUploads = n
		}
	}

	uploads, truncated, err := s.listMultipartUploads(bucket, prefix, keyMarker, uploadIDMarker, maxUploads)
	if err != nil {
		writeError(w, requestID, "ListMultipartUploads", err)
		return
	}

	result := listMultipartUploadsResult{
		Bucket:         bucket,
		Prefix:         prefix,
		KeyMarker:      keyMarker,
		UploadIDMarker: uploadIDMarker,
		MaxUploads:     maxUploads,
		IsTruncated:    truncated,
	}
	for _, u := range uploads {
		result.Upload = append(result.Upload, multipartUploadEntry{
			Key:       u.Key,
			UploadID:  u.UploadID,
			Initiated: u.Initiated,
		})
	}
	if truncated && len(uploads) > 0 {
		last := uploads[len(uploads)-1]
		result.NextKeyMarker = last.Key
		result.NextUploadIDMarker = last.UploadID
	}

	writeXML(w, requestID, http.StatusOK, result)
}

func (s *Server) handleCopyObject(w http.ResponseWriter, r *http.Request, requestID, dstBucket, dstKey string) {
	srcBucket, srcKey, err := parseCopySource(r.Header.Get("x-amz-copy-source"))
	if err != nil {
		writeError(w, requestID, "CopyObject", err)
		return
	}

	meta, err := s.copyObject(srcBucket, srcKey, dstBucket, dstKey)
	if err != nil {
		writeError(w, requestID, "CopyObject", err)
		return
	}

	writeXML(w, requestID, http.StatusOK, copyObjectResult{
		LastModified: meta.LastModified,
		ETag:         `"` + meta.ETag + `"`,
	})
}
