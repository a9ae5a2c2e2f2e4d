package engine

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"depot/internal/auth"
)

const defaultMaxKeys = 1000

// Handler returns the http.Handler for this tenant's Server: a single
// entrypoint that authenticates, dispatches, logs, and broadcasts every
// request, serialized per §5.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveHTTP)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	start := time.Now()

	if isWebSocketUpgrade(r) {
		s.bc.Subscribe(w, r)
		return
	}

	sw := &statusCapturingWriter{ResponseWriter: w}

	s.mu.Lock()
	s.route(sw, r, requestID)
	s.mu.Unlock()

	duration := time.Since(start)
	status := sw.status
	if status == 0 {
		status = http.StatusOK
	}

	slog.Info("request",
		slog.Group("request",
			slog.String("id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		),
	)

	s.bc.Publish(activityEvent{
		Method:    r.Method,
		Path:      r.URL.RequestURI(),
		Status:    status,
		Duration:  duration.Milliseconds(),
		Timestamp: nowISO(),
	})
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// splitBucketKey implements §4.6's path parsing: the first non-empty
// segment is the bucket, everything after the following slash (trailing
// slashes included) is the key.
func splitBucketKey(path string) (bucket, key string) {
	trimmed := strings.TrimLeft(path, "/")
	idx := strings.IndexByte(trimmed, '/')
	if idx == -1 {
		return trimmed, ""
	}
	return trimmed[:idx], trimmed[idx+1:]
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, requestID string) {
	bucket, key := splitBucketKey(r.URL.Path)
	if bucket == "" {
		writeError(w, requestID, "route", errNoSuchBucket(""))
		return
	}

	if _, err := s.authenticate(r, bucket); err != nil {
		writeError(w, requestID, "authenticate", err)
		return
	}

	q := r.URL.Query()

	switch {
	case r.Method == http.MethodHead && key == "":
		s.handleHeadBucket(w, requestID)

	case r.Method == http.MethodGet && key == "" && q.Has("uploads"):
		s.handleListMultipartUploads(w, requestID, bucket, q)

	case r.Method == http.MethodGet && key == "":
		s.handleListObjectsV2(w, r, requestID, bucket)

	case (r.Method == http.MethodGet || r.Method == http.MethodHead) && key != "":
		if r.Method == http.MethodGet {
			s.handleGetObject(w, requestID, bucket, key)
		} else {
			s.handleHeadObject(w, requestID, bucket, key)
		}

	case r.Method == http.MethodPost && key != "" && q.Has("uploads"):
		s.handleCreateMultipartUpload(w, r, requestID, bucket, key)

	case r.Method == http.MethodPut && key != "" && q.Has("uploadId") && q.Has("partNumber"):
		s.handleUploadPart(w, r, requestID, bucket, key, q)

	case r.Method == http.MethodPost && key != "" && q.Has("uploadId"):
		s.handleCompleteMultipartUpload(w, r, requestID, bucket, key, q.Get("uploadId"))

	case r.Method == http.MethodDelete && key != "" && q.Has("uploadId"):
		s.handleAbortMultipartUpload(w, requestID, q.Get("uploadId"))

	case r.Method == http.MethodPut && key != "" && r.Header.Get("x-amz-copy-source") != "":
		s.handleCopyObject(w, r, requestID, bucket, key)

	case r.Method == http.MethodPut && key != "":
		s.handlePutObject(w, r, requestID, bucket, key)

	case r.Method == http.MethodDelete && key != "":
		s.handleDeleteObject(w, requestID, bucket, key)

	default:
		writeError(w, requestID, "route", errNotImplemented("unsupported operation"))
	}
}

func (s *Server) authenticate(r *http.Request, bucket string) (auth.Result, error) {
	token, ok := auth.ExtractToken(r.Header.Get("Authorization"))
	if !ok {
		return auth.Result{}, errUnauthorized("missing or unrecognized Authorization header")
	}
	result, err := s.auth.Authenticate(token, bucket)
	if err != nil {
		switch err {
		case auth.ErrBucketMismatch:
			return auth.Result{}, errForbidden("token is not valid for this bucket")
		default:
			return auth.Result{}, errUnauthorized("invalid credentials")
		}
	}
	return result, nil
}

func readBody(r *http.Request) ([]byte, error) {
	if isStreamingPayload(r.Header.Get("x-amz-content-sha256")) {
		return decodeStreamingPayload(r.Body)
	}
	return io.ReadAll(r.Body)
}

func (s *Server) handleHeadBucket(w http.ResponseWriter, requestID string) {
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request, requestID, bucket, key string) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, requestID, "PutObject", errInternal("failed to read request body"))
		return
	}
	meta, err := s.putObject(bucket, key, body, r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, requestID, "PutObject", err)
		return
	}
	w.Header().Set("ETag", `"`+meta.ETag+`"`)
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetObject(w http.ResponseWriter, requestID, bucket, key string) {
	meta, body, found, err := s.getObject(bucket, key)
	if err != nil {
		writeError(w, requestID, "GetObject", err)
		return
	}
	if !found {
		writeError(w, requestID, "GetObject", errNoSuchKey(key))
		return
	}
	writeObjectHeaders(w, meta, requestID)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleHeadObject(w http.ResponseWriter, requestID, bucket, key string) {
	meta, found, err := s.headObject(bucket, key)
	if err != nil {
		writeError(w, requestID, "HeadObject", err)
		return
	}
	if !found {
		writeError(w, requestID, "HeadObject", errNoSuchKey(key))
		return
	}
	writeObjectHeaders(w, meta, requestID)
	w.WriteHeader(http.StatusOK)
}

func writeObjectHeaders(w http.ResponseWriter, meta objectMeta, requestID string) {
	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("ETag", `"`+meta.ETag+`"`)
	if t, err := time.Parse("2006-01-02T15:04:05.000Z", meta.LastModified); err == nil {
		w.Header().Set("Last-Modified", t.Format(http.TimeFormat))
	}
	w.Header().Set("x-amz-request-id", requestID)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, requestID, bucket, key string) {
	if err := s.deleteObject(bucket, key); err != nil {
		writeError(w, requestID, "DeleteObject", err)
		return
	}
	w.Header().Set("x-amz-request-id", requestID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListObjectsV2(w http.ResponseWriter, r *http.Request, requestID, bucket string) {
	values := r.URL.Query()
	prefix := values.Get("prefix")
	delimiter := values.Get("delimiter")
	maxKeys := defaultMaxKeys
	if mk := values.Get("max-keys"); mk != "" {
		if n, err := strconv.Atoi(mk); err == nil && n > 0 {
			maxKeys = n
		}
	}
	marker := values.Get("continuation-token")
	if marker == "" {
		marker = values.Get("start-after")
	}

	result, err := s.listObjectsV2(bucket, prefix, delimiter, marker, maxKeys)
	if err != nil {
		writeError(w, requestID, "ListObjectsV2", err)
		return
	}

	writeXML(w, requestID, http.StatusOK, listBucketResult{
		Name:                  bucket,
		Prefix:                prefix,
		Delimiter:             delimiter,
		KeyCount:              len(result.Contents) + len(result.CommonPrefixes),
		MaxKeys:               maxKeys,
		IsTruncated:           result.IsTruncated,
		NextContinuationToken: result.NextContinuationToken,
		Contents:              quoteETags(result.Contents),
		CommonPrefixes:        result.CommonPrefixes,
	})
}

func quoteETags(items []objectSummary) []objectSummary {
	out := make([]objectSummary, len(items))
	for i, it := range items {
		it.ETag = `"` + it.ETag + `"`
		out[i] = it
	}
	return out
}
