package engine

import (
	"encoding/xml"
	"log/slog"
	"net/http"
)

// apiError is an S3-flavored error carrying the code and HTTP status that
// writeError renders into the XML error envelope.
type apiError struct {
	Code    string
	Status  int
	Message string
}

func (e *apiError) Error() string { return e.Code + ": " + e.Message }

func newAPIError(code string, status int, message string) *apiError {
	return &apiError{Code: code, Status: status, Message: message}
}

var (
	errUnauthorized = func(msg string) *apiError { return newAPIError("Unauthorized", http.StatusUnauthorized, msg) }
	errForbidden    = func(msg string) *apiError { return newAPIError("Forbidden", http.StatusForbidden, msg) }
	errNoSuchKey    = func(key string) *apiError {
		return newAPIError("NoSuchKey", http.StatusNotFound, "The specified key does not exist: "+key)
	}
	errNoSuchBucket = func(bucket string) *apiError {
		return newAPIError("NoSuchBucket", http.StatusNotFound, "The specified bucket does not exist: "+bucket)
	}
	errNoSuchUpload = func(uploadID string) *apiError {
		return newAPIError("NoSuchUpload", http.StatusNotFound, "The specified multipart upload does not exist: "+uploadID)
	}
	errInvalidPart = func(msg string) *apiError { return newAPIError("InvalidPart", http.StatusBadRequest, msg) }
	errInvalidArgument = func(msg string) *apiError {
		return newAPIError("InvalidArgument", http.StatusBadRequest, msg)
	}
	errNotImplemented = func(msg string) *apiError {
		return newAPIError("NotImplemented", http.StatusNotImplemented, msg)
	}
	errInternal = func(msg string) *apiError {
		return newAPIError("InternalError", http.StatusInternalServerError, msg)
	}
)

// xmlError is the wire shape of the S3 error envelope.
type xmlError struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
}

// writeError renders err as the S3 XML error envelope. Non-apiError values
// are logged with operation context and reported as an opaque InternalError
// so no internal detail reaches the client.
func writeError(w http.ResponseWriter, requestID string, op string, err error) {
	ae, ok := err.(*apiError)
	if !ok {
		slog.Error("internal error", slog.String("op", op), slog.String("request_id", requestID), slog.Any("err", err))
		ae = errInternal("an internal error occurred")
	}
	writeXML(w, requestID, ae.Status, xmlError{
		Code:      ae.Code,
		Message:   ae.Message,
		RequestID: requestID,
	})
}
