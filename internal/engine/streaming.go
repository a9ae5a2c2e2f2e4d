package engine

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// decodeStreamingPayload decodes a body sent with
// "Content-Encoding: aws-chunked" / "x-amz-content-sha256:
// STREAMING-AWS4-HMAC-SHA256-PAYLOAD", the format emitted by AWS SDK
// clients (aws-cli, boto3, minio-go) when they sign each chunk. Each
// chunk is framed as "<hex-size>;chunk-signature=<hex>\r\n<data>\r\n" and
// the stream ends with a zero-size chunk. Signature bytes are never
// verified, only stripped, since full SigV4 verification is out of scope.
func decodeStreamingPayload(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	var out []byte

	for {
		header, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("streaming payload: reading chunk header: %w", err)
		}
		header = strings.TrimRight(header, "\r\n")

		sizeField := header
		if idx := strings.IndexByte(header, ';'); idx != -1 {
			sizeField = header[:idx]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("streaming payload: invalid chunk size %q: %w", sizeField, err)
		}

		if size == 0 {
			// Trailing CRLF after the terminal zero-size chunk.
			io.ReadFull(br, make([]byte, 2))
			return out, nil
		}

		buf := make([]byte, size)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("streaming payload: reading chunk data: %w", err)
		}
		out = append(out, buf...)

		// Each chunk's data is followed by a trailing CRLF.
		if _, err := io.ReadFull(br, make([]byte, 2)); err != nil {
			return nil, fmt.Errorf("streaming payload: reading chunk trailer: %w", err)
		}
	}
}

// isStreamingPayload reports whether the request declares the
// aws-chunked / STREAMING-AWS4-HMAC-SHA256-PAYLOAD body encoding.
func isStreamingPayload(contentSHA256Header string) bool {
	return strings.HasPrefix(contentSHA256Header, "STREAMING-")
}
