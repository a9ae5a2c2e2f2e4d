package engine

import (
	"net/url"
	"strings"
)

// parseCopySource parses an x-amz-copy-source header value into its bucket
// and key components. The key is percent-decoded once.
func parseCopySource(header string) (bucket, key string, err error) {
	h := strings.TrimPrefix(header, "/")
	idx := strings.IndexByte(h, '/')
	if idx == -1 {
		return "", "", errInvalidArgument("x-amz-copy-source must be of the form /bucket/key")
	}
	bucket = h[:idx]
	rawKey := h[idx+1:]
	key, err = url.PathUnescape(rawKey)
	if err != nil {
		return "", "", errInvalidArgument("x-amz-copy-source key is not validly percent-encoded")
	}
	return bucket, key, nil
}

// copyObject duplicates every chunk of (srcBucket, srcKey) into
// (dstBucket, dstKey) within the same bucket, preserving size and etag on
// the destination's chunk 0 and refreshing last_modified and depth/parent
// for the new key.
func (s *Server) copyObject(srcBucket, srcKey, dstBucket, dstKey string) (objectMeta, error) {
	if srcBucket != dstBucket {
		return objectMeta{}, errInvalidArgument("cross-bucket copy is not supported")
	}

	meta, found, err := s.headObject(srcBucket, srcKey)
	if err != nil {
		return objectMeta{}, err
	}
	if !found {
		return objectMeta{}, errNoSuchKey(srcKey)
	}

	rows, err := s.db.Query(
		`SELECT chunk_index, data FROM objects WHERE bucket = ? AND key = ? ORDER BY chunk_index ASC`,
		srcBucket, srcKey,
	)
	if err != nil {
		return objectMeta{}, err
	}
	type chunk struct {
		index int
		data  []byte
	}
	var chunks []chunk
	for rows.Next() {
		var c chunk
		if err := rows.Scan(&c.index, &c.data); err != nil {
			rows.Close()
			return objectMeta{}, err
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return objectMeta{}, err
	}
	rows.Close()

	lastModified := nowISO()
	d, p := depth(dstKey), parent(dstKey)

	tx, err := s.db.Begin()
	if err != nil {
		return objectMeta{}, err
	}
	defer tx.Rollback()

	if err := deleteObjectRows(tx, dstBucket, dstKey); err != nil {
		return objectMeta{}, err
	}

	for _, c := range chunks {
		if c.index == 0 {
			_, err = tx.Exec(
				`INSERT INTO objects (bucket, key, chunk_index, size, etag, last_modified, content_type, data, depth, parent)
				 VALUES (?, ?, 0, ?, ?, ?, ?, ?, ?, ?)`,
				dstBucket, dstKey, meta.Size, meta.ETag, lastModified, meta.ContentType, c.data, d, p,
			)
		} else {
			_, err = tx.Exec(
				`INSERT INTO objects (bucket, key, chunk_index, size, etag, last_modified, content_type, data, depth, parent)
				 VALUES (?, ?, ?, 0, '', '', '', ?, NULL, NULL)`,
				dstBucket, dstKey, c.index, c.data,
			)
		}
		if err != nil {
			return objectMeta{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return objectMeta{}, err
	}

	return objectMeta{Size: meta.Size, ETag: meta.ETag, LastModified: lastModified, ContentType: meta.ContentType}, nil
}
