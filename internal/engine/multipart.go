package engine

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// createMultipartUpload registers a new upload session and returns its
// opaque upload_id.
func (s *Server) createMultipartUpload(bucket, key, contentType string) (string, error) {
	uploadID := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO multipart_uploads (upload_id, bucket, key, created_at, content_type) VALUES (?, ?, ?, ?, ?)`,
		uploadID, bucket, key, nowISO(), contentType,
	)
	if err != nil {
		return "", err
	}
	return uploadID, nil
}

// multipartUploadExists reports whether uploadID names a live session for
// (bucket, key).
func (s *Server) multipartUploadExists(bucket, key, uploadID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM multipart_uploads WHERE upload_id = ? AND bucket = ? AND key = ?`,
		uploadID, bucket, key,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// uploadPart stores one part's bytes, replacing any prior upload of the
// same part_number so retries are idempotent. The returned etag is the hex
// MD5 of the part's bytes.
func (s *Server) uploadPart(uploadID string, partNumber int, body []byte) (string, error) {
	sum := md5.Sum(body)
	etag := hex.EncodeToString(sum[:])

	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM multipart_parts WHERE upload_id = ? AND part_number = ?`,
		uploadID, partNumber,
	); err != nil {
		return "", err
	}

	for i, chunk := range chunksOf(body) {
		if i == 0 {
			_, err = tx.Exec(
				`INSERT INTO multipart_parts (upload_id, part_number, chunk_index, size, etag, data) VALUES (?, ?, 0, ?, ?, ?)`,
				uploadID, partNumber, int64(len(body)), etag, chunk,
			)
		} else {
			_, err = tx.Exec(
				`INSERT INTO multipart_parts (upload_id, part_number, chunk_index, size, etag, data) VALUES (?, ?, ?, 0, '', ?)`,
				uploadID, partNumber, i, chunk,
			)
		}
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return etag, nil
}

// completedPart is one entry of a CompleteMultipartUpload request body.
type completedPart struct {
	PartNumber int
	ETag       string
}

// completeMultipartUpload assembles the referenced parts into a single
// object at (bucket, key), deleting the prior object (if any) and the
// upload session atomically. The synthesized ETag follows the canonical
// S3 multipart form: hex(MD5(concat(raw MD5 digest of each part)))-N.
func (s *Server) completeMultipartUpload(bucket, key, uploadID string, parts []completedPart) (objectMeta, error) {
	if len(parts) == 0 {
		return objectMeta{}, errInvalidPart("CompleteMultipartUpload requires at least one part")
	}

	ordered := make([]completedPart, len(parts))
	copy(ordered, parts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PartNumber < ordered[j].PartNumber })

	var contentType string
	err := s.db.QueryRow(
		`SELECT content_type FROM multipart_uploads WHERE upload_id = ? AND bucket = ? AND key = ?`,
		uploadID, bucket, key,
	).Scan(&contentType)
	if err == sql.ErrNoRows {
		return objectMeta{}, errNoSuchUpload(uploadID)
	}
	if err != nil {
		return objectMeta{}, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return objectMeta{}, err
	}
	defer tx.Rollback()

	var body []byte
	var digestConcat []byte
	for _, part := range ordered {
		var partEtag string
		if err := tx.QueryRow(
			`SELECT etag FROM multipart_parts WHERE upload_id = ? AND part_number = ? AND chunk_index = 0`,
			uploadID, part.PartNumber,
		).Scan(&partEtag); err != nil {
			if err == sql.ErrNoRows {
				return objectMeta{}, errInvalidPart(fmt.Sprintf("part %d was not uploaded", part.PartNumber))
			}
			return objectMeta{}, err
		}
		digestBytes, decErr := hex.DecodeString(partEtag)
		if decErr != nil {
			return objectMeta{}, decErr
		}
		digestConcat = append(digestConcat, digestBytes...)

		rows, err := tx.Query(
			`SELECT data FROM multipart_parts WHERE upload_id = ? AND part_number = ? ORDER BY chunk_index ASC`,
			uploadID, part.PartNumber,
		)
		if err != nil {
			return objectMeta{}, err
		}
		for rows.Next() {
			var chunk []byte
			if err := rows.Scan(&chunk); err != nil {
				rows.Close()
				return objectMeta{}, err
			}
			body = append(body, chunk...)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return objectMeta{}, err
		}
		rows.Close()
	}

	sum := md5.Sum(digestConcat)
	etag := fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), len(ordered))
	lastModified := nowISO()
	d, p := depth(key), parent(key)

	if err := deleteObjectRows(tx, bucket, key); err != nil {
		return objectMeta{}, err
	}

	for i, chunk := range chunksOf(body) {
		if i == 0 {
			_, err = tx.Exec(
				`INSERT INTO objects (bucket, key, chunk_index, size, etag, last_modified, content_type, data, depth, parent)
				 VALUES (?, ?, 0, ?, ?, ?, ?, ?, ?, ?)`,
				bucket, key, int64(len(body)), etag, lastModified, contentType, chunk, d, p,
			)
		} else {
			_, err = tx.Exec(
				`INSERT INTO objects (bucket, key, chunk_index, size, etag, last_modified, content_type, data, depth, parent)
				 VALUES (?, ?, ?, 0, '', '', '', ?, NULL, NULL)`,
				bucket, key, i, chunk,
			)
		}
		if err != nil {
			return objectMeta{}, err
		}
	}

	if _, err := tx.Exec(`DELETE FROM multipart_parts WHERE upload_id = ?`, uploadID); err != nil {
		return objectMeta{}, err
	}
	if _, err := tx.Exec(`DELETE FROM multipart_uploads WHERE upload_id = ?`, uploadID); err != nil {
		return objectMeta{}, err
	}

	if err := tx.Commit(); err != nil {
		return objectMeta{}, err
	}

	return objectMeta{Size: int64(len(body)), ETag: etag, LastModified: lastModified, ContentType: contentType}, nil
}

// abortMultipartUpload discards a session and all of its parts. It is
// idempotent: aborting an already-gone upload is not an error.
func (s *Server) abortMultipartUpload(uploadID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM multipart_parts WHERE upload_id = ?`, uploadID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM multipart_uploads WHERE upload_id = ?`, uploadID); err != nil {
		return err
	}
	return tx.Commit()
}

// multipartUploadListing is one row of a ListMultipartUploads result.
type multipartUploadListing struct {
	Key       string
	UploadID  string
	Initiated string
}

// listMultipartUploads returns at most maxUploads sessions for bucket,
// restricted to prefix via a half-open key range, ordered by (key,
// upload_id) and paginated past the given markers.
func (s *Server) listMultipartUploads(bucket, prefix, keyMarker, uploadIDMarker string, maxUploads int) (uploads []multipartUploadListing, isTruncated bool, err error) {
	query := `SELECT key, upload_id, created_at FROM multipart_uploads WHERE bucket = ?`
	args := []any{bucket}

	if prefix != "" {
		query += ` AND key >= ?`
		args = append(args, prefix)
		if upper, ok := prefixUpperBound(prefix); ok {
			query += ` AND key < ?`
			args = append(args, upper)
		}
	}

	if keyMarker != "" && uploadIDMarker != "" {
		query += ` AND (key > ? OR (key = ? AND upload_id > ?))`
		args = append(args, keyMarker, keyMarker, uploadIDMarker)
	} else if keyMarker != "" {
		query += ` AND key > ?`
		args = append(args, keyMarker)
	}

	query += ` ORDER BY key ASC, upload_id ASC LIMIT ?`
	args = append(args, maxUploads+1)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var row multipartUploadListing
		if err := rows.Scan(&row.Key, &row.UploadID, &row.Initiated); err != nil {
			return nil, false, err
		}
		uploads = append(uploads, row)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	if len(uploads) > maxUploads {
		uploads = uploads[:maxUploads]
		isTruncated = true
	}
	return uploads, isTruncated, nil
}
