package engine

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
)

// objectMeta is the chunk-0 metadata of an object.
type objectMeta struct {
	Size         int64
	ETag         string
	LastModified string
	ContentType  string
}

// chunksOf splits data into chunkSize-aligned slices; it always returns at
// least one slice (possibly empty) so chunk 0 is always present.
func chunksOf(data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[off:end])
	}
	return out
}

// deleteObjectRows deletes every chunk row for (bucket, key) within tx.
func deleteObjectRows(tx *sql.Tx, bucket, key string) error {
	_, err := tx.Exec(`DELETE FROM objects WHERE bucket = ? AND key = ?`, bucket, key)
	return err
}

// putObject stores body under (bucket, key), replacing any existing
// object at that key atomically via delete-then-insert.
func (s *Server) putObject(bucket, key string, body []byte, contentType string) (objectMeta, error) {
	sum := md5.Sum(body)
	etag := hex.EncodeToString(sum[:])
	lastModified := nowISO()

	tx, err := s.db.Begin()
	if err != nil {
		return objectMeta{}, err
	}
	defer tx.Rollback()

	if err := deleteObjectRows(tx, bucket, key); err != nil {
		return objectMeta{}, err
	}

	chunks := chunksOf(body)
	d, p := depth(key), parent(key)

	for i, chunk := range chunks {
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

	if err := tx.Commit(); err != nil {
		return objectMeta{}, err
	}

	return objectMeta{Size: int64(len(body)), ETag: etag, LastModified: lastModified, ContentType: contentType}, nil
}

// headObject reads chunk-0 metadata for (bucket, key). found is false when
// no such object exists.
func (s *Server) headObject(bucket, key string) (meta objectMeta, found bool, err error) {
	row := s.db.QueryRow(
		`SELECT size, etag, last_modified, content_type FROM objects WHERE bucket = ? AND key = ? AND chunk_index = 0`,
		bucket, key,
	)
	err = row.Scan(&meta.Size, &meta.ETag, &meta.LastModified, &meta.ContentType)
	if err == sql.ErrNoRows {
		return objectMeta{}, false, nil
	}
	if err != nil {
		return objectMeta{}, false, err
	}
	return meta, true, nil
}

// getObject reads the full object body by concatenating its chunks in
// ascending chunk_index order.
func (s *Server) getObject(bucket, key string) (meta objectMeta, body []byte, found bool, err error) {
	meta, found, err = s.headObject(bucket, key)
	if err != nil || !found {
		return objectMeta{}, nil, found, err
	}

	rows, err := s.db.Query(
		`SELECT data FROM objects WHERE bucket = ? AND key = ? ORDER BY chunk_index ASC`,
		bucket, key,
	)
	if err != nil {
		return objectMeta{}, nil, false, err
	}
	defer rows.Close()

	body = make([]byte, 0, meta.Size)
	for rows.Next() {
		var chunk []byte
		if err := rows.Scan(&chunk); err != nil {
			return objectMeta{}, nil, false, err
		}
		body = append(body, chunk...)
	}
	if err := rows.Err(); err != nil {
		return objectMeta{}, nil, false, err
	}

	return meta, body, true, nil
}

// deleteObject removes every row for (bucket, key). It is idempotent: a
// missing key is not an error.
func (s *Server) deleteObject(bucket, key string) error {
	_, err := s.db.Exec(`DELETE FROM objects WHERE bucket = ? AND key = ?`, bucket, key)
	return err
}
