package engine

import (
	"sort"
	"strings"
)

// listResult is the assembled, not-yet-rendered outcome of a ListObjectsV2
// call.
type listResult struct {
	Contents              []objectSummary
	CommonPrefixes        []commonPrefix
	IsTruncated           bool
	NextContinuationToken string
}

// listObjectsV2 dispatches to the fast slash-delimiter path, the generic
// delimiter path, or the no-delimiter path depending on delimiter.
func (s *Server) listObjectsV2(bucket, prefix, delimiter, marker string, maxKeys int) (listResult, error) {
	switch delimiter {
	case "/":
		return s.listSlashDelimiter(bucket, prefix, marker, maxKeys)
	case "":
		return s.listNoDelimiter(bucket, prefix, marker, maxKeys)
	default:
		return s.listGenericDelimiter(bucket, prefix, delimiter, marker, maxKeys)
	}
}

func prefixRangeClause(prefix string) (clause string, args []any) {
	if prefix == "" {
		return "", nil
	}
	clause = " AND key >= ?"
	args = append(args, prefix)
	if upper, ok := prefixUpperBound(prefix); ok {
		clause += " AND key < ?"
		args = append(args, upper)
	}
	return clause, args
}

// listSlashDelimiter implements the fast path (§4.5.1) that uses the
// parent index instead of scanning every key.
func (s *Server) listSlashDelimiter(bucket, prefix, marker string, maxKeys int) (listResult, error) {
	// A common prefix one level below `prefix` has depth(prefix)+1.
	targetDepth := depth(prefix) + 1

	prefixClause, prefixArgs := prefixRangeClause(prefix)

	prefixQuery := `SELECT DISTINCT parent FROM objects WHERE bucket = ? AND chunk_index = 0 AND depth = ?` + prefixClause
	prefixQueryArgs := append([]any{bucket, targetDepth}, prefixArgs...)
	if marker != "" {
		prefixQuery += ` AND parent > ?`
		prefixQueryArgs = append(prefixQueryArgs, marker)
	}

	rows, err := s.db.Query(prefixQuery, prefixQueryArgs...)
	if err != nil {
		return listResult{}, err
	}
	var candidatePrefixes []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return listResult{}, err
		}
		candidatePrefixes = append(candidatePrefixes, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return listResult{}, err
	}
	rows.Close()

	var prefixes []string
	for _, p := range candidatePrefixes {
		if strings.HasPrefix(p, prefix) && depth(p) == targetDepth {
			prefixes = append(prefixes, p)
		}
	}

	contentsQuery := `SELECT key, size, etag, last_modified FROM objects WHERE bucket = ? AND chunk_index = 0 AND parent = ?`
	contentsArgs := []any{bucket, prefix}
	if marker != "" {
		contentsQuery += ` AND key > ?`
		contentsArgs = append(contentsArgs, marker)
	}
	contentsQuery += ` ORDER BY key ASC LIMIT ?`
	contentsArgs = append(contentsArgs, maxKeys+1)

	contentRows, err := s.db.Query(contentsQuery, contentsArgs...)
	if err != nil {
		return listResult{}, err
	}
	var contents []objectSummary
	for contentRows.Next() {
		var o objectSummary
		if err := contentRows.Scan(&o.Key, &o.Size, &o.ETag, &o.LastModified); err != nil {
			contentRows.Close()
			return listResult{}, err
		}
		o.StorageClass = "STANDARD"
		contents = append(contents, o)
	}
	if err := contentRows.Err(); err != nil {
		contentRows.Close()
		return listResult{}, err
	}
	contentRows.Close()

	type merged struct {
		sortKey string
		prefix  string
		content *objectSummary
	}
	var items []merged
	for _, p := range prefixes {
		items = append(items, merged{sortKey: p, prefix: p})
	}
	for i := range contents {
		items = append(items, merged{sortKey: contents[i].Key, content: &contents[i]})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].sortKey < items[j].sortKey })

	var result listResult
	truncated := len(items) > maxKeys
	if truncated {
		items = items[:maxKeys]
	}
	for _, it := range items {
		if it.content != nil {
			result.Contents = append(result.Contents, *it.content)
		} else {
			result.CommonPrefixes = append(result.CommonPrefixes, commonPrefix{Prefix: it.prefix})
		}
	}
	result.IsTruncated = truncated
	if truncated && len(items) > 0 {
		result.NextContinuationToken = items[len(items)-1].sortKey
	}
	return result, nil
}

// listGenericDelimiter implements the generic delimiter path (§4.5.2),
// walking over-fetched rows and grouping by the first occurrence of
// delimiter after the prefix.
func (s *Server) listGenericDelimiter(bucket, prefix, delimiter, marker string, maxKeys int) (listResult, error) {
	prefixClause, prefixArgs := prefixRangeClause(prefix)
	query := `SELECT key, size, etag, last_modified FROM objects WHERE bucket = ? AND chunk_index = 0` + prefixClause
	args := append([]any{bucket}, prefixArgs...)
	if marker != "" {
		query += ` AND key > ?`
		args = append(args, marker)
	}
	query += ` ORDER BY key ASC LIMIT ?`
	args = append(args, maxKeys*10+1)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return listResult{}, err
	}
	defer rows.Close()

	var result listResult
	lastPrefix := ""
	emitted := 0
	hasMore := false
	for rows.Next() {
		if emitted >= maxKeys {
			hasMore = true
			break
		}
		var o objectSummary
		if err := rows.Scan(&o.Key, &o.Size, &o.ETag, &o.LastModified); err != nil {
			return listResult{}, err
		}
		o.StorageClass = "STANDARD"

		tail := o.Key[len(prefix):]
		if idx := strings.Index(tail, delimiter); idx != -1 {
			cp := prefix + tail[:idx+len(delimiter)]
			if cp != lastPrefix {
				result.CommonPrefixes = append(result.CommonPrefixes, commonPrefix{Prefix: cp})
				lastPrefix = cp
				emitted++
				result.NextContinuationToken = cp
			}
		} else {
			result.Contents = append(result.Contents, o)
			emitted++
			result.NextContinuationToken = o.Key
		}
	}
	if err := rows.Err(); err != nil {
		return listResult{}, err
	}

	result.IsTruncated = hasMore
	if !hasMore {
		result.NextContinuationToken = ""
	}
	return result, nil
}

// listNoDelimiter implements the plain prefix listing path (§4.5.3).
func (s *Server) listNoDelimiter(bucket, prefix, marker string, maxKeys int) (listResult, error) {
	prefixClause, prefixArgs := prefixRangeClause(prefix)
	query := `SELECT key, size, etag, last_modified FROM objects WHERE bucket = ? AND chunk_index = 0` + prefixClause
	args := append([]any{bucket}, prefixArgs...)
	if marker != "" {
		query += ` AND key > ?`
		args = append(args, marker)
	}
	query += ` ORDER BY key ASC LIMIT ?`
	args = append(args, maxKeys+1)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return listResult{}, err
	}
	defer rows.Close()

	var contents []objectSummary
	for rows.Next() {
		var o objectSummary
		if err := rows.Scan(&o.Key, &o.Size, &o.ETag, &o.LastModified); err != nil {
			return listResult{}, err
		}
		o.StorageClass = "STANDARD"
		contents = append(contents, o)
	}
	if err := rows.Err(); err != nil {
		return listResult{}, err
	}

	var result listResult
	if len(contents) > maxKeys {
		result.IsTruncated = true
		contents = contents[:maxKeys]
	}
	result.Contents = contents
	if result.IsTruncated && len(contents) > 0 {
		result.NextContinuationToken = contents[len(contents)-1].Key
	}
	return result, nil
}
