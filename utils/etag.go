package utils

import (
	"net/http"
	"strings"
	"time"
)

// QuoteETag renders a stored (unquoted) entity tag for a response header.
func QuoteETag(etag string) string {
	if etag == "" {
		return ""
	}
	if strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, "W/") {
		return etag
	}
	return `"` + etag + `"`
}

// NormalizeETag strips quotes and the weak prefix so tags can be stored
// and compared by their opaque value.
func NormalizeETag(etag string) string {
	etag = strings.TrimSpace(etag)
	etag = strings.TrimPrefix(etag, "W/")
	return strings.Trim(etag, `"`)
}

// MatchesIfNoneMatch reports whether an If-None-Match header matches etag
// using weak comparison.
func MatchesIfNoneMatch(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" || etag == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := NormalizeETag(etag)
	for _, candidate := range strings.Split(header, ",") {
		if NormalizeETag(candidate) == want {
			return true
		}
	}
	return false
}

// IfRangeAllows reports whether a Range request may be honoured given the
// If-Range header. Entity tags use strong comparison; HTTP dates are
// compared against lastModified.
func IfRangeAllows(header, etag string, lastModified time.Time) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return true
	}
	if strings.HasPrefix(header, "W/") {
		return false
	}
	if strings.HasPrefix(header, `"`) {
		return etag != "" && header == QuoteETag(NormalizeETag(etag))
	}
	t, err := http.ParseTime(header)
	if err != nil || lastModified.IsZero() {
		return false
	}
	return !lastModified.Truncate(time.Second).After(t)
}
