package utils

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/tnqbao/gau-platform/apperror"
)

var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func IsValidBucketName(name string) bool {
	return bucketNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

// NormalizeObjectPath converts backslashes, collapses duplicate slashes and
// trims leading and trailing slashes. Parent segments and control characters
// are rejected. An empty input stays empty.
func NormalizeObjectPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return "", nil
	}
	if len(p) > 1024 {
		return "", apperror.InvalidInput("path", "path is too long")
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." || segment == "." {
			return "", apperror.InvalidInput("path", "path cannot contain '.' or '..' segments")
		}
	}
	for _, r := range p {
		if unicode.IsControl(r) {
			return "", apperror.InvalidInput("path", "path cannot contain control characters")
		}
	}
	return p, nil
}

// JoinObjectPath joins a folder and a file name into a normalised key.
func JoinObjectPath(folder, name string) (string, error) {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}
	return NormalizeObjectPath(folder + "/" + name)
}

// SplitObjectPath returns the parent folder and base name of a key.
func SplitObjectPath(key string) (parent, name string) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}

// EscapePath escapes each segment of an object key while keeping the
// separators, so keys survive being embedded in a URL path.
func EscapePath(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
