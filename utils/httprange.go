package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tnqbao/gau-platform/apperror"
)

// ByteRange is an inclusive byte interval resolved against a known size.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// Header renders the range for forwarding upstream.
func (r ByteRange) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

func UnsatisfiedContentRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// ParseRange resolves a Range header against size.
//
// It returns (nil, nil) when the header should be ignored and the full
// representation served: empty, not a bytes range, syntactically invalid,
// or a multi-range request. A well-formed range that does not overlap the
// representation yields a RANGE_NOT_SATISFIABLE error.
func ParseRange(header string, size int64) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	const prefix = "bytes="
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return nil, nil
	}
	spec := strings.TrimSpace(header[len(prefix):])
	if spec == "" || strings.Contains(spec, ",") {
		return nil, nil
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return nil, nil
	}
	first := strings.TrimSpace(spec[:dash])
	last := strings.TrimSpace(spec[dash+1:])

	if first == "" {
		// suffix range: last N bytes
		n, ok := parseDigits(last)
		if !ok {
			return nil, nil
		}
		if n == 0 || size == 0 {
			return nil, apperror.RangeNotSatisfiable(size)
		}
		if n > size {
			n = size
		}
		return &ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, ok := parseDigits(first)
	if !ok {
		return nil, nil
	}
	end := size - 1
	if last != "" {
		e, ok := parseDigits(last)
		if !ok || e < start {
			return nil, nil
		}
		if e < end {
			end = e
		}
	}
	if start >= size {
		return nil, apperror.RangeNotSatisfiable(size)
	}
	return &ByteRange{Start: start, End: end}, nil
}

// ParseContentRange reads "bytes a-b/size" (or "bytes */size") as sent by
// the object store. Size is -1 when the server reported "*".
func ParseContentRange(header string) (r *ByteRange, size int64, err error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "bytes ") {
		return nil, 0, fmt.Errorf("invalid content-range %q", header)
	}
	rest := strings.TrimSpace(header[len("bytes "):])
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return nil, 0, fmt.Errorf("invalid content-range %q", header)
	}
	sizePart := rest[slash+1:]
	size = -1
	if sizePart != "*" {
		s, ok := parseDigits(sizePart)
		if !ok {
			return nil, 0, fmt.Errorf("invalid content-range size %q", sizePart)
		}
		size = s
	}
	rangePart := rest[:slash]
	if rangePart == "*" {
		return nil, size, nil
	}
	dash := strings.IndexByte(rangePart, '-')
	if dash < 0 {
		return nil, 0, fmt.Errorf("invalid content-range %q", header)
	}
	start, ok1 := parseDigits(rangePart[:dash])
	end, ok2 := parseDigits(rangePart[dash+1:])
	if !ok1 || !ok2 || end < start {
		return nil, 0, fmt.Errorf("invalid content-range %q", header)
	}
	return &ByteRange{Start: start, End: end}, size, nil
}

func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
