package utils

import (
	"mime"
	"net/http"
	"net/textproto"
	"strings"
)

// hopHeaders apply to a single transport connection and are never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RemoveHopByHopHeaders deletes hop-by-hop headers, including any named by
// the Connection header.
func RemoveHopByHopHeaders(h http.Header) {
	for _, field := range h.Values("Connection") {
		for _, name := range strings.Split(field, ",") {
			if name = textproto.TrimString(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// CopyProxyHeaders copies src into dst without hop-by-hop headers.
func CopyProxyHeaders(dst, src http.Header) {
	filtered := src.Clone()
	RemoveHopByHopHeaders(filtered)
	for k, vv := range filtered {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func ContentDisposition(filename string, inline bool) string {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	if filename == "" {
		return disposition
	}
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return disposition
}
