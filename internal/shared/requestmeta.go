package shared

import (
	"net"
	"net/http"
	"strings"
)

// RequestMeta captures the client-facing attributes of a request that the
// audit trail records alongside each event.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// MetaFromRequest derives the client IP and user agent. Proxy headers win
// over the raw connection address: the first X-Forwarded-For entry, then
// X-Real-IP, then RemoteAddr.
func MetaFromRequest(r *http.Request) RequestMeta {
	if r == nil {
		return RequestMeta{}
	}
	return RequestMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, entry := range strings.Split(xff, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" && !strings.EqualFold(entry, "unknown") {
				return stripPort(entry)
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" && !strings.EqualFold(realIP, "unknown") {
		return stripPort(realIP)
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
