package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func metaFor(t *testing.T, remoteAddr string, headers map[string]string) RequestMeta {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return MetaFromRequest(req)
}

func TestClientIPPrecedence(t *testing.T) {
	meta := metaFor(t, "192.0.2.1:1234", map[string]string{
		"X-Forwarded-For": "203.0.113.7, 70.41.3.18",
		"X-Real-IP":       "198.51.100.2",
	})
	if meta.IP != "203.0.113.7" {
		t.Fatalf("expected first forwarded address, got %s", meta.IP)
	}

	meta = metaFor(t, "192.0.2.1:1234", map[string]string{
		"X-Real-IP": "198.51.100.2",
	})
	if meta.IP != "198.51.100.2" {
		t.Fatalf("expected X-Real-IP fallback, got %s", meta.IP)
	}

	meta = metaFor(t, "192.0.2.1:1234", nil)
	if meta.IP != "192.0.2.1" {
		t.Fatalf("expected remote address without port, got %s", meta.IP)
	}
}

func TestClientIPSkipsUnknown(t *testing.T) {
	meta := metaFor(t, "192.0.2.1:1234", map[string]string{
		"X-Forwarded-For": "unknown, 203.0.113.7",
	})
	if meta.IP != "203.0.113.7" {
		t.Fatalf("expected unknown entries skipped, got %s", meta.IP)
	}
}

func TestUserAgentCaptured(t *testing.T) {
	meta := metaFor(t, "192.0.2.1:1234", map[string]string{
		"User-Agent": "staffhub-cli/1.2",
	})
	if meta.UserAgent != "staffhub-cli/1.2" {
		t.Fatalf("expected user agent, got %s", meta.UserAgent)
	}
}
