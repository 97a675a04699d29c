package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSecurityHeaders_SetsCoreHeaders(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "development"})(okHandler())

	req := httptest.NewRequest("GET", "/dashboard", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	expected := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
		"Cache-Control":          "no-store",
	}
	for header, want := range expected {
		if got := recorder.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	if recorder.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy should be set")
	}
}

func TestSecurityHeaders_NoHSTSInDevelopment(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "development"})(okHandler())

	req := httptest.NewRequest("GET", "/dashboard", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be set outside production")
	}
}

func TestSecurityHeaders_HSTSForForwardedHTTPS(t *testing.T) {
	handler := SecurityHeaders(SecurityHeadersConfig{Env: "production"})(okHandler())

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS should be set for forwarded HTTPS in production")
	}
}

func TestCORS_UnlistedOriginGetsNoHeaders(t *testing.T) {
	cfg := NewCORSConfig([]string{"https://app.example.com"})
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin must not receive CORS headers")
	}
}

func TestCORS_ListedOriginEchoed(t *testing.T) {
	cfg := NewCORSConfig([]string{"https://app.example.com"})
	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if recorder.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials flag should be set for listed origin")
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	cfg := NewCORSConfig([]string{"https://app.example.com"})
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the next handler")
	}))

	req := httptest.NewRequest("OPTIONS", "/risks", nil)
	req.Header.Set("Origin", "https://app.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", recorder.Code)
	}
}
