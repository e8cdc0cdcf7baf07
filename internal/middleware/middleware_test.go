package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/akolanti/uniassist/internal/adapter/utils"
	"github.com/akolanti/uniassist/pkg/logger_i"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Seen-Trace", utils.TraceID(r.Context()))
	w.WriteHeader(http.StatusTeapot)
}

func withFreshLimiter(t *testing.T, r rate.Limit, burst int) {
	t.Helper()
	prev := limiterInstance
	limiterInstance = NewIPRateLimiter(r, burst)
	t.Cleanup(func() { limiterInstance = prev })
}

func withToken(t *testing.T, token string) {
	t.Helper()
	SetAuthToken(token)
	t.Cleanup(func() { SetAuthToken("") })
}

func TestWrap_Auth(t *testing.T) {
	withToken(t, "segredo")
	withFreshLimiter(t, rate.Inf, 1)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid bearer", "Bearer segredo", http.StatusTeapot},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic segredo", http.StatusUnauthorized},
		{"wrong token", "Bearer outro", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Wrap(okHandler)(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIsValidBearerToken_NoTokenConfigured(t *testing.T) {
	SetAuthToken("")
	assert.False(t, IsValidBearerToken("Bearer ", logger_i.NewLogger("test")))
}

func TestWrap_TraceId(t *testing.T) {
	withToken(t, "segredo")
	withFreshLimiter(t, rate.Inf, 1)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer segredo")
	req.Header.Set(TraceHeader, "trace-123")
	rec := httptest.NewRecorder()
	Wrap(okHandler)(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Seen-Trace"))
	assert.Equal(t, "trace-123", rec.Header().Get(TraceHeader))

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer segredo")
	rec = httptest.NewRecorder()
	Wrap(okHandler)(rec, req)
	generated := rec.Header().Get(TraceHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, rec.Header().Get("X-Seen-Trace"))
}

func TestWrap_RateLimit(t *testing.T) {
	withToken(t, "segredo")
	withFreshLimiter(t, rate.Every(time.Hour), 2)

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		req.Header.Set("Authorization", "Bearer segredo")
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		Wrap(okHandler)(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusTeapot, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTeapot, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1002"))
	// buckets are per address
	assert.Equal(t, http.StatusTeapot, call("10.0.0.2:1000"))
}

func TestIPRateLimiter_SameLimiterPerIP(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	assert.Same(t, l.GetLimiter("a"), l.GetLimiter("a"))
	assert.NotSame(t, l.GetLimiter("a"), l.GetLimiter("b"))
}
