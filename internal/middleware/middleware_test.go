package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lanparty/internal/config"
	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/utils"
)

const testSecret = "test-secret"

func bearer(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, userID, role, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return "Bearer " + tok.Token
}

func TestAdminChain(t *testing.T) {
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		return c.String(http.StatusOK, currentUserID(c))
	}, JWTAuth(testSecret), RequireRole(model.RoleAdmin))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"wrong scheme", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		{"guest role", bearer(t, 3, model.RoleGuest), http.StatusForbidden},
		{"admin", bearer(t, 7, model.RoleAdmin), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusOK && rec.Body.String() != "7" {
				t.Fatalf("user id = %q, want 7", rec.Body.String())
			}
		})
	}
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	tok, err := utils.NewAccessToken("other", 1, model.RoleAdmin, 5)
	if err != nil {
		t.Fatal(err)
	}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, JWTAuth(testSecret))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestDisabledCachePassesThrough(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: false}, nil, logrus.New())
	if rc != nil {
		t.Fatal("disabled cache should be nil")
	}
	rc.Invalidate(context.Background(), 1)

	calls := 0
	e := echo.New()
	e.GET("/v1/events/:id", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "ok")
	}, rc.Middleware())
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/1", nil))
		if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
			t.Fatalf("status = %d x-cache = %q", rec.Code, rec.Header().Get("X-Cache"))
		}
	}
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
}

func TestCachePayloadRoundTrip(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	bs, err := encodePayload(http.StatusOK, h, []byte(`{"events":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	status, header, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || header.Get("Content-Type") != "application/json" || !bytes.Equal(body, []byte(`{"events":[]}`)) {
		t.Fatalf("decoded %d %v %q %v", status, header, body, ok)
	}
	if _, _, _, ok := decodePayload([]byte("short")); ok {
		t.Fatal("truncated payload accepted")
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/consumption", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/consumption")
	c.Set("user_id", float64(9))

	cases := map[string]string{
		"ip":       "rl:ip:10.0.0.5",
		"user":     "rl:user:9",
		"ip_route": "rl:ip:10.0.0.5:route:POST /v1/consumption",
		"":         "rl:ip:10.0.0.5:user:9:route:POST /v1/consumption",
	}
	for strategy, want := range cases {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
		if got != want {
			t.Errorf("strategy %q: key = %q, want %q", strategy, got, want)
		}
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("no request id assigned")
	}

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q, want abc-123", got)
	}
}

func TestRequestCost(t *testing.T) {
	cfg := config.RateLimitConfig{WriteCost: 3}
	for method, want := range map[string]int{
		http.MethodGet:    1,
		http.MethodPost:   3,
		http.MethodDelete: 3,
		http.MethodPut:    3,
	} {
		if got := requestCost(cfg, method); got != want {
			t.Errorf("requestCost(%s) = %d, want %d", method, got, want)
		}
	}
}
