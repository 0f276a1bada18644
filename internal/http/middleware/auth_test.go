// README: Tests for bearer auth, request id, recovery and metrics middleware.
package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dropspot/internal/auth"
	"dropspot/internal/http/middleware"
)

// stubVerifier is a test double for auth.TokenVerifier.
type stubVerifier struct {
	principal *auth.Principal
	err       error
	seen      string
}

func (s *stubVerifier) Verify(_ context.Context, token string) (*auth.Principal, error) {
	s.seen = token
	return s.principal, s.err
}

func newTestRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/test", func(c *gin.Context) {
		p := middleware.CallerPrincipal(c)
		if p == nil {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "username": p.Username})
	})
	return r
}

func get(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(middleware.Auth(&stubVerifier{principal: &auth.Principal{UserID: 1}}))
	w := get(r, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Errorf("expected WWW-Authenticate challenge")
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(middleware.Auth(&stubVerifier{principal: &auth.Principal{UserID: 1}}))
	for _, h := range []string{"Token sometoken", "Bearer", "Bearer   "} {
		if w := get(r, h); w.Code != http.StatusUnauthorized {
			t.Errorf("%q: expected 401, got %d", h, w.Code)
		}
	}
}

func TestAuth_VerifierErrors(t *testing.T) {
	cases := map[string]error{
		"invalid token": fmt.Errorf("%w: bad signature", auth.ErrUnauthenticated),
		"token expired": auth.ErrTokenExpired,
	}
	for want, err := range cases {
		r := newTestRouter(middleware.Auth(&stubVerifier{err: err}))
		w := get(r, "Bearer sometoken")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("expected %q in body, got %s", want, w.Body.String())
		}
	}
}

func TestAuth_ValidToken_PrincipalPopulated(t *testing.T) {
	v := &stubVerifier{principal: &auth.Principal{UserID: 42, Username: "ayse"}}
	r := newTestRouter(middleware.Auth(v))
	w := get(r, "bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if v.seen != "validtoken" {
		t.Errorf("expected token to reach verifier, got %q", v.seen)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"user_id":42`) || !strings.Contains(body, "ayse") {
		t.Errorf("expected principal in body, got %s", body)
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newTestRouter(middleware.OptionalAuth(&stubVerifier{principal: &auth.Principal{UserID: 7}}))
	if w := get(r, ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "anonymous") {
		t.Errorf("expected anonymous 200, got %d %s", w.Code, w.Body.String())
	}
	if w := get(r, "Bearer ok"); !strings.Contains(w.Body.String(), `"user_id":7`) {
		t.Errorf("expected principal, got %s", w.Body.String())
	}

	r = newTestRouter(middleware.OptionalAuth(&stubVerifier{err: errors.New("nope")}))
	if w := get(r, "Bearer broken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a bad token, got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := newTestRouter(middleware.RequestID())

	w := get(r, "")
	if len(w.Header().Get(middleware.RequestIDHeader)) != 36 {
		t.Errorf("expected generated uuid, got %q", w.Header().Get(middleware.RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(middleware.RequestIDHeader); got != "req-123" {
		t.Errorf("expected propagated id, got %q", got)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

type routeRecorder struct {
	routes []string
}

func (*routeRecorder) ClaimAttempt(string) {}
func (*routeRecorder) StockReleased(string, int) {}
func (*routeRecorder) WaitlistJoin(bool) {}
func (*routeRecorder) AssistantRequest(string) {}
func (r *routeRecorder) HTTPRequest(method, route string, status int, _ time.Duration) {
	r.routes = append(r.routes, fmt.Sprintf("%s %s %d", method, route, status))
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &routeRecorder{}
	r := gin.New()
	r.Use(middleware.Metrics(rec))
	r.GET("/api/drops/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/drops/17", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	want := []string{"GET /api/drops/:id 204", "GET unmatched 404"}
	if len(rec.routes) != 2 || rec.routes[0] != want[0] || rec.routes[1] != want[1] {
		t.Errorf("expected %v, got %v", want, rec.routes)
	}
}
