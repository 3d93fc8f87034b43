package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/fallfest-referrals/internal/auth"
	"github.com/tbourn/fallfest-referrals/internal/domain"
)

func authRouter(v *auth.Verifier, trust bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Authenticate(v, trust))
	r.GET("/whoami", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"ok": ok, "user": id.UserID, "email": id.Email, "name": id.Name})
	})
	r.GET("/private", RequireIdentity(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func whoami(t *testing.T, r *gin.Engine, req *http.Request) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestAuthenticate_BearerToken(t *testing.T) {
	v := auth.NewVerifier("test-secret")
	tok, err := v.Issue(domain.Identity{UserID: "u-1", Email: "ana@example.com", Name: "Ana"}, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	r := authRouter(v, false)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	code, body := whoami(t, r, req)
	if code != http.StatusOK || body["ok"] != true || body["user"] != "u-1" || body["email"] != "ana@example.com" || body["name"] != "Ana" {
		t.Fatalf("code=%d body=%v", code, body)
	}

	// query token for EventSource clients
	req = httptest.NewRequest(http.MethodGet, "/whoami?access_token="+tok, nil)
	if _, body = whoami(t, r, req); body["user"] != "u-1" {
		t.Fatalf("query token not accepted: %v", body)
	}
}

func TestAuthenticate_InvalidTokenIs401(t *testing.T) {
	signer := auth.NewVerifier("other-secret")
	tok, _ := signer.Issue(domain.Identity{UserID: "u-1"}, time.Minute)
	r := authRouter(auth.NewVerifier("test-secret"), true)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set(HeaderUserID, "spoofed")
	code, body := whoami(t, r, req)
	if code != http.StatusUnauthorized || body["code"] != "unauthorized" {
		t.Fatalf("code=%d body=%v", code, body)
	}
}

func TestAuthenticate_TrustedHeaders(t *testing.T) {
	v := auth.NewVerifier("")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(HeaderUserID, " u-9 ")
	req.Header.Set(HeaderUserEmail, "bo@example.com")
	req.Header.Set(HeaderUserName, "Bo")

	if _, body := whoami(t, authRouter(v, true), req); body["user"] != "u-9" || body["name"] != "Bo" {
		t.Fatalf("trusted headers ignored: %v", body)
	}
	if _, body := whoami(t, authRouter(v, false), req); body["ok"] != false {
		t.Fatalf("headers must be ignored when not trusted: %v", body)
	}
}

func TestRequireIdentity(t *testing.T) {
	r := authRouter(auth.NewVerifier(""), true)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d; want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("missing WWW-Authenticate")
	}

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(HeaderUserID, "u-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("authenticated = %d; want 204", w.Code)
	}
}
