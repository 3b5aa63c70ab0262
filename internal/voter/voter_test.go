package voter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SlpAus/tinyballot-backend/pkg/token"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(guard *FormGuard) *gin.Engine {
	r := gin.New()
	r.Use(EnsureVoterCookieMiddleware())
	r.GET("/token", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"voter": CurrentVoterID(c), "token": guard.Issue(c)})
	})
	r.POST("/submit", guard.RequireFormToken(), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentVoterID(c))
	})
	return r
}

func TestEnsureVoterCookieIssuesNewID(t *testing.T) {
	r := newRouter(nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/token", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName {
		t.Fatalf("expected a %s cookie, got %v", CookieName, cookies)
	}
	if !IsValidVoterID(cookies[0].Value) {
		t.Fatalf("expected uuid cookie value, got %q", cookies[0].Value)
	}
}

func TestEnsureVoterCookieKeepsValidID(t *testing.T) {
	id, err := NewVoterID()
	if err != nil {
		t.Fatalf("new voter id: %v", err)
	}
	r := newRouter(nil)
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with guard disabled, got %d", w.Code)
	}
	if w.Body.String() != id {
		t.Fatalf("expected voter id %q in context, got %q", id, w.Body.String())
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("expected no new cookie for a valid id")
	}
}

func TestEnsureVoterCookieReplacesMalformedID(t *testing.T) {
	r := newRouter(nil)
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-uuid"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Body.String() == "not-a-uuid" || !IsValidVoterID(w.Body.String()) {
		t.Fatalf("expected malformed id to be replaced, got %q", w.Body.String())
	}
}

func TestRequireFormToken(t *testing.T) {
	signer, err := token.NewSigner("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	guard := NewFormGuard(signer, true)
	r := newRouter(guard)

	id, _ := NewVoterID()
	other, _ := NewVoterID()
	valid, err := signer.Issue(id)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	foreign, _ := signer.Issue(other)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusForbidden},
		{"garbage", "abc", http.StatusForbidden},
		{"other voter", foreign, http.StatusForbidden},
		{"valid", valid, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/submit", nil)
			req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
			if tc.token != "" {
				req.Header.Set(FormTokenHeader, tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
		})
	}
}

func TestDisabledGuardIssuesNothing(t *testing.T) {
	signer, _ := token.NewSigner("s", time.Hour)
	guard := NewFormGuard(signer, false)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if got := guard.Issue(c); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}
