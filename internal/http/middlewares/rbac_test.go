package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stagehubhq/stagehub/internal/auth"
	"github.com/stagehubhq/stagehub/internal/http/middlewares"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f *fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func mountProtected(verifier middlewares.TokenVerifier, roles ...string) *gin.Engine {
	mw := middlewares.NewAuthMiddleware(verifier)

	r := gin.New()

	chain := []gin.HandlerFunc{mw.RequireAuth()}
	if len(roles) > 0 {
		chain = append(chain, mw.RequireAnyRole(roles...))
	}
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusOK) })

	r.GET("/protected", chain...)

	return r
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	r := mountProtected(&fakeVerifier{claims: &auth.Claims{UserID: "u1"}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	r := mountProtected(&fakeVerifier{err: http.ErrNoCookie})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
}

func TestRequireAuthPassesClaimsThrough(t *testing.T) {
	mw := middlewares.NewAuthMiddleware(&fakeVerifier{
		claims: &auth.Claims{UserID: "u1", Email: "a@b.c", Role: "creator"},
	})

	r := gin.New()
	r.GET("/protected", mw.RequireAuth(), func(c *gin.Context) {
		userID, ok := middlewares.UserIDFromContext(c)
		if !ok || userID != "u1" {
			c.Status(http.StatusInternalServerError)
			return
		}
		role, ok := middlewares.RoleFromContext(c)
		if !ok || role != "creator" {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
}

func TestRequireAnyRole(t *testing.T) {
	tests := []struct {
		name           string
		role           string
		wantStatusCode int
	}{
		{name: "creator_allowed", role: "creator", wantStatusCode: http.StatusOK},
		{name: "organization_allowed", role: "organization", wantStatusCode: http.StatusOK},
		{name: "plain_user_forbidden", role: "user", wantStatusCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			r := mountProtected(&fakeVerifier{
				claims: &auth.Claims{UserID: "u1", Role: tt.role},
			}, "creator", "organization")

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer good-token")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("role %q: got %d, want %d", tt.role, w.Code, tt.wantStatusCode)
			}
		})
	}
}
