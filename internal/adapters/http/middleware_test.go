package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/parley-chat/parley/internal/domain"
)

type fakeIdentity map[string]string

func (f fakeIdentity) Assert(token string) (string, error) {
	id, ok := f[token]
	if !ok {
		return "", errors.New("invalid token")
	}
	return id, nil
}

type fakeResolver map[string]domain.UserID

func (f fakeResolver) GetUserIDForIdentity(_ context.Context, identity string) (domain.UserID, error) {
	id, ok := f[identity]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return id, nil
}

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := AuthMiddleware(
		fakeIdentity{"tok-alice": "alice@example.com"},
		fakeResolver{"alice@example.com": "u-alice"},
	)
	r.GET("/whoami", auth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": string(CallerID(c))})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	router := authTestRouter()

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer tok-mallory", http.StatusUnauthorized},
		{"valid token", "Bearer tok-alice", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body)
			}
		})
	}
}

func TestAuthMiddlewareRejectsUnknownIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := AuthMiddleware(
		fakeIdentity{"tok-ghost": "ghost@example.com"},
		fakeResolver{},
	)
	r.GET("/whoami", auth, func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer tok-ghost")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
