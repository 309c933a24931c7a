package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, typ string) string {
	t.Helper()
	claims := Claims{
		UserID:   42,
		Username: "amy",
		Avatar:   "a.png",
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func newAuthRouter() (*gin.Engine, map[string]any) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	captured := map[string]any{}
	r.GET("/whoami", AuthMiddleware(testSecret), func(c *gin.Context) {
		captured["userId"], _ = c.Get("userId")
		captured["username"], _ = c.Get("username")
		c.JSON(200, gin.H{"ok": true})
	})
	return r, captured
}

func TestAuth_BearerHeader(t *testing.T) {
	r, captured := newAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "access"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if captured["userId"] != uint64(42) {
		t.Fatalf("userId = %v, want 42", captured["userId"])
	}
	if captured["username"] != "amy" {
		t.Fatalf("username = %v, want amy", captured["username"])
	}
}

// WebSocket 握手没法带 Header，token 走 query 参数。
func TestAuth_QueryToken(t *testing.T) {
	r, captured := newAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+signToken(t, "access"), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if captured["userId"] != uint64(42) {
		t.Fatalf("userId = %v, want 42", captured["userId"])
	}
}

func TestAuth_MissingToken(t *testing.T) {
	r, _ := newAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	r, _ := newAuthRouter()

	claims := Claims{UserID: 1, Type: "access"}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+s)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

// refresh token 不能用来连协同服务。
func TestAuth_RefreshTokenRejected(t *testing.T) {
	r, _ := newAuthRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "refresh"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	r, _ := newAuthRouter()

	claims := Claims{
		UserID: 1,
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+s)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
