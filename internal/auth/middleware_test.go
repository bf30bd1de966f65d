package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newRouter(cfg Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", JWTMiddleware(cfg), func(c *gin.Context) {
		subject, _ := GetUserID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"subject": subject})
	})
	return router
}

func signToken(t *testing.T, claims jwt.RegisteredClaims, secret string) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func call(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	router := newRouter(Config{Secret: testSecret})
	resp := call(router, "Bearer "+signToken(t, jwt.RegisteredClaims{Subject: "user-123"}, testSecret))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["subject"] != "user-123" {
		t.Fatalf("unexpected subject %q", body["subject"])
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	cases := map[string]struct {
		cfg    Config
		header func(t *testing.T) string
	}{
		"missing header": {Config{Secret: testSecret}, func(*testing.T) string { return "" }},
		"wrong scheme":   {Config{Secret: testSecret}, func(*testing.T) string { return "Basic abc" }},
		"wrong secret": {Config{Secret: testSecret}, func(t *testing.T) string {
			return "Bearer " + signToken(t, jwt.RegisteredClaims{Subject: "u"}, "other")
		}},
		"expired": {Config{Secret: testSecret}, func(t *testing.T) string {
			return "Bearer " + signToken(t, jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}, testSecret)
		}},
		"no subject": {Config{Secret: testSecret}, func(t *testing.T) string {
			return "Bearer " + signToken(t, jwt.RegisteredClaims{}, testSecret)
		}},
		"audience": {Config{Secret: testSecret, Audience: "flower-app"}, func(t *testing.T) string {
			return "Bearer " + signToken(t, jwt.RegisteredClaims{Subject: "u", Audience: jwt.ClaimStrings{"other"}}, testSecret)
		}},
		"no secret": {Config{}, func(t *testing.T) string {
			return "Bearer " + signToken(t, jwt.RegisteredClaims{Subject: "u"}, testSecret)
		}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := call(newRouter(tc.cfg), tc.header(t))
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.Code)
			}
		})
	}
}

func TestJWTMiddlewareAllowsAnonymous(t *testing.T) {
	resp := call(newRouter(Config{AllowAnonymous: true}), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["subject"] != AnonymousUser {
		t.Fatalf("unexpected subject %q", body["subject"])
	}
}
