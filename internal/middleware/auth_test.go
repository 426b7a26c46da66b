package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmverse/governance/internal/utils"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func authRouter() *gin.Engine {
	router := gin.New()
	protected := router.Group("/api", AuthRequired())
	handler := func(c *gin.Context) {
		c.JSON(200, gin.H{
			"user_id":  GetUserID(c),
			"username": GetUsername(c),
			"role":     GetRole(c),
		})
	}
	protected.GET("/protected", handler)
	protected.GET("/events", handler)
	return router
}

func TestAuthRequired_Rejects(t *testing.T) {
	router := authRouter()

	testCases := []struct {
		name   string
		path   string
		header string
	}{
		{"no header", "/api/protected", ""},
		{"no scheme", "/api/protected", "InvalidToken"},
		{"basic scheme", "/api/protected", "Basic token123"},
		{"empty bearer", "/api/protected", "Bearer"},
		{"garbage token", "/api/protected", "Bearer invalid.jwt.token"},
		{"query token outside events", "/api/protected?token=abc", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
			}
		})
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	token, err := utils.GenerateToken("0f8fad5b-d9cb-469f-a165-70867728950e", "testuser", "admin", 24)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	router := authRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["user_id"] != "0f8fad5b-d9cb-469f-a165-70867728950e" || body["username"] != "testuser" || body["role"] != "admin" {
		t.Errorf("unexpected identity %v", body)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/events?token="+token, nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("event stream query token: expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestAdminRequired(t *testing.T) {
	testCases := []struct {
		role     string
		expected int
	}{
		{"", http.StatusForbidden},
		{"user", http.StatusForbidden},
		{"admin", http.StatusOK},
	}

	for _, tc := range testCases {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			if tc.role != "" {
				c.Set(ContextRole, tc.role)
			}
			c.Next()
		})
		router.Use(AdminRequired())
		router.GET("/admin", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/admin", nil)
		router.ServeHTTP(w, req)

		if w.Code != tc.expected {
			t.Errorf("role %q: expected status %d, got %d", tc.role, tc.expected, w.Code)
		}
	}
}

func TestContextGetters(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetUserID(c) != "" || GetUsername(c) != "" || GetRole(c) != "" {
		t.Error("expected empty values for an unauthenticated context")
	}

	c.Set(ContextUserID, "u-1")
	c.Set(ContextUsername, "testuser")
	c.Set(ContextRole, "user")
	if id := GetUserID(c); id != "u-1" {
		t.Errorf("GetUserID() = %q, expected %q", id, "u-1")
	}
	if name := GetUsername(c); name != "testuser" {
		t.Errorf("GetUsername() = %q, expected %q", name, "testuser")
	}
	if role := GetRole(c); role != "user" {
		t.Errorf("GetRole() = %q, expected %q", role, "user")
	}
}
