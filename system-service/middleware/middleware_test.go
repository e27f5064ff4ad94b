package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice-backend/shared/config"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/services"
	"backoffice-backend/shared/utils/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.SetConfig(&config.Config{JWT: config.JWTOptions{Secret: "middleware-test-secret", ExpireHours: 1}})
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := utils.GenerateJWT(42, "0888000001", "alice", 3, false)
	require.NoError(t, err)
	return "Bearer " + token
}

type fakeAuditWriter struct {
	mu      sync.Mutex
	records []services.AuditRecord
}

func (f *fakeAuditWriter) CreateFromCache(_ context.Context, r services.AuditRecord) (*models.AccountLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return &models.AccountLog{}, nil
}

func (f *fakeAuditWriter) snapshot() []services.AuditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.AuditRecord(nil), f.records...)
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(), func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64(ContextUserID), "username": claims.Username})
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer not-a-token", status: http.StatusUnauthorized},
		{name: "valid header", header: bearer(t), status: http.StatusOK},
		{name: "query token", query: strings.TrimPrefix(bearer(t), "Bearer "), status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/me"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":42,"username":"alice"}`, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"error":"unauthorized"`)
			}
		})
	}
}

func TestRequestLogger_RequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(requestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(requestIDHeader))
	assert.Equal(t, "req-1", w.Body.String())
}

func TestRateLimiter_BlocksAndRecovers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(config.RateLimitOptions{MaxRequests: 2, TimeWindow: time.Minute, BlockDuration: 5 * time.Minute})
	rl.now = func() time.Time { return now }

	assert.True(t, rl.isAllowed("k"))
	assert.True(t, rl.isAllowed("k"))
	assert.False(t, rl.isAllowed("k"))
	assert.True(t, rl.isAllowed("other"))

	now = now.Add(2 * time.Minute)
	assert.False(t, rl.isAllowed("k"), "still blocked")

	now = now.Add(4 * time.Minute)
	assert.True(t, rl.isAllowed("k"))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 2, rl.evict(time.Hour))
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitOptions{MaxRequests: 1, TimeWindow: time.Minute, BlockDuration: time.Minute})
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")
}

func TestAuditTrail(t *testing.T) {
	writer := &fakeAuditWriter{}
	r := gin.New()
	r.Use(RequestLogger())
	api := r.Group("/api/v1", AuthMiddleware(), AuditTrail(writer))
	api.GET("/categories", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.POST("/users", func(c *gin.Context) {
		var in map[string]any
		require.NoError(t, c.ShouldBindJSON(&in))
		assert.Equal(t, "secret123", in["password"], "handler still sees the body")
		c.Status(http.StatusCreated)
	})
	api.DELETE("/categories/:id", func(c *gin.Context) {
		c.Set(ContextErrorMessage, "category has children")
		c.Status(http.StatusConflict)
	})

	do := func(method, target, body string) {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Authorization", bearer(t))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(clientIDHeader, "console")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
	}

	do(http.MethodGet, "/api/v1/categories", "")
	do(http.MethodPost, "/api/v1/users", `{"username":"bob","password":"secret123"}`)
	do(http.MethodDelete, "/api/v1/categories/9", "")

	require.Eventually(t, func() bool { return len(writer.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)

	byType := map[string]services.AuditRecord{}
	for _, rec := range writer.snapshot() {
		byType[rec.Biztype] = rec
	}

	created, ok := byType["post:users"]
	require.True(t, ok)
	assert.Equal(t, "alice", created.Username)
	require.NotNil(t, created.UID)
	assert.Equal(t, int64(42), *created.UID)
	assert.Equal(t, "console", created.ClientID)
	assert.Equal(t, map[string]any{"username": "bob", "password": redacted}, created.Detail["body"])
	assert.NotEmpty(t, created.Detail["request_id"])
	assert.Nil(t, created.Error)

	deleted, ok := byType["delete:categories/:id"]
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, deleted.Error["status"])
	assert.Equal(t, "category has children", deleted.Error["message"])
	assert.Equal(t, "DELETE /api/v1/categories/9", deleted.BizDetail)
}

func TestAuditTrail_SkipsAnonymous(t *testing.T) {
	writer := &fakeAuditWriter{}
	r := gin.New()
	r.POST("/api/v1/auth/login", AuditTrail(writer), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, writer.snapshot())
}
