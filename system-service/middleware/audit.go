package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/logger"
	"backoffice-backend/shared/services"
)

const (
	maxAuditBody   = 8 << 10
	clientIDHeader = "X-Client-Id"
	redacted       = "******"
)

// AuditWriter persists one audit record.
type AuditWriter interface {
	CreateFromCache(ctx context.Context, r services.AuditRecord) (*models.AccountLog, error)
}

// AuditTrail records every mutating request of an authenticated user. The
// row is written in the background after the response has been produced.
func AuditTrail(w AuditWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isMutating(c.Request.Method) {
			c.Next()
			return
		}

		body := captureBody(c)
		start := time.Now()
		c.Next()

		claims, ok := CurrentClaims(c)
		if !ok {
			return
		}

		status := c.Writer.Status()
		uid := claims.UserID
		record := services.AuditRecord{
			Biztype:   bizType(c),
			BizDetail: c.Request.Method + " " + c.Request.URL.Path,
			Username:  claims.Username,
			UID:       &uid,
			ClientID:  c.GetHeader(clientIDHeader),
			IP:        c.ClientIP(),
			Detail: map[string]any{
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"status":     status,
				"request_id": c.GetString(ContextRequestID),
				"latency_ms": time.Since(start).Milliseconds(),
			},
		}
		if body != nil {
			record.Detail["body"] = body
		}
		if status >= http.StatusBadRequest {
			record.Error = map[string]any{"status": status}
			if msg := c.GetString(ContextErrorMessage); msg != "" {
				record.Error["message"] = msg
			}
		}

		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			if _, err := w.CreateFromCache(ctx, record); err != nil {
				logger.FromContext(ctx).WithError(err).WithField("biztype", record.Biztype).Warn("audit log failed")
			}
		}()
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// bizType turns "POST /api/v1/categories/:id/move-up" into
// "post:categories/:id/move-up".
func bizType(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	route = strings.TrimPrefix(route, "/api/v1/")
	return strings.ToLower(c.Request.Method) + ":" + route
}

// captureBody reads a JSON request body for the audit detail and puts it
// back for the handler.
func captureBody(c *gin.Context) any {
	if c.Request.Body == nil || !strings.HasPrefix(c.ContentType(), "application/json") {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody+1))
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), c.Request.Body))
	if len(raw) == 0 || len(raw) > maxAuditBody {
		return nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return redact(v)
}

func redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if strings.Contains(strings.ToLower(k), "password") {
				t[k] = redacted
				continue
			}
			t[k] = redact(val)
		}
	case []any:
		for i := range t {
			t[i] = redact(t[i])
		}
	}
	return v
}
