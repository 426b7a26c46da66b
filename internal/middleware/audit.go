package middleware

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/charmverse/governance/internal/services"
	"github.com/gin-gonic/gin"
)

const maxAuditBody = 2000

var sensitiveField = regexp.MustCompile(`(?i)("(?:password|old_password|new_password|secret|token|refresh_token|access_token)"\s*:\s*)"[^"]*"`)

// AuditLog records write requests (POST/PUT/DELETE) to the system log.
func AuditLog(logs *services.SystemLogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
			body = maskSensitiveFields(string(raw))
			if len(body) > maxAuditBody {
				body = body[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)
		level := "info"
		if status >= http.StatusBadRequest {
			level = "warning"
		}

		entry := &services.AuditEntry{
			Level:     level,
			Module:    module,
			Action:    action,
			Message:   formatAuditMessage(GetUsername(c), method, c.Request.URL.Path, status),
			UserID:    GetUserID(c),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   body,
			},
		}
		if strings.HasPrefix(c.FullPath(), "/api/spaces/:id") {
			entry.SpaceID = c.Param("id")
		}
		logs.Record(c.Request.Context(), entry)
	}
}

// parseRouteInfo derives module and action from a route pattern,
// e.g. "/api/spaces/:id/proposals" + POST gives ("proposals", "create").
func parseRouteInfo(fullPath, method string) (module, action string) {
	module = "unknown"
	var segments []string
	for _, s := range strings.Split(strings.TrimPrefix(fullPath, "/api/"), "/") {
		if s != "" && !strings.HasPrefix(s, ":") {
			segments = append(segments, s)
		}
	}
	if len(segments) > 0 {
		module = segments[len(segments)-1]
		if len(segments) > 1 && (module == "result" || module == "cast" || module == "cancel" || module == "test" || module == "admin") {
			module = segments[len(segments)-2]
		}
	}

	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	if len(segments) == 2 && segments[0] == "auth" {
		return "auth", segments[1]
	}
	if len(segments) > 1 {
		switch last := segments[len(segments)-1]; last {
		case "result", "cast", "cancel", "test":
			action = last
		}
	}
	return module, action
}

func formatAuditMessage(username, method, path string, status int) string {
	if username == "" {
		username = "anonymous"
	}
	outcome := "ok"
	if status < 200 || status >= 300 {
		outcome = "failed"
	}
	return "[Audit] " + username + " " + method + " " + path + ": " + outcome
}

// maskSensitiveFields replaces credential values in a JSON body
func maskSensitiveFields(body string) string {
	return sensitiveField.ReplaceAllString(body, `$1"***"`)
}
