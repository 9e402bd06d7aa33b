package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "__request_id"
)

type requestIDKey struct{}

// RequestIDFromContext 读取中间件写入的请求 ID。
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}

// RequestID 为每个请求生成 ID，沿用上游传入的合法值并回写到响应头。
func (a *API) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		c.Set(requestIDContextKey, reqID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, reqID))
		c.Header(requestIDHeader, reqID)

		if hub := sentry.GetHubFromContext(c.Request.Context()); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}
		c.Next()
	}
}

// Sentry 为每个请求克隆 hub，使错误上报带上路由与请求 ID。
func (a *API) Sentry(hub *sentry.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hub == nil {
			c.Next()
			return
		}
		local := hub.Clone()
		scope := local.Scope()
		scope.SetTag("http.method", c.Request.Method)
		scope.SetRequest(c.Request)
		c.Request = c.Request.WithContext(sentry.SetHubOnContext(c.Request.Context(), local))
		defer local.Flush(2 * time.Second)

		c.Next()

		if route := c.FullPath(); route != "" {
			scope.SetTag("http.route", route)
		}
	}
}

// RequestLogger 记录每个请求的方法、路由、状态码与耗时，5xx 以 error 级别输出。
func (a *API) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
			"client_ip":   c.ClientIP(),
		}
		if reqID := c.GetString(requestIDContextKey); reqID != "" {
			fields["request_id"] = reqID
		}
		if tenant := currentTenant(c); tenant != nil {
			fields["tenant"] = tenant.Slug
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := a.logger.WithFields(fields)
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}
	}
}

// Recovery 捕获 panic，记录日志并上报 Sentry，返回 500 JSON。
func (a *API) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", rec)
			}
			a.logger.WithError(err).WithFields(logrus.Fields{
				"path":       c.Request.URL.Path,
				"request_id": c.GetString(requestIDContextKey),
			}).Error("panic recovered")

			if hub := sentry.GetHubFromContext(c.Request.Context()); hub != nil {
				hub.RecoverWithContext(c.Request.Context(), rec)
			}
			if !c.Writer.Written() {
				respondError(c, http.StatusInternalServerError, "internal server error")
			}
			c.Abort()
		}()
		c.Next()
	}
}
