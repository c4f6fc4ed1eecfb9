package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secondbrain/internal/handler"
	"secondbrain/pkg/access"
	"secondbrain/pkg/logger"
	"secondbrain/pkg/metrics"
	"secondbrain/pkg/trace"
)

// TraceMiddleware 读取或生成 trace id，写回响应头
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := trace.FromHeader(c.Request.Header)
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), id))
		c.Header(trace.HeaderName, id)
		c.Next()
	}
}

// RequestLogger 请求日志 + 延迟指标
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), latency)

		logger.WithTrace(c.Request.Context(), log).Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// AuthMiddleware 校验 bearer token，owner 必须在白名单内
func AuthMiddleware(jwtSecret string, owners access.AllowList, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := access.ExtractToken(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		owner, err := access.ParseToken(token, jwtSecret)
		if err != nil {
			log.Debug("Token rejected", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		if err := owners.CheckOwner(owner, owner); err != nil {
			log.Warn("Owner not allowed", zap.Int64("owner", owner))
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(handler.OwnerKey, owner)
		c.Next()
	}
}

// CronAuth 定时触发端点的共享密钥，Authorization: Bearer <secret> 或 X-Cron-Secret
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Cron-Secret")
		if got == "" {
			got = access.ExtractToken(c.Request)
		}
		got = strings.TrimSpace(got)
		if secret == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid cron secret"})
			c.Abort()
			return
		}
		c.Next()
	}
}
