package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"secondbrain/internal/handler"
	"secondbrain/pkg/access"
	"secondbrain/pkg/otel"
)

// Pinger 存储就绪检查，pgxpool.Pool 满足；内存存储时为 nil
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness 消息队列就绪检查，mq.Consumer 满足
type Readiness interface {
	IsConnected() bool
}

type Deps struct {
	Capture  *handler.CaptureHandler
	Settings *handler.SettingsHandler
	Cron     *handler.CronHandler

	JWTSecret  string
	CronSecret string
	Owners     access.AllowList

	DB       Pinger
	Consumer Readiness
	Logger   *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogger(d.Logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}

		if d.Consumer != nil && !d.Consumer.IsConnected() {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if d.Cron != nil {
		r.POST("/cron/:kind", CronAuth(d.CronSecret), d.Cron.Trigger)
	}

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(d.JWTSecret, d.Owners, d.Logger))
	{
		auth.POST("/capture", d.Capture.Capture)
		auth.POST("/callback", d.Capture.Callback)
		auth.POST("/undo", d.Capture.Undo)
		auth.GET("/review", d.Capture.NextReview)
		auth.GET("/settings", d.Settings.List)
		auth.PUT("/settings/:key", d.Settings.Update)
	}

	return r
}
