package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"capi-forwarder/internal/ch"
	"capi-forwarder/internal/config"
	"capi-forwarder/internal/httpx"
	"capi-forwarder/pkg/logger"
)

const dateLayout = "2006-01-02"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	baseLogger, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	zlog := logger.WithService(baseLogger, "query-api")
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ch.New(ctx, cfg.ClickHouseDSN)
	if err != nil {
		zlog.Fatal("clickhouse", zap.Error(err))
	}
	defer client.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpx.NewHTTPMetrics("query_api", nil).Handler())
	router.Use(httpx.RequestLogger(zlog))

	router.GET("/healthz", func(c *gin.Context) {
		pingCtx, pingCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer pingCancel()
		if err := client.Ping(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "clickhouse unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/v1/outcomes/daily", func(c *gin.Context) {
		handleDailyOutcomes(c, client, zlog)
	})

	server := &http.Server{
		Addr:              cfg.QueryAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zlog.Info("starting query api", zap.String("addr", cfg.QueryAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("query api failed", zap.Error(err))
		}
	}()

	waitForSignal()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}

func handleDailyOutcomes(c *gin.Context, client *ch.Client, zlog *zap.Logger) {
	tag := c.Query("tag")
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if tag == "" || fromStr == "" || toStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag, from, and to are required"})
		return
	}
	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
		return
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must not be before from"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	points, err := client.DailyOutcomes(ctx, tag, from, to)
	if err != nil {
		zlog.Error("daily outcomes query", zap.String("tag", tag), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.Header("Cache-Control", "public, max-age=30")
	c.JSON(http.StatusOK, gin.H{
		"tag":    tag,
		"from":   fromStr,
		"to":     toStr,
		"series": toAPISeries(points),
	})
}

func toAPISeries(points []ch.OutcomePoint) []gin.H {
	result := make([]gin.H, 0, len(points))
	for _, p := range points {
		result = append(result, gin.H{
			"date":       p.Date.Format(dateLayout),
			"event_name": p.EventName,
			"responses":  p.Responses,
			"successes":  p.Successes,
			"failures":   p.Failures,
		})
	}
	return result
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
