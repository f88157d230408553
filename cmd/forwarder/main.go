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

	"capi-forwarder/internal/collect"
	"capi-forwarder/internal/config"
	"capi-forwarder/internal/dispatch"
	"capi-forwarder/internal/httpx"
	ikafka "capi-forwarder/internal/kafka"
	"capi-forwarder/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	baseLogger, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	zlog := logger.WithService(baseLogger, "forwarder")
	defer func() { _ = zlog.Sync() }()

	tags, err := config.LoadTags(cfg.TagsConfigPath)
	if err != nil {
		zlog.Fatal("load tags", zap.String("path", cfg.TagsConfigPath), zap.Error(err))
	}

	sinks := []dispatch.LogSink{dispatch.NewConsoleSink(zlog)}
	if cfg.LogShipping() {
		writer := ikafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicLogs)
		defer writer.Close()
		shipper := dispatch.NewAsyncSink(ikafka.NewEntrySink(writer), 4096, zlog)
		defer shipper.Close()
		sinks = append(sinks, shipper)
		zlog.Info("shipping conversion logs", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopicLogs))
	}
	dispatcher := dispatch.New(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.EndpointBaseURL, zlog, sinks...)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpx.NewHTTPMetrics("forwarder", nil).Handler())
	router.Use(httpx.RequestLogger(zlog))
	router.Use(httpx.CORSMiddleware(cfg.CORSAllowOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "tags": len(tags)})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	collect.NewHandler(collect.Options{
		Tags:       tags,
		HMACSecret: cfg.HMACSecret,
		DebugMode:  cfg.DebugMode,
		BotUAs:     cfg.BotUserAgents,
		Dispatcher: dispatcher,
		Logger:     zlog,
	}).Register(router)

	server := &http.Server{
		Addr:              cfg.ForwarderAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zlog.Info("starting forwarder", zap.String("addr", cfg.ForwarderAddr), zap.Int("tags", len(tags)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("forwarder server failed", zap.Error(err))
		}
	}()

	graceful(server, zlog)
}

func graceful(server *http.Server, zlog *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	zlog.Info("shutting down forwarder")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
}
