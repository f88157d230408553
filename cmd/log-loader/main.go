package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"capi-forwarder/internal/ch"
	"capi-forwarder/internal/config"
	ikafka "capi-forwarder/internal/kafka"
	"capi-forwarder/internal/model"
	"capi-forwarder/pkg/batcher"
	"capi-forwarder/pkg/logger"
)

var (
	batchSizeHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "log_loader_batch_size",
		Help:    "Histogram of ClickHouse batch sizes",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000},
	})
	insertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "log_loader_insert_duration_seconds",
		Help:    "Duration of ClickHouse insert operations",
		Buckets: prometheus.DefBuckets,
	})
	insertErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "log_loader_insert_errors_total",
		Help: "Total ClickHouse insert failures",
	})
	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "log_loader_decode_errors_total",
		Help: "Messages that were not valid log entries",
	})
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
	zlog := logger.WithService(baseLogger, "log-loader")
	defer func() { _ = zlog.Sync() }()

	if !cfg.LogShipping() {
		zlog.Fatal("KAFKA_BROKERS and KAFKA_TOPIC_LOGS are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ch.New(ctx, cfg.ClickHouseDSN)
	if err != nil {
		zlog.Fatal("clickhouse", zap.Error(err))
	}
	defer client.Close()
	if err := client.EnsureSchema(ctx); err != nil {
		zlog.Fatal("ensure schema", zap.Error(err))
	}

	reader := ikafka.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicLogs, "log-loader-group")
	defer reader.Close()

	flusher := func(entries []model.LogEntry) error {
		return insertWithRetry(ctx, client, entries)
	}
	b := batcher.New[model.LogEntry](cfg.BatchSize, cfg.BatchInterval, flusher,
		batcher.WithErrorHandler[model.LogEntry](func(err error) {
			zlog.Error("flush log batch", zap.Error(err))
		}))
	defer func() {
		if err := b.Close(); err != nil {
			zlog.Error("final flush", zap.Error(err))
		}
	}()

	go serveMetrics(cfg.LoaderMetricsAddr, zlog)
	go handleSignals(cancel)

	zlog.Info("loading conversion logs", zap.String("topic", cfg.KafkaTopicLogs))
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			zlog.Warn("read log message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		entry, err := ikafka.DecodeEntry(m)
		if err != nil {
			decodeErrors.Inc()
			zlog.Warn("skip message", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}
		if err := b.Add(entry); err != nil {
			zlog.Error("batch add failed", zap.Error(err))
		}
	}
	zlog.Info("log loader shutdown complete")
}

func insertWithRetry(ctx context.Context, client *ch.Client, entries []model.LogEntry) error {
	const maxAttempts = 5
	backoff := 200 * time.Millisecond
	start := time.Now()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		err := client.InsertBatch(insertCtx, entries)
		cancel()
		if err == nil {
			insertDuration.Observe(time.Since(start).Seconds())
			batchSizeHistogram.Observe(float64(len(entries)))
			return nil
		}
		insertErrors.Inc()
		if attempt == maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
	}
	return nil
}

func serveMetrics(addr string, zlog *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("log loader metrics server failed", zap.Error(err))
	}
}

func handleSignals(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()
}
