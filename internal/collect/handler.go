// Package collect serves the inbound event endpoint: one raw event in, one
// conversion post out, with the outcome reported as the response status.
package collect

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"capi-forwarder/internal/auth"
	"capi-forwarder/internal/config"
	"capi-forwarder/internal/cookies"
	"capi-forwarder/internal/dispatch"
	"capi-forwarder/internal/httpx"
	"capi-forwarder/internal/model"
	"capi-forwarder/internal/pipeline"
	"capi-forwarder/internal/util"
)

const maxBodyBytes = 1 << 20

// Dispatcher posts a planned conversion. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request, done dispatch.Completion)
}

// Handler owns the collect endpoint.
type Handler struct {
	tags       config.Tags
	hmacSecret string
	debug      bool
	bots       util.BotFilter
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// Options configures a Handler.
type Options struct {
	Tags       config.Tags
	HMACSecret string
	DebugMode  bool
	BotUAs     []string
	Dispatcher Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		tags:       opts.Tags,
		hmacSecret: opts.HMACSecret,
		debug:      opts.DebugMode,
		bots:       util.NewBotFilter(opts.BotUAs),
		dispatcher: opts.Dispatcher,
		logger:     logger,
		now:        now,
	}
}

// Register mounts the endpoint on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/v1/collect/:tag", h.Collect)
}

// Collect handles one event. Cookie writes are added before the status is sent.
// The conversion post runs on its own goroutine with the request's values but not
// its cancellation, so an optimistic tag answers as soon as success is reported
// while the post finishes in the background.
func (h *Handler) Collect(c *gin.Context) {
	tagID := c.Param("tag")
	tag, err := h.tags.Lookup(tagID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	creds := auth.Credentials{APIKey: tag.APIKey, Secret: tag.HMACSecret}
	if creds.Secret == "" {
		creds.Secret = h.hmacSecret
	}
	if err := creds.Authorize(c.GetHeader(httpx.APIKeyHeader), body, c.GetHeader(httpx.SignatureHeader)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	raw, err := model.DecodeRawEvent(body)
	if err != nil {
		msg := "invalid json"
		if errors.Is(err, model.ErrNotObject) {
			msg = err.Error()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if h.bots.Match(c.GetHeader("User-Agent")) {
		c.JSON(http.StatusAccepted, gin.H{"status": "ignored"})
		return
	}

	host := dispatch.HostState{Debug: h.debug, Preview: c.GetHeader(httpx.PreviewHeader) != ""}
	logging := dispatch.LoggingEnabled(tag.LogType, host)
	traceID := c.GetHeader(httpx.TraceIDHeader)
	if logging && traceID == "" {
		traceID = uuid.NewString()
	}

	plan := pipeline.Build(pipeline.Request{
		Raw:     raw,
		Config:  tag.TagConfig,
		Cookies: cookies.FromRequest(c.Request),
		Referer: c.GetHeader("Referer"),
		Now:     h.now(),
	})
	cookies.Apply(c.Writer, c.Request.Host, plan.CookieEffects)

	outcome := make(chan bool, 1)
	done := dispatch.Completion{
		OnSuccess: func() { outcome <- true },
		OnFailure: func() { outcome <- false },
	}
	go h.dispatcher.Dispatch(context.WithoutCancel(c.Request.Context()), dispatch.Request{
		Tag:       tagID,
		Config:    tag.TagConfig,
		Payload:   plan.Payload,
		EventName: plan.EventName,
		TraceID:   traceID,
		Logging:   logging,
	}, done)

	select {
	case ok := <-outcome:
		if ok {
			c.JSON(http.StatusOK, gin.H{"status": "sent", "event_name": plan.EventName})
			return
		}
		h.logger.Info("conversion rejected", zap.String("tag", tagID), zap.String("event_name", plan.EventName), zap.String("trace_id", traceID))
		c.JSON(http.StatusBadGateway, gin.H{"status": "failed", "event_name": plan.EventName})
	case <-c.Request.Context().Done():
		h.logger.Debug("caller went away before outcome", zap.String("tag", tagID), zap.Error(c.Request.Context().Err()))
	}
}
