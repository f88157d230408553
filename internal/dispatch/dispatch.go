// Package dispatch posts an assembled payload to the conversions API and reports
// the outcome through exactly one completion callback.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"capi-forwarder/internal/model"
	"capi-forwarder/internal/util"
)

const (
	// DefaultBaseURL is the production conversions API host.
	DefaultBaseURL = "https://ads-api.reddit.com"
	// VendorName labels log entries.
	VendorName = "Reddit"

	apiVersion      = "2.0"
	maxResponseBody = 1 << 20
)

// Completion is the caller's success/failure pair. Dispatch invokes exactly one of
// them, exactly once.
type Completion struct {
	OnSuccess func()
	OnFailure func()
}

// Request is one conversion post.
type Request struct {
	Tag       string
	Config    model.TagConfig
	Payload   model.Payload
	EventName string
	TraceID   string
	Logging   bool
}

// Dispatcher sends conversion payloads.
type Dispatcher struct {
	client  *http.Client
	baseURL string
	sinks   []LogSink
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a Dispatcher. An empty baseURL selects DefaultBaseURL.
func New(client *http.Client, baseURL string, logger *zap.Logger, sinks ...LogSink) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		sinks:   sinks,
		logger:  logger,
		now:     time.Now,
	}
}

// EndpointURL returns the events endpoint for an account.
func EndpointURL(baseURL, accountID string) string {
	return strings.TrimSuffix(baseURL, "/") + "/api/v" + apiVersion + "/conversions/events/" + util.EncodeURIComponent(accountID)
}

// Dispatch serializes and posts req.Payload. In optimistic mode success is reported
// first, ahead of log emission and the post, and the response does not trigger a
// callback. Otherwise a status in [200,400) is a success and anything else,
// including transport errors, a failure. Dispatch blocks until the post completes;
// sinks that may block belong behind an AsyncSink.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, done Completion) {
	done = once(done)
	optimistic := req.Config.UseOptimisticScenario
	endpoint := EndpointURL(d.baseURL, req.Config.AccountID)

	body, err := json.Marshal(req.Payload)
	if err != nil {
		d.logger.Error("marshal conversion payload", zap.String("tag", req.Tag), zap.Error(err))
		requestsTotal.WithLabelValues(req.Tag, outcomeError).Inc()
		if optimistic {
			done.OnSuccess()
		} else {
			done.OnFailure()
		}
		return
	}

	if optimistic {
		done.OnSuccess()
	}

	if req.Logging {
		d.emit(ctx, model.LogEntry{
			Name:          VendorName,
			Type:          model.LogTypeRequest,
			TraceID:       req.TraceID,
			Tag:           req.Tag,
			EventName:     req.EventName,
			RequestMethod: http.MethodPost,
			RequestURL:    endpoint,
			RequestBody:   body,
			Timestamp:     d.now(),
		})
	}

	start := time.Now()
	status, headers, respBody, err := d.post(ctx, endpoint, req.Config.AccessToken, body)
	requestDuration.WithLabelValues(req.Tag).Observe(time.Since(start).Seconds())
	if err != nil {
		d.logger.Warn("post conversion", zap.String("tag", req.Tag), zap.String("trace_id", req.TraceID), zap.Error(err))
	}

	if req.Logging {
		d.emit(ctx, model.LogEntry{
			Name:               VendorName,
			Type:               model.LogTypeResponse,
			TraceID:            req.TraceID,
			Tag:                req.Tag,
			EventName:          req.EventName,
			ResponseStatusCode: status,
			ResponseHeaders:    headers,
			ResponseBody:       respBody,
			Timestamp:          d.now(),
		})
	}

	success := err == nil && status >= 200 && status < 400
	switch {
	case err != nil:
		requestsTotal.WithLabelValues(req.Tag, outcomeError).Inc()
	case success:
		requestsTotal.WithLabelValues(req.Tag, outcomeSuccess).Inc()
	default:
		requestsTotal.WithLabelValues(req.Tag, outcomeFailure).Inc()
	}

	if optimistic {
		return
	}
	if success {
		done.OnSuccess()
	} else {
		done.OnFailure()
	}
}

func (d *Dispatcher) post(ctx context.Context, endpoint, token string, body []byte) (int, map[string]string, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		d.logger.Warn("read conversion response", zap.Int("status", resp.StatusCode), zap.Error(err))
	}
	return resp.StatusCode, flattenHeaders(resp.Header), string(respBody), nil
}

func (d *Dispatcher) emit(ctx context.Context, entry model.LogEntry) {
	for _, sink := range d.sinks {
		if err := sink.Write(ctx, entry); err != nil {
			sinkErrors.Inc()
			d.logger.Warn("write log entry", zap.String("type", entry.Type), zap.Error(err))
		}
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

// once guards the completion pair so that at most one callback fires, once.
func once(c Completion) Completion {
	var o sync.Once
	call := func(fn func()) func() {
		return func() {
			o.Do(func() {
				if fn != nil {
					fn()
				}
			})
		}
	}
	return Completion{OnSuccess: call(c.OnSuccess), OnFailure: call(c.OnFailure)}
}
