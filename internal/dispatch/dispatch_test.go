package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"capi-forwarder/internal/model"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []model.LogEntry
}

func (s *recordingSink) Write(_ context.Context, entry model.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// blockingSink holds every Write until release is closed.
type blockingSink struct {
	release chan struct{}
	recordingSink
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{})}
}

func (s *blockingSink) Write(ctx context.Context, entry model.LogEntry) error {
	<-s.release
	return s.recordingSink.Write(ctx, entry)
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type outcomes struct {
	mu        sync.Mutex
	successes int
	failures  int
}

func (o *outcomes) completion() Completion {
	return Completion{
		OnSuccess: func() { o.mu.Lock(); o.successes++; o.mu.Unlock() },
		OnFailure: func() { o.mu.Lock(); o.failures++; o.mu.Unlock() },
	}
}

func testRequest(cfg model.TagConfig) Request {
	return Request{
		Tag:       "main",
		Config:    cfg,
		EventName: "Purchase",
		TraceID:   "trace-1",
		Payload: model.Payload{Events: []model.ConversionEvent{{
			EventType:     model.TrackingType{TrackingType: "Purchase"},
			EventAtMs:     1700000000000,
			User:          map[string]any{},
			EventMetadata: map[string]any{},
		}}},
	}
}

func TestDispatchPostsToAccountEndpoint(t *testing.T) {
	var (
		gotPath, gotAuth, gotType string
		gotBody                   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var o outcomes
	d := New(srv.Client(), srv.URL, zap.NewNop())
	d.Dispatch(context.Background(), testRequest(model.TagConfig{AccountID: "t2_ab c", AccessToken: "tok"}), o.completion())

	require.Equal(t, "/api/v2.0/conversions/events/t2_ab%20c", gotPath)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "application/json", gotType)
	require.Contains(t, gotBody, "events")
	require.Equal(t, 1, o.successes)
	require.Zero(t, o.failures)
}

func TestEndpointURLEscapesLikeBrowsers(t *testing.T) {
	require.Equal(t, "https://api.test/api/v2.0/conversions/events/t2_(x)!*%20y%2Fz",
		EndpointURL("https://api.test/", "t2_(x)!* y/z"))
}

func TestDispatchFailureOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var o outcomes
	New(srv.Client(), srv.URL, nil).Dispatch(context.Background(), testRequest(model.TagConfig{AccountID: "a"}), o.completion())
	require.Equal(t, 1, o.failures)
	require.Zero(t, o.successes)
}

func TestDispatchRedirectStatusIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	var o outcomes
	New(srv.Client(), srv.URL, nil).Dispatch(context.Background(), testRequest(model.TagConfig{AccountID: "a"}), o.completion())
	require.Equal(t, 1, o.successes)
}

func TestDispatchTransportErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	var o outcomes
	New(nil, url, nil).Dispatch(context.Background(), testRequest(model.TagConfig{AccountID: "a"}), o.completion())
	require.Equal(t, 1, o.failures)
	require.Zero(t, o.successes)
}

func TestDispatchOptimisticReportsBeforeResponse(t *testing.T) {
	var o outcomes
	successBeforeResponse := make(chan bool, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		successBeforeResponse <- o.successes == 1
		o.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	New(srv.Client(), srv.URL, nil).Dispatch(context.Background(), testRequest(model.TagConfig{AccountID: "a", UseOptimisticScenario: true}), o.completion())

	select {
	case ok := <-successBeforeResponse:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("endpoint was not called")
	}
	require.Equal(t, 1, o.successes)
	require.Zero(t, o.failures)
}

func TestDispatchOptimisticSuccessNotDelayedBySink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := newBlockingSink()
	req := testRequest(model.TagConfig{AccountID: "a", UseOptimisticScenario: true})
	req.Logging = true

	succeeded := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		New(srv.Client(), srv.URL, nil, sink).Dispatch(context.Background(), req, Completion{
			OnSuccess: func() { close(succeeded) },
			OnFailure: func() { t.Error("unexpected failure") },
		})
	}()

	select {
	case <-succeeded:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("optimistic success waited on the log sink")
	}
	close(sink.release)
	<-finished
	require.Equal(t, 2, sink.count())
}

func TestAsyncSinkDoesNotBlockDispatch(t *testing.T) {
	posted := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posted <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	slow := newBlockingSink()
	async := NewAsyncSink(slow, 8, nil)
	req := testRequest(model.TagConfig{AccountID: "a"})
	req.Logging = true

	var o outcomes
	start := time.Now()
	New(srv.Client(), srv.URL, nil, async).Dispatch(context.Background(), req, o.completion())
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.Len(t, posted, 1)
	require.Equal(t, 1, o.successes)
	require.Zero(t, slow.count())

	close(slow.release)
	async.Close()
	require.Equal(t, 2, slow.count())
	require.Equal(t, model.LogTypeRequest, slow.entries[0].Type)
	require.Equal(t, model.LogTypeResponse, slow.entries[1].Type)
}

func TestAsyncSinkDropsWhenFullAndRejectsAfterClose(t *testing.T) {
	slow := newBlockingSink()
	async := NewAsyncSink(slow, 1, zap.NewNop())

	var accepted, dropped int
	for i := 0; i < 3; i++ {
		err := async.Write(context.Background(), model.LogEntry{Type: model.LogTypeRequest})
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, ErrSinkFull)
		dropped++
	}
	require.GreaterOrEqual(t, dropped, 1)

	close(slow.release)
	async.Close()
	require.Equal(t, accepted, slow.count())
	require.ErrorIs(t, async.Write(context.Background(), model.LogEntry{}), ErrSinkClosed)
	async.Close()
}

func TestDispatchLogsRequestAndResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "r-1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	req := testRequest(model.TagConfig{AccountID: "acc"})
	req.Logging = true

	var o outcomes
	New(srv.Client(), srv.URL, nil, sink).Dispatch(context.Background(), req, o.completion())

	require.Len(t, sink.entries, 2)
	request, response := sink.entries[0], sink.entries[1]
	require.Equal(t, model.LogTypeRequest, request.Type)
	require.Equal(t, "Reddit", request.Name)
	require.Equal(t, "trace-1", request.TraceID)
	require.Equal(t, "Purchase", request.EventName)
	require.Equal(t, http.MethodPost, request.RequestMethod)
	require.Equal(t, srv.URL+"/api/v2.0/conversions/events/acc", request.RequestURL)
	require.JSONEq(t, string(request.RequestBody), mustJSON(t, req.Payload))

	require.Equal(t, model.LogTypeResponse, response.Type)
	require.Equal(t, http.StatusAccepted, response.ResponseStatusCode)
	require.Equal(t, "r-1", response.ResponseHeaders["x-request-id"])
	require.Equal(t, `{"ok":true}`, response.ResponseBody)
}

func TestDispatchSkipsLoggingWhenDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	sink := &recordingSink{}
	var o outcomes
	New(srv.Client(), srv.URL, nil, sink).Dispatch(context.Background(), testRequest(model.TagConfig{AccountID: "a"}), o.completion())
	require.Empty(t, sink.entries)
}

func TestLoggingEnabled(t *testing.T) {
	debug := HostState{Debug: true}
	preview := HostState{Preview: true}
	idle := HostState{}

	require.True(t, LoggingEnabled(model.LogModeAlways, idle))
	require.False(t, LoggingEnabled(model.LogModeNo, debug))
	require.True(t, LoggingEnabled(model.LogModeDebug, preview))
	require.False(t, LoggingEnabled(model.LogModeDebug, idle))
	require.True(t, LoggingEnabled(model.LogModeUnset, debug))
	require.False(t, LoggingEnabled(model.LogModeUnset, idle))
}

func TestOnceFiresSingleCallback(t *testing.T) {
	var o outcomes
	c := once(o.completion())
	c.OnSuccess()
	c.OnFailure()
	c.OnSuccess()
	require.Equal(t, 1, o.successes)
	require.Zero(t, o.failures)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
