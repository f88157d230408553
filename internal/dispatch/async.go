package dispatch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"capi-forwarder/internal/model"
)

var (
	// ErrSinkFull is returned when an AsyncSink buffer has no room; the entry is dropped.
	ErrSinkFull = errors.New("log sink buffer full")
	// ErrSinkClosed is returned by Write after Close.
	ErrSinkClosed = errors.New("log sink closed")
)

// AsyncSink decouples a slow sink from the conversion path. Write never blocks:
// entries are buffered and handed to the wrapped sink by one goroutine, in order.
type AsyncSink struct {
	next    LogSink
	logger  *zap.Logger
	entries chan model.LogEntry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncSink starts the delivery goroutine. buffer below 1 is treated as 1.
func NewAsyncSink(next LogSink, buffer int, logger *zap.Logger) *AsyncSink {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AsyncSink{
		next:    next,
		logger:  logger,
		entries: make(chan model.LogEntry, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) Write(_ context.Context, entry model.LogEntry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.entries <- entry:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close stops accepting entries and waits until the buffered ones are delivered.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for entry := range s.entries {
		// The inbound request is long gone by now.
		if err := s.next.Write(context.Background(), entry); err != nil {
			sinkErrors.Inc()
			s.logger.Warn("deliver log entry", zap.String("type", entry.Type), zap.String("trace_id", entry.TraceID), zap.Error(err))
		}
	}
}
