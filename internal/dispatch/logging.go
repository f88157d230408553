package dispatch

import (
	"context"

	"go.uber.org/zap"

	"capi-forwarder/internal/model"
)

// HostState describes the serving environment as far as log gating is concerned.
type HostState struct {
	Debug   bool
	Preview bool
}

// LoggingEnabled decides whether request/response entries are emitted for a tag.
func LoggingEnabled(mode model.LogMode, host HostState) bool {
	inspecting := host.Debug || host.Preview
	switch mode {
	case model.LogModeUnset, model.LogModeDebug:
		return inspecting
	case model.LogModeNo:
		return false
	default:
		return mode == model.LogModeAlways
	}
}

// LogSink receives request/response entries.
type LogSink interface {
	Write(ctx context.Context, entry model.LogEntry) error
}

// ConsoleSink writes entries through a zap logger.
type ConsoleSink struct {
	logger *zap.Logger
}

// NewConsoleSink returns a sink logging at info level.
func NewConsoleSink(logger *zap.Logger) *ConsoleSink {
	return &ConsoleSink{logger: logger}
}

func (s *ConsoleSink) Write(_ context.Context, entry model.LogEntry) error {
	fields := []zap.Field{
		zap.String("Name", entry.Name),
		zap.String("Type", entry.Type),
		zap.String("TraceId", entry.TraceID),
		zap.String("Tag", entry.Tag),
		zap.String("EventName", entry.EventName),
	}
	switch entry.Type {
	case model.LogTypeRequest:
		fields = append(fields,
			zap.String("RequestMethod", entry.RequestMethod),
			zap.String("RequestUrl", entry.RequestURL),
			zap.Reflect("RequestBody", entry.RequestBody),
		)
	case model.LogTypeResponse:
		fields = append(fields,
			zap.Int("ResponseStatusCode", entry.ResponseStatusCode),
			zap.Reflect("ResponseHeaders", entry.ResponseHeaders),
			zap.String("ResponseBody", entry.ResponseBody),
		)
	}
	s.logger.Info("conversion "+entry.Type, fields...)
	return nil
}
