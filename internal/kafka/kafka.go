package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"capi-forwarder/internal/model"
)

// NewWriter returns a kafka-go writer for log shipping. Writes are synchronous so
// errors reach the caller; the forwarder keeps them off the request path with a
// dispatch.AsyncSink.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 50 * time.Millisecond,
		BatchSize:    1,
	}
}

// NewReader constructs a reader bound to a consumer group.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		Topic:           topic,
		GroupID:         group,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		StartOffset:     kafka.FirstOffset,
		CommitInterval:  time.Second,
		ReadLagInterval: 5 * time.Second,
		MaxWait:         time.Second,
	})
}

// MessageWriter is the subset of *kafka.Writer used by EntrySink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// EntrySink ships conversion log entries to a topic, keyed by tag so one tag's
// entries stay ordered within a partition.
type EntrySink struct {
	w MessageWriter
}

// NewEntrySink wraps w.
func NewEntrySink(w MessageWriter) *EntrySink {
	return &EntrySink{w: w}
}

func (s *EntrySink) Write(ctx context.Context, entry model.LogEntry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.w.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(entry.Tag),
		Value: value,
	}); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	return nil
}

// DecodeEntry parses a message written by EntrySink.
func DecodeEntry(m kafka.Message) (model.LogEntry, error) {
	var entry model.LogEntry
	if err := json.Unmarshal(m.Value, &entry); err != nil {
		return model.LogEntry{}, fmt.Errorf("decode log entry: %w", err)
	}
	return entry, nil
}
