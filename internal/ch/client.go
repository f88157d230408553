package ch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"capi-forwarder/internal/model"
)

// Client wraps a ClickHouse connection holding shipped conversion log entries.
type Client struct {
	db *sql.DB
}

// New creates a ClickHouse client from a DSN.
func New(ctx context.Context, dsn string) (*Client, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{db: db}, nil
}

// Close releases database resources.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// EnsureSchema creates the conversion_logs table if it does not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversion_logs
(
  logged_at         DateTime64(3, 'UTC'),
  log_date          Date,
  tag               LowCardinality(String),
  trace_id          String,
  vendor            LowCardinality(String),
  entry_type        LowCardinality(String),
  event_name        LowCardinality(String),
  request_method    LowCardinality(String),
  request_url       String,
  request_body      String,
  status_code       UInt16,
  response_headers  String,
  response_body     String
)
ENGINE = MergeTree
PARTITION BY toYYYYMM(log_date)
ORDER BY (tag, log_date, event_name, logged_at)
TTL log_date + INTERVAL 30 DAY`
	_, err := c.db.ExecContext(ctx, ddl)
	return err
}

// Row is the column layout of conversion_logs.
type Row struct {
	LoggedAt        time.Time
	LogDate         time.Time
	Tag             string
	TraceID         string
	Vendor          string
	EntryType       string
	EventName       string
	RequestMethod   string
	RequestURL      string
	RequestBody     string
	StatusCode      uint16
	ResponseHeaders string
	ResponseBody    string
}

// ToRow flattens a log entry. Entries without a timestamp are stamped with now.
func ToRow(entry model.LogEntry, now time.Time) (Row, error) {
	loggedAt := entry.Timestamp.UTC()
	if entry.Timestamp.IsZero() {
		loggedAt = now.UTC()
	}
	headers := "{}"
	if len(entry.ResponseHeaders) > 0 {
		b, err := json.Marshal(entry.ResponseHeaders)
		if err != nil {
			return Row{}, fmt.Errorf("encode response headers: %w", err)
		}
		headers = string(b)
	}
	status := entry.ResponseStatusCode
	if status < 0 || status > 65535 {
		status = 0
	}
	return Row{
		LoggedAt:        loggedAt,
		LogDate:         time.Date(loggedAt.Year(), loggedAt.Month(), loggedAt.Day(), 0, 0, 0, 0, time.UTC),
		Tag:             entry.Tag,
		TraceID:         entry.TraceID,
		Vendor:          entry.Name,
		EntryType:       entry.Type,
		EventName:       entry.EventName,
		RequestMethod:   entry.RequestMethod,
		RequestURL:      entry.RequestURL,
		RequestBody:     string(entry.RequestBody),
		StatusCode:      uint16(status),
		ResponseHeaders: headers,
		ResponseBody:    entry.ResponseBody,
	}, nil
}

// InsertBatch writes a batch of log entries with a single prepared statement.
func (c *Client) InsertBatch(ctx context.Context, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]Row, 0, len(entries))
	for _, entry := range entries {
		row, err := ToRow(entry, now)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO conversion_logs (
	logged_at, log_date, tag, trace_id, vendor, entry_type, event_name,
	request_method, request_url, request_body, status_code, response_headers, response_body
) VALUES (
	?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(
			ctx,
			r.LoggedAt,
			r.LogDate,
			r.Tag,
			r.TraceID,
			r.Vendor,
			r.EntryType,
			r.EventName,
			r.RequestMethod,
			r.RequestURL,
			r.RequestBody,
			r.StatusCode,
			r.ResponseHeaders,
			r.ResponseBody,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// OutcomePoint is one day of responses for an event name.
type OutcomePoint struct {
	Date      time.Time `json:"date"`
	EventName string    `json:"event_name"`
	Responses int64     `json:"responses"`
	Successes int64     `json:"successes"`
	Failures  int64     `json:"failures"`
}

// DailyOutcomes counts logged responses per day and event name. A status in
// [200,400) is a success; everything else, including transport errors logged with
// status 0, is a failure.
func (c *Client) DailyOutcomes(ctx context.Context, tag string, from, to time.Time) ([]OutcomePoint, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT
	log_date,
	event_name,
	count() AS responses,
	countIf(status_code >= 200 AND status_code < 400) AS successes,
	countIf(status_code < 200 OR status_code >= 400) AS failures
FROM conversion_logs
WHERE tag = ? AND entry_type = 'Response' AND log_date BETWEEN ? AND ?
GROUP BY log_date, event_name
ORDER BY log_date ASC, event_name ASC`, tag, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OutcomePoint
	for rows.Next() {
		var p OutcomePoint
		var responses, successes, failures uint64
		if err := rows.Scan(&p.Date, &p.EventName, &responses, &successes, &failures); err != nil {
			return nil, err
		}
		p.Responses, p.Successes, p.Failures = int64(responses), int64(successes), int64(failures)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Ping ensures the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("clickhouse ping: %w", err)
	}
	return nil
}
