package model

import (
	"encoding/json"
	"time"
)

const (
	LogTypeRequest  = "Request"
	LogTypeResponse = "Response"
)

// LogEntry is one request or response record emitted around a conversion post.
// Field names follow the console format consumed by existing log tooling.
type LogEntry struct {
	Name               string            `json:"Name"`
	Type               string            `json:"Type"`
	TraceID            string            `json:"TraceId,omitempty"`
	Tag                string            `json:"Tag,omitempty"`
	EventName          string            `json:"EventName"`
	RequestMethod      string            `json:"RequestMethod,omitempty"`
	RequestURL         string            `json:"RequestUrl,omitempty"`
	RequestBody        json.RawMessage   `json:"RequestBody,omitempty"`
	ResponseStatusCode int               `json:"ResponseStatusCode,omitempty"`
	ResponseHeaders    map[string]string `json:"ResponseHeaders,omitempty"`
	ResponseBody       string            `json:"ResponseBody,omitempty"`
	Timestamp          time.Time         `json:"Timestamp"`
}
