package model

import (
	"encoding/json"
	"errors"
)

// RawEvent is the event document accepted by the collect API. Values keep their
// decoded JSON types: string, float64, bool, nil, []any and map[string]any.
type RawEvent map[string]any

// ErrNotObject is returned when a collect body decodes to something other than a
// JSON object.
var ErrNotObject = errors.New("event body must be a json object")

// DecodeRawEvent parses a collect request body.
func DecodeRawEvent(body []byte) (RawEvent, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return RawEvent(obj), nil
}

// Get returns the value stored under key, or nil.
func (e RawEvent) Get(key string) any {
	if e == nil {
		return nil
	}
	return e[key]
}

// Text returns the value under key when it is a string.
func (e RawEvent) Text(key string) string {
	s, _ := e.Get(key).(string)
	return s
}
