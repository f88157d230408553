package model

// TrackingTypeCustom marks a conversion carrying its own event name.
const TrackingTypeCustom = "Custom"

// TrackingType is the event_type object of a conversion event.
type TrackingType struct {
	TrackingType    string `json:"tracking_type"`
	CustomEventName string `json:"custom_event_name,omitempty"`
}

// Custom builds a Custom tracking type with the given name.
func Custom(name string) TrackingType {
	return TrackingType{TrackingType: TrackingTypeCustom, CustomEventName: name}
}

// EventName is the human-facing name of the event: the custom name for Custom
// events, the tracking type otherwise.
func (t TrackingType) EventName() string {
	if t.TrackingType == TrackingTypeCustom {
		return t.CustomEventName
	}
	return t.TrackingType
}

// ConversionEvent is a single entry of the conversions API events array. Exactly
// one of EventAt and EventAtMs is set.
type ConversionEvent struct {
	EventType     TrackingType   `json:"event_type"`
	EventAt       string         `json:"event_at,omitempty"`
	EventAtMs     int64          `json:"event_at_ms,omitempty"`
	ClickID       string         `json:"click_id,omitempty"`
	User          map[string]any `json:"user"`
	EventMetadata map[string]any `json:"event_metadata"`
}

// Payload is the request body posted to the conversions endpoint.
type Payload struct {
	Events   []ConversionEvent `json:"events"`
	TestMode bool              `json:"test_mode"`
}
