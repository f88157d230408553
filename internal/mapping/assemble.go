// Package mapping merges a raw analytics event, tag configuration and browser
// cookies into a conversions API payload.
package mapping

import (
	"time"

	"capi-forwarder/internal/cookies"
	"capi-forwarder/internal/model"
)

// Input carries everything Assemble needs. EventType and ClickID come from the
// classifier and the identifier resolver.
type Input struct {
	Raw       model.RawEvent
	Config    model.TagConfig
	Cookies   cookies.Reader
	EventType model.TrackingType
	ClickID   string
	Now       time.Time
}

// Assemble composes the single-event payload.
func Assemble(in Input) model.Payload {
	event := model.ConversionEvent{EventType: in.EventType}

	if in.Config.EventAt != "" {
		event.EventAt = in.Config.EventAt
	} else {
		event.EventAtMs = in.Now.UnixMilli()
	}

	if in.Config.ClickID != "" {
		event.ClickID = in.Config.ClickID
	} else {
		event.ClickID = in.ClickID
	}

	event.User = MergeUserData(in.Raw, in.Config, in.Cookies)
	event.EventMetadata = MergeEventMetadata(in.Raw, in.Config)

	return model.Payload{
		Events:   []model.ConversionEvent{event},
		TestMode: in.Config.TestMode,
	}
}
