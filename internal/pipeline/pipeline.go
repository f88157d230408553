package pipeline

import (
	"time"

	"capi-forwarder/internal/classify"
	"capi-forwarder/internal/cookies"
	"capi-forwarder/internal/identity"
	"capi-forwarder/internal/mapping"
	"capi-forwarder/internal/model"
)

// Request is everything known about one inbound event.
type Request struct {
	Raw     model.RawEvent
	Config  model.TagConfig
	Cookies cookies.Reader
	Referer string
	Now     time.Time
}

// Plan is the pure result of mapping an event: the payload to post and the cookie
// writes to perform on the response.
type Plan struct {
	Payload       model.Payload
	EventType     model.TrackingType
	EventName     string
	ClickID       string
	CookieEffects []cookies.Effect
}

// Build resolves identifiers, classifies the event and assembles the payload. It
// has no side effects.
func Build(req Request) Plan {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	resolution := identity.ResolveClickID(req.Raw, identity.PageURL(req.Raw, req.Referer), req.Cookies)
	eventType := classify.Classify(req.Raw, req.Config)

	payload := mapping.Assemble(mapping.Input{
		Raw:       req.Raw,
		Config:    req.Config,
		Cookies:   req.Cookies,
		EventType: eventType,
		ClickID:   resolution.ClickID,
		Now:       req.Now,
	})

	return Plan{
		Payload:       payload,
		EventType:     eventType,
		EventName:     eventType.EventName(),
		ClickID:       payload.Events[0].ClickID,
		CookieEffects: resolution.Effects,
	}
}
