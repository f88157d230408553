// Package classify turns an incoming analytics event into a conversions API
// tracking type.
package classify

import (
	"capi-forwarder/internal/model"
	"capi-forwarder/internal/util"
)

// Canonical tracking types.
const (
	PageVisit     = "PageVisit"
	ViewContent   = "ViewContent"
	Search        = "Search"
	AddToCart     = "AddToCart"
	AddToWishlist = "AddToWishlist"
	Purchase      = "Purchase"
	Lead          = "Lead"
	SignUp        = "SignUp"
)

// inherited maps GA4, GTM and gtm4wp event names to canonical types.
var inherited = map[string]string{
	"page_view":             PageVisit,
	"gtm.dom":               PageVisit,
	"click":                 Lead,
	"download":              Lead,
	"file_download":         Lead,
	"add_payment_info":      Lead,
	"begin_checkout":        Lead,
	"generate_lead":         Lead,
	"contact":               Lead,
	"submit_application":    Lead,
	"subscribe":             Lead,
	"complete_registration": SignUp,
	"sign_up":               SignUp,
	"add_to_cart":           AddToCart,
	"add_to_wishlist":       AddToWishlist,
	"purchase":              Purchase,
	"search":                Search,
	"find_location":         Search,
	"view_item":             ViewContent,

	"gtm4wp.addProductToCartEEC": AddToCart,
	"gtm4wp.productClickEEC":     ViewContent,
	"gtm4wp.checkoutOptionEEC":   Lead,
	"gtm4wp.checkoutStepEEC":     Lead,
	"gtm4wp.orderCompletedEEC":   Purchase,
}

// Lookup returns the canonical type for an inherited event name.
func Lookup(eventName string) (string, bool) {
	t, ok := inherited[eventName]
	return t, ok
}

// Classify picks the tracking type. Rules are checked in order and the first match
// wins; Purchase and SignUp as custom names are promoted to canonical types even
// when the tag is in custom mode.
func Classify(raw model.RawEvent, cfg model.TagConfig) model.TrackingType {
	if cfg.EventType == model.EventTypeInherit {
		name := util.String(raw.Get("event_name"))
		if t, ok := Lookup(name); ok {
			return model.TrackingType{TrackingType: t}
		}
		return model.Custom(name)
	}
	if cfg.EventNameCustom == Purchase || cfg.EventNameCustom == SignUp {
		return model.TrackingType{TrackingType: cfg.EventNameCustom}
	}
	if cfg.EventType == model.EventTypeCustom {
		return model.Custom(cfg.EventNameCustom)
	}
	return model.TrackingType{TrackingType: cfg.EventName}
}
