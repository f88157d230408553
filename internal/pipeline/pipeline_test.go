package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"capi-forwarder/internal/cookies"
	"capi-forwarder/internal/identity"
	"capi-forwarder/internal/model"
)

func TestBuildPurchase(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := model.RawEvent{
		"event_name":     "purchase",
		"page_location":  "https://shop.example.com/thanks?rdt_cid=url-cid",
		"transaction_id": "T-100",
		"value":          "99.5",
		"currency":       "USD",
		"email":          "buyer@example.com",
		"items":          []any{map[string]any{"item_id": "sku-1", "item_name": "x", "name": "Shoe"}},
	}
	jar := cookies.Static{
		identity.LegacyClickIDCookie: {"legacy-cid"},
		identity.UUIDCookie:          {"300.newer", "100.oldest"},
	}

	plan := Build(Request{
		Raw:     raw,
		Config:  model.TagConfig{EventType: model.EventTypeInherit, TestMode: true},
		Cookies: jar,
		Now:     now,
	})

	require.Equal(t, "Purchase", plan.EventName)
	require.Equal(t, "url-cid", plan.ClickID)
	require.Len(t, plan.CookieEffects, 2)

	body, err := json.Marshal(plan.Payload)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"events": [{
			"event_type": {"tracking_type": "Purchase"},
			"event_at_ms": 1704164645000,
			"click_id": "url-cid",
			"user": {"uuid": "oldest", "email": "buyer@example.com"},
			"event_metadata": {
				"conversion_id": "T-100",
				"currency": "USD",
				"value_decimal": 99.5,
				"products": [{"id": "sku-1", "name": "Shoe"}]
			}
		}],
		"test_mode": true
	}`, string(body))
}

func TestBuildWithoutClickIDSource(t *testing.T) {
	plan := Build(Request{
		Raw:     model.RawEvent{"event_name": "foo_bar"},
		Config:  model.TagConfig{EventType: model.EventTypeInherit},
		Cookies: cookies.Static{},
		Referer: "https://shop.example.com/",
	})
	require.Empty(t, plan.ClickID)
	require.Empty(t, plan.CookieEffects)
	require.Equal(t, model.Custom("foo_bar"), plan.EventType)
	require.NotZero(t, plan.Payload.Events[0].EventAtMs)
}

func TestBuildRefererSuppliesClickID(t *testing.T) {
	plan := Build(Request{
		Raw:     model.RawEvent{},
		Config:  model.TagConfig{EventType: model.EventTypeStandard, EventName: "Lead"},
		Referer: "https://shop.example.com/?rdt_cid=ref-cid",
	})
	require.Equal(t, "ref-cid", plan.ClickID)
	require.Equal(t, "Lead", plan.EventName)
}
