package mapping

import (
	"capi-forwarder/internal/model"
	"capi-forwarder/internal/util"
)

// MergeEventMetadata builds the event_metadata object from the raw event and the
// tag's server_event_data_list overrides.
func MergeEventMetadata(raw model.RawEvent, cfg model.TagConfig) map[string]any {
	meta := map[string]any{}
	applyRules(meta, []rule{
		{field: "conversion_id", candidates: keys(raw, "event_id", "transaction_id"), convert: asString},
		{field: "currency", candidates: keys(raw, "currency")},
		{field: "item_count", candidates: keys(raw, "item_count")},
		{
			field:      "value_decimal",
			candidates: keys(raw, "value", "x-ga-mp1-ev", "x-ga-mp1-tr"),
			present:    util.HasValue,
			convert:    util.NumberOrNull,
		},
	})

	if products := raw.Get("products"); util.Truthy(products) {
		meta["products"] = products
	} else if items, ok := raw.Get("items").([]any); ok && len(items) > 0 && util.Truthy(items[0]) {
		meta["products"] = productsFromItems(items)
	}

	for _, p := range cfg.ServerEventDataList {
		switch p.Name {
		case "value_decimal":
			meta[p.Name] = util.NumberOrNull(p.Value)
		case "value":
			meta[p.Name] = util.IntegerOrNull(p.Value)
		default:
			meta[p.Name] = p.Value
		}
	}
	return meta
}

func productsFromItems(items []any) []any {
	products := make([]any, 0, len(items))
	for _, it := range items {
		item, _ := util.Object(it)
		product := map[string]any{}
		applyRules(product, []rule{
			{field: "id", candidates: keys(item, "item_id", "id"), convert: asString},
			{field: "category", candidates: keys(item, "content_category", "category")},
			{field: "name", candidates: keys(item, "content_name", "name")},
		})
		products = append(products, product)
	}
	return products
}
