package mapping

import (
	"strings"

	"capi-forwarder/internal/cookies"
	"capi-forwarder/internal/identity"
	"capi-forwarder/internal/model"
	"capi-forwarder/internal/util"
)

// EmailCookie carries a hashed or plain email captured by the browser pixel.
const EmailCookie = "_rdt_em"

var userContainers = []string{"user_data", "user_properties", "user"}

// MergeUserData builds the user object. Direct event fields win over the nested
// user container, which wins over cookies; user_data_list overrides are applied
// last.
func MergeUserData(raw model.RawEvent, cfg model.TagConfig, jar cookies.Reader) map[string]any {
	nested := nestedUser(raw)
	user := map[string]any{}

	applyRules(user, []rule{
		{field: "uuid", candidates: []candidate{constant(identity.ResolveUserUUID(jar, raw))}},
		{field: "aaid", candidates: []candidate{key(raw, "aaid"), key(nested, "aaid")}},
		{field: "email", candidates: []candidate{
			key(raw, "email"),
			key(raw, "email_address"),
			key(nested, "email"),
			key(nested, "email_address"),
			func() any { return cookies.First(jar, EmailCookie) },
		}},
		{field: "external_id", candidates: []candidate{
			key(raw, "external_id"),
			key(raw, "user_id"),
			key(raw, "userId"),
			key(nested, "external_id"),
		}},
		{field: "idfa", candidates: []candidate{key(raw, "idfa"), key(nested, "idfa")}},
		{field: "ip_address", candidates: keys(raw, "ip_override", "ip_address", "ip")},
		{field: "opt_out", candidates: keys(raw, "opt_out")},
		{field: "user_agent", candidates: keys(raw, "user_agent")},
	})

	if dims, ok := screenDimensions(raw); ok {
		user["screen_dimensions"] = dims
	}

	for _, p := range cfg.UserDataList {
		user[p.Name] = p.Value
	}
	return user
}

// nestedUser returns the first user container that is a JSON object.
func nestedUser(raw model.RawEvent) map[string]any {
	for _, name := range userContainers {
		if obj, ok := util.Object(raw.Get(name)); ok {
			return obj
		}
	}
	return map[string]any{}
}

func screenDimensions(raw model.RawEvent) (map[string]any, bool) {
	if viewport, ok := raw.Get("viewport_size").(string); ok && viewport != "" {
		if parts := strings.Split(viewport, "x"); len(parts) == 2 {
			return map[string]any{
				"width":  util.IntegerOrNull(parts[0]),
				"height": util.IntegerOrNull(parts[1]),
			}, true
		}
	}
	height, width := raw.Get("height"), raw.Get("width")
	if util.Truthy(height) && util.Truthy(width) {
		return map[string]any{
			"height": util.IntegerOrNull(height),
			"width":  util.IntegerOrNull(width),
		}, true
	}
	return nil, false
}
