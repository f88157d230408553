package identity

import (
	"strings"

	"capi-forwarder/internal/cookies"
	"capi-forwarder/internal/model"
	"capi-forwarder/internal/util"
)

// UUIDCookie holds "<timestamp>.<uuid>" values written by the vendor pixel.
const UUIDCookie = "_rdt_uuid"

// ResolveUserUUID returns the uuid of the oldest well-formed _rdt_uuid cookie
// value, falling back to the event's rdt_uuid field.
func ResolveUserUUID(jar cookies.Reader, raw model.RawEvent) string {
	var (
		oldest   string
		oldestTS float64
		found    bool
	)
	if jar != nil {
		for _, value := range jar.Values(UUIDCookie) {
			ts, uuid, ok := splitTimestamped(value)
			if !ok {
				continue
			}
			if !found || ts < oldestTS {
				oldest, oldestTS, found = uuid, ts, true
			}
		}
	}
	if oldest != "" {
		return oldest
	}
	if v := raw.Get("rdt_uuid"); util.Truthy(v) {
		return util.String(v)
	}
	return ""
}

func splitTimestamped(value string) (float64, string, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return 0, "", false
	}
	// An empty or blank timestamp reads as 0, the oldest possible value.
	ts, ok := util.Number(parts[0])
	if !ok {
		return 0, "", false
	}
	return ts, parts[1], true
}
