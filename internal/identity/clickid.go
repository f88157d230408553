package identity

import (
	"net/http"
	"net/url"
	"strings"

	"capi-forwarder/internal/cookies"
	"capi-forwarder/internal/model"
	"capi-forwarder/internal/util"
)

const (
	// LegacyClickIDCookie is the pre-migration cookie name. It is read once and cleared.
	LegacyClickIDCookie = "rdt_cid"
	// ClickIDCookie keeps the click id for subsequent events from the same browser.
	ClickIDCookie = "_rdt_cid"
	// ClickIDParam is the landing page query parameter appended by the ad platform.
	ClickIDParam = "rdt_cid"

	clickIDMaxAge = 30 * 24 * 60 * 60
)

// Resolution is the outcome of click id resolution: the id, if any, plus the
// cookie writes the HTTP shell has to perform.
type Resolution struct {
	ClickID string
	Effects []cookies.Effect
}

// PageURL returns the page the event was recorded on: the event's page_location,
// else the Referer of the collect request.
func PageURL(raw model.RawEvent, referer string) string {
	if loc := raw.Get("page_location"); util.Truthy(loc) {
		return util.String(loc)
	}
	return referer
}

// ResolveClickID picks the click id from the legacy cookie, the current cookie or
// the event's rdt_cid field, in that order. A rdt_cid parameter on the page URL
// replaces whatever the cookies supplied, even when it fails to decode.
func ResolveClickID(raw model.RawEvent, pageURL string, jar cookies.Reader) Resolution {
	var res Resolution

	legacy := cookies.First(jar, LegacyClickIDCookie)
	if legacy != "" {
		res.Effects = append(res.Effects, clickIDCookie(LegacyClickIDCookie, "", 0))
	}

	candidate := legacy
	if candidate == "" {
		candidate = cookies.First(jar, ClickIDCookie)
	}
	if candidate == "" {
		if v := raw.Get("rdt_cid"); util.Truthy(v) {
			candidate = util.String(v)
		}
	}

	if fromURL, ok := clickIDFromURL(pageURL); ok {
		candidate = fromURL
	}

	if candidate != "" {
		res.ClickID = candidate
		res.Effects = append(res.Effects, clickIDCookie(ClickIDCookie, candidate, clickIDMaxAge))
	}
	return res
}

func clickIDCookie(name, value string, maxAge int) cookies.Effect {
	return cookies.Effect{
		Name:     name,
		Value:    value,
		Domain:   cookies.DomainAuto,
		Path:     "/",
		MaxAge:   maxAge,
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
		HTTPOnly: false,
	}
}

// clickIDFromURL reads the raw rdt_cid parameter and URI-decodes it. A "+" is kept
// literally. found is true whenever the parameter is present; a value that does
// not decode resolves to no click id at all.
func clickIDFromURL(pageURL string) (clickID string, found bool) {
	if pageURL == "" {
		return "", false
	}
	u, err := url.Parse(pageURL)
	if err != nil || !u.IsAbs() {
		return "", false
	}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if key != ClickIDParam || value == "" {
			continue
		}
		decoded, err := util.DecodeURIComponent(value)
		if err != nil {
			return "", true
		}
		return decoded, true
	}
	return "", false
}
