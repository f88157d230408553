package cookies

import (
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/publicsuffix"

	"capi-forwarder/internal/util"
)

// DomainAuto asks Apply to scope a cookie to the registrable domain of the
// request host.
const DomainAuto = "auto"

// Reader returns every value sent for a cookie name, in header order. Browsers may
// send the same name more than once when it was set on several domains or paths.
type Reader interface {
	Values(name string) []string
}

// First returns the first value of the named cookie, or "".
func First(r Reader, name string) string {
	if r == nil {
		return ""
	}
	values := r.Values(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// RequestReader reads cookies from an inbound request. Values are URI-decoded; a
// value that does not decode is returned as sent.
type RequestReader struct {
	req *http.Request
}

// FromRequest wraps req as a Reader.
func FromRequest(req *http.Request) RequestReader {
	return RequestReader{req: req}
}

func (r RequestReader) Values(name string) []string {
	if r.req == nil {
		return nil
	}
	var out []string
	for _, c := range r.req.Cookies() {
		if c.Name != name {
			continue
		}
		if decoded, err := util.DecodeURIComponent(c.Value); err == nil {
			out = append(out, decoded)
		} else {
			out = append(out, c.Value)
		}
	}
	return out
}

// Static is an in-memory Reader.
type Static map[string][]string

func (s Static) Values(name string) []string {
	return s[name]
}

// Effect is a cookie write requested by the mapping core and applied by the HTTP
// shell. MaxAge is in seconds; zero or less expires the cookie immediately.
type Effect struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	MaxAge   int
	SameSite http.SameSite
	Secure   bool
	HTTPOnly bool
}

// Apply writes effects as Set-Cookie headers with URI-encoded values. It must run
// before the response status is written.
func Apply(w http.ResponseWriter, host string, effects []Effect) {
	for _, e := range effects {
		c := &http.Cookie{
			Name:     e.Name,
			Value:    util.EncodeURIComponent(e.Value),
			Path:     e.Path,
			Domain:   ResolveDomain(e.Domain, host),
			MaxAge:   e.MaxAge,
			SameSite: e.SameSite,
			Secure:   e.Secure,
			HttpOnly: e.HTTPOnly,
		}
		if e.MaxAge <= 0 {
			c.MaxAge = -1
		}
		http.SetCookie(w, c)
	}
}

// ResolveDomain expands DomainAuto to the eTLD+1 of host. IP addresses, single
// label hosts and hosts on a public suffix get a host-only cookie.
func ResolveDomain(domain, host string) string {
	if domain != DomainAuto {
		return domain
	}
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	hostname = strings.TrimSuffix(strings.ToLower(hostname), ".")
	if hostname == "" || net.ParseIP(strings.Trim(hostname, "[]")) != nil || !strings.Contains(hostname, ".") {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return ""
	}
	return registrable
}
