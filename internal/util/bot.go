package util

import "strings"

// BotFilter matches User-Agent strings against a deny list of fragments.
type BotFilter struct {
	fragments []string
}

// NewBotFilter lower-cases and trims the deny list once so matching stays cheap on
// the request path.
func NewBotFilter(denyList []string) BotFilter {
	fragments := make([]string, 0, len(denyList))
	for _, fragment := range denyList {
		fragment = strings.ToLower(strings.TrimSpace(fragment))
		if fragment != "" {
			fragments = append(fragments, fragment)
		}
	}
	return BotFilter{fragments: fragments}
}

// Match reports whether ua contains any deny-listed fragment. An empty UA never matches.
func (f BotFilter) Match(ua string) bool {
	if ua == "" {
		return false
	}
	ua = strings.ToLower(ua)
	for _, fragment := range f.fragments {
		if strings.Contains(ua, fragment) {
			return true
		}
	}
	return false
}
