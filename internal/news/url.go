package news

import (
	"net/url"
	"strings"
)

// TrackingParams describes which query parameters are stripped from links.
// Matching is case-insensitive.
type TrackingParams struct {
	Prefixes  []string
	Blocklist []string
}

// DefaultTrackingParams mirrors what feed publishers most commonly append.
var DefaultTrackingParams = TrackingParams{
	Prefixes:  []string{"utm_"},
	Blocklist: []string{"fbclid", "gclid", "mc_cid", "mc_eid"},
}

func (tp TrackingParams) matches(key string) bool {
	key = strings.ToLower(key)
	for _, p := range tp.Prefixes {
		if p != "" && strings.HasPrefix(key, strings.ToLower(p)) {
			return true
		}
	}
	for _, b := range tp.Blocklist {
		if key == strings.ToLower(b) {
			return true
		}
	}
	return false
}

// CanonicalURL strips tracking parameters and the fragment, lowercases the
// scheme and host and drops a leading "www.". A link that does not parse as
// an absolute URL comes back unchanged.
func CanonicalURL(raw string, tp TrackingParams) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		// Filter the raw pairs so the remaining ones keep their order and encoding.
		kept := make([]string, 0, 4)
		for _, pair := range strings.Split(u.RawQuery, "&") {
			if pair == "" {
				continue
			}
			key := pair
			if i := strings.IndexByte(pair, '='); i >= 0 {
				key = pair[:i]
			}
			if k, err := url.QueryUnescape(key); err == nil {
				key = k
			}
			if tp.matches(key) {
				continue
			}
			kept = append(kept, pair)
		}
		u.RawQuery = strings.Join(kept, "&")
	}
	u.ForceQuery = false

	return u.String()
}

// Host returns the lowercased host of link without "www." and without a port,
// or "" if link has no host.
func Host(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// isAbsoluteURL reports whether s is an http(s) URL with a host.
func isAbsoluteURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// resolvable reports whether link can serve as an entry's URL. Links that do
// not parse at all are kept as-is; relative or opaque ones are not.
func resolvable(link string) bool {
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	return u.Host != ""
}
