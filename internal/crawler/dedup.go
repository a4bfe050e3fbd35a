package crawler

import (
	"net/url"
	"sort"
	"strings"
)

// visitedSet tracks the pages one run has already taken, keyed by canonical
// URL. A run is synchronous, so no locking.
type visitedSet map[string]struct{}

func (v visitedSet) seen(rawURL string) bool {
	_, ok := v[canonicalURL(rawURL)]
	return ok
}

func (v visitedSet) add(rawURL string) {
	v[canonicalURL(rawURL)] = struct{}{}
}

// canonicalURL normalises a URL for revisit checks: lowercased scheme and
// host, fragment stripped, default ports removed, query keys sorted,
// trailing slash trimmed. Pagination links that differ only in these ways
// point at the same page.
func canonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, val := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(val))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}
