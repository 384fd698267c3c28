package validator

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ValidateOrigin reports whether origin matches any of the authorized
// origin entries. Exact entries match with a case-insensitive host and
// case-sensitive scheme/port; "*.domain.tld" wildcard entries match both
// subdomains and the bare apex domain.
func ValidateOrigin(origin string, authorizedOrigins []string) bool {
	if origin == "" {
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())

	for _, entry := range authorizedOrigins {
		if strings.HasPrefix(entry, "*.") {
			domain := strings.ToLower(entry[2:])
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return true
			}
			continue
		}

		registered, err := url.Parse(entry)
		if err != nil || registered.Host == "" {
			continue
		}
		if parsed.Scheme == registered.Scheme &&
			strings.EqualFold(parsed.Hostname(), registered.Hostname()) &&
			parsed.Port() == registered.Port() {
			return true
		}
	}
	return false
}

// ValidateOriginPatterns rejects overly broad wildcard patterns at
// configuration time. "*.com" would authorize every .com site; a wildcard
// must cover at least two domain labels.
func ValidateOriginPatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !strings.HasPrefix(pattern, "*.") {
			parsed, err := url.Parse(pattern)
			if err != nil || parsed.Scheme == "" || parsed.Host == "" {
				return fmt.Errorf(
					"invalid authorized origin %q: must be scheme://host or a *.domain.tld pattern",
					pattern,
				)
			}
			continue
		}

		domain := pattern[2:]
		labels := strings.Split(domain, ".")
		if len(labels) < 2 {
			return fmt.Errorf(
				"authorized origin pattern %q is overly broad: wildcard must cover at least two domain labels",
				pattern,
			)
		}
		for _, label := range labels {
			if label == "" {
				return fmt.Errorf("invalid authorized origin pattern %q", pattern)
			}
		}
	}
	return nil
}

// ExtractOrigin returns the request's effective origin. The Origin header
// wins; the Referer host is a fallback for browsers that omit Origin on
// same-site navigation.
func ExtractOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" && origin != "null" {
		return origin
	}
	if referer := r.Header.Get("Referer"); referer != "" {
		if parsed, err := url.Parse(referer); err == nil && parsed.Host != "" {
			return parsed.Scheme + "://" + parsed.Host
		}
	}
	return ""
}

// LooksLikeBrowserRequest reports whether the request plausibly came from
// a browser. The device authorization endpoint only enforces origin
// checking for browser-originated requests; CLI and device polls carry
// none of these markers.
func LooksLikeBrowserRequest(r *http.Request) bool {
	if r.Header.Get("Origin") != "" || r.Header.Get("Referer") != "" {
		return true
	}
	return strings.Contains(r.Header.Get("User-Agent"), "Mozilla")
}
