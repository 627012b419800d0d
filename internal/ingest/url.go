package ingest

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL for loop detection.
// It lowercases the scheme and host, removes default ports, drops the
// fragment, and sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// samePage reports whether two URLs point at the same host and path,
// ignoring scheme, query, and fragment. Used as the self-loop guard for
// extracted candidates.
func samePage(candidate, base string) bool {
	if candidate == "" || base == "" {
		return false
	}
	a, errA := url.Parse(candidate)
	b, errB := url.Parse(base)
	if errA != nil || errB != nil {
		return candidate == base
	}
	if a.Host == "" || b.Host == "" {
		return false
	}
	return strings.EqualFold(a.Host, b.Host) && pathOrRoot(a) == pathOrRoot(b)
}

func pathOrRoot(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// resolveRef resolves ref against base, tolerating already-absolute refs.
func resolveRef(base *url.URL, ref string) (string, error) {
	u, err := base.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("resolve %q against %q: %w", ref, base, err)
	}
	return u.String(), nil
}
