package openai

import (
	"fmt"
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// builtinHosts are trusted when OPENAI_ALLOWED_HOSTS is unset. OpenRouter
// serves the same API shape.
var builtinHosts = []string{"api.openai.com", "openrouter.ai"}

// BaseURLError is a refused endpoint. URL never carries a password.
type BaseURLError struct {
	URL    string
	Reason string
}

func (e *BaseURLError) Error() string {
	if e.URL == "" {
		return "invalid OPENAI_BASE_URL: " + e.Reason
	}
	return fmt.Sprintf("invalid OPENAI_BASE_URL %q: %s", e.URL, e.Reason)
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL accepts only https endpoints on a trusted host. An empty or
// blank allow list means builtinHosts.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	raw := normalizeBaseURL(baseURL)
	u, err := url.Parse(raw)
	if err != nil {
		return &BaseURLError{Reason: "not a URL"}
	}
	if reason := endpointProblem(u, allowedHostSet(allowedHosts)); reason != "" {
		return &BaseURLError{URL: u.Redacted(), Reason: reason}
	}
	return nil
}

func endpointProblem(u *url.URL, trusted map[string]bool) string {
	switch {
	case !u.IsAbs() || u.Host == "":
		return "absolute URL with host is required"
	case u.User != nil:
		return "userinfo is not allowed"
	case u.RawQuery != "" || u.ForceQuery || u.Fragment != "":
		return "query and fragment are not allowed"
	case !strings.EqualFold(u.Scheme, "https"):
		return "https is required"
	}
	if host := strings.ToLower(u.Hostname()); !trusted[host] {
		return fmt.Sprintf("host %q is not in OPENAI_ALLOWED_HOSTS", host)
	}
	return ""
}

// allowedHostSet reduces entries such as "proxy.internal",
// "https://proxy.internal:8443/" or " Proxy.Internal " to bare host names.
func allowedHostSet(entries []string) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, e := range entries {
		if h := hostOf(e); h != "" {
			set[h] = true
		}
	}
	if len(set) == 0 {
		for _, h := range builtinHosts {
			set[h] = true
		}
	}
	return set
}

func hostOf(entry string) string {
	e := strings.ToLower(strings.TrimSpace(entry))
	if !strings.Contains(e, "://") {
		e = "//" + e
	}
	u, err := url.Parse(e)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
