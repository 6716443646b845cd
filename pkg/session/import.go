package session

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// exportedCookie covers the field names used by the common browser
// cookie-export extensions and by DevTools "copy as JSON".
type exportedCookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path"`
	ExpirationDate *float64 `json:"expirationDate"`
	Expires        *float64 `json:"expires"`
	Secure         bool     `json:"secure"`
	HTTPOnly       bool     `json:"httpOnly"`
	SameSite       string   `json:"sameSite"`
	Session        bool     `json:"session"`
}

// ParseCookieExport reads a JSON array of exported cookies. Cookies whose
// domain does not end with domainSuffix are dropped when the suffix is set.
func ParseCookieExport(r io.Reader, domainSuffix string) ([]Cookie, error) {
	var raw []exportedCookie
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse cookie export: %w", err)
	}

	var out []Cookie
	for _, c := range raw {
		if c.Name == "" {
			continue
		}
		if domainSuffix != "" && !strings.HasSuffix(c.Domain, strings.TrimPrefix(domainSuffix, ".")) {
			continue
		}
		ck := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: normalizeSameSite(c.SameSite),
		}
		if ck.Path == "" {
			ck.Path = "/"
		}
		switch {
		case c.Session:
		case c.ExpirationDate != nil:
			ck.Expires = *c.ExpirationDate
		case c.Expires != nil && *c.Expires > 0:
			ck.Expires = *c.Expires
		}
		out = append(out, ck)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: export holds no usable cookies", ErrInvalidCredentials)
	}
	return out, nil
}

// DomainFor returns the cookie domain used by a platform's site
func DomainFor(platform string) string {
	for p, d := range cookieDomains {
		if string(p) == platform {
			return d
		}
	}
	return ""
}

func normalizeSameSite(s string) string {
	switch strings.ToLower(s) {
	case "strict":
		return "Strict"
	case "lax":
		return "Lax"
	case "none", "no_restriction":
		return "None"
	default:
		return ""
	}
}
