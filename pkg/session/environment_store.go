package session

import (
	"os"
	"strings"

	"profilegrab/pkg/models"
)

// EnvironmentStore reads a raw Cookie header from PROFILEGRAB_<PLATFORM>_COOKIES.
// It is read-only and meant for containers where no cookie file is mounted.
type EnvironmentStore struct {
	getenv func(string) string
}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

func envName(platform models.Platform) string {
	return "PROFILEGRAB_" + strings.ToUpper(string(platform)) + "_COOKIES"
}

var cookieDomains = map[models.Platform]string{
	models.Instagram: ".instagram.com",
	models.Threads:   ".threads.net",
	models.Facebook:  ".facebook.com",
}

func (e *EnvironmentStore) Load(platform models.Platform) (*Credentials, error) {
	header := e.getenv(envName(platform))
	if header == "" {
		return nil, ErrNotFound
	}
	cookies := ParseCookieHeader(header, cookieDomains[platform])
	if len(cookies) == 0 {
		return nil, ErrNotFound
	}
	return &Credentials{Platform: platform, Cookies: cookies}, nil
}

func (e *EnvironmentStore) Save(*Credentials) error      { return ErrStoreUnavailable }
func (e *EnvironmentStore) Delete(models.Platform) error { return ErrStoreUnavailable }

func (e *EnvironmentStore) Platforms() ([]models.Platform, error) {
	var out []models.Platform
	for _, p := range models.Platforms {
		if e.getenv(envName(p)) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// ParseCookieHeader splits "a=1; b=2" into cookies scoped to domain
func ParseCookieHeader(header, domain string) []Cookie {
	var out []Cookie
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		out = append(out, Cookie{Name: name, Value: value, Domain: domain, Path: "/", Secure: true})
	}
	return out
}
