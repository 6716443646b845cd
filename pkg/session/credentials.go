package session

import (
	"errors"
	"fmt"
	"time"

	"profilegrab/pkg/models"
)

var (
	// ErrNotFound means no cookies were ever saved for the platform. It is
	// not a failure of the store; callers treat it as "log in manually".
	ErrNotFound           = errors.New("session cookies not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStoreUnavailable   = errors.New("session store unavailable")
)

// Cookie is one browser cookie. Expires is a unix timestamp, zero for
// session cookies.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Credentials is the saved cookie set of one platform
type Credentials struct {
	Platform models.Platform `json:"platform"`
	Cookies  []Cookie        `json:"cookies"`
	SavedAt  time.Time       `json:"saved_at"`
}

// Validate rejects credentials that could never authenticate a browser
func (c *Credentials) Validate() error {
	if c == nil {
		return ErrInvalidCredentials
	}
	if _, err := models.ParsePlatform(string(c.Platform)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if len(c.Cookies) == 0 {
		return fmt.Errorf("%w: no cookies", ErrInvalidCredentials)
	}
	for i, ck := range c.Cookies {
		if ck.Name == "" {
			return fmt.Errorf("%w: cookie %d has no name", ErrInvalidCredentials, i)
		}
	}
	return nil
}

// Store persists one opaque cookie blob per platform
type Store interface {
	// Load returns ErrNotFound when nothing was saved for the platform
	Load(platform models.Platform) (*Credentials, error)
	Save(creds *Credentials) error
	Delete(platform models.Platform) error
	// Platforms lists the platforms with saved cookies
	Platforms() ([]models.Platform, error)
}

// LoginCookies names the cookie holding the logged-in session per platform
var LoginCookies = map[models.Platform]string{
	models.Instagram: "sessionid",
	models.Threads:   "sessionid",
	models.Facebook:  "xs",
}

// Summary is a printable view of saved credentials. Values are masked.
type Summary struct {
	Platform models.Platform
	Count    int
	Names    []string
	// Login is the masked login cookie, empty when the set has none
	Login   string
	SavedAt time.Time
}

// Summarize describes credentials without exposing cookie values
func Summarize(c *Credentials) Summary {
	s := Summary{Platform: c.Platform, Count: len(c.Cookies), SavedAt: c.SavedAt}
	login := LoginCookies[c.Platform]
	for _, ck := range c.Cookies {
		s.Names = append(s.Names, ck.Name)
		if ck.Name == login && s.Login == "" {
			s.Login = Mask(ck.Value)
		}
	}
	return s
}

// Mask hides all but the first and last four characters of a secret
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func clone(c *Credentials) *Credentials {
	out := *c
	out.Cookies = append([]Cookie(nil), c.Cookies...)
	return &out
}
