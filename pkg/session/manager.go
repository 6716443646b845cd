package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"profilegrab/pkg/config"
	"profilegrab/pkg/models"
)

// Manager reads from a chain of stores and writes to the first that accepts
type Manager struct {
	stores []Store
	now    func() time.Time
}

// NewManager builds the store chain selected by cfg.Backend:
// "file" uses the encrypted cookie directory, "keyring" the OS keychain,
// and "auto" tries the keychain before the directory. The read-only
// environment store is always consulted last.
func NewManager(cfg config.SessionConfig, fs afero.Fs) (*Manager, error) {
	var stores []Store

	backend := strings.ToLower(cfg.Backend)
	if backend == "keyring" || backend == "auto" {
		ks, err := NewKeyringStore()
		if err != nil && backend == "keyring" {
			return nil, err
		}
		if err == nil {
			stores = append(stores, ks)
		}
	}

	if backend == "file" || backend == "auto" {
		passphrase, err := ResolvePassphrase(fs, cfg.Dir, cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve passphrase: %w", err)
		}
		fstore, err := NewFileStore(fs, cfg.Dir, passphrase)
		if err != nil {
			return nil, err
		}
		stores = append(stores, fstore)
	}

	if len(stores) == 0 {
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
	stores = append(stores, NewEnvironmentStore())

	return NewManagerWithStores(stores...), nil
}

// NewManagerWithStores wires an explicit chain, mostly for tests
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores, now: time.Now}
}

// Load returns the first saved credentials found along the chain
func (m *Manager) Load(platform models.Platform) (*Credentials, error) {
	var errs []error
	for _, s := range m.stores {
		creds, err := s.Load(platform)
		if err == nil && creds != nil {
			return creds, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load session for %s: %w", platform, errors.Join(errs...))
	}
	return nil, ErrNotFound
}

// Save stamps and stores credentials in the first writable store
func (m *Manager) Save(creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	stamped := clone(creds)
	stamped.SavedAt = m.now()

	var lastErr error
	for _, s := range m.stores {
		err := s.Save(stamped)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrStoreUnavailable
	}
	return fmt.Errorf("failed to save session: %w", lastErr)
}

// Delete removes the platform's cookies from every store that has them
func (m *Manager) Delete(platform models.Platform) error {
	deleted := false
	for _, s := range m.stores {
		if err := s.Delete(platform); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Platforms merges the saved platforms of all stores
func (m *Manager) Platforms() ([]models.Platform, error) {
	seen := map[models.Platform]bool{}
	var out []models.Platform
	for _, s := range m.stores {
		ps, err := s.Platforms()
		if err != nil {
			continue
		}
		for _, p := range ps {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func cookieFile(dir string, platform models.Platform) string {
	return filepath.Join(dir, string(platform)+".cookies")
}
