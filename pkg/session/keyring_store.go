package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"profilegrab/pkg/models"
)

const keyringService = "profilegrab"

// KeyringStore keeps cookie blobs in the OS keychain, one secret per platform
type KeyringStore struct{}

// NewKeyringStore tests the keychain and fails when none is reachable
func NewKeyringStore() (*KeyringStore, error) {
	const check = "availability_check"
	if err := keyring.Set(keyringService, check, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, check)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Load(platform models.Platform) (*Credentials, error) {
	data, err := keyring.Get(keyringService, string(platform))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse keyring entry: %w", err)
	}
	return &creds, nil
}

func (k *KeyringStore) Save(creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := keyring.Set(keyringService, string(creds.Platform), string(data)); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Delete(platform models.Platform) error {
	if err := keyring.Delete(keyringService, string(platform)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Platforms queries every known platform since keychains cannot be listed portably
func (k *KeyringStore) Platforms() ([]models.Platform, error) {
	var out []models.Platform
	for _, p := range models.Platforms {
		if _, err := keyring.Get(keyringService, string(p)); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}
