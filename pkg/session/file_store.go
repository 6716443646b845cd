package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/pbkdf2"
	"profilegrab/pkg/models"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	// PassphraseEnv overrides the generated passphrase file
	PassphraseEnv  = "PROFILEGRAB_PASSPHRASE"
	passphraseFile = ".passphrase"
)

// FileStore keeps one AES-GCM encrypted cookie blob per platform in a
// directory, as <dir>/<platform>.cookies.
type FileStore struct {
	fs         afero.Fs
	dir        string
	passphrase string
	mu         sync.RWMutex
}

type blob struct {
	Version   int       `json:"version"`
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Modified  time.Time `json:"modified"`
}

// NewFileStore creates the cookie directory if needed
func NewFileStore(fs afero.Fs, dir, passphrase string) (*FileStore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{fs: fs, dir: dir, passphrase: passphrase}, nil
}

// Load decrypts the platform's blob
func (s *FileStore) Load(platform models.Platform) (*Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, err := afero.ReadFile(s.fs, cookieFile(s.dir, platform))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var b blob
	if err := json.Unmarshal(content, &b); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(b.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(b.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}

	plain, err := decrypt(sealed, s.key(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session data: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse session data: %w", err)
	}
	creds.Platform = platform
	return &creds, nil
}

// Save encrypts credentials under a fresh salt and replaces the blob atomically
func (s *FileStore) Save(creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	sealed, err := encrypt(plain, s.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	content, err := json.MarshalIndent(blob{
		Version:   1,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	path := cookieFile(s.dir, creds.Platform)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return s.fs.Rename(tmp, path)
}

// Delete removes the platform's blob
func (s *FileStore) Delete(platform models.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(cookieFile(s.dir, platform)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Platforms lists platforms that have a blob on disk
func (s *FileStore) Platforms() ([]models.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	var out []models.Platform
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".cookies")
		if !ok || e.IsDir() {
			continue
		}
		if p, err := models.ParsePlatform(name); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *FileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(s.passphrase), salt, iterations, keySize, sha256.New)
}

// ResolvePassphrase picks the encryption passphrase: the configured value,
// then PROFILEGRAB_PASSPHRASE, then <dir>/.passphrase, generating that
// file on first use.
func ResolvePassphrase(fs afero.Fs, dir, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}

	path := filepath.Join(dir, passphraseFile)
	if content, err := afero.ReadFile(fs, path); err == nil && len(content) > 0 {
		return strings.TrimSpace(string(content)), nil
	}

	if err := fs.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(raw)
	if err := afero.WriteFile(fs, path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
