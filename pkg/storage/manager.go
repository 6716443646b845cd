// Package storage lays out a scrape run's output under the working root:
//
//	<root>/<platform>/<username>/info.json
//	<root>/<platform>/<username>/history.txt
//	<root>/<platform>/<username>/<media files>
//
// Media writes go to a temporary file first and are renamed into place, so a
// filename that exists on disk is always a complete download.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"
	"profilegrab/pkg/models"
)

const (
	// ProfileFile is the per-user profile record
	ProfileFile = "info.json"
	// HistoryFile is the per-user download ledger
	HistoryFile = "history.txt"

	tempSuffix = ".part"

	maxUsernameLen = 100
)

// handlePattern is the character set of a profile handle on every supported
// platform. Usernames end up in paths, URLs and CSS selectors.
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Manager handles file storage under one working root
type Manager struct {
	fs   afero.Fs
	root string
}

// NewManager creates a storage manager rooted at root. The root itself is
// created lazily by UserDir.
func NewManager(fs afero.Fs, root string) *Manager {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Manager{fs: fs, root: root}
}

// Fs returns the filesystem the manager writes to
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// Root returns the working root
func (m *Manager) Root() string {
	return m.root
}

// Dir returns the output folder for one user without creating it
func (m *Manager) Dir(platform models.Platform, username string) string {
	return filepath.Join(m.root, string(platform), username)
}

// HistoryPath returns the location of a user's history log
func (m *Manager) HistoryPath(platform models.Platform, username string) string {
	return filepath.Join(m.Dir(platform, username), HistoryFile)
}

// UserDir creates and returns the output folder for one user
func (m *Manager) UserDir(platform models.Platform, username string) (string, error) {
	if err := ValidateUsername(username); err != nil {
		return "", err
	}
	dir := m.Dir(platform, username)
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// ValidateUsername rejects names that would escape the platform folder
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("username is required")
	case username == "." || username == "..":
		return fmt.Errorf("invalid username %q", username)
	case len(username) > maxUsernameLen || !handlePattern.MatchString(username):
		return fmt.Errorf("invalid username %q: only letters, digits, '.', '_' and '-' are allowed", username)
	}
	return nil
}

// SaveProfile writes the profile as pretty-printed JSON into dir
func (m *Manager) SaveProfile(dir string, profile models.Profile) error {
	data, err := json.MarshalIndent(profile, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	return m.writeAtomic(filepath.Join(dir, ProfileFile), func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

// LoadProfile reads info.json from dir
func (m *Manager) LoadProfile(dir string) (models.Profile, error) {
	var p models.Profile
	data, err := afero.ReadFile(m.fs, filepath.Join(dir, ProfileFile))
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p, nil
}

// Exists reports whether dir/filename is present
func (m *Manager) Exists(dir, filename string) bool {
	ok, err := afero.Exists(m.fs, filepath.Join(dir, filename))
	return err == nil && ok
}

// SaveMedia streams r into dir/filename and returns the bytes written
func (m *Manager) SaveMedia(dir, filename string, r io.Reader) (int64, error) {
	var n int64
	err := m.writeAtomic(filepath.Join(dir, filename), func(w io.Writer) error {
		var err error
		n, err = io.Copy(w, r)
		return err
	})
	return n, err
}

// UserExists reports whether a previous run produced output for this user
func (m *Manager) UserExists(platform models.Platform, username string) bool {
	if ValidateUsername(username) != nil {
		return false
	}
	ok, err := afero.DirExists(m.fs, m.Dir(platform, username))
	return err == nil && ok
}

// ListUsers returns the usernames with an output folder for platform
func (m *Manager) ListUsers(platform models.Platform) ([]string, error) {
	entries, err := afero.ReadDir(m.fs, filepath.Join(m.root, string(platform)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var users []string
	for _, e := range entries {
		if e.IsDir() {
			users = append(users, e.Name())
		}
	}
	return users, nil
}

func (m *Manager) writeAtomic(path string, write func(io.Writer) error) error {
	tmp := path + tempSuffix
	out, err := m.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	err = write(out)
	closeErr := out.Close()

	if err != nil {
		m.fs.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if closeErr != nil {
		m.fs.Remove(tmp)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := m.fs.Rename(tmp, path); err != nil {
		m.fs.Remove(tmp)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
