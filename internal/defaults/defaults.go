// Package defaults centralizes filesystem locations and built-in constants
// shared by every deskhand context.
package defaults

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// Version is the daemon release version.
	Version = "0.3.0"

	// DefaultPort is the local port the daemon listens on. Popup and content
	// contexts find the daemon here.
	DefaultPort = 27459

	// FAQURL and TrainingURL are the published knowledge documents.
	FAQURL      = "https://raw.githubusercontent.com/GtaKenyaLP/X-Bot-FAQ/refs/heads/main/faq.json"
	TrainingURL = "https://raw.githubusercontent.com/GtaKenyaLP/X-Bot-FAQ/refs/heads/main/training.json"

	// CacheTTL is how long a fetched knowledge document stays fresh.
	CacheTTL = 5 * time.Minute

	// PollInterval is how often a monitored tab is checked for a new
	// customer message.
	PollInterval = 2 * time.Second
)

// DataDir returns the deskhand data directory (~/.deskhand), without creating it.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".deskhand"), nil
}

// EnsureDataDir returns the data directory, creating it if needed.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// DatabasePath returns the sqlite file backing the state store.
func DatabasePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "deskhand.db"), nil
}
