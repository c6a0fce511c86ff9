// Package local manages operator configuration that lives outside the state
// store: knowledge document URLs and the generation API credentials.
package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deskhand/deskhand/internal/defaults"
)

// Settings holds local configuration for the daemon. The OpenAI key is
// operator-supplied; without it the LLM escalation path reports an error and
// everything else keeps working.
type Settings struct {
	Port            int    `json:"port"`
	FAQURL          string `json:"faqUrl"`
	TrainingURL     string `json:"trainingUrl"`
	OpenAIKey       string `json:"openaiKey,omitempty"`
	OpenAIModel     string `json:"openaiModel"`
	DefaultLanguage string `json:"defaultLanguage"`
}

// DefaultSettings returns sensible defaults
func DefaultSettings() Settings {
	return Settings{
		Port:            defaults.DefaultPort,
		FAQURL:          defaults.FAQURL,
		TrainingURL:     defaults.TrainingURL,
		OpenAIModel:     "gpt-4o-mini",
		DefaultLanguage: "en",
	}
}

// settingsPath returns the path to the local settings file
func settingsPath() (string, error) {
	dataDir, err := defaults.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "settings.json"), nil
}

// LoadSettings loads local settings, creating defaults if needed. Environment
// variables DESKHAND_OPENAI_KEY and DESKHAND_OPENAI_MODEL override the file.
func LoadSettings() (*Settings, error) {
	path, err := settingsPath()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	settings := DefaultSettings()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := SaveSettings(&settings); err != nil {
			return nil, err
		}
	}

	if key := os.Getenv("DESKHAND_OPENAI_KEY"); key != "" {
		settings.OpenAIKey = key
	}
	if model := os.Getenv("DESKHAND_OPENAI_MODEL"); model != "" {
		settings.OpenAIModel = model
	}
	settings.fillDefaults()

	return &settings, nil
}

// SaveSettings persists settings to disk
func SaveSettings(settings *Settings) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// fillDefaults backfills zero values so older settings files keep working.
func (s *Settings) fillDefaults() {
	if s.Port == 0 {
		s.Port = defaults.DefaultPort
	}
	if s.FAQURL == "" {
		s.FAQURL = defaults.FAQURL
	}
	if s.TrainingURL == "" {
		s.TrainingURL = defaults.TrainingURL
	}
	if s.OpenAIModel == "" {
		s.OpenAIModel = "gpt-4o-mini"
	}
	if s.DefaultLanguage == "" {
		s.DefaultLanguage = "en"
	}
}
