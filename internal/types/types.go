// Package types defines the request/response protocol between the daemon and
// the popup/page contexts, and the shared state value they all observe.
package types

import "github.com/deskhand/deskhand/internal/platform"

// Language selects the reply language.
type Language string

const (
	LangEnglish Language = "en"
	LangSwahili Language = "sw"
)

// Normalize maps anything that is not Swahili to English.
func (l Language) Normalize() Language {
	if l == LangSwahili {
		return LangSwahili
	}
	return LangEnglish
}

// ExtensionState is the authoritative process-wide state, owned by the
// coordinator and mirrored into the state store.
type ExtensionState struct {
	Enabled          bool        `json:"enabled"`
	LastMessage      string      `json:"lastMessage"`
	DetectedPlatform platform.ID `json:"detectedPlatform"`
	Language         Language    `json:"languagePreference"`
}

// SuggestionSource says which pipeline stage produced a suggestion.
type SuggestionSource string

const (
	SourceFAQ     SuggestionSource = "faq"
	SourceIntent  SuggestionSource = "intent"
	SourceDefault SuggestionSource = "default"
	SourceLLM     SuggestionSource = "llm"
)

// Suggestion is an ephemeral suggested reply. Never persisted.
type Suggestion struct {
	Text    string           `json:"text"`
	Matched bool             `json:"matched"`
	Source  SuggestionSource `json:"source"`
}

// ToggleRequest flips the enabled flag.
type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// LanguageRequest sets the reply language preference.
type LanguageRequest struct {
	Language Language `json:"language"`
}

// CustomerMessage reports a newly observed inbound message from a page
// context.
type CustomerMessage struct {
	TabID    string      `json:"tabId"`
	Message  string      `json:"message"`
	Platform platform.ID `json:"platform"`
}

// SuggestRequest asks for a suggested reply to a customer message.
type SuggestRequest struct {
	Message  string   `json:"message"`
	Language Language `json:"language,omitempty"`
}

// Ack is the synchronous acknowledgement for state mutations.
type Ack struct {
	Success bool `json:"success"`
}

// Event is the broadcast frame pushed to every connected context.
type Event struct {
	Type     string          `json:"type"`
	State    *ExtensionState `json:"state,omitempty"`
	Message  string          `json:"message,omitempty"`
	Platform platform.ID     `json:"platform,omitempty"`
}

// Broadcast frame types.
const (
	EventStateChanged   = "stateChanged"
	EventMessageUpdated = "customerMessageUpdated"
)
