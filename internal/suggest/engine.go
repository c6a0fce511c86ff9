// Package suggest turns a raw customer message into a suggested reply:
// keyword match over the FAQ base, then pattern match over trained intents,
// else a fixed default, with an optional LLM escalation path.
package suggest

import (
	"context"
	"math/rand"
	"strings"

	"github.com/deskhand/deskhand/internal/knowledge"
	"github.com/deskhand/deskhand/internal/types"
)

// Localized fixed responses. Kept in both languages, same as the knowledge
// entries themselves.
var (
	promptForInput = map[types.Language]string{
		types.LangEnglish: "Enter a customer question to get a suggestion",
		types.LangSwahili: "Weka swali la mteja ili upate pendekezo",
	}
	cannotHelp = map[types.Language]string{
		types.LangEnglish: "I can't help with this, an agent will respond shortly 👍",
		types.LangSwahili: "Siwezi kusaidia na hili, mwakilishi atajibu hivi karibuni 👍",
	}
)

// Engine produces suggestions from the knowledge store. Stateless apart from
// its dependencies; safe to call on every keystroke. Overlapping calls may
// complete in any order; rendering only the most recently initiated result
// is the caller's concern.
type Engine struct {
	knowledge *knowledge.Store
	generator Generator
	pick      func(n int) int
}

// Generator is the optional escalation backend (an LLM). Nil disables the
// escalation path.
type Generator interface {
	Generate(ctx context.Context, message string, lang types.Language, base *knowledge.Base) (string, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator installs the escalation backend.
func WithGenerator(g Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithPicker overrides intent response selection (tests).
func WithPicker(pick func(n int) int) Option {
	return func(e *Engine) { e.pick = pick }
}

// New creates a suggestion engine over the given knowledge store.
func New(ks *knowledge.Store, opts ...Option) *Engine {
	e := &Engine{knowledge: ks, pick: rand.Intn}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Suggest resolves a reply for message. Matching is case-insensitive
// substring containment; ties break to the first entry and first keyword in
// source order, no scoring. Never fails: the worst case is the localized
// default reply.
func (e *Engine) Suggest(ctx context.Context, message string, lang types.Language) types.Suggestion {
	lang = lang.Normalize()

	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return types.Suggestion{Text: promptForInput[lang], Matched: false, Source: types.SourceDefault}
	}
	lowered := strings.ToLower(trimmed)

	faqBase := e.knowledge.Resolve(ctx, knowledge.KindFAQ)
	for _, faq := range faqBase.FAQs {
		for _, keyword := range faq.Keywords {
			if keyword != "" && strings.Contains(lowered, strings.ToLower(keyword)) {
				return types.Suggestion{
					Text:    localized(lang, faq.Response, faq.ResponseSW),
					Matched: true,
					Source:  types.SourceFAQ,
				}
			}
		}
	}

	trainingBase := e.knowledge.Resolve(ctx, knowledge.KindTraining)
	for _, intent := range trainingBase.Intents {
		for _, pattern := range intent.Patterns {
			if pattern != "" && strings.Contains(lowered, strings.ToLower(pattern)) {
				return types.Suggestion{
					Text:    e.pickResponse(intent, lang),
					Matched: true,
					Source:  types.SourceIntent,
				}
			}
		}
	}

	return types.Suggestion{Text: cannotHelp[lang], Matched: false, Source: types.SourceDefault}
}

// Escalate asks the generation backend for a reply, grounded on the full
// resolved knowledge base. This path ignores the keyword/intent match result.
// Its error is the one failure in the system shown verbatim to the user, with
// retry left to them.
func (e *Engine) Escalate(ctx context.Context, message string, lang types.Language) (types.Suggestion, error) {
	if e.generator == nil {
		return types.Suggestion{}, ErrNoGenerator
	}
	lang = lang.Normalize()

	base := e.knowledge.Resolve(ctx, knowledge.KindFAQ)
	training := e.knowledge.Resolve(ctx, knowledge.KindTraining)
	grounding := &knowledge.Base{FAQs: base.FAQs, Intents: training.Intents}

	text, err := e.generator.Generate(ctx, message, lang, grounding)
	if err != nil {
		return types.Suggestion{}, err
	}
	return types.Suggestion{Text: text, Matched: true, Source: types.SourceLLM}, nil
}

// pickResponse draws uniformly from the matched intent's response list,
// preferring the localized list when present.
func (e *Engine) pickResponse(intent knowledge.Intent, lang types.Language) string {
	responses := intent.Responses
	if lang == types.LangSwahili && len(intent.ResponsesSW) > 0 {
		responses = intent.ResponsesSW
	}
	if len(responses) == 0 {
		return cannotHelp[lang]
	}
	return responses[e.pick(len(responses))]
}

func localized(lang types.Language, en, sw string) string {
	if lang == types.LangSwahili && sw != "" {
		return sw
	}
	return en
}
