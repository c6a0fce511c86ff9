package platform

import "sync"

// Extractor is the capability a page context provides for one platform.
// Implementations are DOM lookups on the far side of the protocol; the
// contract here is that reads are idempotent and side-effect free, and
// failures are reported as ok=false rather than panics or errors.
type Extractor interface {
	// Platform returns the platform this extractor handles.
	Platform() ID

	// ExtractMessage returns the newest inbound customer message on the
	// page. ok is false when no message element could be found.
	ExtractMessage() (message string, ok bool)

	// PasteText writes text into the platform's reply input. Returns false
	// when the input field is missing or not writable.
	PasteText(text string) bool
}

// Registry maps platform IDs to their extractor implementations. It replaces
// the switch-on-platform-string ladder: page brittleness stays inside each
// Extractor, the pipeline only sees the interface.
type Registry struct {
	mu         sync.RWMutex
	extractors map[ID]Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[ID]Extractor)}
}

// Register installs an extractor for its platform, replacing any previous one.
// Registering an extractor for Unknown is ignored.
func (r *Registry) Register(e Extractor) {
	if e == nil || e.Platform() == Unknown {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[e.Platform()] = e
}

// Lookup returns the extractor for a platform, if one is registered.
func (r *Registry) Lookup(id ID) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[id]
	return e, ok
}
