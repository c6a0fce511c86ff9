package platform

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		input string
		want  ID
	}{
		{"https://company.zendesk.com/tickets", Zendesk},
		{"company.zendesk.com", Zendesk},
		{"HTTPS://SUPPORT.ZENDESK.COM", Zendesk},
		{"https://acme.freshdesk.com/a/tickets/42", Freshdesk},
		{"https://www.facebook.com/messages", Facebook},
		{"https://hootsuite.com/dashboard", Hootsuite},
		{"https://web.freshchat.com/agent", Freshchat},
		{"https://app.intercom.com/inbox", Intercom},
		{"https://example.com", Unknown},
		{"", Unknown},
		{"not a url at all", Unknown},
		{"localhost:8080", Unknown},
	}

	for _, tc := range tests {
		got := Detect(tc.input)
		if got != tc.want {
			t.Errorf("Detect(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestDetectFirstMarkerWins(t *testing.T) {
	// Hostname containing two markers resolves to the earlier one in
	// detection order.
	got := Detect("zendesk-intercom-bridge.example.com")
	if got != Zendesk {
		t.Errorf("Detect = %q, want %q", got, Zendesk)
	}
}

func TestDetectBareHostnameVersusURL(t *testing.T) {
	// Both invocation styles (daemon sees full tab URLs, page contexts see
	// bare hostnames) must classify identically.
	if Detect("https://support.intercom.io/x") != Detect("support.intercom.io") {
		t.Error("URL and hostname forms disagree")
	}
}

func TestValid(t *testing.T) {
	for _, id := range All() {
		if !Valid(id) {
			t.Errorf("Valid(%q) = false, want true", id)
		}
	}
	if !Valid(Unknown) {
		t.Error("Valid(Unknown) = false, want true")
	}
	if Valid(ID("myspace")) {
		t.Error("Valid(myspace) = true, want false")
	}
}

type stubExtractor struct {
	id ID
}

func (s stubExtractor) Platform() ID                   { return s.id }
func (s stubExtractor) ExtractMessage() (string, bool) { return "", false }
func (s stubExtractor) PasteText(string) bool          { return false }

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Lookup(Zendesk); ok {
		t.Fatal("empty registry returned an extractor")
	}

	r.Register(stubExtractor{id: Zendesk})
	if _, ok := r.Lookup(Zendesk); !ok {
		t.Fatal("registered extractor not found")
	}
	if _, ok := r.Lookup(Intercom); ok {
		t.Fatal("lookup for unregistered platform succeeded")
	}

	// Unknown registrations are dropped.
	r.Register(stubExtractor{id: Unknown})
	if _, ok := r.Lookup(Unknown); ok {
		t.Fatal("Unknown extractor should not be registered")
	}
}
