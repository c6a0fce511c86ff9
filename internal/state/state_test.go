package state

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	err := s.Set(map[string]json.RawMessage{
		KeyEnabled:     json.RawMessage(`true`),
		KeyLastMessage: json.RawMessage(`"hello"`),
	})
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	values, err := s.Get(KeyEnabled, KeyLastMessage, KeyPlatform)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(values[KeyEnabled]) != `true` {
		t.Errorf("enabled = %s, want true", values[KeyEnabled])
	}
	if string(values[KeyLastMessage]) != `"hello"` {
		t.Errorf("lastMessage = %s, want \"hello\"", values[KeyLastMessage])
	}
	if _, ok := values[KeyPlatform]; ok {
		t.Error("unset key present in result")
	}
}

func TestLastWriteWins(t *testing.T) {
	s := openTestStore(t)

	for _, v := range []string{`"first"`, `"second"`, `"third"`} {
		if err := s.Set(map[string]json.RawMessage{KeyLastMessage: json.RawMessage(v)}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	values, err := s.Get(KeyLastMessage)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(values[KeyLastMessage]) != `"third"` {
		t.Errorf("lastMessage = %s, want \"third\"", values[KeyLastMessage])
	}
}

func TestSubscribeFiresOnSet(t *testing.T) {
	s := openTestStore(t)

	var got map[string]json.RawMessage
	s.Subscribe(func(changed map[string]json.RawMessage) {
		got = changed
	})

	if err := s.SetJSON(KeyLanguage, "sw"); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}
	if got == nil {
		t.Fatal("subscriber did not fire")
	}
	if string(got[KeyLanguage]) != `"sw"` {
		t.Errorf("changed[language] = %s, want \"sw\"", got[KeyLanguage])
	}
}

func TestMemoryStoreDegradesGracefully(t *testing.T) {
	s := NewMemory()

	// Writes surface ErrStorageUnavailable but still take effect in-memory.
	err := s.Set(map[string]json.RawMessage{KeyEnabled: json.RawMessage(`false`)})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("Set error = %v, want ErrStorageUnavailable", err)
	}

	values, err := s.Get(KeyEnabled)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("Get error = %v, want ErrStorageUnavailable", err)
	}
	if string(values[KeyEnabled]) != `false` {
		t.Errorf("enabled = %s, want false (from mirror)", values[KeyEnabled])
	}
}

func TestPersistenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := s.SetJSON(KeyPlatform, "zendesk"); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer s2.Close()

	var got string
	ok, err := s2.GetJSON(KeyPlatform, &got)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !ok || got != "zendesk" {
		t.Errorf("platform = %q ok=%v, want zendesk", got, ok)
	}
}

func TestGetJSONMissingKey(t *testing.T) {
	s := openTestStore(t)

	var v string
	ok, err := s.GetJSON("nope", &v)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if ok {
		t.Error("GetJSON reported ok for a missing key")
	}
}
