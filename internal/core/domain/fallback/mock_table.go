package fallback

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// MockEntry maps a path prefix to a canned JSON payload.
type MockEntry struct {
	Prefix  string
	Payload json.RawMessage
}

// MockTable is a read-only prefix table, ordered longest prefix first so that
// the first match is also the most specific one.
type MockTable struct {
	entries []MockEntry
}

// NewMockTable builds a table from prefix/payload pairs. Payloads must be valid JSON.
func NewMockTable(payloads map[string]json.RawMessage) (*MockTable, error) {
	entries := make([]MockEntry, 0, len(payloads))
	for prefix, payload := range payloads {
		if prefix == "" {
			return nil, fmt.Errorf("mock table: empty prefix")
		}
		if !json.Valid(payload) {
			return nil, fmt.Errorf("mock table: invalid JSON payload for %q", prefix)
		}
		entries = append(entries, MockEntry{Prefix: prefix, Payload: payload})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if len(entries[i].Prefix) != len(entries[j].Prefix) {
			return len(entries[i].Prefix) > len(entries[j].Prefix)
		}
		return entries[i].Prefix < entries[j].Prefix
	})
	return &MockTable{entries: entries}, nil
}

// Lookup returns the payload of the first entry whose prefix matches path.
func (t *MockTable) Lookup(path string) (json.RawMessage, bool) {
	if t == nil {
		return nil, false
	}
	for _, e := range t.entries {
		if strings.HasPrefix(path, e.Prefix) {
			return e.Payload, true
		}
	}
	return nil, false
}

// Prefixes returns the table's prefixes in match order.
func (t *MockTable) Prefixes() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Prefix
	}
	return out
}

// Entries returns the table in match order.
func (t *MockTable) Entries() []MockEntry {
	if t == nil {
		return nil
	}
	out := make([]MockEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// DefaultPayloads returns the built-in bookstore payloads under prefix.
func DefaultPayloads(prefix string) map[string]json.RawMessage {
	return map[string]json.RawMessage{
		prefix + "/books":              json.RawMessage(`{"books":[],"pagination":{"total_count":0}}`),
		prefix + "/categories":         json.RawMessage(`{"categories":[]}`),
		prefix + "/auth/token/refresh": json.RawMessage(`{"access_token":null,"refresh_token":null}`),
		prefix + "/auth/social":        json.RawMessage(`{"user":null,"access_token":null,"refresh_token":null}`),
		prefix + "/users/me":           json.RawMessage(`{"user":null}`),
		prefix + "/users":              json.RawMessage(`{"users":[],"pagination":{"total_count":0}}`),
		prefix + "/cart":               json.RawMessage(`{"items":[],"total_price":0}`),
		prefix + "/orders":             json.RawMessage(`{"orders":[],"pagination":{"total_count":0}}`),
		prefix + "/wishlist":           json.RawMessage(`{"items":[]}`),
		prefix + "/addresses":          json.RawMessage(`{"addresses":[]}`),
	}
}

// LoadMockTable builds the table from a JSON file of {prefix: payload}, or
// from the defaults when path is empty.
func LoadMockTable(path, prefix string) (*MockTable, error) {
	if path == "" {
		return NewMockTable(DefaultPayloads(prefix))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mock table: %w", err)
	}
	var payloads map[string]json.RawMessage
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("parse mock table: %w", err)
	}
	return NewMockTable(payloads)
}
