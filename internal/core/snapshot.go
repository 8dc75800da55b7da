package core

import (
	"github.com/goccy/go-json"
)

// CopyDoc deep-copies a JSON-shaped document. Broadcast payloads and
// archive snapshots must not alias maps the engine keeps mutating
// after the session lock is released.
func CopyDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
