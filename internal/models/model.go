package models

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Reserved document fields managed by the bid state machine
const (
	FieldID     = "id"
	FieldOwner  = "owner"
	FieldOwners = "owners"
	FieldLocked = "locked"
	FieldState  = "state"
)

// State is the lifecycle stage of a bid
type State int

const (
	StateCreated State = iota
	StatePending
	StateComplete
)

// Valid reports whether s is one of the known lifecycle stages
func (s State) Valid() bool {
	return s >= StateCreated && s <= StateComplete
}

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePending:
		return "pending"
	case StateComplete:
		return "complete"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Doc is a bid document as persisted by the store: the reserved fields plus
// any application fields merged in by callers.
type Doc map[string]any

// Clone returns a deep copy of d.
func (d Doc) Clone() Doc {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// NormalizeDoc passes d through JSON so every backend sees the same value
// types (float64 numbers, map[string]any objects, []any arrays).
func NormalizeDoc(d Doc) (Doc, error) {
	if d == nil {
		return nil, nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("models: encode doc: %w", err)
	}
	var out Doc
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("models: decode doc: %w", err)
	}
	return out, nil
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = cloneValue(val)
		}
		return out
	case Doc:
		return Doc(cloneValue(map[string]any(x)).(map[string]any))
	case Owner:
		return Owner(cloneValue(map[string]any(x)).(map[string]any))
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// DefaultDoc returns a copy of data carrying id and the default bid fields
// for any that are absent.
func DefaultDoc(id int64, data Doc) Doc {
	doc := data.Clone()
	if doc == nil {
		doc = Doc{}
	}
	doc[FieldID] = id
	if _, ok := doc[FieldOwners]; !ok || doc[FieldOwners] == nil {
		doc[FieldOwners] = map[string]any{}
	}
	if _, ok := doc[FieldOwner]; !ok {
		doc[FieldOwner] = nil
	}
	if _, ok := doc[FieldLocked]; !ok || doc[FieldLocked] == nil {
		doc[FieldLocked] = false
	}
	if _, ok := doc[FieldState]; !ok || doc[FieldState] == nil {
		doc[FieldState] = int(StateCreated)
	}
	return doc
}

// IntValue converts a JSON-ish number into an int64.
func IntValue(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != float64(int64(x)) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
