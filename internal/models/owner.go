package models

import (
	"strconv"

	"github.com/goccy/go-json"
)

// Owner identifies whoever holds or has held a lock on a bid. Only the id
// field is interpreted; name, color and the rest pass through untouched.
type Owner map[string]any

// OwnerID is the canonical JSON literal of an owner id, so 10 and "10" are
// distinct ids while both key the same owners entry.
type OwnerID string

// NewOwner builds an owner with the given id and display name.
func NewOwner(id any, name string) Owner {
	o := Owner{FieldID: id}
	if name != "" {
		o["name"] = name
	}
	return o
}

// OwnerIDOf canonicalizes a raw id value. Empty strings and non-scalar
// values are not ids.
func OwnerIDOf(v any) (OwnerID, bool) {
	switch x := v.(type) {
	case string:
		if x == "" {
			return "", false
		}
		return OwnerID(strconv.Quote(x)), true
	case float64:
		return OwnerID(strconv.FormatFloat(x, 'f', -1, 64)), true
	case int:
		return OwnerID(strconv.Itoa(x)), true
	case int64:
		return OwnerID(strconv.FormatInt(x, 10)), true
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return OwnerID(strconv.FormatFloat(f, 'f', -1, 64)), true
		}
		return "", false
	default:
		return "", false
	}
}

// Key is the owners-map key for id.
func (id OwnerID) Key() string {
	if s, err := strconv.Unquote(string(id)); err == nil {
		return s
	}
	return string(id)
}

// ID returns the owner's canonical id.
func (o Owner) ID() (OwnerID, bool) {
	if o == nil {
		return "", false
	}
	return OwnerIDOf(o[FieldID])
}

// Clone returns a deep copy of o.
func (o Owner) Clone() Owner {
	if o == nil {
		return nil
	}
	return Owner(Doc(o).Clone())
}

func ownerFrom(v any) (Owner, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case Owner:
		return x.Clone(), true
	case map[string]any:
		return Owner(x).Clone(), true
	case Doc:
		return Owner(x).Clone(), true
	default:
		return nil, false
	}
}
