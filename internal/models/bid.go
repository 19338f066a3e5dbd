package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Bid is the typed view of a bid document
type Bid struct {
	ID     int64
	Owner  Owner
	Owners map[string]Owner
	Locked bool
	State  State
	Fields map[string]any // application fields (description, saleDate, ...)
}

// BidFromDoc reads the reserved fields out of d and keeps the rest as Fields.
func BidFromDoc(d Doc) (Bid, error) {
	b := Bid{Owners: map[string]Owner{}, Fields: map[string]any{}}
	for k, v := range d {
		switch k {
		case FieldID:
			if v == nil {
				continue
			}
			id, ok := IntValue(v)
			if !ok {
				return Bid{}, fmt.Errorf("models: invalid bid id %v", v)
			}
			b.ID = id
		case FieldOwner:
			o, ok := ownerFrom(v)
			if !ok {
				return Bid{}, fmt.Errorf("models: invalid owner %v", v)
			}
			b.Owner = o
		case FieldOwners:
			if err := b.readOwners(v); err != nil {
				return Bid{}, err
			}
		case FieldLocked:
			switch x := v.(type) {
			case nil:
			case bool:
				b.Locked = x
			default:
				n, ok := IntValue(v)
				if !ok {
					return Bid{}, fmt.Errorf("models: invalid locked flag %v", v)
				}
				b.Locked = n != 0
			}
		case FieldState:
			if v == nil {
				continue
			}
			n, ok := IntValue(v)
			if !ok {
				return Bid{}, fmt.Errorf("models: invalid state %v", v)
			}
			b.State = State(n)
		default:
			b.Fields[k] = cloneValue(v)
		}
	}
	return b, nil
}

func (b *Bid) readOwners(v any) error {
	var m map[string]any
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		m = x
	case Doc:
		m = x
	case map[string]Owner:
		for k, o := range x {
			b.Owners[k] = o.Clone()
		}
		return nil
	default:
		return fmt.Errorf("models: invalid owners %v", v)
	}
	for k, raw := range m {
		o, ok := ownerFrom(raw)
		if !ok || o == nil {
			return fmt.Errorf("models: invalid owners entry %q", k)
		}
		b.Owners[k] = o
	}
	return nil
}

// Doc flattens b back into a document.
func (b Bid) Doc() Doc {
	d := make(Doc, len(b.Fields)+5)
	for k, v := range b.Fields {
		d[k] = cloneValue(v)
	}
	owners := make(map[string]any, len(b.Owners))
	for k, o := range b.Owners {
		owners[k] = map[string]any(o.Clone())
	}
	d[FieldID] = b.ID
	if b.Owner != nil {
		d[FieldOwner] = map[string]any(b.Owner.Clone())
	} else {
		d[FieldOwner] = nil
	}
	d[FieldOwners] = owners
	d[FieldLocked] = b.Locked
	d[FieldState] = int(b.State)
	return d
}

// OwnerID returns the id of the current lock holder, if any.
func (b Bid) OwnerID() (OwnerID, bool) {
	return b.Owner.ID()
}

// HeldByOther reports whether b is locked by an owner other than id.
func (b Bid) HeldByOther(id OwnerID) bool {
	if !b.Locked || b.Owner == nil {
		return false
	}
	current, ok := b.Owner.ID()
	return ok && current != id
}

// Record adds o to the owners history under its id.
func (b *Bid) Record(o Owner) {
	id, ok := o.ID()
	if !ok {
		return
	}
	if b.Owners == nil {
		b.Owners = map[string]Owner{}
	}
	b.Owners[id.Key()] = o.Clone()
}

func (b Bid) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Doc())
}

func (b *Bid) UnmarshalJSON(data []byte) error {
	var d Doc
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	parsed, err := BidFromDoc(d)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
