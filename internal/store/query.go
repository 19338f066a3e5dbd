package store

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"bidio/internal/biderrors"
	"bidio/internal/models"

	"github.com/goccy/go-json"
)

// Query selects documents. All returns the whole namespace; otherwise every
// entry of Fields must match (logical AND):
//   - numbers and booleans match by exact equality
//   - strings match as a case-insensitive substring of the stored string
//   - null matches a null or missing field
//   - objects match field by field with the same rules
//
// Single marks a lookup by id alone, answered with one document.
type Query struct {
	All    bool
	Single bool
	Fields map[string]any
}

// QueryAll selects every document.
func QueryAll() Query {
	return Query{All: true}
}

// QueryID selects the document stored under id.
func QueryID(id int64) Query {
	return Query{Single: true, Fields: map[string]any{models.FieldID: float64(id)}}
}

// Where selects documents matching every field.
func Where(fields map[string]any) Query {
	q := Query{Fields: normalizeFields(fields)}
	if _, ok := q.onlyID(); ok {
		q.Single = true
	}
	return q
}

// ParseQuery reads a query as sent by clients: a bid id (number or digit
// string), the literal "all", or a field-equality object.
func ParseQuery(raw json.RawMessage) (Query, error) {
	if len(raw) == 0 {
		return Query{}, fmt.Errorf("store: empty query: %w", biderrors.ErrInvalidQuery)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Query{}, fmt.Errorf("store: parse query: %w", biderrors.ErrInvalidQuery)
	}
	switch x := v.(type) {
	case float64:
		id, ok := models.IntValue(x)
		if !ok || id < 0 {
			return Query{}, fmt.Errorf("store: query id %v: %w", x, biderrors.ErrInvalidQuery)
		}
		return QueryID(id), nil
	case string:
		if x == "all" {
			return QueryAll(), nil
		}
		id, err := strconv.ParseInt(x, 10, 64)
		if err != nil || id < 0 {
			return Query{}, fmt.Errorf("store: query %q: %w", x, biderrors.ErrInvalidQuery)
		}
		return QueryID(id), nil
	case map[string]any:
		if id, ok := x[models.FieldID]; ok && id == "all" && len(x) == 1 {
			return QueryAll(), nil
		}
		return Where(x), nil
	default:
		return Query{}, fmt.Errorf("store: query of type %T: %w", v, biderrors.ErrInvalidQuery)
	}
}

// With returns a copy of q carrying one more equality constraint. Queries
// for the whole namespace are returned unchanged.
func (q Query) With(field string, value any) Query {
	if q.All {
		return q
	}
	fields := make(map[string]any, len(q.Fields)+1)
	for k, v := range q.Fields {
		fields[k] = v
	}
	fields[field] = value
	return Query{Single: q.Single, Fields: normalizeFields(fields)}
}

// ID returns the id constrained by q, if any.
func (q Query) ID() (int64, bool) {
	v, ok := q.Fields[models.FieldID]
	if !ok {
		return 0, false
	}
	return models.IntValue(v)
}

func (q Query) onlyID() (int64, bool) {
	if q.All || len(q.Fields) != 1 {
		return 0, false
	}
	return q.ID()
}

// Match reports whether doc satisfies every field of q.
func (q Query) Match(doc models.Doc) bool {
	if q.All {
		return true
	}
	if len(q.Fields) == 0 {
		return false
	}
	return matchObject(map[string]any(doc), q.Fields)
}

func matchObject(obj, query map[string]any) bool {
	for k, want := range query {
		if !matchValue(obj[k], want) {
			return false
		}
	}
	return true
}

func matchValue(have, want any) bool {
	switch w := want.(type) {
	case nil:
		return have == nil
	case bool:
		h, ok := have.(bool)
		return ok && h == w
	case string:
		h, ok := have.(string)
		return ok && strings.Contains(strings.ToLower(h), strings.ToLower(w))
	case map[string]any:
		h, ok := asObject(have)
		return ok && matchObject(h, w)
	case []any:
		return reflect.DeepEqual(have, w)
	default:
		wf, ok := toFloat(w)
		if !ok {
			return false
		}
		hf, ok := toFloat(have)
		return ok && hf == wf
	}
}

func asObject(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case models.Doc:
		return x, true
	case models.Owner:
		return x, true
	default:
		return nil, false
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// normalizeFields gives query values the same shapes stored documents have.
func normalizeFields(fields map[string]any) map[string]any {
	doc, err := models.NormalizeDoc(models.Doc(fields))
	if err != nil {
		return fields
	}
	return doc
}
