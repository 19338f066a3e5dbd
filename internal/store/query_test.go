package store

import (
	"testing"

	"bidio/internal/biderrors"
	"bidio/internal/models"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantAll    bool
		wantSingle bool
		wantID     int64
		wantErr    bool
	}{
		{name: "numeric_id", raw: `12`, wantSingle: true, wantID: 12},
		{name: "string_id", raw: `"12"`, wantSingle: true, wantID: 12},
		{name: "all_literal", raw: `"all"`, wantAll: true},
		{name: "all_id_object", raw: `{"id":"all"}`, wantAll: true},
		{name: "id_object", raw: `{"id":5}`, wantSingle: true, wantID: 5},
		{name: "field_object", raw: `{"state":0,"locked":true}`},
		{name: "id_and_field", raw: `{"id":5,"state":0}`, wantID: 5},
		{name: "bad_string", raw: `"some"`, wantErr: true},
		{name: "boolean", raw: `true`, wantErr: true},
		{name: "array", raw: `[1]`, wantErr: true},
		{name: "fraction", raw: `1.5`, wantErr: true},
		{name: "negative", raw: `-1`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			q, err := ParseQuery(json.RawMessage(tc.raw))
			if tc.wantErr {
				require.ErrorIs(t, err, biderrors.ErrInvalidQuery)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantAll, q.All)
			require.Equal(t, tc.wantSingle, q.Single)
			if tc.wantID != 0 {
				id, ok := q.ID()
				require.True(t, ok)
				require.Equal(t, tc.wantID, id)
			}
		})
	}
}

func TestQueryMatch(t *testing.T) {
	doc := models.Doc{
		"id":      float64(1),
		"state":   float64(0),
		"locked":  false,
		"details": "Hello World",
		"owner":   map[string]any{"id": "jb", "name": "John"},
		"tags":    []any{"a", "b"},
	}

	tests := []struct {
		name   string
		fields map[string]any
		want   bool
	}{
		{name: "number_equal", fields: map[string]any{"state": 0}, want: true},
		{name: "number_string_mismatch", fields: map[string]any{"state": "0"}, want: false},
		{name: "bool_equal", fields: map[string]any{"locked": false}, want: true},
		{name: "bool_vs_number", fields: map[string]any{"locked": 0}, want: false},
		{name: "substring", fields: map[string]any{"details": "o w"}, want: true},
		{name: "substring_miss", fields: map[string]any{"details": "bye"}, want: false},
		{name: "nested", fields: map[string]any{"owner": map[string]any{"name": "john"}}, want: true},
		{name: "nested_miss", fields: map[string]any{"owner": map[string]any{"id": "wc"}}, want: false},
		{name: "array_equal", fields: map[string]any{"tags": []any{"a", "b"}}, want: true},
		{name: "regex_chars_are_literal", fields: map[string]any{"details": ".*"}, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Where(tc.fields).Match(doc))
		})
	}

	require.True(t, QueryAll().Match(doc))
	require.False(t, Query{}.Match(doc))
}

func TestQueryWith(t *testing.T) {
	q := QueryID(4).With("saleDate", "10/14/2026")
	require.True(t, q.Single)
	require.Len(t, q.Fields, 2)

	all := QueryAll().With("saleDate", "10/14/2026")
	require.True(t, all.All)
	require.Empty(t, all.Fields)
}
