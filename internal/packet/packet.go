// Package packet implements the bid wire format: a one-digit type index,
// an optional decimal bid id and an optional JSON payload, concatenated
// without separators.
//
//	2123{"owner":{"id":10}}  => lock bid 123 as owner 10
//	1{"query":"all"}         => query every bid
//
// The type order below is part of the protocol and must never change.
package packet

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"bidio/internal/biderrors"

	"github.com/goccy/go-json"
)

// Type is an operation carried by a packet
type Type int

const (
	Fetch Type = iota
	Query
	Lock
	Unlock
	Pending
	Complete
	Claim
	ForceUnlock
	Error
	Update
)

var names = [...]string{
	Fetch:       "fetch",
	Query:       "query",
	Lock:        "lock",
	Unlock:      "unlock",
	Pending:     "pending",
	Complete:    "complete",
	Claim:       "claim",
	ForceUnlock: "forceunlock",
	Error:       "error",
	Update:      "update",
}

// Types lists every packet type in wire order.
func Types() []Type {
	out := make([]Type, len(names))
	for i := range names {
		out[i] = Type(i)
	}
	return out
}

func (t Type) Valid() bool {
	return t >= 0 && int(t) < len(names)
}

func (t Type) String() string {
	if !t.Valid() {
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
	return names[t]
}

// ParseType resolves an operation name such as "forceunlock".
func ParseType(name string) (Type, bool) {
	for i, n := range names {
		if n == name {
			return Type(i), true
		}
	}
	return 0, false
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("packet: %w: %d", biderrors.ErrUnknownType, int(t))
	}
	return []byte(names[t]), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, ok := ParseType(string(text))
	if !ok {
		return fmt.Errorf("packet: %w: %q", biderrors.ErrUnknownType, text)
	}
	*t = parsed
	return nil
}

// ErrAmbiguousData is returned when a payload would start with a digit and
// so could not be told apart from the bid id.
var ErrAmbiguousData = errors.New("packet: payload must not start with a digit")

// Packet is the decoded wire unit
type Packet struct {
	Type Type
	ID   *int64
	Data json.RawMessage
}

// ID returns a pointer to id, for building packets.
func ID(id int64) *int64 {
	return &id
}

// New builds a packet, marshaling data when it is not nil.
func New(t Type, id *int64, data any) (Packet, error) {
	p := Packet{Type: t, ID: id}
	if data == nil {
		return p, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Packet{}, fmt.Errorf("packet: marshal %s data: %w", t, err)
	}
	if !bytes.Equal(raw, []byte("null")) {
		p.Data = raw
	}
	return p, nil
}

// EncodedParserError is ParserError in wire form.
const EncodedParserError = `8"parser error"`

// ParserError is the packet substituted for anything that fails to decode.
func ParserError() Packet {
	return Packet{Type: Error, Data: json.RawMessage(`"parser error"`)}
}

// Bind unmarshals the payload into v. An absent payload leaves v untouched.
func (p Packet) Bind(v any) error {
	if len(p.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(p.Data, v); err != nil {
		return fmt.Errorf("packet: bind %s data: %w", p.Type, err)
	}
	return nil
}

// Encode renders p in wire form. Unknown types, negative ids and payloads
// that begin with a digit are rejected.
func Encode(p Packet) (string, error) {
	if !p.Type.Valid() {
		return "", fmt.Errorf("packet: encode: %w: %d", biderrors.ErrUnknownType, int(p.Type))
	}
	var buf bytes.Buffer
	buf.WriteByte(byte('0' + p.Type))
	if p.ID != nil {
		if *p.ID < 0 {
			return "", fmt.Errorf("packet: encode: negative id %d", *p.ID)
		}
		buf.WriteString(strconv.FormatInt(*p.ID, 10))
	}
	if len(p.Data) > 0 && !bytes.Equal(bytes.TrimSpace(p.Data), []byte("null")) {
		// goccy's Compact rewrites whatever dst already holds, so the
		// payload is compacted on its own and appended after the header.
		var data bytes.Buffer
		if err := json.Compact(&data, p.Data); err != nil {
			return "", fmt.Errorf("packet: encode %s data: %w", p.Type, err)
		}
		if data.Len() > 0 && isDigit(data.Bytes()[0]) {
			return "", ErrAmbiguousData
		}
		buf.Write(data.Bytes())
	}
	return buf.String(), nil
}

// MustEncode is Encode for packets built by this process; it panics on
// failure since that can only be a programming error.
func MustEncode(p Packet) string {
	s, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode parses a wire string. On any failure it returns the ParserError
// packet together with an error wrapping biderrors.ErrParser.
func Decode(s string) (Packet, error) {
	if s == "" || !isDigit(s[0]) {
		return ParserError(), fmt.Errorf("packet: decode %q: %w", s, biderrors.ErrParser)
	}
	p := Packet{Type: Type(s[0] - '0')}
	if !p.Type.Valid() {
		return ParserError(), fmt.Errorf("packet: decode %q: %w", s, biderrors.ErrParser)
	}

	i := 1
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i > 1 {
		id, err := strconv.ParseInt(s[1:i], 10, 64)
		if err != nil {
			return ParserError(), fmt.Errorf("packet: decode id %q: %w", s[1:i], biderrors.ErrParser)
		}
		p.ID = &id
	}

	if rest := s[i:]; rest != "" {
		if !json.Valid([]byte(rest)) {
			return ParserError(), fmt.Errorf("packet: decode data: %w", biderrors.ErrParser)
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
