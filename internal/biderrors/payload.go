package biderrors

import "errors"

// Payload is the normalized form of an error as carried by error packets
type Payload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// codes pairs each sentinel with its wire code and the message clients
// display.
var codes = []struct {
	err     error
	code    string
	message string
}{
	{ErrMissingID, "MissingId", "Missing bid id"},
	{ErrMissingOwner, "MissingOwner", "Missing bid owner"},
	{ErrBidNotFound, "BidNotFound", "Bid not found"},
	{ErrBidCompleted, "BidCompleted", "Bid is completed"},
	{ErrUnknownState, "UnknownState", "Unknown bid state"},
	{ErrLockedByAnotherUser, "LockedByAnotherUser", "Locked by another user"},
	{ErrBidNotLocked, "BidNotLocked", "Bid is not locked"},
	{ErrSaveFailed, "SaveFailed", "Error saving bid"},
	{ErrInvalidQuery, "InvalidQuery", "Invalid query parameter"},
	{ErrStoreTimeout, "StoreTimeout", "Store operation timed out"},
	{ErrParser, "ParserError", "parser error"},
	{ErrUnknownType, "UnknownType", "Unknown packet type"},
	{ErrInvalidMethod, "InvalidMethod", "Invalid method"},
}

// Normalize maps err onto its wire payload. Unrecognized errors surface as
// StoreError with the full message.
func Normalize(err error) Payload {
	if err == nil {
		return Payload{Code: "Unknown", Message: "Unknown error"}
	}
	for _, c := range codes {
		if !errors.Is(err, c.err) {
			continue
		}
		p := Payload{Code: c.code, Message: c.message}
		var locked *LockedError
		if errors.As(err, &locked) {
			p.Data = map[string]any{"owner": locked.Owner}
		}
		return p
	}
	return Payload{Code: "StoreError", Message: err.Error()}
}

// Code returns the wire code for err.
func Code(err error) string {
	return Normalize(err).Code
}
