package models

import (
	"fmt"

	dErrors "walletfeed/pkg/domain-errors"
)

// Ack is an optional acknowledgement flag read from record metadata.
// The zero value means nothing has been recorded, which the feed treats as
// "not yet seen" so the notification stays visible.
type Ack struct {
	value    bool
	recorded bool
}

// Recorded returns an Ack holding v.
func Recorded(v bool) Ack {
	return Ack{value: v, recorded: true}
}

// Unrecorded returns the empty Ack.
func Unrecorded() Ack {
	return Ack{}
}

// IsRecorded reports whether any value was written, including false.
func (a Ack) IsRecorded() bool { return a.recorded }

// IsSet reports whether a true value was recorded.
func (a Ack) IsSet() bool { return a.recorded && a.value }

// Value returns the recorded value and whether one exists.
func (a Ack) Value() (bool, bool) { return a.value, a.recorded }

// MarshalJSON encodes an unrecorded Ack as null.
func (a Ack) MarshalJSON() ([]byte, error) {
	if !a.recorded {
		return []byte("null"), nil
	}
	if a.value {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}

// UnmarshalJSON accepts null, booleans and the loose shapes ParseAck allows.
func (a *Ack) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*a = Ack{}
	case "true":
		*a = Recorded(true)
	case "false":
		*a = Recorded(false)
	case `"true"`:
		*a = Recorded(true)
	case `"false"`:
		*a = Recorded(false)
	default:
		return dErrors.New(dErrors.CodeMalformedMetadata, fmt.Sprintf("unexpected acknowledgement value %s", data))
	}
	return nil
}

// ParseAck decodes an untyped metadata value. nil is unrecorded; booleans and
// the strings "true"/"false" are recorded. Anything else is malformed, and
// callers are expected to fall back to Unrecorded.
func ParseAck(raw any) (Ack, error) {
	switch v := raw.(type) {
	case nil:
		return Ack{}, nil
	case bool:
		return Recorded(v), nil
	case string:
		switch v {
		case "true":
			return Recorded(true), nil
		case "false":
			return Recorded(false), nil
		}
	}
	return Ack{}, dErrors.New(dErrors.CodeMalformedMetadata, fmt.Sprintf("unexpected acknowledgement type %T", raw))
}
