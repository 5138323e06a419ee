package bluez

import "errors"

// ErrMalformedReply marks a bus reply whose shape or typing did not match
// the BlueZ interface contract, e.g. a required property missing from a
// snapshot. Transport errors are wrapped dbus errors instead, and a lookup
// that simply finds nothing returns a nil result rather than an error.
var ErrMalformedReply = errors.New("bluez: malformed reply")

// Agent callback results understood by BlueZ. Anything else returned from an
// Agent method is reported to BlueZ as a rejection.
var (
	ErrRejected = errors.New("bluez: rejected")
	ErrCanceled = errors.New("bluez: canceled")
)
