package fieldio

import (
	"errors"
	"fmt"
)

// Domain errors for the field I/O protocol.
//
// Staleness is routine: drivers come and go while clients poll. Callers
// should check errors.Is(err, ErrStale) and rediscover rather than inspect
// which stamp mismatched.
var (
	// ErrStale is the common parent of the staleness errors.
	ErrStale = errors.New("fieldio: topology changed, resynchronise and retry")

	// ErrDriverListStale is returned when the client's driver list id no
	// longer matches the server's. The whole poll is rejected.
	ErrDriverListStale = fmt.Errorf("%w: driver list", ErrStale)

	// ErrFieldListStale is reported for a driver whose field list id no
	// longer matches. Only that driver's fields are rejected.
	ErrFieldListStale = fmt.Errorf("%w: field list", ErrStale)

	// ErrDuplicateDriver is returned when adding a driver id twice.
	ErrDuplicateDriver = errors.New("fieldio: duplicate driver id")

	// ErrDuplicateField is returned when adding a field id twice to a driver.
	ErrDuplicateField = errors.New("fieldio: duplicate field id")

	// ErrDecodingFailed is returned for a malformed wire message.
	ErrDecodingFailed = errors.New("fieldio: decoding failed")

	// ErrPollTooLarge is returned when a poll asks for more fields than the
	// server allows.
	ErrPollTooLarge = errors.New("fieldio: poll too large")

	// ErrTransport is returned when a transport fails for reasons other than
	// staleness.
	ErrTransport = errors.New("fieldio: transport failed")
)

// programming panics for conditions no valid input can produce.
func programming(format string, args ...any) {
	panic(fmt.Sprintf("fieldio: programming error: "+format, args...))
}
