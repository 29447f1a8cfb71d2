package driver

import "errors"

// Domain errors for the driver package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, driver.ErrFieldNotFound) {
//	    // handle unknown field
//	}
var (
	// ErrDriverNotFound is returned when no driver has the given moniker or id.
	ErrDriverNotFound = errors.New("driver: not found")

	// ErrFieldNotFound is returned when a driver has no field of that name or id.
	ErrFieldNotFound = errors.New("driver: field not found")

	// ErrInvalidMoniker is returned when a moniker is empty or malformed.
	ErrInvalidMoniker = errors.New("driver: invalid moniker")

	// ErrInvalidFields is returned when a field declaration is rejected.
	ErrInvalidFields = errors.New("driver: invalid field declaration")

	// ErrNotWritable is returned when a client writes a read-only field.
	ErrNotWritable = errors.New("driver: field is not writable")
)
