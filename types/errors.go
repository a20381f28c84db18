package types

import "fmt"

// Sentinel errors shared across the service layers. Callers match with
// errors.Is and translate to transport-level responses at the edge.
var (
	ErrUnknownSource     = fmt.Errorf("unknown source")
	ErrItemNotFound      = fmt.Errorf("item not found")
	ErrJobNotFound       = fmt.Errorf("job not found")
	ErrDuplicateItem     = fmt.Errorf("item already added")
	ErrActiveJobExists   = fmt.Errorf("unprocessed job exists for item")
	ErrInvalidTransition = fmt.Errorf("invalid job transition")
)
