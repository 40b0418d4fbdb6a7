package coordinator

import "errors"

// Sentinel errors for coordinator operations.
var (
	// ErrNoData indicates a fetch failed and no cached data exists to fall
	// back on. Callers should treat entity state as unknown.
	ErrNoData = errors.New("coordinator: no data available")

	// ErrInvalidData indicates the controller response failed shape
	// validation and no cache exists.
	ErrInvalidData = errors.New("coordinator: controller data failed validation")

	// ErrUnknownKind is returned for toggle requests on unrecognised kinds.
	ErrUnknownKind = errors.New("coordinator: unknown rule kind")
)
