package autocompleter

import "errors"

// Sentinel errors for Engine-level validation failures. Per-component
// errors (unknown provider, malformed facets, empty item id) are defined
// in the query and index packages and propagate through these methods
// unwrapped via %w.

var (
	// ErrEmptyAutocompleterName is returned when RegisterProvider is
	// called with an empty autocompleter name. StoreAll and RemoveAll do
	// not check the name.
	ErrEmptyAutocompleterName = errors.New("autocompleter name must not be empty")

	// ErrNilProvider is returned when RegisterProvider is called with a
	// nil provider.Provider. Store and the other Engine methods do not
	// check for a nil provider.
	ErrNilProvider = errors.New("provider must not be nil")
)
