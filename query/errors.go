package query

import "errors"

// ErrMalformedFacets is returned by Suggest when the facet expression
// fails facet.Validate.
var ErrMalformedFacets = errors.New("malformed facet expression")
