package transform

import "errors"

// ErrNoMatcher indicates a registration without a matcher or factory.
var ErrNoMatcher = errors.New("transform: registration has no matcher")
