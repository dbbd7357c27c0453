package manifest

import "errors"

var (
	errMissing  = errors.New("missing")
	errNegative = errors.New("must not be negative")
)
