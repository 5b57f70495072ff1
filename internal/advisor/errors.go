package advisor

import "errors"

var (
	ErrInvalidMonth    = errors.New("invalid month")
	ErrRateLimited     = errors.New("advisor provider rate limited")
	ErrRequestInvalid  = errors.New("advisor provider rejected request")
	ErrProviderTimeout = errors.New("advisor provider timeout")
)
