package types

import "errors"

var (
	ErrInvalidAppID = errors.New("appId must be 1-128 characters, alphanumeric + underscore/hyphen only")
	ErrMissingAlias = errors.New("resolution entry requires a non-empty alias")
)
