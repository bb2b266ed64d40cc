package types

import (
	"regexp"
	"strings"
)

// appIDRegex matches an opaque identifier assigned at connect time:
// alphanumeric plus hyphen/underscore.
var appIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidAppID checks that an appId minted by the authenticator has a
// sane shape before it is placed in any registry.
func IsValidAppID(appID string) bool {
	if len(appID) < 1 || len(appID) > 128 {
		return false
	}
	return appIDRegex.MatchString(appID)
}

// NormalizeMethod lowercases a method name for resolution-table lookup.
// Lookup is required to be case-insensitive.
func NormalizeMethod(method string) string {
	return strings.ToLower(method)
}

// Validate checks the shape invariant on a resolution entry: alias is
// required, and event/request is a mutually exclusive shape.
func (e *ResolutionEntry) Validate() error {
	if e.Alias == "" {
		return ErrMissingAlias
	}
	return nil
}
