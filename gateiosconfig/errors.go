package gateiosconfig

import "errors"

var (
	// ErrMissingBaseURL indicates base_url was not configured.
	ErrMissingBaseURL = errors.New("base_url is required in configuration")

	// ErrMissingBundleIdentifier indicates bundle_identifier was not configured.
	ErrMissingBundleIdentifier = errors.New("bundle_identifier is required in configuration")

	// ErrInvalidTeamIdentifier indicates team_identifier is not exactly
	// 10 alphanumeric characters.
	ErrInvalidTeamIdentifier = errors.New("team_identifier must be exactly 10 alphanumeric characters")

	// ErrInvalidEnvironment indicates an unrecognized Environment value.
	ErrInvalidEnvironment = errors.New("environment must be \"device\" or \"simulator\"")
)
