package service

import "github.com/aussiebroadwan/tokenbridge/pkg/bridgesdk"

// ValidationError is a client-caused rejection. It maps to an OAuth2 error
// body with status 400.
type ValidationError struct {
	Code        string
	Description string
}

func (e *ValidationError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

func invalidRequest(description string) *ValidationError {
	return &ValidationError{Code: bridgesdk.ErrorCodeInvalidRequest, Description: description}
}
