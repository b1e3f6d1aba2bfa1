package errors

import (
	"errors"
	"fmt"
)

// ProviderFetchError wraps a failure while fetching from a single metadata provider.
// It never crosses the provider adapter boundary; the adapter logs it and treats
// the source as having returned nothing.
type ProviderFetchError struct {
	Provider   string
	Identifier string
	Err        error
}

func (e *ProviderFetchError) Error() string {
	return fmt.Sprintf("%s fetch for %q: %v", e.Provider, e.Identifier, e.Err)
}

func (e *ProviderFetchError) Unwrap() error {
	return e.Err
}

// NewProviderFetchError wraps err with the provider name and lookup identifier.
func NewProviderFetchError(provider, identifier string, err error) *ProviderFetchError {
	return &ProviderFetchError{Provider: provider, Identifier: identifier, Err: err}
}

// IsProviderFetchError reports whether err is a ProviderFetchError (even when wrapped).
func IsProviderFetchError(err error) bool {
	var pfErr *ProviderFetchError
	return errors.As(err, &pfErr)
}
