package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound is returned when a stored product does not exist
	ErrProductNotFound = errors.New("product not found")

	// ErrJobNotFound is returned when an import job does not exist
	ErrJobNotFound = errors.New("import job not found")

	// ErrBrandNotFound is returned when a brand does not exist
	ErrBrandNotFound = errors.New("brand not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrNoMatchFound is returned when no fetched listing matches a stored product
	ErrNoMatchFound = errors.New("updated product data not found")

	// ErrInvalidTransition is returned when a job status change would move backwards
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrUnsupportedNetwork is returned when no adapter is registered for a network
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrAccountInvalid is returned when a provider rejects the brand account
	ErrAccountInvalid = errors.New("network account is not accessible")

	// ErrMalformedListing is returned by a mapper for a listing that cannot be normalized
	ErrMalformedListing = errors.New("malformed listing")
)

// AdapterError wraps a transport or provider failure of a network adapter
type AdapterError struct {
	Network Network
	Cause   error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter: %v", e.Network, e.Cause)
}

func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// NewAdapterError wraps cause for the given network
func NewAdapterError(network Network, cause error) *AdapterError {
	return &AdapterError{Network: network, Cause: cause}
}

// NormalizationWarning is a non-fatal problem found while normalizing one listing
type NormalizationWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w NormalizationWarning) String() string {
	return w.Field + ": " + w.Message
}

// PersistenceError wraps a storage failure with the operation that failed
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// IsPersistenceError reports whether err is or wraps a PersistenceError
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
