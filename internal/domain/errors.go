package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrFetch           = errors.New("could not fetch from product api")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrMalformedState  = errors.New("malformed persisted state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidCustomer = errors.New("customer details are incomplete")
	ErrSizeRequired    = errors.New("please select a size")
	ErrUnknownSize     = errors.New("size not available for this product")
)

// FetchError carries the HTTP status of a failed product API call. Status is
// zero for transport and decoding failures.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("product api status %d", e.Status)
	}
	if e.Err != nil {
		return "product api: " + e.Err.Error()
	}
	return ErrFetch.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }
