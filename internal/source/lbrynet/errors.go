package lbrynet

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork         = errors.New("network error")
	ErrInvalidResponse = errors.New("invalid response")
)

// FetchError describes a failed page request.
type FetchError struct {
	Method string
	Page   int
	Kind   error // ErrNetwork or ErrInvalidResponse
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s page %d: %v: %v", e.Method, e.Page, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func networkError(method string, page int, err error) error {
	return &FetchError{Method: method, Page: page, Kind: ErrNetwork, Err: err}
}

func invalidResponse(method string, page int, err error) error {
	return &FetchError{Method: method, Page: page, Kind: ErrInvalidResponse, Err: err}
}
