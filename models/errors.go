package models

import "fmt"

// Error codes used in logs and internal error handling.
const (
	ErrCodeBrowserLaunch   = "BROWSER_LAUNCH_FAILED"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeTimeout         = "ACTION_TIMEOUT"
	ErrCodeElementNotFound = "ELEMENT_NOT_FOUND"
	ErrCodeListingFetch    = "LISTING_FETCH_FAILED"
	ErrCodeListingParse    = "LISTING_PARSE_FAILED"
	ErrCodeWorkerPanic     = "WORKER_PANIC"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeNotFound        = "NOT_FOUND"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FeedError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type FeedError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new FeedError.
func NewFeedError(code, message string, err error) *FeedError {
	return &FeedError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *FeedError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
