package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeFetchTimeout means the readiness marker never appeared
	ErrorTypeFetchTimeout ErrorType = "fetch_timeout"
	// ErrorTypeNavigation represents network, DNS or page load failures
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeSession represents a browser that could not be started
	ErrorTypeSession ErrorType = "session"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeStore represents spreadsheet read/write errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Sentinels for errors.Is matching on the error type alone.
var (
	ErrFetchTimeout  = &ScrapeError{Type: ErrorTypeFetchTimeout}
	ErrNavigation    = &ScrapeError{Type: ErrorTypeNavigation}
	ErrSession       = &ScrapeError{Type: ErrorTypeSession}
	ErrParsing       = &ScrapeError{Type: ErrorTypeParsing}
	ErrRateLimit     = &ScrapeError{Type: ErrorTypeRateLimit}
	ErrStore         = &ScrapeError{Type: ErrorTypeStore}
	ErrConfiguration = &ScrapeError{Type: ErrorTypeConfiguration}
)

// ScrapeError represents a failure tied to one url or artifact
type ScrapeError struct {
	Type    ErrorType
	URL     string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.URL, e.Message)
}

// Unwrap returns the underlying error
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ScrapeError of the same type
func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// IsRetryable returns true if the error is retryable
func (e *ScrapeError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNavigation:
		return true
	default:
		return false
	}
}

// IsFetchFailure reports whether the error is one a worker turns into an empty record
func (e *ScrapeError) IsFetchFailure() bool {
	switch e.Type {
	case ErrorTypeFetchTimeout, ErrorTypeNavigation, ErrorTypeSession, ErrorTypeParsing, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// New creates a new ScrapeError
func New(errType ErrorType, url, message string, err error) *ScrapeError {
	return &ScrapeError{
		Type:    errType,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewFetchTimeout creates a new fetch timeout error
func NewFetchTimeout(url string, timeout time.Duration, err error) *ScrapeError {
	message := fmt.Sprintf("content not ready after %v", timeout)
	return New(ErrorTypeFetchTimeout, url, message, err)
}

// NewNavigation creates a new navigation error
func NewNavigation(url, message string, err error) *ScrapeError {
	return New(ErrorTypeNavigation, url, message, err)
}

// NewSession creates a new browser session error
func NewSession(url, message string, err error) *ScrapeError {
	return New(ErrorTypeSession, url, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(url, message string, err error) *ScrapeError {
	return New(ErrorTypeParsing, url, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(url, retryAfter string) *ScrapeError {
	message := fmt.Sprintf("rate limited; retry after %q", retryAfter)
	return New(ErrorTypeRateLimit, url, message, nil)
}

// NewStore creates a new store error for the given artifact path
func NewStore(path, message string, err error) *ScrapeError {
	return New(ErrorTypeStore, path, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScrapeError {
	return New(ErrorTypeConfiguration, "", message, err)
}
