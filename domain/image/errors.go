package image

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindInvalidURL      Kind = "InvalidURL"
	KindNotAnImage      Kind = "NotAnImage"
	KindUpstreamError   Kind = "UpstreamError"
	KindDownloadTimeout Kind = "DownloadTimeout"
	KindTransferFailed  Kind = "TransferFailed"
	KindWriteFailed     Kind = "WriteFailed"
	KindImageTooLarge   Kind = "ImageTooLarge"
	KindUnauthorized    Kind = "Unauthorized"
	KindNotFound        Kind = "NotFound"
	KindInternal        Kind = "InternalError"
)

// Sentinels usable with errors.Is.
var (
	ErrInvalidURL      = &Error{Kind: KindInvalidURL}
	ErrNotAnImage      = &Error{Kind: KindNotAnImage}
	ErrUpstream        = &Error{Kind: KindUpstreamError}
	ErrDownloadTimeout = &Error{Kind: KindDownloadTimeout}
	ErrTransferFailed  = &Error{Kind: KindTransferFailed}
	ErrWriteFailed     = &Error{Kind: KindWriteFailed}
	ErrImageTooLarge   = &Error{Kind: KindImageTooLarge}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInternal        = &Error{Kind: KindInternal}

	// ErrIdentifierCollision is returned by a persister when the final path
	// already exists. It is retryable with a fresh identifier.
	ErrIdentifierCollision = errors.New("identifier already in use")
)

// Error is a classified pipeline failure. Err carries the internal cause and
// is never shown to callers.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Kind == KindUpstreamError && e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Error wrapping functions with context

func ErrInvalidURLf(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidURL, Err: fmt.Errorf(format, args...)}
}

func ErrUpstreamStatus(statusCode int) error {
	return &Error{Kind: KindUpstreamError, StatusCode: statusCode}
}

func ErrNotAnImageType(contentType string) error {
	return &Error{Kind: KindNotAnImage, Err: fmt.Errorf("content type %q", contentType)}
}

func ErrTransfer(err error) error {
	return &Error{Kind: KindTransferFailed, Err: err}
}

func ErrTimeout(err error) error {
	return &Error{Kind: KindDownloadTimeout, Err: err}
}

// ErrTransferCause classifies a failure while talking to upstream: a passed
// deadline is a timeout, anything else a failed transfer. Already classified
// errors are returned unchanged.
func ErrTransferCause(ctx context.Context, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout(err)
	}
	return ErrTransfer(err)
}

func ErrWrite(err error) error {
	return &Error{Kind: KindWriteFailed, Err: err}
}

func ErrTooLarge(limit int64) error {
	return &Error{Kind: KindImageTooLarge, Err: fmt.Errorf("exceeds %d bytes", limit)}
}

func ErrInternalCause(err error) error {
	return &Error{Kind: KindInternal, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCodeOf returns the upstream status carried by an UpstreamError.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
