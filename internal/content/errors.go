package content

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error codes reported by Code() on the errors of this package.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeInvalidContent  = "INVALID_CONTENT"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeUnavailable     = "UNAVAILABLE"
)

// ErrInvalidIdentifier is returned for identifiers that cannot name an article.
var ErrInvalidIdentifier = errors.New("content: invalid identifier")

// Provider implementations wrap their failures with these so the fetcher can
// classify them.
var (
	ErrNotFound     = errors.New("content: not found")
	ErrUnauthorized = errors.New("content: unauthorized")
	ErrRateLimited  = errors.New("content: rate limited")
	ErrTransport    = errors.New("content: transport failure")
)

// Source tells where a payload came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
)

// ValidationError reports a cached or fetched payload that is not text.
type ValidationError struct {
	Key    string
	Source Source
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("content %q from %s is not text: %s", e.Key, e.Source, e.Reason)
}

// Code returns CodeInvalidContent.
func (e *ValidationError) Code() string {
	return CodeInvalidContent
}

// FetchErrorKind classifies a failed provider call.
type FetchErrorKind string

const (
	KindNotFound     FetchErrorKind = "not_found"
	KindUnauthorized FetchErrorKind = "unauthorized"
	KindRateLimited  FetchErrorKind = "rate_limited"
	KindTransport    FetchErrorKind = "transport"
	KindUpstream     FetchErrorKind = "upstream"
)

// RemoteFetchError wraps any failure of the content provider. It is never retried.
type RemoteFetchError struct {
	Path string
	Kind FetchErrorKind
	Err  error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// Code maps the failure kind onto an error code.
func (e *RemoteFetchError) Code() string {
	switch e.Kind {
	case KindNotFound:
		return CodeNotFound
	case KindUnauthorized:
		return CodeUnauthenticated
	case KindRateLimited:
		return CodeRateLimited
	default:
		return CodeUnavailable
	}
}

func classify(err error) FetchErrorKind {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr):
		return KindTransport
	default:
		return KindUpstream
	}
}
