package client

import "errors"

// ErrCancelled is returned when an outbound operation's cancellation
// signal fires before a reply arrives.
var ErrCancelled = errors.New("client: operation cancelled")

// ErrTimeout is returned when an outbound operation's deadline elapses
// before a reply arrives.
var ErrTimeout = errors.New("client: operation timed out")

// ErrSNA is returned by discovery helpers when a device answers a
// property-map Get with a service-not-available reply.
var ErrSNA = errors.New("client: remote replied service-not-available")

// ErrInvalidPropertyMap is returned when a remote's property-map EDT
// fails to decode. It indicates a protocol violation by the remote, so
// callers treat it as fatal to that one acquisition rather than retrying.
var ErrInvalidPropertyMap = errors.New("client: invalid property map payload")
