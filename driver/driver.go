// Package driver defines the client capability used by tenantredis.
//
// A Driver opens connections to a cache server; a Conn is one connected
// session. tenantredis never interprets commands itself: everything beyond
// Auth and Select goes through Conn.Do as an opaque argument list.
//
// Implementations MUST map "unknown command" replies to ErrUnknownCommand
// (wrapped, so the server message survives) and MUST NOT retry at the Conn
// level beyond what the Endpoint asks for.
package driver

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoDriver is returned by Select when no driver is available.
	ErrNoDriver = errors.New("driver: no cache client available")
	// ErrUnknownCommand marks a command the server does not support.
	ErrUnknownCommand = errors.New("driver: unknown command")
)

// Endpoint describes where and how to connect.
type Endpoint struct {
	Host    string
	Port    int
	Timeout time.Duration // dial timeout

	// ConnName is non-empty for persistent connections. Drivers key their
	// long-lived pools by it so a later Open with the same name reattaches.
	ConnName   string
	Persistent bool

	// Credential fingerprints the secret the caller will pass to Conn.Auth
	// (empty when there is none). Drivers keep it in their pool key so a
	// pooled session authenticated under one credential is never handed to
	// an endpoint with another.
	Credential string

	RetryInterval time.Duration // 0 => no retry backoff
	ReadTimeout   time.Duration // 0 => no read timeout

	// Extra carries library-specific parameters untouched.
	Extra map[string]any
}

// Driver is a cache client implementation.
// Must be safe for concurrent use.
type Driver interface {
	// Name identifies the implementation in logs.
	Name() string
	// Available reports whether the implementation can be used in this process.
	Available() bool
	// Open establishes a connection. Auth and database selection are left
	// to the caller.
	Open(ctx context.Context, ep Endpoint) (Conn, error)
	// Close releases driver-owned resources (e.g. persistent pools).
	Close() error
}

// Conn is a single connected session. Not required to be safe for
// concurrent use; callers serialize.
type Conn interface {
	Auth(ctx context.Context, password string) error
	Select(ctx context.Context, index int) error

	// Do runs args[0] with the remaining args and returns the raw reply.
	Do(ctx context.Context, args ...any) (any, error)

	Close() error
}

// NilReplier is optionally implemented by a Conn whose client reports a
// missing value as an error (go-redis: redis.Nil).
type NilReplier interface {
	IsNil(err error) bool
}

// Select returns the first available driver in priority order.
func Select(drivers ...Driver) (Driver, error) {
	for _, d := range drivers {
		if d != nil && d.Available() {
			return d, nil
		}
	}
	return nil, ErrNoDriver
}
