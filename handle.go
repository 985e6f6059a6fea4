package tenantredis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/tenantredis/driver"
)

// Handle is the connected session of one tenant. It is owned by the Factory
// that created it and becomes unusable once the tenant is released.
//
// Calls are serialized: a tenant has exactly one connection.
type Handle struct {
	tenant     string
	persistent bool
	hooks      Hooks

	mu     sync.Mutex
	conn   driver.Conn
	closed atomic.Bool // written under mu; read without it
}

func newHandle(tenant string, persistent bool, conn driver.Conn, hooks Hooks) *Handle {
	return &Handle{tenant: tenant, persistent: persistent, conn: conn, hooks: hooks}
}

func (h *Handle) Tenant() string   { return h.tenant }
func (h *Handle) Persistent() bool { return h.persistent }

// Do forwards command and args to the tenant's client and returns its reply
// unchanged. The command is not interpreted; an empty name or one the server
// rejects as unknown yields *UnsupportedError.
func (h *Handle) Do(ctx context.Context, command string, args ...any) (any, error) {
	if command == "" {
		return nil, &UnsupportedError{Tenant: h.tenant}
	}

	full := make([]any, 0, len(args)+1)
	full = append(full, command)
	full = append(full, args...)

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrClosed, h.tenant)
	}
	v, err := h.conn.Do(ctx, full...)
	h.mu.Unlock()

	if err == nil {
		return v, nil
	}
	if errors.Is(err, driver.ErrUnknownCommand) {
		err = &UnsupportedError{Tenant: h.tenant, Command: command, Err: err}
	}
	if !h.isNil(err) {
		h.hooks.CommandFailed(h.tenant, command, err)
	}
	return v, err
}

// Closed reports whether the handle was released. It does not wait for a
// command in flight.
func (h *Handle) Closed() bool { return h.closed.Load() }

func (h *Handle) isNil(err error) bool {
	nr, ok := h.conn.(driver.NilReplier)
	return ok && nr.IsNil(err)
}

// close is idempotent; only the first call reaches the connection.
func (h *Handle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Load() {
		return nil
	}
	h.closed.Store(true)
	return h.conn.Close()
}
