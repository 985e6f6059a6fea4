package tenantredis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/tenantredis/driver"
)

var (
	errFakeNil = errors.New("fake: nil")
	errBoom    = errors.New("fake: boom")
)

// fakeDriver hands out in-memory conns. Each Open gets its own store, so
// two tenants never see each other's keys.
type fakeDriver struct {
	name        string
	unavailable bool
	openDelay   time.Duration

	// failures keyed by Endpoint.Host
	openErr   map[string]error
	authErr   map[string]error
	selectErr map[string]error

	// BLOCK signals on blocking, then waits for block to close
	blocking chan struct{}
	block    chan struct{}

	opens  atomic.Int32
	closed atomic.Bool

	mu    sync.Mutex
	conns []*fakeConn
}

var _ driver.Driver = (*fakeDriver)(nil)

func (d *fakeDriver) Name() string {
	if d.name == "" {
		return "fake"
	}
	return d.name
}
func (d *fakeDriver) Available() bool { return !d.unavailable }
func (d *fakeDriver) Close() error    { d.closed.Store(true); return nil }

func (d *fakeDriver) Open(_ context.Context, ep driver.Endpoint) (driver.Conn, error) {
	d.opens.Add(1)
	if d.openDelay > 0 {
		time.Sleep(d.openDelay)
	}
	if err := d.openErr[ep.Host]; err != nil {
		return nil, err
	}
	c := &fakeConn{d: d, ep: ep, data: make(map[string]any)}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDriver) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDriver) allConns() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

type fakeConn struct {
	d  *fakeDriver
	ep driver.Endpoint

	mu     sync.Mutex
	calls  []string
	db     int
	data   map[string]any
	closed bool
}

var (
	_ driver.Conn       = (*fakeConn)(nil)
	_ driver.NilReplier = (*fakeConn)(nil)
)

func (c *fakeConn) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *fakeConn) Auth(_ context.Context, password string) error {
	c.record("auth:" + password)
	return c.d.authErr[c.ep.Host]
}

func (c *fakeConn) Select(_ context.Context, index int) error {
	c.record(fmt.Sprintf("select:%d", index))
	if err := c.d.selectErr[c.ep.Host]; err != nil {
		return err
	}
	c.mu.Lock()
	c.db = index
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Do(_ context.Context, args ...any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("fake: use of closed conn")
	}
	cmd := strings.ToUpper(fmt.Sprint(args[0]))
	switch cmd {
	case "PING":
		return "PONG", nil
	case "SET":
		v := args[2]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		c.data[fmt.Sprint(args[1])] = v
		return "OK", nil
	case "GET":
		v, ok := c.data[fmt.Sprint(args[1])]
		if !ok {
			return nil, errFakeNil
		}
		return v, nil
	case "DEL":
		delete(c.data, fmt.Sprint(args[1]))
		return int64(1), nil
	case "FAIL":
		return nil, errBoom
	case "BLOCK":
		c.d.blocking <- struct{}{}
		<-c.d.block
		return "OK", nil
	default:
		return nil, fmt.Errorf("%w: ERR unknown command '%s'", driver.ErrUnknownCommand, args[0])
	}
}

func (c *fakeConn) IsNil(err error) bool { return errors.Is(err, errFakeNil) }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) callLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// recHooks records hook calls.
type recHooks struct {
	mu        sync.Mutex
	connected []string
	failed    []string
	released  []string
	cmdFailed []string
}

func (h *recHooks) TenantConnected(t string, _ bool, _ time.Duration) {
	h.mu.Lock()
	h.connected = append(h.connected, t)
	h.mu.Unlock()
}
func (h *recHooks) TenantConnectFailed(t string, _ error) {
	h.mu.Lock()
	h.failed = append(h.failed, t)
	h.mu.Unlock()
}
func (h *recHooks) TenantReleased(t string) {
	h.mu.Lock()
	h.released = append(h.released, t)
	h.mu.Unlock()
}
func (h *recHooks) CommandFailed(t, cmd string, _ error) {
	h.mu.Lock()
	h.cmdFailed = append(h.cmdFailed, t+":"+cmd)
	h.mu.Unlock()
}

func validConfig(host string) TenantConfig {
	return TenantConfig{
		Host:       host,
		Port:       6379,
		Select:     Int(0),
		Persistent: Bool(false),
		Timeout:    Duration(time.Second),
	}
}

func newTestFactory(t *testing.T, d *fakeDriver, hooks Hooks) *Factory {
	t.Helper()
	f, err := NewFactory(FactoryOptions{Drivers: []driver.Driver{d}, Hooks: hooks})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	return f
}
