// Package goredis implements driver.Driver on top of github.com/redis/go-redis/v9.
package goredis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/tenantredis/driver"
)

var ErrDriverClosed = errors.New("goredis: driver closed")

// Driver opens single-connection go-redis sessions.
// Persistent endpoints share a long-lived client per connection name.
type Driver struct {
	mu     sync.Mutex
	pools  map[string]*pool
	closed bool
}

// pool is the long-lived client behind one connection name. key records
// the endpoint it was built for.
type pool struct {
	key string
	rdb *goredis.Client
}

var _ driver.Driver = (*Driver)(nil)

func New() *Driver {
	return &Driver{pools: make(map[string]*pool)}
}

func (d *Driver) Name() string    { return "go-redis" }
func (d *Driver) Available() bool { return true }

// extra holds the Endpoint.Extra keys this driver understands.
type extra struct {
	Username string `mapstructure:"username"`
	Protocol int    `mapstructure:"protocol"`
}

func (d *Driver) Open(ctx context.Context, ep driver.Endpoint) (driver.Conn, error) {
	var ex extra
	if len(ep.Extra) > 0 {
		if err := mapstructure.WeakDecode(ep.Extra, &ex); err != nil {
			return nil, fmt.Errorf("goredis: decode extra: %w", err)
		}
	}

	rdb, owned, err := d.client(ep, ex)
	if err != nil {
		return nil, err
	}

	cn := rdb.Conn()
	// A server reply (NOAUTH and friends) still means we are connected.
	if err := cn.Ping(ctx).Err(); err != nil && !isServerError(err) {
		_ = cn.Close()
		if owned {
			_ = rdb.Close()
		}
		return nil, err
	}
	return &Conn{cn: cn, rdb: rdb, owned: owned, username: ex.Username}, nil
}

// client returns the go-redis client for ep. owned=false means the client
// belongs to the persistent pool and outlives the Conn.
//
// A pool is only reused for an identical endpoint. When the same name comes
// back with a different address, options or credential the old pool is
// closed and replaced, so a re-added tenant never lands on its old server.
func (d *Driver) client(ep driver.Endpoint, ex extra) (*goredis.Client, bool, error) {
	if !ep.Persistent || ep.ConnName == "" {
		return goredis.NewClient(options(ep, ex)), true, nil
	}

	key := poolKey(ep, ex)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, false, ErrDriverClosed
	}
	if p, ok := d.pools[ep.ConnName]; ok {
		if p.key == key {
			return p.rdb, false, nil
		}
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return nil, false, fmt.Errorf("goredis: replace pool %s: %w", ep.ConnName, err)
		}
		delete(d.pools, ep.ConnName)
	}
	rdb := goredis.NewClient(options(ep, ex))
	d.pools[ep.ConnName] = &pool{key: key, rdb: rdb}
	return rdb, false, nil
}

// poolKey covers everything that shapes a pooled session.
func poolKey(ep driver.Endpoint, ex extra) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d",
		net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port)),
		ep.Timeout, ep.RetryInterval, ep.ReadTimeout,
		ep.Credential, ex.Username, ex.Protocol)
}

// Pooled reports whether a persistent pool exists for name.
func (d *Driver) Pooled(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pools[name]
	return ok
}

// Close shuts down every persistent pool. Safe to call multiple times.
func (d *Driver) Close() error {
	d.mu.Lock()
	pools := d.pools
	d.pools = make(map[string]*pool)
	d.closed = true
	d.mu.Unlock()

	var errs []error
	for name, p := range pools {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			errs = append(errs, fmt.Errorf("goredis: close pool %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func options(ep driver.Endpoint, ex extra) *goredis.Options {
	o := &goredis.Options{
		Addr:        net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port)),
		Protocol:    ex.Protocol,
		DialTimeout: ep.Timeout, // 0 => go-redis default
		ReadTimeout: -1,         // no timeout unless asked for
		PoolSize:    1,
		MaxRetries:  -1,
	}
	if ep.ReadTimeout > 0 {
		o.ReadTimeout = ep.ReadTimeout
	}
	if ep.RetryInterval > 0 {
		o.MaxRetries = 0 // go-redis default
		o.MinRetryBackoff = ep.RetryInterval
		o.MaxRetryBackoff = ep.RetryInterval
	}
	if ep.Persistent {
		o.ConnMaxIdleTime = -1
	}
	return o
}

// Conn is one sticky go-redis connection.
type Conn struct {
	cn       *goredis.Conn
	rdb      *goredis.Client
	owned    bool
	username string
}

var (
	_ driver.Conn       = (*Conn)(nil)
	_ driver.NilReplier = (*Conn)(nil)
)

func (c *Conn) Auth(ctx context.Context, password string) error {
	if c.username != "" {
		return c.cn.AuthACL(ctx, c.username, password).Err()
	}
	return c.cn.Auth(ctx, password).Err()
}

func (c *Conn) Select(ctx context.Context, index int) error {
	return c.cn.Select(ctx, index).Err()
}

func (c *Conn) Do(ctx context.Context, args ...any) (any, error) {
	cmd := goredis.NewCmd(ctx, args...)
	_ = c.cn.Process(ctx, cmd)
	v, err := cmd.Result()
	if err != nil && isUnknownCommand(err) {
		return nil, fmt.Errorf("%w: %w", driver.ErrUnknownCommand, err)
	}
	return v, err
}

// Close releases the connection. Transient clients are shut down with it;
// persistent ones get the connection back in their pool.
func (c *Conn) Close() error {
	err := c.cn.Close()
	if errors.Is(err, goredis.ErrClosed) {
		err = nil
	}
	if c.owned {
		if cerr := c.rdb.Close(); cerr != nil && !errors.Is(cerr, goredis.ErrClosed) {
			err = errors.Join(err, cerr)
		}
	}
	return err
}

func (c *Conn) IsNil(err error) bool { return errors.Is(err, goredis.Nil) }

func isServerError(err error) bool {
	var rerr goredis.Error
	return errors.As(err, &rerr)
}

func isUnknownCommand(err error) bool {
	return isServerError(err) && strings.HasPrefix(err.Error(), "ERR unknown command")
}
