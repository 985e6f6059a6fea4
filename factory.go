package tenantredis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/tenantredis/driver"
	"github.com/unkn0wn-root/tenantredis/driver/goredis"
)

// persistentPrefix + tenant names the persistent connection of a tenant.
const persistentPrefix = "p_connect_"

// FactoryOptions configure a Factory. All fields are optional.
type FactoryOptions struct {
	// Drivers in priority order; the first available one is used for the
	// lifetime of the Factory. nil => go-redis.
	Drivers []driver.Driver
	Logger  Logger // if nil, NopLogger is used
	Hooks   Hooks  // if nil, NopHooks is used
}

// Factory materializes and caches one connection per tenant name.
// A process normally builds one Factory at startup, shares it between
// registries and closes it on shutdown.
type Factory struct {
	drv   driver.Driver
	log   Logger
	hooks Hooks

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool

	flights singleflight.Group
}

func NewFactory(opts FactoryOptions) (*Factory, error) {
	drivers := opts.Drivers
	if drivers == nil {
		drivers = []driver.Driver{goredis.New()}
	}
	drv, err := driver.Select(drivers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoClient, err)
	}

	f := &Factory{
		drv:     drv,
		handles: make(map[string]*Handle),
	}
	f.log = coalesce[Logger](opts.Logger, NopLogger{})
	f.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	f.log.Debug("tenantredis: driver selected", Fields{"driver": drv.Name()})
	return f, nil
}

// Driver returns the client implementation chosen at construction.
func (f *Factory) Driver() driver.Driver { return f.drv }

// Materialize returns the cached handle for tenant, connecting first if
// there is none. cfg is only looked at when a connection is made.
// Concurrent calls for the same tenant share one connect.
func (f *Factory) Materialize(ctx context.Context, tenant string, cfg TenantConfig) (*Handle, error) {
	if h, ok := f.Lookup(tenant); ok {
		return h, nil
	}

	v, err, _ := f.flights.Do(tenant, func() (any, error) {
		// a previous flight may have finished between Lookup and Do
		if h, ok := f.Lookup(tenant); ok {
			return h, nil
		}
		h, err := f.connect(ctx, tenant, cfg)
		if err != nil {
			f.hooks.TenantConnectFailed(tenant, err)
			return nil, err
		}

		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			_ = h.close()
			return nil, &ConnectError{Tenant: tenant, Stage: string(stageOpen), Err: errFactoryClosed}
		}
		f.handles[tenant] = h
		f.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

var errFactoryClosed = errors.New("factory closed")

// credential fingerprints a password for driver pool keys.
func credential(password string) string {
	if password == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:8])
}

func (f *Factory) connect(ctx context.Context, tenant string, cfg TenantConfig) (*Handle, error) {
	if err := cfg.Validate(tenant); err != nil {
		return nil, err
	}
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, &ConnectError{Tenant: tenant, Stage: string(stageOpen), Err: errFactoryClosed}
	}

	persistent := *cfg.Persistent
	ep := driver.Endpoint{
		Host:          cfg.Host,
		Port:          cfg.Port,
		Timeout:       *cfg.Timeout,
		Persistent:    persistent,
		RetryInterval: cfg.RetryInterval,
		ReadTimeout:   cfg.ReadTimeout,
		Extra:         cfg.Extra,
	}
	if persistent {
		ep.ConnName = persistentPrefix + tenant
		ep.Credential = credential(cfg.Password)
	}

	start := time.Now()
	conn, err := f.drv.Open(ctx, ep)
	if err != nil {
		return nil, &ConnectError{Tenant: tenant, Stage: string(stageOpen), Err: err}
	}

	if cfg.Password != "" {
		if err := conn.Auth(ctx, cfg.Password); err != nil {
			_ = conn.Close()
			return nil, &ConnectError{Tenant: tenant, Stage: string(stageAuth), Err: err}
		}
	}
	if err := conn.Select(ctx, *cfg.Select); err != nil {
		_ = conn.Close()
		return nil, &ConnectError{Tenant: tenant, Stage: string(stageSelect), Err: err}
	}

	elapsed := time.Since(start)
	f.hooks.TenantConnected(tenant, persistent, elapsed)
	f.log.Info("tenantredis: tenant connected", Fields{
		"tenant":     tenant,
		"addr":       fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		"db":         *cfg.Select,
		"persistent": persistent,
		"elapsed":    elapsed,
	})
	return newHandle(tenant, persistent, conn, f.hooks), nil
}

// Lookup returns the cached handle for tenant without connecting.
func (f *Factory) Lookup(tenant string) (*Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.handles[tenant]
	return h, ok
}

// Tenants lists cached tenant names in sorted order.
func (f *Factory) Tenants() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.handles)
}

// Release closes the tenant's connection and drops it from the cache.
// Unknown tenants are a no-op.
func (f *Factory) Release(tenant string) error {
	f.mu.Lock()
	h, ok := f.handles[tenant]
	if ok {
		delete(f.handles, tenant)
	}
	f.mu.Unlock()
	if !ok {
		return nil
	}

	err := h.close()
	f.hooks.TenantReleased(tenant)
	if err != nil {
		f.log.Warn("tenantredis: close failed", Fields{"tenant": tenant, "err": err})
		return fmt.Errorf("tenantredis: release %q: %w", tenant, err)
	}
	f.log.Debug("tenantredis: tenant released", Fields{"tenant": tenant})
	return nil
}

// Close releases every tenant and shuts down the driver. Materialize fails
// afterwards. Safe to call multiple times.
func (f *Factory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	names := sortedKeys(f.handles)
	f.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := f.Release(name); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.drv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("tenantredis: close driver %s: %w", f.drv.Name(), err))
	}
	return errors.Join(errs...)
}
