package tenantredis

import (
	"context"
	"errors"
	"sync"

	"github.com/unkn0wn-root/tenantredis/driver"
)

// DefaultTenant receives every call that does not name a tenant.
const DefaultTenant = "default"

// Options configure a Registry.
// Only Tenants is required.
type Options struct {
	Tenants map[string]TenantConfig

	// Factory is shared between registries when set. Otherwise the Registry
	// builds a private one from Drivers, Logger and Hooks and closes it on Close.
	Factory *Factory

	Drivers []driver.Driver
	Logger  Logger // if nil, NopLogger is used
	Hooks   Hooks  // if nil, NopHooks is used
}

// Registry maps tenant names to connected handles and routes unqualified
// calls to DefaultTenant.
type Registry struct {
	factory     *Factory
	ownsFactory bool
	log         Logger

	mu      sync.RWMutex
	tenants map[string]*Handle
}

// New connects every tenant in opts.Tenants. It fails fast: on the first
// error the tenants connected so far are released and no Registry is returned.
func New(ctx context.Context, opts Options) (*Registry, error) {
	if len(opts.Tenants) == 0 {
		return nil, &ConfigError{Reason: "no tenants configured"}
	}

	r := &Registry{
		factory: opts.Factory,
		tenants: make(map[string]*Handle, len(opts.Tenants)),
	}
	r.log = coalesce[Logger](opts.Logger, NopLogger{})

	if r.factory == nil {
		f, err := NewFactory(FactoryOptions{Drivers: opts.Drivers, Logger: opts.Logger, Hooks: opts.Hooks})
		if err != nil {
			return nil, err
		}
		r.factory = f
		r.ownsFactory = true
	}

	var created []string
	for _, name := range sortedKeys(opts.Tenants) {
		_, existed := r.factory.Lookup(name)
		h, err := r.factory.Materialize(ctx, name, opts.Tenants[name])
		if err != nil {
			r.abort(created)
			return nil, err
		}
		if !existed {
			created = append(created, name)
		}
		r.tenants[name] = h
	}
	return r, nil
}

// abort undoes a failed New. Tenants that were already cached by a shared
// Factory belong to someone else and are left alone.
func (r *Registry) abort(created []string) {
	for _, name := range created {
		if err := r.factory.Release(name); err != nil {
			r.log.Warn("tenantredis: release after failed construction", Fields{"tenant": name, "err": err})
		}
	}
	if r.ownsFactory {
		_ = r.factory.Close()
	}
}

// Tenant returns the handle registered under name. It never connects.
// A handle released through a shared Factory (by another registry or by
// the Factory itself) counts as not registered and is dropped.
func (r *Registry) Tenant(name string) (*Handle, error) {
	r.mu.RLock()
	h, ok := r.tenants[name]
	r.mu.RUnlock()
	if ok && h.Closed() {
		r.mu.Lock()
		if r.tenants[name] == h {
			delete(r.tenants, name)
		}
		r.mu.Unlock()
		ok = false
	}
	if !ok {
		return nil, &NotFoundError{Tenant: name}
	}
	return h, nil
}

// Default is Tenant(DefaultTenant).
func (r *Registry) Default() (*Handle, error) { return r.Tenant(DefaultTenant) }

// AddTenant registers name, connecting with cfg. When name is already
// registered the existing handle is returned and cfg is ignored; change a
// tenant's config with RemoveTenant followed by AddTenant.
func (r *Registry) AddTenant(ctx context.Context, name string, cfg TenantConfig) (*Handle, error) {
	for {
		if h, err := r.Tenant(name); err == nil {
			return h, nil
		}

		h, err := r.factory.Materialize(ctx, name, cfg)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if cur, ok := r.tenants[name]; ok && !cur.Closed() {
			r.mu.Unlock()
			return cur, nil
		}
		// lost a race with RemoveTenant: the cached handle was released
		if h.Closed() {
			r.mu.Unlock()
			continue
		}
		r.tenants[name] = h
		r.mu.Unlock()
		return h, nil
	}
}

// RemoveTenant closes the tenant's connection and unregisters it.
// It always reports true; unknown names are a no-op and close errors are
// only logged.
func (r *Registry) RemoveTenant(name string) bool {
	r.mu.Lock()
	h, ok := r.tenants[name]
	delete(r.tenants, name)
	r.mu.Unlock()
	// a closed handle was already released through the shared Factory;
	// whatever the Factory caches now belongs to another registry
	if !ok || h.Closed() {
		return true
	}
	// may wait for a command in flight on this tenant; other tenants are not blocked
	if err := r.factory.Release(name); err != nil {
		r.log.Warn("tenantredis: remove tenant", Fields{"tenant": name, "err": err})
	}
	return true
}

// Tenants lists registered tenant names in sorted order.
func (r *Registry) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.tenants)
}

// Do runs command on the default tenant. See Handle.Do.
func (r *Registry) Do(ctx context.Context, command string, args ...any) (any, error) {
	h, err := r.Default()
	if err != nil {
		return nil, err
	}
	return h.Do(ctx, command, args...)
}

// Close removes every tenant. A private Factory is closed as well.
func (r *Registry) Close(context.Context) error {
	r.mu.Lock()
	names := sortedKeys(r.tenants)
	r.tenants = make(map[string]*Handle)
	r.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := r.factory.Release(name); err != nil {
			errs = append(errs, err)
		}
	}
	if r.ownsFactory {
		if err := r.factory.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
