package tenantredis

import "time"

// Hooks lightweight callbacks for tenant lifecycle events.
// Implementations MUST be cheap and non-blocking: they run inline with
// connects and commands.
type Hooks interface {
	// A tenant connection was established (auth and select included).
	TenantConnected(tenant string, persistent bool, elapsed time.Duration)

	// Materialize failed. err is a *ConfigError or *ConnectError.
	TenantConnectFailed(tenant string, err error)

	// A tenant connection was closed and dropped from the cache.
	TenantReleased(tenant string)

	// A passthrough command returned an error. Nil replies are not failures.
	CommandFailed(tenant, command string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) TenantConnected(string, bool, time.Duration) {}
func (NopHooks) TenantConnectFailed(string, error)          {}
func (NopHooks) TenantReleased(string)                      {}
func (NopHooks) CommandFailed(string, string, error)        {}
