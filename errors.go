package tenantredis

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration  = errors.New("tenantredis: invalid configuration")
	ErrNoClient       = errors.New("tenantredis: no cache client available")
	ErrConnection     = errors.New("tenantredis: connection failed")
	ErrAuthentication = errors.New("tenantredis: authentication failed")
	ErrNotFound       = errors.New("tenantredis: tenant not registered")
	ErrUnsupported    = errors.New("tenantredis: unsupported operation")
	ErrClosed         = errors.New("tenantredis: tenant connection closed")
)

// ConfigError reports a missing or invalid configuration field.
// Tenant is empty for registry-level problems (e.g. no tenants at all).
type ConfigError struct {
	Tenant string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Tenant == "" && e.Field == "":
		return fmt.Sprintf("tenantredis: configuration: %s", e.Reason)
	case e.Reason == "":
		return fmt.Sprintf("tenantredis: tenant %q: missing config field %q", e.Tenant, e.Field)
	default:
		return fmt.Sprintf("tenantredis: tenant %q: config field %q: %s", e.Tenant, e.Field, e.Reason)
	}
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

type connectStage string

const (
	stageOpen   connectStage = "connect"
	stageAuth   connectStage = "auth"
	stageSelect connectStage = "select"
)

// ConnectError wraps any failure while materializing a tenant connection.
// It matches ErrAuthentication for auth failures and ErrConnection otherwise.
type ConnectError struct {
	Tenant string
	Stage  string
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Stage == string(stageAuth) {
		return fmt.Sprintf("tenantredis: tenant %q: authentication failed: %v", e.Tenant, e.Err)
	}
	return fmt.Sprintf("tenantredis: tenant %q: %s failed: %v", e.Tenant, e.Stage, e.Err)
}

func (e *ConnectError) Unwrap() []error {
	kind := ErrConnection
	if e.Stage == string(stageAuth) {
		kind = ErrAuthentication
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

type NotFoundError struct {
	Tenant string
}

func (e *NotFoundError) Error() string {
	if e.Tenant == DefaultTenant {
		return "tenantredis: default tenant not registered"
	}
	return fmt.Sprintf("tenantredis: tenant %q not registered", e.Tenant)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// UnsupportedError is returned when the client does not know a command.
type UnsupportedError struct {
	Tenant  string
	Command string
	Err     error // server reply, if any
}

func (e *UnsupportedError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("tenantredis: tenant %q: empty command", e.Tenant)
	}
	return fmt.Sprintf("tenantredis: tenant %q: unsupported command %q", e.Tenant, e.Command)
}

func (e *UnsupportedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnsupported}
	}
	return []error{ErrUnsupported, e.Err}
}
