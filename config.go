package tenantredis

import (
	"fmt"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
)

// TenantConfig describes one tenant connection.
//
// Host, Port, Select, Persistent and Timeout are required. The pointer
// fields tell "absent" apart from a legitimate zero (database 0, transient,
// default dial timeout); build them with Int, Bool and Duration.
type TenantConfig struct {
	Host       string
	Port       int
	Select     *int  // logical database index
	Persistent *bool // reuse a named long-lived connection

	// Timeout bounds the dial. Zero does not mean unlimited: the driver
	// falls back to its own default (5s for go-redis).
	Timeout *time.Duration

	Password      string        // empty => no AUTH
	RetryInterval time.Duration // 0 => no retries in the client
	ReadTimeout   time.Duration // 0 => no read timeout

	// Extra is passed to the driver untouched (e.g. "username", "protocol").
	Extra map[string]any
}

func Int(v int) *int                          { return &v }
func Bool(v bool) *bool                       { return &v }
func Duration(v time.Duration) *time.Duration { return &v }

// Validate checks the config for tenant. Missing fields are reported in the
// order host, port, select, persistent, timeout.
func (c TenantConfig) Validate(tenant string) error {
	switch {
	case c.Host == "":
		return &ConfigError{Tenant: tenant, Field: "host"}
	case c.Port == 0:
		return &ConfigError{Tenant: tenant, Field: "port"}
	case c.Select == nil:
		return &ConfigError{Tenant: tenant, Field: "select"}
	case c.Persistent == nil:
		return &ConfigError{Tenant: tenant, Field: "persistent"}
	case c.Timeout == nil:
		return &ConfigError{Tenant: tenant, Field: "timeout"}
	}

	if c.Port < 0 || c.Port > 65535 {
		return &ConfigError{Tenant: tenant, Field: "port", Reason: fmt.Sprintf("out of range: %d", c.Port)}
	}
	if *c.Select < 0 {
		return &ConfigError{Tenant: tenant, Field: "select", Reason: "must be non-negative"}
	}
	if *c.Timeout < 0 {
		return &ConfigError{Tenant: tenant, Field: "timeout", Reason: "must be non-negative"}
	}
	if c.RetryInterval < 0 {
		return &ConfigError{Tenant: tenant, Field: "retry_interval", Reason: "must be non-negative"}
	}
	if c.ReadTimeout < 0 {
		return &ConfigError{Tenant: tenant, Field: "read_timeout", Reason: "must be non-negative"}
	}
	return nil
}

// rawConfig is the map-shaped form: timeouts in float seconds,
// retry_interval in milliseconds.
type rawConfig struct {
	Host          string         `mapstructure:"host"`
	Port          int            `mapstructure:"port"`
	Select        *int           `mapstructure:"select"`
	Persistent    *bool          `mapstructure:"persistent"`
	Timeout       *float64       `mapstructure:"timeout"`
	Password      string         `mapstructure:"password"`
	RetryInterval int            `mapstructure:"retry_interval"`
	ReadTimeout   float64        `mapstructure:"read_timeout"`
	Extra         map[string]any `mapstructure:",remain"`
}

// ParseConfig builds a TenantConfig from a loosely typed map such as one
// decoded from JSON or YAML by the host application. Values are converted
// weakly ("6379" is a valid port). Unknown keys end up in Extra.
func ParseConfig(tenant string, raw map[string]any) (TenantConfig, error) {
	var rc rawConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rc,
	})
	if err != nil {
		return TenantConfig{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return TenantConfig{}, &ConfigError{Tenant: tenant, Field: "*", Reason: err.Error()}
	}

	cfg := TenantConfig{
		Host:          rc.Host,
		Port:          rc.Port,
		Select:        rc.Select,
		Persistent:    rc.Persistent,
		Password:      rc.Password,
		RetryInterval: time.Duration(rc.RetryInterval) * time.Millisecond,
		ReadTimeout:   seconds(rc.ReadTimeout),
		Extra:         rc.Extra,
	}
	if rc.Timeout != nil {
		cfg.Timeout = Duration(seconds(*rc.Timeout))
	}
	if err := cfg.Validate(tenant); err != nil {
		return TenantConfig{}, err
	}
	return cfg, nil
}

// ParseConfigs runs ParseConfig for every tenant, in name order, and stops
// at the first error.
func ParseConfigs(raw map[string]map[string]any) (map[string]TenantConfig, error) {
	out := make(map[string]TenantConfig, len(raw))
	for _, name := range sortedKeys(raw) {
		cfg, err := ParseConfig(name, raw[name])
		if err != nil {
			return nil, err
		}
		out[name] = cfg
	}
	return out, nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
