// Package tenantredis keeps one Redis connection per named tenant and routes
// commands to it. Calls that do not name a tenant go to the "default" tenant.
//
// Components:
//   - Factory: process-wide cache of tenant connections. Validates a
//     TenantConfig, connects through the first available driver.Driver,
//     authenticates, selects the database and caches the Handle.
//   - Registry: the tenants an application uses. Lookup, get-or-create,
//     idempotent removal and default-tenant passthrough.
//   - Handle: one tenant's connection. Do forwards any command verbatim.
//
// Connections:
//
//	persistent=true   named "p_connect_<tenant>", kept open by the driver across release/re-add of the same endpoint
//	persistent=false  private connection, closed on release
//
// Usage:
//
//	reg, err := tenantredis.New(ctx, tenantredis.Options{Tenants: map[string]tenantredis.TenantConfig{
//	    "default": {Host: "127.0.0.1", Port: 6379, Select: tenantredis.Int(0),
//	        Persistent: tenantredis.Bool(false), Timeout: tenantredis.Duration(time.Second)},
//	}})
//	_, _ = reg.Do(ctx, "SET", "greeting", "hello") // default tenant
//
//	acme, err := reg.AddTenant(ctx, "acme", acmeCfg) // get-or-create
//	_, _ = acme.Do(ctx, "GET", "greeting")
//	reg.RemoveTenant("acme")
package tenantredis
