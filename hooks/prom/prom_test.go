package promhooks

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tenantredis"
)

func TestHooksCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New("app", reg)
	require.NoError(t, err)

	h.TenantConnected("a", true, 3*time.Millisecond)
	h.TenantConnected("a", true, 4*time.Millisecond)
	h.TenantConnected("b", false, time.Millisecond)
	h.TenantReleased("a")
	h.CommandFailed("a", "get", errors.New("x"))
	h.CommandFailed("a", "GET", errors.New("y"))

	assert.Equal(t, 2.0, testutil.ToFloat64(h.connects.WithLabelValues("a", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.connects.WithLabelValues("b", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.releases.WithLabelValues("a")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.cmdErrors.WithLabelValues("a", "GET")))
	assert.Equal(t, 2, testutil.CollectAndCount(h.connectTime))
}

func TestConnectErrorKinds(t *testing.T) {
	h, err := New("app", prometheus.NewRegistry())
	require.NoError(t, err)

	h.TenantConnectFailed("a", &tenantredis.ConfigError{Tenant: "a", Field: "host"})
	h.TenantConnectFailed("a", &tenantredis.ConnectError{Tenant: "a", Stage: "auth", Err: errors.New("denied")})
	h.TenantConnectFailed("a", &tenantredis.ConnectError{Tenant: "a", Stage: "connect", Err: errors.New("refused")})
	h.TenantConnectFailed("a", fmt.Errorf("wrapped: %w", errors.New("boom")))

	for _, kind := range []string{"config", "auth", "connection", "other"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(h.connectErrors.WithLabelValues("a", kind)), kind)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New("app", reg)
	require.NoError(t, err)
	_, err = New("app", reg)
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)
}
