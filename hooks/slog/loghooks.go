package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/tenantredis"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CommandFailedEvery uint64
	// Optional tenant redactor. Defaults to identity.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	cmdFailCtr atomic.Uint64
}

var _ tenantredis.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(tenant string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(tenant)
	}
	return tenant
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) TenantConnected(tenant string, persistent bool, elapsed time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("tenantredis.tenant_connected",
		"tenant", h.redact(tenant),
		"persistent", persistent,
		"elapsed", elapsed)
}

func (h *Hooks) TenantConnectFailed(tenant string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tenantredis.tenant_connect_failed",
		"tenant", h.redact(tenant),
		"err", err)
}

func (h *Hooks) TenantReleased(tenant string) {
	if h.l == nil {
		return
	}
	h.l.Debug("tenantredis.tenant_released", "tenant", h.redact(tenant))
}

func (h *Hooks) CommandFailed(tenant, command string, err error) {
	if h.l == nil || !sample(h.opts.CommandFailedEvery, &h.cmdFailCtr) {
		return
	}
	h.l.Warn("tenantredis.command_failed",
		"tenant", h.redact(tenant),
		"command", command,
		"err", err)
}
