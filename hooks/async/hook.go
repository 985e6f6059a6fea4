// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{CommandFailedEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	reg, _ := tenantredis.New(ctx, tenantredis.Options{
//	    Tenants: tenants,
//	    Hooks:   hooks,
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/tenantredis"
)

// Hooks moves events off the caller's goroutine. Events are dropped when
// the queue is full.
type Hooks struct {
	inner tenantredis.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ tenantredis.Hooks = (*Hooks)(nil)

func New(inner tenantredis.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) TenantConnected(t string, p bool, d time.Duration) {
	h.try(func() { h.inner.TenantConnected(t, p, d) })
}
func (h *Hooks) TenantConnectFailed(t string, err error) {
	h.try(func() { h.inner.TenantConnectFailed(t, err) })
}
func (h *Hooks) TenantReleased(t string) { h.try(func() { h.inner.TenantReleased(t) }) }
func (h *Hooks) CommandFailed(t, cmd string, err error) {
	h.try(func() { h.inner.CommandFailed(t, cmd, err) })
}
