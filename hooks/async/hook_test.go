package asynchook

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/tenantredis"
)

type countHooks struct {
	tenantredis.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (c *countHooks) add(s string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.events = append(c.events, s)
	c.mu.Unlock()
}

func (c *countHooks) TenantConnected(t string, _ bool, _ time.Duration) { c.add("connected:" + t) }
func (c *countHooks) TenantConnectFailed(t string, _ error)             { c.add("failed:" + t) }
func (c *countHooks) TenantReleased(t string)                           { c.add("released:" + t) }
func (c *countHooks) CommandFailed(t, cmd string, _ error)              { c.add("cmd:" + t + ":" + cmd) }

func (c *countHooks) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func TestDeliversBeforeClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 1, 16)
	h.TenantConnected("a", false, time.Millisecond)
	h.CommandFailed("a", "GET", errors.New("x"))
	h.TenantConnectFailed("b", errors.New("y"))
	h.TenantReleased("a")
	h.Close()

	got := inner.snapshot()
	want := []string{"connected:a", "cmd:a:GET", "failed:b", "released:a"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// the worker may pick up the first event and park on block; either way
	// at most two events fit (one in flight, one queued)
	for i := 0; i < 10; i++ {
		h.TenantReleased("a")
	}
	close(inner.block)
	h.Close()

	if n := len(inner.snapshot()); n < 1 || n > 2 {
		t.Fatalf("delivered %d events, want 1 or 2", n)
	}
}

func TestAfterCloseIsDropped(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 4)
	h.Close()
	h.Close()
	h.TenantReleased("a")
	if n := len(inner.snapshot()); n != 0 {
		t.Fatalf("delivered %d events after close", n)
	}
}
