package tenantredis

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/tenantredis/codec"
)

// Typed stores V values under a tenant's keys using a Codec.
// It is a thin layer over Handle.Do (GET, SET, DEL); the registry itself
// never needs it.
type Typed[V any] struct {
	h     *Handle
	codec codec.Codec[V]
}

// NewTyped binds c to h. A nil codec means JSON.
func NewTyped[V any](h *Handle, c codec.Codec[V]) *Typed[V] {
	if c == nil {
		c = codec.JSON[V]{}
	}
	return &Typed[V]{h: h, codec: c}
}

// Get returns (v, true, nil) on hit and (zero, false, nil) on miss.
func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	reply, err := t.h.Do(ctx, "GET", key)
	if err != nil {
		if t.h.isNil(err) {
			return zero, false, nil
		}
		return zero, false, err
	}

	var raw []byte
	switch r := reply.(type) {
	case nil:
		return zero, false, nil
	case string:
		raw = []byte(r)
	case []byte:
		raw = r
	default:
		return zero, false, fmt.Errorf("tenantredis: tenant %q: GET %q: unexpected reply %T", t.h.tenant, key, reply)
	}

	v, err := t.codec.Decode(raw)
	if err != nil {
		return zero, false, fmt.Errorf("tenantredis: tenant %q: decode %q: %w", t.h.tenant, key, err)
	}
	return v, true, nil
}

// Set writes v. ttl <= 0 means no expiry.
func (t *Typed[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) error {
	b, err := t.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("tenantredis: tenant %q: encode %q: %w", t.h.tenant, key, err)
	}
	args := []any{key, b}
	if ttl > 0 {
		ms := ttl.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		args = append(args, "PX", ms)
	}
	_, err = t.h.Do(ctx, "SET", args...)
	return err
}

// Del removes key. Missing keys are not an error.
func (t *Typed[V]) Del(ctx context.Context, key string) error {
	_, err := t.h.Do(ctx, "DEL", key)
	return err
}
