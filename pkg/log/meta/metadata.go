package meta

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// metadata 请求级元信息，中间件与处理函数共享同一份
type metadata struct {
	mu     sync.RWMutex
	values map[interface{}]interface{}
}

func (m *metadata) get(key interface{}) interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

func (m *metadata) set(key, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

type contextKey struct{}

// Begin attaches a metadata carrier to parent. Calling it again on a
// context that already carries one returns parent unchanged, so values set
// deeper in the request remain visible to the middleware.
func Begin(parent context.Context) context.Context {
	if parent.Value(contextKey{}) != nil {
		return parent
	}
	return context.WithValue(parent, contextKey{}, &metadata{values: make(map[interface{}]interface{})})
}

func from(ctx context.Context) *metadata {
	m, _ := ctx.Value(contextKey{}).(*metadata)
	if m == nil {
		logrus.Debug("no metadata in context, missing meta.Begin?")
	}
	return m
}

// WithValue stores val under key in the carrier of ctx; a no-op without Begin.
func WithValue(ctx context.Context, key, val interface{}) {
	if m := from(ctx); m != nil {
		m.set(key, val)
	}
}

// Value 读取元信息
func Value(ctx context.Context, key interface{}) interface{} {
	if m := from(ctx); m != nil {
		return m.get(key)
	}
	return nil
}

// RequestIDKey 请求ID在元信息中的键
const RequestIDKey = "x-request-id"

// RequestID returns the request id set by the HTTP middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := Value(ctx, RequestIDKey).(string)
	return id
}
