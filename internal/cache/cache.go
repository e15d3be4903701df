package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// Cache is a tenant agnostic key value cache, callers scope keys with GenerateKey
type Cache interface {
	// Get reports whether key was found
	Get(ctx context.Context, key string) (interface{}, bool)
	// Set stores value, a zero expiration uses the cache default
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
	Delete(ctx context.Context, key string)
	DeleteByPrefix(ctx context.Context, prefix string)
	Flush(ctx context.Context)
}

const (
	PrefixCustomer = "customer:v1:"
)

// GenerateKey joins prefix and params with colons
func GenerateKey(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, param := range params {
		b.WriteString(":")
		b.WriteString(fmt.Sprint(param))
	}
	return b.String()
}

// startSpan opens a sentry span for a cache call when ctx carries a hub
func startSpan(ctx context.Context, backend, operation, key string) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	name := "cache." + backend + "." + operation
	span := sentry.StartSpan(ctx, name)
	span.Description = name
	span.Op = "db.cache"
	span.SetData("cache", backend)
	span.SetData("key", key)
	return span
}

func finishSpan(span *sentry.Span, hit bool) {
	if span == nil {
		return
	}
	span.SetData("hit", hit)
	span.Status = sentry.SpanStatusOK
	span.Finish()
}
