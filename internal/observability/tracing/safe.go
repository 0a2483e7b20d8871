package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedAttributeKeys = []string{"email", "phone", "address", "password", "token", "authorization"}

// ExtractContext reads inbound trace headers into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops attributes whose key looks like tenant contact data or credentials.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isBlocked(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError records only the error message, truncated, without wrapped values.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return errors.New(msg)
}

func isBlocked(key string) bool {
	key = strings.ToLower(key)
	for _, blocked := range blockedAttributeKeys {
		if strings.Contains(key, blocked) {
			return true
		}
	}
	return false
}
