package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const maxAttributeLength = 256

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"http.request.body":   {},
	"http.request.header": {},
	"mqtt.password":       {},
}

// SafeAttributes drops blocked keys and truncates long string values.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		if attr.Value.Type() == attribute.STRING {
			if value := attr.Value.AsString(); len(value) > maxAttributeLength {
				attr = attribute.String(string(attr.Key), value[:maxAttributeLength])
			}
		}
		out = append(out, attr)
	}
	return out
}

// SafeError returns a copy of err with a single-line, length-bounded message.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if len(msg) > maxAttributeLength {
		msg = msg[:maxAttributeLength]
	}
	return errors.New(msg)
}
