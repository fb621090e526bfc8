package pageflow

import "go.opentelemetry.io/otel/propagation"

var _ propagation.TextMapCarrier = HeaderCarrier{}

// HeaderCarrier exposes record headers to OpenTelemetry propagators so trace
// context travels with the record through the broker.
type HeaderCarrier map[string]string

func (c HeaderCarrier) Get(key string) string {
	return c[key]
}

func (c HeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
