package pageflow

import "time"

// Record is a single keyed message as seen by a broker.
// Partition and Offset are assigned by the broker on delivery.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Header returns the value of a header or the empty string.
func (r Record) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[key]
}

// WithHeader returns a copy of the record with the header set.
func (r Record) WithHeader(key, value string) Record {
	headers := make(map[string]string, len(r.Headers)+1)
	for k, v := range r.Headers {
		headers[k] = v
	}
	headers[key] = value
	r.Headers = headers
	return r
}
