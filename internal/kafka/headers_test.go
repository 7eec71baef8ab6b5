package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: headerEventType, Value: []byte("payment.outcome")}}
	c := &headerCarrier{headers: &headers}

	assert.Equal(t, "payment.outcome", c.Get(headerEventType))
	assert.Empty(t, c.Get("traceparent"))

	c.Set("traceparent", "00-abc-def-01")
	c.Set("traceparent", "00-abc-fed-01")
	assert.Equal(t, "00-abc-fed-01", c.Get("traceparent"))
	assert.ElementsMatch(t, []string{headerEventType, "traceparent"}, c.Keys())
}
