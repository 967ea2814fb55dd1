package natsutil

import (
	"testing"

	"github.com/nats-io/nats.go"
)

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}

	keys := carrier.Keys()
	if len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestMsgContextCarriesRetryCount(t *testing.T) {
	msg := &nats.Msg{Header: nats.Header{}}
	msg.Header.Set(RetryHeader, "2")

	if got := Retries(msgContext(msg)); got != 2 {
		t.Fatalf("retries = %d, want 2", got)
	}
}

func TestMsgContextFirstDelivery(t *testing.T) {
	msg := &nats.Msg{}

	if got := Retries(msgContext(msg)); got != 0 {
		t.Fatalf("retries = %d, want 0 on first delivery", got)
	}
}

func TestNatsHeaderCarrierNilHeader(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}
}
