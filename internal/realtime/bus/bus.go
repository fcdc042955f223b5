// Package bus wraps a NATS connection for the alert pass-through channel
// (spec §4.N's "alerts also go out a pass-through publish channel"). It is
// the one piece of the original cross-process transport the rework keeps:
// the protobuf/gRPC object model is gone, but NATS pub/sub is still the
// right tool for "fan this alert out to whoever is listening."
package bus

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// Bus publishes alert records to a NATS subject and lets handlers subscribe
// to the same subject.
type Bus struct {
	nc      *nats.Conn
	subject string
}

// Connect dials the NATS server at url and binds to subject.
func Connect(url, subject string) (*Bus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats at %q: %w", url, err)
	}
	log.Printf("realtime/bus: connected to NATS at %s", url)
	return &Bus{nc: nc, subject: subject}, nil
}

// PublishAlert serializes v as JSON and publishes it to the bus's subject.
func (b *Bus) PublishAlert(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return b.nc.Publish(b.subject, data)
}

// AlertHandler processes one decoded alert payload.
type AlertHandler func(raw []byte)

// Subscribe starts delivering every message on the bus's subject to handler.
func (b *Bus) Subscribe(handler AlertHandler) error {
	_, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", b.subject, err)
	}
	log.Printf("realtime/bus: subscribed to %q", b.subject)
	return nil
}

// Close drains and closes the underlying NATS connection.
func (b *Bus) Close() {
	if b.nc != nil {
		b.nc.Drain()
	}
}
