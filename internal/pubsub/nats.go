package pubsub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/logger"
	"github.com/nats-io/nats.go"
)

// DefaultStreamName is the JetStream stream holding sheet events
const DefaultStreamName = "SHEET_EVENTS"

// NATSPubSub bridges sheet events across instances through a NATS JetStream subject
type NATSPubSub struct {
	hub
	nc      *nats.Conn
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
}

// NewNATSPubSub connects to natsURL and bridges events on subject
func NewNATSPubSub(natsURL, subject string) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL, nats.Name("mitzi"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p, err := newNATSBridge(nc, subject, DefaultStreamName, nats.FileStorage, 0)
	if err != nil {
		nc.Close()
		return nil, err
	}
	logger.Info("Connected to NATS", "url", natsURL, "subject", subject)
	return p, nil
}

func newNATSBridge(nc *nats.Conn, subject, streamName string, storage nats.StorageType, maxAge time.Duration) (*NATSPubSub, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(streamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{subject},
			Storage:  storage,
			MaxAge:   maxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}
		logger.Info("JetStream stream created", "stream", streamName, "subject", subject)
	}

	p := &NATSPubSub{
		hub:     hub{buffer: 100},
		nc:      nc,
		js:      js,
		subject: subject,
	}

	p.sub, err = js.Subscribe(subject, p.handle, nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return p, nil
}

func (p *NATSPubSub) handle(msg *nats.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to unmarshal event from JetStream", "error", err)
		msg.Term()
		return
	}
	p.broadcast(event)
	msg.Ack()
}

// Publish writes the event to the JetStream subject. Local subscribers receive it
// through the subject subscription like every other instance.
func (p *NATSPubSub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}
	if _, err := p.js.Publish(p.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", p.subject, "type", event.Type)
		return
	}
	logger.Debug("Published event to NATS", "type", event.Type, "subject", p.subject)
}

// Subscribe returns a channel receiving events from all instances
func (p *NATSPubSub) Subscribe() chan Event {
	return p.subscribe()
}

// Unsubscribe removes and closes ch
func (p *NATSPubSub) Unsubscribe(ch chan Event) {
	p.unsubscribe(ch)
}

// SubscriberCount returns the number of active local subscribers
func (p *NATSPubSub) SubscriberCount() int {
	return p.count()
}

// Close drops the subscription and connection and closes all subscriber channels
func (p *NATSPubSub) Close() {
	if p.sub != nil {
		p.sub.Unsubscribe()
	}
	p.closeAll()
	if p.nc != nil {
		p.nc.Close()
	}
}
