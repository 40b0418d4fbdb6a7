package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/netrules-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/netrules-core/internal/rules"
)

// Broker is the subset of the MQTT client used by the publisher.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Message is the JSON payload published for each detected change.
type Message struct {
	EntityID  string         `json:"entity_id"`
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	Name      string         `json:"name"`
	Old       rules.FieldMap `json:"old,omitempty"`
	New       rules.FieldMap `json:"new,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher dispatches change records to the MQTT event bus.
// It implements rules.Dispatcher.
type Publisher struct {
	broker Broker
	qos    byte
	now    func() time.Time
}

// NewPublisher creates a Publisher using the given broker connection.
func NewPublisher(broker Broker, qos byte) *Publisher {
	return &Publisher{
		broker: broker,
		qos:    qos,
		now:    time.Now,
	}
}

// Dispatch publishes a single change record.
//
// The topic encodes change type and entity ID so subscribers can use
// MQTT wildcards; the payload carries the full before/after state.
func (p *Publisher) Dispatch(ctx context.Context, change rules.Change) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := Message{
		EntityID:  change.EntityID,
		Type:      change.Type,
		Action:    string(change.Action),
		Name:      change.Name,
		Old:       change.Old,
		New:       change.New,
		Timestamp: p.now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding change event: %w", err)
	}

	topic := mqtt.Topics{}.EventChange(change.Type, change.EntityID)
	if err := p.broker.Publish(topic, payload, p.qos, false); err != nil {
		return fmt.Errorf("publishing change event: %w", err)
	}
	return nil
}
