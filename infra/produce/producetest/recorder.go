// Package producetest provides an in-memory Publisher for tests.
package producetest

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Message struct {
	Exchange   string
	RoutingKey string
	Publishing amqp.Publishing
}

// Decode unmarshals the message body into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Publishing.Body, v)
}

type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (r *Recorder) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, Message{Exchange: exchange, RoutingKey: key, Publishing: msg})
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// ByRoutingKey returns the recorded messages published with key.
func (r *Recorder) ByRoutingKey(key string) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.RoutingKey == key {
			out = append(out, m)
		}
	}
	return out
}
