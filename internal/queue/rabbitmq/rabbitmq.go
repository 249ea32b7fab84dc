// Package rabbitmq provides durable work queues with bounded retry and
// dead-lettering. Each logical queue is a triple: the main queue dead-letters
// rejected messages to <name>.dlq, and <name>.retry holds failed messages
// under a per-message TTL that dead-letters them back to the main queue.
// Delivery is at-least-once; consumers are expected to be idempotent.
package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// retryCountHeader tracks how many redeliveries a message has been through.
const retryCountHeader = "x-retry-count"

func retryQueue(name string) string { return name + ".retry" }
func dlqQueue(name string) string   { return name + ".dlq" }

// declareTopology declares the main/retry/dlq triple for a logical queue.
// Declarations are idempotent so publisher and consumer can both run it.
func declareTopology(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(dlqQueue(name), true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(retryQueue(name), true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": name,
	}); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQueue(name),
	}); err != nil {
		return err
	}
	return nil
}

func retryCount(headers amqp.Table) int {
	if headers == nil {
		return 0
	}
	switch v := headers[retryCountHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
