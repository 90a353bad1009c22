package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"collabrag/internal/model"
)

// ReindexPublisher enqueues files whose indexing did not complete.
type ReindexPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewReindexPublisher(conn *amqp.Connection, queueName string) *ReindexPublisher {
	return &ReindexPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *ReindexPublisher) Publish(ctx context.Context, job model.ReindexJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal reindex job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			MessageId:    job.FileID,
		},
	); err != nil {
		return fmt.Errorf("publish reindex job failed: %w", err)
	}
	return nil
}

// DeclareQueue declares the durable work queue shared by publisher and worker.
func DeclareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}
	return nil
}
