package rabbitmq

import (
	"context"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"shotlocator/internal/domain/entity"
	"shotlocator/internal/domain/usecase"
	"shotlocator/pkg/utils"
)

type ReadingSubmitter interface {
	SubmitReading(ctx context.Context, r entity.SensorReading) (entity.EventKey, bool, error)
}

type ReadingConsumer struct {
	channel     *amqp.Channel
	queue       string
	submitter   ReadingSubmitter
	prefetchCnt int
}

func NewReadingConsumer(conn *amqp.Connection, exchange, routingKey, queue string, s ReadingSubmitter) (*ReadingConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	consumer := &ReadingConsumer{
		channel:     ch,
		queue:       queue,
		submitter:   s,
		prefetchCnt: 32,
	}

	if err := declareExchange(ch, exchange); err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	if err := ch.QueueBind(
		queue,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		return nil, err
	}

	if err := ch.Qos(consumer.prefetchCnt, 0, false); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *ReadingConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("ReadingConsumer shutting down")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				log.Println("RabbitMQ channel closed")
				return nil
			}
			go c.handle(ctx, msg)
		}
	}
}

func (c *ReadingConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	var reading entity.SensorReading
	if err := utils.DecodeStrict(msg.Body, &reading); err != nil {
		log.Println("failed to unmarshal reading:", err)
		_ = msg.Nack(false, false)
		return
	}

	switch requeue, err := submitOutcome(c.submitter.SubmitReading(ctx, reading)); {
	case err == nil:
		_ = msg.Ack(false)
	case requeue:
		log.Printf("failed to submit reading from %s: %v", reading.SensorID, err)
		_ = msg.Nack(false, true)
	default:
		log.Printf("dropped reading from %s: %v", reading.SensorID, err)
		_ = msg.Nack(false, false)
	}
}

// submitOutcome decides whether a failed submission is worth redelivering.
// Readings that are malformed or arrive after their event closed never become
// valid later.
func submitOutcome(_ entity.EventKey, _ bool, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if errors.Is(err, entity.ErrMalformedReading) ||
		errors.Is(err, usecase.ErrLateReading) ||
		errors.Is(err, usecase.ErrSpreadConflict) {
		return false, err
	}
	return true, err
}
