package main

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const jobQueueName = "videojobs"

// Delivery is one job taken off the queue. Ack confirms it, Nack returns
// it for redelivery.
type Delivery struct {
	Job  *VideoJob
	Ack  func()
	Nack func(requeue bool)
}

// Queue carries VideoJobs from intake to the worker pool.
type Queue interface {
	Publish(ctx context.Context, job *VideoJob) error
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

// amqpQueue is the broker-backed queue. Prefetch matches the worker
// count so in-flight jobs stay bounded.
type amqpQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQPQueue(url string, prefetch int) (Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := channel.Qos(prefetch, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	if _, err := channel.QueueDeclare(jobQueueName, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	return &amqpQueue{conn: conn, channel: channel}, nil
}

func (q *amqpQueue) Publish(ctx context.Context, job *VideoJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.channel.PublishWithContext(ctx, "", jobQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (q *amqpQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	messages, err := q.channel.Consume(jobQueueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, err
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case message, ok := <-messages:
				if !ok {
					return
				}
				var job VideoJob
				if err := json.Unmarshal(message.Body, &job); err != nil {
					log.Error().Err(err).Msg("failed to unmarshal the message")
					message.Nack(false, false)
					continue
				}
				out <- Delivery{
					Job:  &job,
					Ack:  func() { message.Ack(false) },
					Nack: func(requeue bool) { message.Nack(false, requeue) },
				}
			}
		}
	}()
	return out, nil
}

func (q *amqpQueue) Close() error {
	q.channel.Close()
	return q.conn.Close()
}

// chanQueue is the in-process queue used when no broker is configured.
type chanQueue struct {
	jobs chan *VideoJob
}

func NewChanQueue(buffer int) Queue {
	return &chanQueue{jobs: make(chan *VideoJob, buffer)}
}

func (q *chanQueue) Publish(ctx context.Context, job *VideoJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *chanQueue) Consume(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				select {
				case out <- Delivery{Job: job, Ack: func() {}, Nack: func(bool) {}}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (q *chanQueue) Close() error {
	close(q.jobs)
	return nil
}
