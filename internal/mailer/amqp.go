package mailer

import (
	"encoding/json"

	"github.com/streadway/amqp"
)

// EmailSendQueue is the durable queue consumed by cmd/worker.
const EmailSendQueue = "email_sends"

// AMQPSender hands messages to RabbitMQ for delivery by the worker. A
// successful persistent publish counts as a successful send; the broker
// owns the message from there.
type AMQPSender struct {
	Channel *amqp.Channel
}

// NewAMQPSender declares the queue and returns a sender bound to it.
func NewAMQPSender(conn *amqp.Connection) (*AMQPSender, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		EmailSendQueue, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		return nil, err
	}

	return &AMQPSender{Channel: ch}, nil
}

func (s *AMQPSender) Send(accountID int, to, subject, body string) error {
	payload, err := json.Marshal(EmailJob{
		AccountID: accountID,
		To:        to,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		return err
	}

	return s.Channel.Publish(
		"",
		EmailSendQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
		},
	)
}

func (s *AMQPSender) Close() error {
	return s.Channel.Close()
}
