package mailer

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/unclebandit/leadflow-backend/internal/queue"
)

// QueueSender publishes jobs onto the in-memory queue. Used when the
// server runs without RabbitMQ.
type QueueSender struct {
	Q     queue.Queue
	Topic string
}

func NewQueueSender(q queue.Queue) *QueueSender {
	return &QueueSender{Q: q, Topic: EmailSendQueue}
}

func (s *QueueSender) Send(accountID int, to, subject, body string) error {
	return s.Q.Publish(s.Topic, EmailJob{
		AccountID: accountID,
		To:        to,
		Subject:   subject,
		Body:      body,
	})
}

// StartDeliverySubscriber wires a delivery function to the in-memory
// queue so queued emails actually go somewhere.
func StartDeliverySubscriber(q queue.Queue, deliver func(job EmailJob) error) {
	err := q.Subscribe(EmailSendQueue, func(payload any) error {
		job, ok := payload.(EmailJob)
		if !ok {
			log.Println("⚠️ Invalid payload type, expected mailer.EmailJob")
			return nil // no retry
		}
		return deliver(job)
	})
	if err != nil {
		log.Println("⚠️ Failed to subscribe for email delivery:", err)
	}
}

// LogDelivery is the development delivery function: it prints the email
// instead of sending it, with a small simulated failure rate so retry
// paths get exercised.
func LogDelivery(job EmailJob) error {
	if rand.Float64() >= 0.95 {
		return fmt.Errorf("simulated delivery failure for %s", job.To)
	}
	log.Printf("📧 Delivered to %s (account %d): %s\n", job.To, job.AccountID, job.Subject)
	return nil
}
