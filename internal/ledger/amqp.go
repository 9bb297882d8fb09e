// Package ledger implements the booking-ledger handoff boundary. The core
// produces a Booking artifact on commit; everything downstream of that
// (durable storage, tickets, email) belongs to the ledger's consumer.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/seatwise/seat-reservation-system/internal/domain"
)

const bookingQueueName = "booking.confirmed"

// AMQPBookingLedger publishes booking artifacts to the durable
// booking.confirmed queue. Publishing is fire-and-forget from the core's
// point of view; the queue is the durability boundary.
type AMQPBookingLedger struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPBookingLedger(url string) (*AMQPBookingLedger, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dialing broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	_, err = ch.QueueDeclare(bookingQueueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring queue: %w", err)
	}

	return &AMQPBookingLedger{conn: conn, ch: ch}, nil
}

func (l *AMQPBookingLedger) Append(ctx context.Context, booking domain.Booking) error {
	body, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("marshaling booking: %w", err)
	}

	err = l.ch.PublishWithContext(ctx, "", bookingQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    booking.ID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publishing booking: %w", err)
	}

	return nil
}

func (l *AMQPBookingLedger) Close() error {
	chErr := l.ch.Close()
	connErr := l.conn.Close()

	if chErr != nil {
		return chErr
	}

	return connErr
}
