package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeAcknowledger считает подтверждения и отклонения доставок.
type fakeAcknowledger struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeues []bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	f.requeues = append(f.requeues, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) settles() (acks, nacks int, requeues []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks, f.nacks, append([]bool(nil), f.requeues...)
}

func newTestConsumer(handler Handler) *Consumer {
	return NewConsumer(&Connection{}, slog.Default(), ConsumerConfig{
		Queue:   "test-task-queue",
		Handler: handler,
	})
}

func envelopeBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(Message{ID: "msg-1", Type: "activity.request"})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

// --- Settlement Tests ---

func TestConsumer_AcksHandledDelivery(t *testing.T) {
	ack := &fakeAcknowledger{}
	consumer := newTestConsumer(func(context.Context, *Delivery) error { return nil })

	consumer.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         envelopeBody(t),
	})

	acks, nacks, _ := ack.settles()
	if acks != 1 || nacks != 0 {
		t.Errorf("acks = %d, nacks = %d, want exactly one ack", acks, nacks)
	}
}

func TestConsumer_RejectedDeliveryGoesToDeadLetter(t *testing.T) {
	ack := &fakeAcknowledger{}
	consumer := newTestConsumer(func(context.Context, *Delivery) error {
		return fmt.Errorf("%w: bad payload", ErrRejectDelivery)
	})

	consumer.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         envelopeBody(t),
	})

	// Ровно одно подтверждение: двойной ack/nack одного delivery tag
	// закрыл бы канал
	acks, nacks, requeues := ack.settles()
	if acks != 0 || nacks != 1 {
		t.Fatalf("acks = %d, nacks = %d, want exactly one nack", acks, nacks)
	}
	if requeues[0] {
		t.Error("rejected delivery must not be requeued")
	}
}

func TestConsumer_TransientHandlerErrorRequeues(t *testing.T) {
	ack := &fakeAcknowledger{}
	consumer := newTestConsumer(func(context.Context, *Delivery) error {
		return errors.New("downstream unavailable")
	})

	consumer.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         envelopeBody(t),
	})

	acks, nacks, requeues := ack.settles()
	if acks != 0 || nacks != 1 {
		t.Fatalf("acks = %d, nacks = %d, want exactly one nack", acks, nacks)
	}
	if !requeues[0] {
		t.Error("transient failure must requeue the delivery")
	}
}

func TestConsumer_MalformedEnvelopeSettledOnce(t *testing.T) {
	ack := &fakeAcknowledger{}
	handlerCalls := 0
	consumer := newTestConsumer(func(context.Context, *Delivery) error {
		handlerCalls++
		return nil
	})

	consumer.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte("not json"),
	})

	if handlerCalls != 0 {
		t.Error("handler must not run for an unparseable envelope")
	}
	acks, nacks, requeues := ack.settles()
	if acks != 0 || nacks != 1 {
		t.Fatalf("acks = %d, nacks = %d, want exactly one nack", acks, nacks)
	}
	if requeues[0] {
		t.Error("malformed envelope must go to the dead letter queue")
	}
}
