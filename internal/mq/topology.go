package mq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Exchanges — имена обменников.
const (
	// ExchangeActivities — direct exchange для activity requests.
	// Routing key = имя task queue.
	ExchangeActivities Exchange = "cascade.activities"

	// ExchangeDLQ — dead letter exchange для необработанных requests.
	ExchangeDLQ Exchange = "cascade.dlq"
)

// QueueDLQ — очередь для dead letters.
const QueueDLQ = "dlq.activities"

// SetupTopology создаёт базовую топологию: обменники и DLQ.
//
// Сами task queues объявляются динамически через DeclareTaskQueue —
// их набор зависит от того, какие сервисы развёрнуты.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		exchanges := []Exchange{ExchangeActivities, ExchangeDLQ}
		for _, ex := range exchanges {
			err := ch.ExchangeDeclare(
				string(ex), // name
				"direct",   // type
				true,       // durable
				false,      // auto-deleted
				false,      // internal
				false,      // no-wait
				nil,        // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		// DLQ очередь
		_, err := ch.QueueDeclare(QueueDLQ, true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueDLQ, err)
		}
		if err := ch.QueueBind(QueueDLQ, QueueDLQ, string(ExchangeDLQ), false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", QueueDLQ, err)
		}

		return nil
	})
}

// DeclareTaskQueue объявляет durable task queue и привязывает её
// к cascade.activities с routing key, равным имени очереди.
//
// Вызывается worker'ом при старте для своей очереди.
func DeclareTaskQueue(ctx context.Context, conn *Connection, queue string) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		args := amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": QueueDLQ,
		}

		if _, err := ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		if err := ch.QueueBind(queue, queue, string(ExchangeActivities), false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}

		return nil
	})
}

// QueueInfo — результат describe-вызова control plane.
type QueueInfo struct {
	// Name — имя очереди.
	Name string

	// Consumers — количество живых pollers (workers).
	Consumers int

	// Messages — количество сообщений в очереди.
	Messages int
}

// DescribeQueue запрашивает у брокера состояние очереди.
//
// Это control-plane вызов discovery: очередь считается активной,
// если у неё есть хотя бы один consumer. Passive declare несуществующей
// очереди закрывает канал, поэтому открываем одноразовый канал на вызов.
func DescribeQueue(ctx context.Context, conn *Connection, queue string) (QueueInfo, error) {
	ch, err := conn.NewChannel()
	if err != nil {
		return QueueInfo{}, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclarePassive(queue, true, false, false, false, nil)
	if err != nil {
		return QueueInfo{}, fmt.Errorf("describe queue %s: %w", queue, err)
	}

	return QueueInfo{
		Name:      q.Name,
		Consumers: q.Consumers,
		Messages:  q.Messages,
	}, nil
}

// IsQueueNotFound сообщает, что describe провалился из-за отсутствия
// очереди (канальная ошибка 404 NOT_FOUND), а не из-за недоступности
// брокера.
func IsQueueNotFound(err error) bool {
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.NotFound
}
