package discovery

import (
	"context"

	"github.com/shaiso/Cascade/internal/mq"
)

// ControlPlane — административный API workflow-движка: describe task queue.
//
// Интерфейс нужен для подмены в тестах; боевая реализация ходит в брокер.
type ControlPlane interface {
	DescribeQueue(ctx context.Context, queue string) (mq.QueueInfo, error)
}

// AMQPControlPlane — control plane поверх соединения с брокером.
type AMQPControlPlane struct {
	conn *mq.Connection
}

// NewAMQPControlPlane создаёт control plane.
func NewAMQPControlPlane(conn *mq.Connection) *AMQPControlPlane {
	return &AMQPControlPlane{conn: conn}
}

// DescribeQueue возвращает состояние очереди по данным брокера.
func (c *AMQPControlPlane) DescribeQueue(ctx context.Context, queue string) (mq.QueueInfo, error) {
	return mq.DescribeQueue(ctx, c.conn, queue)
}
