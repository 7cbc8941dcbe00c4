// Package mq — транспортный слой поверх RabbitMQ.
//
// # Топология
//
//	cascade.activities (direct)
//	├── <service>-task-queue [routing: <service>-task-queue]
//	│       Consumer: Worker пула сервиса
//	│       DLQ: dlq.activities
//	└── ... (по одной очереди на сервис, объявляются динамически)
//
//	default exchange
//	└── cascade.replies.<uuid> (exclusive, auto-delete)
//	        Consumer: Caller процесса-executor
//
// # Компоненты
//
//   - Connection — соединение с auto-reconnect
//   - Publisher  — публикация JSON-сообщений (envelope Message)
//   - Consumer   — потребление с manual ack/nack и prefetch
//   - Caller     — синхронный вызов remote activity: запрос в task queue,
//     ожидание результата на reply queue, матчинг по RequestID
//   - DescribeQueue — control-plane вызов для discovery: состояние очереди
//     (количество живых consumers) через passive declare
//
// Retry находится выше: Caller выполняет ровно одну попытку,
// политику повторов применяет invoker по дескриптору activity.
package mq
