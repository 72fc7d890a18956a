// Package rabbitmq содержит подключение к RabbitMQ, публикацию и
// потребление событий статуса платежей. Очередь payments.status —
// push-канал reconciler-а: каждое решение по платежу публикуется
// в обменник payments и доставляется живым наблюдателям.
package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// PaymentsExchange — обменник событий платежей.
const PaymentsExchange = "payments"

// StatusRoutingKey — ключ маршрутизации событий смены статуса.
const StatusRoutingKey = "status"

// StatusQueue — очередь push-канала reconciler-а.
const StatusQueue = "payments.status"

// Connect открывает соединение и канал RabbitMQ.
func Connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	const op = "rabbitmq.Connect"
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return conn, ch, nil
}

// SetupPaymentQueues объявляет обменник и очередь событий статусов
// и связывает их. Идемпотентно.
func SetupPaymentQueues(ch *amqp.Channel) error {
	const op = "rabbitmq.SetupPaymentQueues"
	if err := ch.ExchangeDeclare(PaymentsExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := ch.QueueDeclare(StatusQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.QueueBind(StatusQueue, StatusRoutingKey, PaymentsExchange, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
