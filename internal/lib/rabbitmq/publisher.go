package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// PublishMessage сериализует событие в JSON и публикует его в обменник.
// Сообщения помечаются persistent: push-канал не должен терять решения
// по платежам при рестарте брокера.
func PublishMessage(ch *amqp.Channel, exchange, routingKey string, event any) error {
	const op = "rabbitmq.PublishMessage"

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}
	if err := ch.Publish(exchange, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
