package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Exchanges — имена обменников.
const (
	// ExchangeBroadcast — команды всему кластеру (fanout).
	ExchangeBroadcast Exchange = "capman.broadcast"

	// ExchangeCommands — point-to-point команды (direct, routing = имя менеджера).
	ExchangeCommands Exchange = "capman.commands"

	// ExchangeStatus — снапшоты статуса (direct, routing = имя менеджера).
	ExchangeStatus Exchange = "capman.status"
)

// setupTopology объявляет обменники и очереди менеджера.
//
// Очереди команд объявляются per-manager и авто-удаляются: команда,
// адресованная выключенному менеджеру, не обязана его пережить.
func setupTopology(ch *amqp.Channel, managerName string) (broadcastQueue, commandQueue string, err error) {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeBroadcast, "fanout"},
		{ExchangeCommands, "direct"},
		{ExchangeStatus, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return "", "", fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	broadcastQueue = "broadcast." + managerName
	commandQueue = "command." + managerName

	queues := []struct {
		name       string
		exchange   Exchange
		routingKey string
	}{
		{broadcastQueue, ExchangeBroadcast, ""},
		{commandQueue, ExchangeCommands, managerName},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.name, // name
			false,  // durable
			true,   // delete when unused
			false,  // exclusive
			false,  // no-wait
			nil,    // arguments
		)
		if err != nil {
			return "", "", fmt.Errorf("declare queue %s: %w", q.name, err)
		}

		err = ch.QueueBind(
			q.name,             // queue name
			q.routingKey,       // routing key
			string(q.exchange), // exchange
			false,              // no-wait
			nil,                // arguments
		)
		if err != nil {
			return "", "", fmt.Errorf("bind queue %s to %s: %w", q.name, q.exchange, err)
		}
	}

	return broadcastQueue, commandQueue, nil
}
