// Package mq — дуплексный control-канал менеджера поверх RabbitMQ.
//
// Структура:
//   - connection.go — соединение с брокером (bounded connect, reconnect)
//   - topology.go   — объявление exchanges, queues, bindings
//   - command.go    — разбор broadcast-команд и фильтр по имени менеджера
//   - channel.go    — ControlChannel: подписки команд + публикация статуса
//
// Каналы:
//   - broadcast  — команды всему кластеру (shutdown, readconfig),
//     фильтруются по списку целевых менеджеров в payload
//   - direct     — point-to-point команды конкретному менеджеру
//     (зарезервировано)
//   - status     — публикация снапшотов статуса менеджера
//
// Регистрация обработчиков отделена от Connect: главный цикл подписывает
// свои обработчики отдельным явным шагом, когда его состояние готово,
// чтобы сообщения из очереди не были молча потреблены раньше.
//
// Отсутствие связности — не ошибка: Connect возвращает bool, SendStatus
// best-effort, публикация статуса никогда не роняет главный цикл.
package mq
