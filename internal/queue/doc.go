// Package queue — клиент job-очереди менеджера.
//
// Структура:
//   - client.go — lease-запрос, closeout, idle-report, settings, статистика
//
// Ключевой инвариант — lease/idle: если lease-запрос завершился
// ExcessiveRetries или Deadlock, store мог оптимистично закоммитить lease
// на этого менеджера до разрыва соединения. Клиент обязан вызвать
// ReportManagerIdle ровно один раз перед возвратом, иначе lease утечёт
// и никогда не будет отработан.
package queue
