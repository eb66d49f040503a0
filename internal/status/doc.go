// Package status поддерживает снапшот состояния менеджера.
//
// Структура:
//   - snapshot.go — структура снапшота (Manager + Task секции)
//   - reporter.go — Reporter: мутации состояния + запись снапшота
//   - flagfile.go — flag-файл "менеджер в середине task"
//
// Снапшот пишется целиком после каждой мутации и по таймеру, атомарно
// (tmp + rename), и — при включённом MQ-логировании — тем же payload
// отправляется в control-канал. Сбои записи логируются и никогда не
// прерывают рабочий цикл.
//
// Путь записи обязан быть потокобезопасным: снапшот мутируют главный
// цикл, progress-callback загрузки и таймер обновления Duration —
// три разных потока.
package status
