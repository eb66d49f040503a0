// Package dbproc выполняет вызовы хранимых процедур job-очереди.
//
// Структура:
//   - pool.go     — pgx connection pool
//   - executor.go — retry-обёртка вокруг вызова процедуры
//
// Executor — единственная точка входа для всех компонентов, говорящих со
// store: здесь живут backoff при сетевых сбоях и бюджет retry. Каждая
// процедура возвращает колонку return_code; вызывающая сторона
// интерпретирует код по собственной таблице значений (0 = успех,
// отдельные сентинелы для "нет работы" / "исчерпаны retry" / "deadlock").
package dbproc
