package dbproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Сентинельные коды результата.
//
// Положительные коды возвращает сама процедура (0 = успех, RetNoTask =
// "нет работы"); отрицательные выставляет Executor при сбоях соединения.
const (
	// RetSuccess — процедура выполнена успешно.
	RetSuccess = 0

	// RetNoTask — работа для менеджера отсутствует.
	RetNoTask = 53000

	// RetDeadlock — вызов стал жертвой deadlock.
	RetDeadlock = -4

	// RetExcessiveRetries — бюджет retry исчерпан.
	RetExcessiveRetries = -5
)

// Фиксированная пауза между попытками при сбое соединения.
const defaultRetryDelay = 10 * time.Second

// Row — одна строка результата процедуры, колонки по имени.
type Row map[string]string

// Get возвращает значение колонки (имя регистронезависимо).
func (r Row) Get(name string) string {
	if v, ok := r[name]; ok {
		return v
	}
	return r[strings.ToLower(name)]
}

// Arg — именованный параметр процедуры.
type Arg struct {
	Name  string
	Value any
}

// Executor — retry-обёртка вызова хранимых процедур.
type Executor struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	// retryDelay переопределяется в тестах.
	retryDelay time.Duration
}

// NewExecutor создаёт Executor поверх pool.
func NewExecutor(pool *pgxpool.Pool, logger *slog.Logger) *Executor {
	return &Executor{
		pool:       pool,
		logger:     logger,
		retryDelay: defaultRetryDelay,
	}
}

// Execute вызывает процедуру с именованными параметрами.
//
// При сбое соединения повторяет вызов до maxRetries раз с фиксированной
// паузой; ошибка прав доступа прерывает retry немедленно — ожидание не
// чинит ACL. Исчерпание бюджета даёт RetExcessiveRetries, deadlock —
// RetDeadlock; оба отличимы от прикладного ненулевого кода процедуры.
//
// Прошедшее время логируется при любом исходе.
func (e *Executor) Execute(ctx context.Context, proc string, args []Arg, maxRetries int) (int, []Row) {
	start := time.Now()
	code, rows := e.execute(ctx, proc, args, maxRetries)
	e.logger.Debug("stored procedure call finished",
		"proc", proc,
		"return_code", code,
		"rows", len(rows),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return code, rows
}

func (e *Executor) execute(ctx context.Context, proc string, args []Arg, maxRetries int) (int, []Row) {
	query, named := buildCall(proc, args)

	for attempt := 0; ; attempt++ {
		code, rows, err := e.call(ctx, query, named)
		if err == nil {
			return code, rows
		}

		if isDeadlock(err) {
			e.logger.Warn("stored procedure deadlock victim", "proc", proc, "error", err)
			return RetDeadlock, nil
		}

		if isPermissionError(err) {
			// Никакое количество ожидания не чинит ACL.
			e.logger.Error("stored procedure permission error, aborting retries",
				"proc", proc, "error", err)
			return RetExcessiveRetries, nil
		}

		if attempt >= maxRetries {
			e.logger.Error("stored procedure retries exhausted",
				"proc", proc, "attempts", attempt+1, "error", err)
			return RetExcessiveRetries, nil
		}

		e.logger.Warn("stored procedure call failed, retrying",
			"proc", proc, "attempt", attempt+1, "delay", e.retryDelay, "error", err)

		select {
		case <-ctx.Done():
			return RetExcessiveRetries, nil
		case <-time.After(e.retryDelay):
		}
	}
}

// call выполняет один вызов и разбирает результат.
func (e *Executor) call(ctx context.Context, query string, named pgx.NamedArgs) (int, []Row, error) {
	rows, err := e.pool.Query(ctx, query, named)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return 0, nil, fmt.Errorf("read row: %w", err)
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			row[strings.ToLower(fd.Name)] = stringify(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	code := RetSuccess
	if len(out) > 0 {
		if v := out[0].Get("return_code"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				code = n
			}
		}
	}
	return code, out, nil
}

// buildCall строит SELECT по имени процедуры и параметрам.
func buildCall(proc string, args []Arg) (string, pgx.NamedArgs) {
	named := make(pgx.NamedArgs, len(args))
	parts := make([]string, 0, len(args))
	for _, a := range args {
		name := strings.ToLower(a.Name)
		parts = append(parts, fmt.Sprintf("_%s => @%s", name, name))
		named[name] = a.Value
	}
	query := fmt.Sprintf("SELECT * FROM %s(%s)", proc, strings.Join(parts, ", "))
	return query, named
}

// stringify переводит значение колонки в строку.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// isPermissionError распознаёт ошибку прав доступа.
func isPermissionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42501", "28000", "28P01":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "authorization") ||
		strings.Contains(msg, "authentication failed")
}

// isDeadlock распознаёт deadlock и сбой сериализации.
func isDeadlock(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40P01", "40001":
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "deadlock")
}
