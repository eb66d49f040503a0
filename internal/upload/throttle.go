package upload

import "time"

// Интервалы дросселирования.
const (
	// progressInterval — минимум между progress-callback'ами.
	progressInterval = 3 * time.Second

	// statusLineInterval — минимум между одинаковыми log-строками статуса.
	statusLineInterval = 60 * time.Second
)

// throttle дросселирует события по времени.
type throttle struct {
	interval time.Duration
	last     time.Time
}

// allow возвращает true, если с прошлого срабатывания прошёл интервал.
func (t *throttle) allow(now time.Time) bool {
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// lineThrottle дросселирует log-строки: строка проходит раз в интервал
// либо сразу, как только её текст изменился. Подавление дубликатов
// спасает лог от флуда во время многочасовой передачи.
type lineThrottle struct {
	interval time.Duration
	last     time.Time
	lastText string
}

// allow возвращает true, если строку пора логировать.
func (t *lineThrottle) allow(now time.Time, text string) bool {
	if text != t.lastText {
		t.last = now
		t.lastText = text
		return true
	}
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
