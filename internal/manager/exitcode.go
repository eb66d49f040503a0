package manager

// LoopExitCode — терминальная причина выхода главного цикла.
type LoopExitCode int

const (
	// ExitNoTask — очередь пуста, чистый выход.
	ExitNoTask LoopExitCode = iota

	// ExitShutdown — получена broadcast-команда shutdown.
	ExitShutdown

	// ExitConfigChanged — конфигурация изменилась; обёртка перезапускает
	// менеджер с перечитанными настройками.
	ExitConfigChanged

	// ExitDisabledRemote — менеджер выключен удалённым control store.
	ExitDisabledRemote

	// ExitDisabledLocal — менеджер выключен локальной конфигурацией.
	ExitDisabledLocal

	// ExitExcessiveErrors — превышен потолок подряд идущих ошибок;
	// менеджер durable выключил себя локально.
	ExitExcessiveErrors

	// ExitInvalidWorkDir — рабочая директория отсутствует или невалидна;
	// менеджер durable выключил себя локально.
	ExitInvalidWorkDir

	// ExitMaxTasksReached — выполнен настроенный максимум tasks.
	ExitMaxTasksReached
)

// String возвращает строковое представление причины выхода.
func (c LoopExitCode) String() string {
	switch c {
	case ExitNoTask:
		return "no task found"
	case ExitShutdown:
		return "shutdown received"
	case ExitConfigChanged:
		return "config changed"
	case ExitDisabledRemote:
		return "disabled remotely"
	case ExitDisabledLocal:
		return "disabled locally"
	case ExitExcessiveErrors:
		return "excessive errors"
	case ExitInvalidWorkDir:
		return "invalid working directory"
	case ExitMaxTasksReached:
		return "exceeded maximum job count"
	default:
		return "unknown"
	}
}
