package plugin

import (
	"context"

	"github.com/shaiso/Capman/internal/config"
	"github.com/shaiso/Capman/internal/domain"
	"github.com/shaiso/Capman/internal/status"
)

// ToolRunner — capability-интерфейс step-tool'а.
//
// Жизненный цикл: Setup вызывается один раз сразу после Resolve с
// параметрами менеджера, параметрами task и репортером статуса; затем
// ровно один вызов RunTool. RunTool может блокировать на всю длину
// операции (загрузка bundle — потенциально часы); отмена кооперативная
// через контекст, но начатый lease всегда должен быть закрыт результатом.
type ToolRunner interface {
	Setup(settings *config.Settings, task *domain.TaskRecord, reporter *status.Reporter) error
	RunTool(ctx context.Context) domain.CloseoutResult
}

// Factory создаёт свежий экземпляр tool'а.
type Factory func() ToolRunner
