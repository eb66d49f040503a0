package plugin

import "errors"

// Ошибки диспетчера tool'ов.
var (
	// ErrToolNotFound — имя tool отсутствует в манифесте.
	ErrToolNotFound = errors.New("tool not found in manifest")

	// ErrFactoryMissing — манифест ссылается на незарегистрированную фабрику.
	ErrFactoryMissing = errors.New("tool factory not registered")

	// ErrDuplicateTool — имя tool встречается в манифесте более одного раза.
	ErrDuplicateTool = errors.New("duplicate tool name in manifest")

	// ErrEmptyManifest — манифест не содержит ни одного tool.
	ErrEmptyManifest = errors.New("tool manifest has no entries")
)
