package upload

import (
	"fmt"
	"os/user"
	"strings"
)

// IdentityFunc возвращает имя учётной записи, под которой идёт процесс.
// Подменяется в тестах.
type IdentityFunc func() (string, error)

// currentIdentity — производственная реализация IdentityFunc.
func currentIdentity() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("lookup current user: %w", err)
	}
	// Доменная часть не участвует в сравнении.
	name := u.Username
	if idx := strings.LastIndexAny(name, `\/`); idx >= 0 {
		name = name[idx+1:]
	}
	return name, nil
}

// identityMatches сравнивает учётные записи регистронезависимо.
func identityMatches(current, required string) bool {
	return strings.EqualFold(strings.TrimSpace(current), strings.TrimSpace(required))
}
