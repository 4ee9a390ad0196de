package mysql

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicateKey matches unique-index violations across drivers. Gorm only
// translates them with TranslateError enabled, so the raw driver messages
// are matched as well (mysql and sqlite phrasing differ).
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
