package domain

import "errors"

var (
	// ErrVersionConflict сигнализирует, что version-guarded запись затронула 0 строк:
	// строка была изменена или удалена другим пользователем после чтения.
	// Вызывающая сторона должна перечитать данные и повторить операцию.
	ErrVersionConflict = errors.New("row was updated by someone else: reload and retry")
	// ErrProductCodeTaken возвращается при попытке создать товар с уже занятым кодом.
	ErrProductCodeTaken = errors.New("product code already exists")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
