package body

import (
	"errors"
	"fmt"
)

// Ошибки структурных операций над телом
var (
	// ErrInvalidPartName возвращается при попытке добавить часть с пустым именем
	ErrInvalidPartName = errors.New("part name must not be empty")

	// ErrPartAlreadyExists возвращается, если часть с таким именем уже есть в теле
	ErrPartAlreadyExists = errors.New("part already exists")

	// ErrPartNotFound возвращается, если целевая часть операции не найдена
	ErrPartNotFound = errors.New("part not found")

	// ErrParentNotFound сопоставляется с любой ParentNotFoundError через errors.Is
	ErrParentNotFound = errors.New("parent not found")

	// ErrCycle возвращается CheckAcyclic, если цепочка родителей замкнута
	ErrCycle = errors.New("parent chain forms a cycle")
)

// ParentNotFoundError описывает часть, чей родитель отсутствует в теле
type ParentNotFoundError struct {
	Parent string
	Child  string
}

// Error реализует интерфейс error
func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("parent %q of part %q not found", e.Parent, e.Child)
}

// Is позволяет сравнивать ошибку с ErrParentNotFound
func (e *ParentNotFoundError) Is(target error) bool {
	return target == ErrParentNotFound
}
