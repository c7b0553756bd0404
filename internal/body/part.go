package body

import "github.com/go-gl/mathgl/mgl64"

// Part представляет один именованный жёсткий сегмент тела
type Part struct {
	// Name уникально внутри тела и не может быть пустым
	Name string
	// Parent содержит имя родительской части; пустая строка означает корень
	Parent string

	Position mgl64.Vec3 // Локальная позиция относительно родителя (мировая для корня)
	Rotation mgl64.Quat // Локальное вращение
	Size     mgl64.Vec3 // Размеры блока
}

// NewPart создает часть с единичным вращением
func NewPart(name, parent string, position, size mgl64.Vec3) Part {
	return Part{
		Name:     name,
		Parent:   parent,
		Position: position,
		Rotation: mgl64.QuatIdent(),
		Size:     size,
	}
}

// IsRoot сообщает, что у части нет родителя
func (p Part) IsRoot() bool {
	return p.Parent == ""
}

// Transform - положение и ориентация части в мировом пространстве
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// IdentityTransform возвращает трансформацию без смещения и вращения
func IdentityTransform() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// Compose применяет локальную трансформацию части поверх родительской
func (t Transform) Compose(local Part) Transform {
	return Transform{
		Position: t.Position.Add(t.Rotation.Rotate(local.Position)),
		Rotation: t.Rotation.Mul(local.Rotation).Normalize(),
	}
}
