package body

import "fmt"

// PartID уникально идентифицирует часть внутри тела.
// Идентификатор удалённой части никогда не указывает на новую часть,
// занявшую тот же слот: при удалении поколение слота увеличивается.
type PartID struct {
	index      uint32
	generation uint32
}

// IsValid сообщает, был ли идентификатор выдан телом.
// Нулевое значение PartID никогда не бывает валидным.
func (id PartID) IsValid() bool {
	return id.generation != 0
}

// String возвращает отладочное представление идентификатора
func (id PartID) String() string {
	return fmt.Sprintf("part#%d.%d", id.index, id.generation)
}

type slot struct {
	part       *Part
	generation uint32
}

// arena хранит части в слотах с поколениями и списком свободных индексов
type arena struct {
	slots []slot
	free  []uint32
	count int
}

func (a *arena) insert(p *Part) PartID {
	a.count++

	// Переиспользуем освободившийся слот, поколение уже увеличено при удалении
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx].part = p
		return PartID{index: idx, generation: a.slots[idx].generation}
	}

	a.slots = append(a.slots, slot{part: p, generation: 1})
	return PartID{index: uint32(len(a.slots) - 1), generation: 1}
}

func (a *arena) get(id PartID) *Part {
	if !id.IsValid() || int(id.index) >= len(a.slots) {
		return nil
	}
	s := a.slots[id.index]
	if s.generation != id.generation {
		return nil
	}
	return s.part
}

func (a *arena) remove(id PartID) *Part {
	p := a.get(id)
	if p == nil {
		return nil
	}

	s := &a.slots[id.index]
	s.part = nil
	s.generation++
	if s.generation == 0 {
		// Переполнение: ноль зарезервирован под невалидный идентификатор
		s.generation = 1
	}
	a.free = append(a.free, id.index)
	a.count--
	return p
}

func (a *arena) reset() {
	a.slots = nil
	a.free = nil
	a.count = 0
}
