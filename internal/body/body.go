// Package body содержит иерархическую модель блочного тела: лес именованных
// частей с быстрым поиском по имени, кэшем детей и списком корней.
//
// Имя и родитель части принадлежат телу. Изменять их напрямую через
// указатели из GetPartMut/GetPartByNameMut нельзя: для перестройки
// иерархии используйте RemovePart, SeverAt и AttachBody.
// Тело не синхронизировано: доступ из нескольких горутин защищает вызывающий.
package body

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Body владеет набором частей и поддерживает индексы иерархии.
// Нулевое значение готово к использованию; ID выдаётся при первом AddPart.
type Body struct {
	ID uuid.UUID

	parts    arena
	nameToID map[string]PartID
	children map[PartID][]PartID
	roots    []PartID
}

// New создает пустое тело
func New() *Body {
	return &Body{
		ID:       uuid.New(),
		nameToID: make(map[string]PartID),
		children: make(map[PartID][]PartID),
		roots:    make([]PartID, 0),
	}
}

// Len возвращает количество частей в теле
func (b *Body) Len() int {
	return b.parts.count
}

// Contains проверяет, есть ли в теле часть с указанным именем
func (b *Body) Contains(name string) bool {
	_, exists := b.nameToID[name]
	return exists
}

// AddPart добавляет часть в тело. Родитель, если указан, уже должен
// присутствовать. При ошибке состояние тела не меняется.
// Нулевой кватернион вращения заменяется единичным.
func (b *Body) AddPart(p Part) (PartID, error) {
	b.lazyInit()
	if p.Name == "" {
		return PartID{}, ErrInvalidPartName
	}
	if _, exists := b.nameToID[p.Name]; exists {
		return PartID{}, fmt.Errorf("%w: %q", ErrPartAlreadyExists, p.Name)
	}

	var parentID PartID
	if p.Parent != "" {
		id, exists := b.nameToID[p.Parent]
		if !exists {
			return PartID{}, &ParentNotFoundError{Parent: p.Parent, Child: p.Name}
		}
		parentID = id
	}

	part := p
	if part.Rotation == (mgl64.Quat{}) {
		part.Rotation = mgl64.QuatIdent()
	}

	id := b.parts.insert(&part)
	b.nameToID[part.Name] = id
	if parentID.IsValid() {
		b.children[parentID] = append(b.children[parentID], id)
	} else {
		b.roots = append(b.roots, id)
	}

	return id, nil
}

// RemovePart удаляет часть вместе со всеми потомками.
// Удалённые части возвращаются в прямом порядке обхода: корень поддерева первым,
// каждый родитель раньше своих детей.
func (b *Body) RemovePart(name string) ([]Part, error) {
	id, exists := b.nameToID[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrPartNotFound, name)
	}

	// Отвязываем поддерево от родителя или от списка корней
	top := b.parts.get(id)
	if parentID, ok := b.nameToID[top.Parent]; ok && top.Parent != "" {
		b.children[parentID] = removeID(b.children[parentID], id)
		if len(b.children[parentID]) == 0 {
			delete(b.children, parentID)
		}
	} else {
		b.roots = removeID(b.roots, id)
	}

	subtree := b.subtreeIDs(id)
	removed := make([]Part, 0, len(subtree))
	for _, sid := range subtree {
		p := b.parts.remove(sid)
		if p == nil {
			continue
		}
		delete(b.nameToID, p.Name)
		delete(b.children, sid)
		removed = append(removed, *p)
	}

	return removed, nil
}

// SeverAt отрезает поддерево, начинающееся с указанной части, и возвращает
// его как новое независимое тело. Отрезанная часть становится его корнем.
func (b *Body) SeverAt(name string) (*Body, error) {
	removed, err := b.RemovePart(name)
	if err != nil {
		return nil, err
	}

	severed := New()
	removed[0].Parent = ""
	for _, p := range removed {
		if _, err := severed.AddPart(p); err != nil {
			return nil, fmt.Errorf("sever at %q: %w", name, err)
		}
	}

	return severed, nil
}

// AttachBody поглощает other, подвешивая его точку крепления под часть attachTo.
// Пустой mountPoint означает первый корень other. Перед изменениями
// проверяются обе точки и отсутствие конфликтов имён; при успехе other
// становится пустым телом.
func (b *Body) AttachBody(other *Body, attachTo, mountPoint string) error {
	if _, exists := b.nameToID[attachTo]; !exists {
		return fmt.Errorf("attach target: %w: %q", ErrPartNotFound, attachTo)
	}
	if other == nil {
		return fmt.Errorf("mount point: %w: body is nil", ErrPartNotFound)
	}

	var mountID PartID
	if mountPoint != "" {
		id, exists := other.nameToID[mountPoint]
		if !exists {
			return fmt.Errorf("mount point: %w: %q", ErrPartNotFound, mountPoint)
		}
		mountID = id
	} else {
		if len(other.roots) == 0 {
			return fmt.Errorf("mount point: %w: body %s has no roots", ErrPartNotFound, other.ID)
		}
		mountID = other.roots[0]
	}

	if err := other.Validate(); err != nil {
		return fmt.Errorf("attach body %s: %w", other.ID, err)
	}
	for _, id := range other.preorder() {
		name := other.parts.get(id).Name
		if _, exists := b.nameToID[name]; exists {
			return fmt.Errorf("attach body %s: %w: %q", other.ID, ErrPartAlreadyExists, name)
		}
	}

	// Прямой обход other сохраняет порядок «родитель раньше ребенка»,
	// а новый родитель точки крепления уже есть в b
	for _, id := range other.preorder() {
		p := *other.parts.get(id)
		if id == mountID {
			p.Parent = attachTo
		}
		if _, err := b.AddPart(p); err != nil {
			return fmt.Errorf("attach body %s: %w", other.ID, err)
		}
	}

	other.reset()
	return nil
}

// GetPart возвращает копию части по идентификатору
func (b *Body) GetPart(id PartID) (Part, bool) {
	p := b.parts.get(id)
	if p == nil {
		return Part{}, false
	}
	return *p, true
}

// GetPartByName возвращает копию части по имени
func (b *Body) GetPartByName(name string) (Part, bool) {
	id, exists := b.nameToID[name]
	if !exists {
		return Part{}, false
	}
	return b.GetPart(id)
}

// GetPartID возвращает идентификатор части по имени
func (b *Body) GetPartID(name string) (PartID, bool) {
	id, exists := b.nameToID[name]
	return id, exists
}

// GetPartMut возвращает изменяемую часть по идентификатору.
// Менять можно только Position, Rotation и Size.
func (b *Body) GetPartMut(id PartID) (*Part, bool) {
	p := b.parts.get(id)
	return p, p != nil
}

// GetPartByNameMut возвращает изменяемую часть по имени
func (b *Body) GetPartByNameMut(name string) (*Part, bool) {
	id, exists := b.nameToID[name]
	if !exists {
		return nil, false
	}
	return b.GetPartMut(id)
}

// GetChildren возвращает прямых детей части; для неизвестного имени - пустой список
func (b *Body) GetChildren(parentName string) []Part {
	return b.partsOf(b.GetChildrenIDs(parentName))
}

// GetChildrenIDs возвращает идентификаторы прямых детей части
func (b *Body) GetChildrenIDs(parentName string) []PartID {
	id, exists := b.nameToID[parentName]
	if !exists {
		return []PartID{}
	}
	return append([]PartID{}, b.children[id]...)
}

// GetChainToRoot возвращает цепочку от части до её корня включительно
func (b *Body) GetChainToRoot(partName string) []Part {
	return b.partsOf(b.GetChainToRootIDs(partName))
}

// GetChainToRootIDs возвращает идентификаторы цепочки от части до корня
func (b *Body) GetChainToRootIDs(partName string) []PartID {
	chain := make([]PartID, 0)
	name := partName
	for name != "" {
		id, exists := b.nameToID[name]
		if !exists {
			break
		}
		chain = append(chain, id)
		if len(chain) > b.parts.count {
			// Цепочка длиннее тела возможна только при цикле
			break
		}
		name = b.parts.get(id).Parent
	}
	return chain
}

// GetAllDescendants рекурсивно собирает всех потомков части в прямом порядке,
// не включая её саму
func (b *Body) GetAllDescendants(parentName string) []Part {
	id, exists := b.nameToID[parentName]
	if !exists {
		return []Part{}
	}
	return b.partsOf(b.subtreeIDs(id)[1:])
}

// GetRoots возвращает корневые части
func (b *Body) GetRoots() []Part {
	return b.partsOf(b.roots)
}

// Parts возвращает все части в прямом порядке обхода от корней
func (b *Body) Parts() []Part {
	return b.partsOf(b.preorder())
}

// Clone создает глубокую копию тела с новым идентификатором.
// Идентификаторы частей в копии совпадают с исходными.
func (b *Body) Clone() *Body {
	clone := New()
	clone.parts = arena{
		slots: make([]slot, len(b.parts.slots)),
		free:  append([]uint32(nil), b.parts.free...),
		count: b.parts.count,
	}
	for i, s := range b.parts.slots {
		clone.parts.slots[i].generation = s.generation
		if s.part != nil {
			p := *s.part
			clone.parts.slots[i].part = &p
		}
	}

	for name, id := range b.nameToID {
		clone.nameToID[name] = id
	}
	for id, kids := range b.children {
		clone.children[id] = append([]PartID(nil), kids...)
	}
	clone.roots = append(clone.roots, b.roots...)
	return clone
}

// Validate проверяет, что корни живы, индекс имён согласован,
// а имена родителей разрешаются. Циклы не проверяются - см. CheckAcyclic.
func (b *Body) Validate() error {
	for _, id := range b.roots {
		if b.parts.get(id) == nil {
			return fmt.Errorf("%w: stale root %s", ErrPartNotFound, id)
		}
	}

	for name, id := range b.nameToID {
		p := b.parts.get(id)
		if p == nil || p.Name != name {
			return fmt.Errorf("%w: stale index entry %q", ErrPartNotFound, name)
		}
	}

	for _, s := range b.parts.slots {
		if s.part == nil || s.part.Parent == "" {
			continue
		}
		if _, exists := b.nameToID[s.part.Parent]; !exists {
			return &ParentNotFoundError{Parent: s.part.Parent, Child: s.part.Name}
		}
	}

	return nil
}

// CheckAcyclic проходит по цепочкам родителей каждой части и
// возвращает ErrCycle, если какая-то из них замкнута
func (b *Body) CheckAcyclic() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[PartID]int, b.parts.count)

	for _, s := range b.parts.slots {
		if s.part == nil {
			continue
		}

		var path []PartID
		name := s.part.Name
		for name != "" {
			id, exists := b.nameToID[name]
			if !exists || state[id] == done {
				break
			}
			if state[id] == visiting {
				return fmt.Errorf("%w: through %q", ErrCycle, name)
			}
			state[id] = visiting
			path = append(path, id)
			name = b.parts.get(id).Parent
		}

		for _, id := range path {
			state[id] = done
		}
	}

	return nil
}

// subtreeIDs собирает поддерево в прямом порядке, начиная с самой части
func (b *Body) subtreeIDs(root PartID) []PartID {
	out := make([]PartID, 0)
	stack := []PartID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, id)

		// Дети кладутся в обратном порядке, чтобы обход шёл слева направо
		kids := b.children[id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

func (b *Body) preorder() []PartID {
	out := make([]PartID, 0, b.parts.count)
	for _, root := range b.roots {
		out = append(out, b.subtreeIDs(root)...)
	}
	return out
}

func (b *Body) partsOf(ids []PartID) []Part {
	out := make([]Part, 0, len(ids))
	for _, id := range ids {
		if p := b.parts.get(id); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// lazyInit готовит индексы тела, созданного без New
func (b *Body) lazyInit() {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.nameToID == nil {
		b.nameToID = make(map[string]PartID)
	}
	if b.children == nil {
		b.children = make(map[PartID][]PartID)
	}
}

func (b *Body) reset() {
	b.parts.reset()
	b.nameToID = make(map[string]PartID)
	b.children = make(map[PartID][]PartID)
	b.roots = make([]PartID, 0)
}

func removeID(ids []PartID, id PartID) []PartID {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
