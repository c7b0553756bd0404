// Package engine содержит покадровый цикл обновления тел: движок держит
// упорядоченный список систем и раз в кадр вызывает их Update.
package engine

import (
	"reflect"
	"slices"
	"sync"
)

// System представляет систему, которая обновляется каждый кадр
type System interface {
	// Update обновляет состояние системы
	Update(deltaTime float64)
}

// Engine ведёт часы симуляции и раз в кадр прогоняет системы по порядку.
// На паузе кадры не идут и время симуляции стоит; Step продвигает ровно
// один кадр независимо от паузы.
type Engine struct {
	systems []System
	frame   uint64
	elapsed float64
	paused  bool

	mu sync.RWMutex
}

// NewEngine создает движок с указанными системами в порядке обновления
func NewEngine(systems ...System) *Engine {
	return &Engine{systems: slices.Clone(systems)}
}

// AddSystem ставит систему в конец очереди обновления
func (e *Engine) AddSystem(s System) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.systems = append(e.systems, s)
}

// RemoveSystem снимает с очереди первую систему того же типа, что и system
func (e *Engine) RemoveSystem(system System) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	want := reflect.TypeOf(system)
	i := slices.IndexFunc(e.systems, func(s System) bool {
		return reflect.TypeOf(s) == want
	})
	if i < 0 {
		return false
	}
	e.systems = slices.Delete(slices.Clone(e.systems), i, i+1)
	return true
}

// Systems возвращает копию очереди систем
func (e *Engine) Systems() []System {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return slices.Clone(e.systems)
}

// Frame возвращает число выполненных кадров
func (e *Engine) Frame() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.frame
}

// Elapsed возвращает время симуляции в секундах
func (e *Engine) Elapsed() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.elapsed
}

// Pause останавливает часы: Update больше не двигает позу
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume снимает паузу
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

// Paused сообщает, стоит ли движок на паузе
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.paused
}

// Update выполняет кадр длительностью deltaTime, если движок не на паузе.
// Возвращает false, если кадр пропущен.
func (e *Engine) Update(deltaTime float64) bool {
	e.mu.RLock()
	paused := e.paused
	e.mu.RUnlock()
	if paused {
		return false
	}
	e.Step(deltaTime)
	return true
}

// Step выполняет ровно один кадр, в том числе на паузе
func (e *Engine) Step(deltaTime float64) {
	e.mu.Lock()
	// Очередь не меняется на месте, поэтому снимок безопасен без копирования
	systems := e.systems
	e.frame++
	e.elapsed += deltaTime
	e.mu.Unlock()

	for _, system := range systems {
		system.Update(deltaTime)
	}
}
