package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"block-bodies/internal/body"
	"block-bodies/internal/ik"
	"block-bodies/internal/observe"
)

// minBoneLength - кости короче этого порога не решаются
const minBoneLength = 1e-6

var (
	// ErrLimbExists возвращается при повторной регистрации конечности
	ErrLimbExists = errors.New("limb already registered")
	// ErrLimbNotFound возвращается для незарегистрированной конечности
	ErrLimbNotFound = errors.New("limb not found")
	// ErrDegenerateChain возвращается, если у цепочки кость нулевой длины
	ErrDegenerateChain = errors.New("chain has a zero-length bone")
)

// LimbKind определяет вид конечности
type LimbKind string

// Виды конечностей
const (
	LimbArm LimbKind = "arm"
	LimbLeg LimbKind = "leg"
)

// Limb описывает конечность, управляемую решателем IK
type Limb struct {
	Name  string
	Kind  LimbKind
	Chain body.Chain

	// Target - мировая позиция цели для конечного эффектора
	Target mgl64.Vec3
	// Pole - смещение полюса сгиба относительно корня цепочки
	Pole mgl64.Vec3
}

// limbState хранит конечность и параметры цепочки, снятые в позе покоя
type limbState struct {
	Limb

	upperLength  float64
	lowerLength  float64
	upperForward mgl64.Vec3
	lowerForward mgl64.Vec3

	last    ik.Result
	solved  bool
	reached bool
}

// LimbSystem каждый кадр решает IK для зарегистрированных конечностей
// и записывает локальные вращения в части тела.
// Тело нельзя изменять из других горутин во время Update.
type LimbSystem struct {
	body    *body.Body
	metrics *observe.Metrics
	logger  *slog.Logger

	limbs []*limbState
	index map[string]*limbState

	mu sync.RWMutex
}

// NewLimbSystem создает систему конечностей для тела
func NewLimbSystem(b *body.Body, metrics *observe.Metrics, logger *slog.Logger) *LimbSystem {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LimbSystem{
		body:    b,
		metrics: metrics,
		logger:  logger,
		index:   make(map[string]*limbState),
	}
}

// AddLimb регистрирует конечность. Длины костей и их локальные оси
// берутся из смещений частей цепочки в позе покоя.
func (ls *LimbSystem) AddLimb(limb Limb) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if _, exists := ls.index[limb.Name]; exists {
		return fmt.Errorf("%w: %q", ErrLimbExists, limb.Name)
	}
	if err := ls.body.CheckChain(limb.Chain); err != nil {
		return fmt.Errorf("failed to add limb %q: %w", limb.Name, err)
	}

	lower, _ := ls.body.GetPartByName(limb.Chain.Lower)
	end, _ := ls.body.GetPartByName(limb.Chain.End)

	state := &limbState{
		Limb:        limb,
		upperLength: lower.Position.Len(),
		lowerLength: end.Position.Len(),
	}
	if state.upperLength < minBoneLength || state.lowerLength < minBoneLength {
		return fmt.Errorf("failed to add limb %q: %w (%s)", limb.Name, ErrDegenerateChain, limb.Chain)
	}
	state.upperForward = lower.Position.Mul(1 / state.upperLength)
	state.lowerForward = end.Position.Mul(1 / state.lowerLength)

	ls.limbs = append(ls.limbs, state)
	ls.index[limb.Name] = state
	return nil
}

// SetTarget задаёт мировую позицию цели для конечности
func (ls *LimbSystem) SetTarget(name string, target mgl64.Vec3) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	state, ok := ls.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrLimbNotFound, name)
	}
	state.Target = target
	return nil
}

// SetPole задаёт смещение полюса сгиба относительно корня цепочки
func (ls *LimbSystem) SetPole(name string, pole mgl64.Vec3) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	state, ok := ls.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrLimbNotFound, name)
	}
	state.Pole = pole
	return nil
}

// LastResult возвращает последнее решение для конечности
func (ls *LimbSystem) LastResult(name string) (ik.Result, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	state, ok := ls.index[name]
	if !ok || !state.solved {
		return ik.Result{}, false
	}
	return state.last, true
}

// Limbs возвращает зарегистрированные конечности в порядке добавления
func (ls *LimbSystem) Limbs() []Limb {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	limbs := make([]Limb, 0, len(ls.limbs))
	for _, state := range ls.limbs {
		limbs = append(limbs, state.Limb)
	}
	return limbs
}

// Update решает все конечности и записывает вращения в тело.
// Конечности, чьи части были удалены из тела, пропускаются.
func (ls *LimbSystem) Update(deltaTime float64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ctx := context.Background()
	for _, state := range ls.limbs {
		if err := ls.body.CheckChain(state.Chain); err != nil {
			if state.solved {
				ls.logger.Warn("цепочка конечности разорвана, решение пропущено",
					"limb", state.Name, "err", err)
				state.solved = false
			}
			continue
		}
		ls.solve(ctx, state)
	}
}

// solve решает одну конечность
func (ls *LimbSystem) solve(ctx context.Context, state *limbState) {
	upper, _ := ls.body.GetPartByNameMut(state.Chain.Upper)
	lower, _ := ls.body.GetPartByNameMut(state.Chain.Lower)

	// Мировое вращение родителя верхней кости
	parentRot := mgl64.QuatIdent()
	if !upper.IsRoot() {
		if parent, ok := ls.body.WorldTransform(upper.Parent); ok {
			parentRot = parent.Rotation
		}
	}
	root, _ := ls.body.WorldTransform(state.Chain.Upper)

	start := time.Now()
	res := ik.SolveTwoBone(
		root.Position,
		state.upperLength, state.lowerLength,
		state.Target, root.Position.Add(state.Pole),
		state.upperForward, state.lowerForward,
	)
	ls.metrics.RecordSolve(ctx, state.Name, string(state.Kind), res.TargetReached, time.Since(start))

	upper.Rotation = parentRot.Inverse().Mul(res.UpperRotation).Normalize()
	lower.Rotation = res.LowerRotation

	// Пишем в лог только смену состояния досягаемости
	if !state.solved || state.reached != res.TargetReached {
		if res.TargetReached {
			ls.logger.Debug("цель конечности достижима", "limb", state.Name)
		} else {
			ls.logger.Debug("цель конечности вне досягаемости",
				"limb", state.Name,
				"target", state.Target,
				"reach", state.upperLength+state.lowerLength)
		}
	}

	state.last = res
	state.solved = true
	state.reached = res.TargetReached
}
