package core

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"block-bodies/internal/body"
	"block-bodies/internal/bodyfile"
	"block-bodies/internal/config"
	"block-bodies/internal/engine"
	"block-bodies/internal/entities/humanoid"
	"block-bodies/internal/entities/worm"
	"block-bodies/internal/observe"
)

// Параметры анимации целей конечностей
const (
	// targetLift - насколько цель поднята над концом конечности в покое
	targetLift = 0.1
	// swingRadius - радиус круга, по которому движется цель
	swingRadius = 0.12
	// swingPeriod - период движения цели, секунды
	swingPeriod = 2.0
)

// Rig собирает тело, конечности и движок в один прогон
type Rig struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *observe.Metrics

	body    *body.Body
	library map[string]*body.Body
	severed []*body.Body

	engine   *engine.Engine
	limbs    *engine.LimbSystem
	animator *targetAnimator
}

// NewRig создает прогон: загружает или собирает тело, отделяет части
// из настроек и регистрирует найденные конечности
func NewRig(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observe.Metrics) (*Rig, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	r := &Rig{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}

	// Основное тело
	b, err := r.loadBody(ctx)
	if err != nil {
		return nil, err
	}
	r.body = b

	// Библиотека тел из каталога
	if cfg.BodyDir != "" {
		if err := r.loadLibrary(ctx); err != nil {
			return nil, err
		}
	}

	// Отделяем части до регистрации конечностей
	for _, name := range cfg.SeverParts {
		if err := r.Sever(ctx, name); err != nil {
			return nil, err
		}
	}

	r.limbs = engine.NewLimbSystem(r.body, metrics, logger)
	r.animator = newTargetAnimator(r.limbs, logger)
	r.registerLimbs()

	// Аниматор обновляет цели раньше решателя
	r.engine = engine.NewEngine(r.animator, r.limbs)

	logger.Info("тело готово",
		"body_id", r.body.ID,
		"parts", r.body.Len(),
		"limbs", len(r.limbs.Limbs()),
		"library", len(r.library))

	return r, nil
}

// Body возвращает основное тело
func (r *Rig) Body() *body.Body {
	return r.body
}

// Library возвращает тела, загруженные из каталога
func (r *Rig) Library() map[string]*body.Body {
	return r.library
}

// Severed возвращает отделённые поддеревья в порядке отделения
func (r *Rig) Severed() []*body.Body {
	return r.severed
}

// Engine возвращает движок прогона
func (r *Rig) Engine() *engine.Engine {
	return r.engine
}

// Limbs возвращает систему конечностей
func (r *Rig) Limbs() *engine.LimbSystem {
	return r.limbs
}

// Sever отделяет часть вместе с поддеревом от основного тела
func (r *Rig) Sever(ctx context.Context, name string) error {
	detached, err := r.body.SeverAt(name)
	if err != nil {
		return fmt.Errorf("failed to sever %q: %w", name, err)
	}
	r.severed = append(r.severed, detached)
	r.metrics.RecordSever(ctx, detached.Len())

	r.logger.Info("часть отделена",
		"part", name,
		"detached", detached.Len(),
		"remaining", r.body.Len())
	return nil
}

// Run выполняет заданное число кадров и сохраняет итоговую позу
func (r *Rig) Run(ctx context.Context) error {
	dt := r.config.DeltaTime()

	skipped := 0
	for frame := 0; frame < r.config.Frames; frame++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted at frame %d: %w", frame, err)
		}
		if !r.engine.Update(dt) {
			skipped++
		}
	}
	if skipped > 0 {
		r.logger.Warn("движок на паузе, кадры пропущены", "skipped", skipped)
	}

	if err := r.body.Validate(); err != nil {
		return fmt.Errorf("body invalid after run: %w", err)
	}

	r.logger.Info("прогон завершён",
		"frames", r.engine.Frame(),
		"elapsed", r.engine.Elapsed(),
		"parts", r.body.Len())

	if r.config.OutputPath != "" {
		if err := bodyfile.Save(r.config.OutputPath, r.body); err != nil {
			return err
		}
		r.logger.Info("поза сохранена", "path", r.config.OutputPath)
	}
	return nil
}

// loadBody загружает тело из файла или собирает заготовку
func (r *Rig) loadBody(ctx context.Context) (*body.Body, error) {
	cfg := r.config
	if cfg.BodyPath != "" {
		b, err := bodyfile.Load(cfg.BodyPath)
		r.metrics.RecordBodyLoad(ctx, err)
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	switch cfg.Preset {
	case config.PresetHumanoid:
		return humanoid.New(humanoid.DefaultOptions())
	case config.PresetWorm:
		return worm.New(cfg.WormSegments, mgl64.Vec3{0.3, 0.3, 0.4})
	default:
		return nil, fmt.Errorf("unknown preset %q", cfg.Preset)
	}
}

// loadLibrary загружает и проверяет тела из каталога
func (r *Rig) loadLibrary(ctx context.Context) error {
	library, err := bodyfile.LoadDir(ctx, r.config.BodyDir)
	if err != nil {
		r.metrics.RecordBodyLoad(ctx, err)
		return err
	}

	names := make([]string, 0, len(library))
	for name := range library {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b := library[name]
		if err := b.Validate(); err != nil {
			r.metrics.RecordBodyLoad(ctx, err)
			return fmt.Errorf("library body %q: %w", name, err)
		}
		r.metrics.RecordBodyLoad(ctx, nil)
		r.logger.Debug("тело из каталога загружено", "name", name, "parts", b.Len())
	}

	r.library = library
	return nil
}

// registerLimbs ищет в теле известные цепочки и регистрирует их
func (r *Rig) registerLimbs() {
	var limbs []engine.Limb
	for _, side := range humanoid.Sides {
		limbs = append(limbs,
			engine.Limb{Name: string(side) + "_arm", Kind: engine.LimbArm, Chain: humanoid.Arm(side), Pole: mgl64.Vec3{0, 0, 1}},
			engine.Limb{Name: string(side) + "_leg", Kind: engine.LimbLeg, Chain: humanoid.Leg(side), Pole: mgl64.Vec3{0, 0, -1}},
		)
	}
	if tail, ok := worm.TailChain(r.config.WormSegments); ok {
		limbs = append(limbs, engine.Limb{Name: "tail", Kind: engine.LimbArm, Chain: tail, Pole: mgl64.Vec3{0, 1, 0}})
	}

	for _, limb := range limbs {
		// Цепочки, которых нет в теле (или отделённые), пропускаем
		if err := r.body.CheckChain(limb.Chain); err != nil {
			r.logger.Debug("цепочка не найдена", "limb", limb.Name, "err", err)
			continue
		}

		end, _ := r.body.WorldTransform(limb.Chain.End)
		limb.Target = end.Position.Add(mgl64.Vec3{0, targetLift, 0})
		if err := r.limbs.AddLimb(limb); err != nil {
			// Кость нулевой длины делает цепочку непригодной, но не ломает прогон
			r.logger.Warn("конечность пропущена", "limb", limb.Name, "err", err)
			continue
		}
		r.animator.rest[limb.Name] = limb.Target
	}
}

// targetAnimator двигает цели конечностей по кругу вокруг позы покоя
type targetAnimator struct {
	limbs  *engine.LimbSystem
	logger *slog.Logger
	rest   map[string]mgl64.Vec3
	time   float64
}

func newTargetAnimator(limbs *engine.LimbSystem, logger *slog.Logger) *targetAnimator {
	return &targetAnimator{
		limbs:  limbs,
		logger: logger,
		rest:   make(map[string]mgl64.Vec3),
	}
}

// Update сдвигает цели на очередной кадр
func (a *targetAnimator) Update(deltaTime float64) {
	a.time += deltaTime
	phase := 2 * math.Pi * a.time / swingPeriod

	offset := mgl64.Vec3{0, swingRadius * math.Sin(phase), swingRadius * (1 - math.Cos(phase))}
	for name, rest := range a.rest {
		if err := a.limbs.SetTarget(name, rest.Add(offset)); err != nil {
			// Больше не пытаемся двигать цель этой конечности
			a.logger.Warn("не удалось сдвинуть цель", "limb", name, "err", err)
			delete(a.rest, name)
		}
	}
}
