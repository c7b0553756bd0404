package humanoid

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"block-bodies/internal/body"
)

// Side определяет сторону тела
type Side string

// Стороны тела; левая сторона лежит в отрицательной полуоси X
const (
	Left  Side = "left"
	Right Side = "right"
)

// Sides перечисляет обе стороны в порядке обхода
var Sides = []Side{Left, Right}

// Имена непарных частей
const (
	Torso = "torso"
	Head  = "head"
)

// Options задаёт размеры блоков гуманоида
type Options struct {
	TorsoSize    mgl64.Vec3
	HeadSize     mgl64.Vec3
	UpperArmSize mgl64.Vec3
	ForearmSize  mgl64.Vec3
	HandSize     mgl64.Vec3
	ThighSize    mgl64.Vec3
	ShinSize     mgl64.Vec3
	FootSize     mgl64.Vec3
}

// DefaultOptions возвращает пропорции гуманоида по умолчанию (около 1.8 м)
func DefaultOptions() Options {
	return Options{
		TorsoSize:    mgl64.Vec3{0.5, 0.6, 0.25},
		HeadSize:     mgl64.Vec3{0.3, 0.3, 0.3},
		UpperArmSize: mgl64.Vec3{0.15, 0.3, 0.15},
		ForearmSize:  mgl64.Vec3{0.13, 0.28, 0.13},
		HandSize:     mgl64.Vec3{0.12, 0.12, 0.06},
		ThighSize:    mgl64.Vec3{0.2, 0.45, 0.2},
		ShinSize:     mgl64.Vec3{0.17, 0.42, 0.17},
		FootSize:     mgl64.Vec3{0.15, 0.08, 0.28},
	}
}

// PartName возвращает имя парной части, например left_forearm
func PartName(side Side, part string) string {
	return string(side) + "_" + part
}

// Arm возвращает цепочку руки: плечевая кость → предплечье → кисть
func Arm(side Side) body.Chain {
	return body.Chain{
		Upper: PartName(side, "upper_arm"),
		Lower: PartName(side, "forearm"),
		End:   PartName(side, "hand"),
	}
}

// Leg возвращает цепочку ноги: бедро → голень → стопа
func Leg(side Side) body.Chain {
	return body.Chain{
		Upper: PartName(side, "thigh"),
		Lower: PartName(side, "shin"),
		End:   PartName(side, "foot"),
	}
}

// New собирает тело гуманоида. Корень - торс; руки и ноги висят вниз,
// каждая кость смещена от родителя на длину родительского блока.
func New(opts Options) (*body.Body, error) {
	b := body.New()

	// Высота таза над землёй
	legLength := opts.ThighSize.Y() + opts.ShinSize.Y() + opts.FootSize.Y()
	torsoHalf := opts.TorsoSize.Y() / 2

	parts := []body.Part{
		body.NewPart(Torso, "", mgl64.Vec3{0, legLength + torsoHalf, 0}, opts.TorsoSize),
		body.NewPart(Head, Torso, mgl64.Vec3{0, torsoHalf + opts.HeadSize.Y()/2, 0}, opts.HeadSize),
	}

	for _, side := range Sides {
		sign := 1.0
		if side == Left {
			sign = -1
		}

		arm := Arm(side)
		shoulder := PartName(side, "shoulder")
		shoulderSize := mgl64.Vec3{opts.UpperArmSize.X(), opts.UpperArmSize.X(), opts.UpperArmSize.Z()}
		parts = append(parts,
			body.NewPart(shoulder, Torso,
				mgl64.Vec3{sign * (opts.TorsoSize.X()/2 + opts.UpperArmSize.X()/2), torsoHalf - opts.UpperArmSize.X()/2, 0},
				shoulderSize),
			body.NewPart(arm.Upper, shoulder, mgl64.Vec3{}, opts.UpperArmSize),
			body.NewPart(arm.Lower, arm.Upper, mgl64.Vec3{0, -opts.UpperArmSize.Y(), 0}, opts.ForearmSize),
			body.NewPart(arm.End, arm.Lower, mgl64.Vec3{0, -opts.ForearmSize.Y(), 0}, opts.HandSize),
		)

		leg := Leg(side)
		parts = append(parts,
			body.NewPart(leg.Upper, Torso, mgl64.Vec3{sign * opts.TorsoSize.X() / 4, -torsoHalf, 0}, opts.ThighSize),
			body.NewPart(leg.Lower, leg.Upper, mgl64.Vec3{0, -opts.ThighSize.Y(), 0}, opts.ShinSize),
			body.NewPart(leg.End, leg.Lower, mgl64.Vec3{0, -opts.ShinSize.Y(), 0}, opts.FootSize),
		)
	}

	for _, p := range parts {
		if _, err := b.AddPart(p); err != nil {
			return nil, fmt.Errorf("failed to assemble humanoid: %w", err)
		}
	}

	return b, nil
}
