// Package ik содержит аналитический решатель обратной кинематики для цепочки
// из двух костей (плечо → локоть → кисть, бедро → колено → стопа).
//
// Решатель - чистая функция без состояния: её можно вызывать каждый кадр
// и из нескольких горутин одновременно. Он никогда не возвращает ошибку;
// вырожденные входы обрабатываются ограничением расстояния и запасными осями,
// а недостижимость цели видна только по флагу TargetReached.
package ik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// epsilon - запас до границы досягаемости и порог нулевого расстояния
	epsilon = 0.001
	// poleEpsilonSq - порог квадрата длины проекции полюса
	poleEpsilonSq = 0.0001
	// parallelThreshold - порог |dir.Y|, выше которого «вверх» берётся по X
	parallelThreshold = 0.99
	// arcEpsilon - порог |from×to|, ниже которого векторы считаются коллинеарными
	arcEpsilon = 1e-12
)

// Мировые оси
var (
	Up      = mgl64.Vec3{0, 1, 0}
	Down    = mgl64.Vec3{0, -1, 0}
	Right   = mgl64.Vec3{1, 0, 0}
	Back    = mgl64.Vec3{0, 0, 1}
	Forward = mgl64.Vec3{0, 0, -1}
)

// Result - результат решения для одной конечности
type Result struct {
	// MiddlePos - мировая позиция среднего сустава (локоть, колено)
	MiddlePos mgl64.Vec3
	// UpperRotation переводит локальную ось верхней кости в её мировое направление
	UpperRotation mgl64.Quat
	// LowerRotation - вращение нижней кости относительно верхней
	LowerRotation mgl64.Quat
	// TargetReached ложен, если цель вне кольца досягаемости цепочки
	TargetReached bool

	AngleAtRoot   float64 // Угол в корне между направлением на цель и верхней костью, рад
	AngleAtMiddle float64 // Внутренний угол в среднем суставе, рад
}

// SolveTwoBone вычисляет положение среднего сустава и вращения двух костей.
// upperLocalForward и lowerLocalForward - оси костей в их локальных системах.
func SolveTwoBone(
	rootPos mgl64.Vec3,
	upperLength, lowerLength float64,
	targetPos, poleTarget mgl64.Vec3,
	upperLocalForward, lowerLocalForward mgl64.Vec3,
) Result {
	toTarget := targetPos.Sub(rootPos)
	distance := toTarget.Len()

	// Направление на цель; цель в корне даёт фиксированное направление
	targetDir := Back
	if distance >= epsilon {
		targetDir = toTarget.Mul(1 / distance)
	}

	// Ограничиваем расстояние кольцом досягаемости
	chain := upperLength + lowerLength
	minReach := math.Abs(upperLength - lowerLength)
	reach := distance
	reached := true
	switch {
	case distance > chain:
		reach = chain - epsilon
		reached = false
	case distance < minReach:
		reach = minReach + epsilon
		reached = false
	}
	if reach < epsilon {
		reach = epsilon
	}

	// Теорема косинусов
	angleAtRoot := lawOfCosines(upperLength, reach, lowerLength)
	angleAtMiddle := lawOfCosines(upperLength, lowerLength, reach)

	// Плоскость сгиба задаётся проекцией полюса на плоскость,
	// перпендикулярную направлению на цель
	bendAxis := bendPlaneAxis(targetDir, poleTarget.Sub(rootPos))

	upperDir := mgl64.QuatRotate(angleAtRoot, bendAxis).Rotate(targetDir)
	middlePos := rootPos.Add(upperDir.Mul(upperLength))

	upperRotation := shortestArc(upperLocalForward, upperDir)

	// Нижняя кость смотрит на настоящую цель, даже если она недостижима
	lowerDir := normalizeOr(targetPos.Sub(middlePos), upperDir)
	lowerWorldRotation := shortestArc(lowerLocalForward, lowerDir)
	lowerRotation := upperRotation.Inverse().Mul(lowerWorldRotation).Normalize()

	return Result{
		MiddlePos:     middlePos,
		UpperRotation: upperRotation,
		LowerRotation: lowerRotation,
		TargetReached: reached,
		AngleAtRoot:   angleAtRoot,
		AngleAtMiddle: angleAtMiddle,
	}
}

// SolveArmIK решает цепочку руки, у которой обе кости направлены по оси Back
func SolveArmIK(rootPos mgl64.Vec3, upperLength, lowerLength float64, targetPos, poleTarget mgl64.Vec3) Result {
	return SolveTwoBone(rootPos, upperLength, lowerLength, targetPos, poleTarget, Back, Back)
}

// SolveLegIK решает цепочку ноги, у которой обе кости направлены вниз
func SolveLegIK(rootPos mgl64.Vec3, upperLength, lowerLength float64, targetPos, poleTarget mgl64.Vec3) Result {
	return SolveTwoBone(rootPos, upperLength, lowerLength, targetPos, poleTarget, Down, Down)
}

// lawOfCosines возвращает угол между сторонами adjA и adjB напротив стороны opposite
func lawOfCosines(adjA, adjB, opposite float64) float64 {
	denom := 2 * adjA * adjB
	if denom < epsilon*epsilon {
		return 0
	}
	cos := (adjA*adjA + adjB*adjB - opposite*opposite) / denom
	return math.Acos(mgl64.Clamp(cos, -1, 1))
}

// bendPlaneAxis строит ось сгиба, перпендикулярную направлению на цель
func bendPlaneAxis(targetDir, poleDir mgl64.Vec3) mgl64.Vec3 {
	bendNormal := poleDir.Sub(targetDir.Mul(poleDir.Dot(targetDir)))

	if bendNormal.Dot(bendNormal) < poleEpsilonSq {
		// Полюс лежит на линии корень → цель: берём мировое «вверх»,
		// не параллельное направлению на цель
		up := Up
		if math.Abs(targetDir.Y()) > parallelThreshold {
			up = Right
		}
		bendNormal = targetDir.Cross(up).Cross(targetDir)
	}

	return targetDir.Cross(bendNormal.Normalize()).Normalize()
}

// shortestArc возвращает кратчайшее вращение from → to;
// для нулевых векторов - единичный кватернион.
// Угол берётся через atan2, поэтому почти противоположные векторы
// поворачиваются точно, без округления до разворота на 180°.
func shortestArc(from, to mgl64.Vec3) mgl64.Quat {
	if from.Dot(from) < epsilon*epsilon || to.Dot(to) < epsilon*epsilon {
		return mgl64.QuatIdent()
	}
	from = from.Normalize()
	to = to.Normalize()

	axis := from.Cross(to)
	sin := axis.Len()
	cos := from.Dot(to)
	if sin < arcEpsilon {
		if cos > 0 {
			return mgl64.QuatIdent()
		}
		// Векторы противоположны: разворот вокруг любой перпендикулярной оси
		perp := from.Cross(Right)
		if perp.Dot(perp) < arcEpsilon {
			perp = from.Cross(Up)
		}
		return mgl64.QuatRotate(math.Pi, perp.Normalize())
	}

	return mgl64.QuatRotate(math.Atan2(sin, cos), axis.Mul(1/sin))
}

func normalizeOr(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < epsilon*epsilon {
		return fallback
	}
	return v.Mul(1 / l)
}
