package worm

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"block-bodies/internal/body"
)

// Head - имя головного сегмента червя
const Head = "head"

// ErrTooShort возвращается, если у червя нет ни одного сегмента тела
var ErrTooShort = errors.New("worm needs at least one segment")

// SegmentName возвращает имя i-го сегмента (нумерация с единицы)
func SegmentName(i int) string {
	return fmt.Sprintf("segment_%d", i)
}

// New собирает червя: голова и цепочка сегментов, уходящая назад по оси Z.
// Каждый сегмент - ребенок предыдущего.
func New(segments int, segmentSize mgl64.Vec3) (*body.Body, error) {
	if segments < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrTooShort, segments)
	}

	b := body.New()
	if _, err := b.AddPart(body.NewPart(Head, "", mgl64.Vec3{0, segmentSize.Y() / 2, 0}, segmentSize)); err != nil {
		return nil, err
	}

	parent := Head
	step := mgl64.Vec3{0, 0, segmentSize.Z()}
	for i := 1; i <= segments; i++ {
		name := SegmentName(i)
		if _, err := b.AddPart(body.NewPart(name, parent, step, segmentSize)); err != nil {
			return nil, fmt.Errorf("failed to assemble worm: %w", err)
		}
		parent = name
	}

	return b, nil
}

// TailChain возвращает цепочку из трёх последних частей червя
func TailChain(segments int) (body.Chain, bool) {
	switch {
	case segments < 2:
		return body.Chain{}, false
	case segments == 2:
		return body.Chain{Upper: Head, Lower: SegmentName(1), End: SegmentName(2)}, true
	default:
		return body.Chain{
			Upper: SegmentName(segments - 2),
			Lower: SegmentName(segments - 1),
			End:   SegmentName(segments),
		}, true
	}
}
