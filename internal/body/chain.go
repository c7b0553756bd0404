package body

import "fmt"

// Chain называет три последовательные части конечности: верхнюю кость,
// нижнюю кость и конечный эффектор (плечо → предплечье → кисть)
type Chain struct {
	Upper string
	Lower string
	End   string
}

// CheckChain проверяет, что части цепочки существуют и связаны
// отношением родитель → ребенок именно в этом порядке
func (b *Body) CheckChain(c Chain) error {
	for _, name := range []string{c.Upper, c.Lower, c.End} {
		if !b.Contains(name) {
			return fmt.Errorf("chain %s: %w: %q", c, ErrPartNotFound, name)
		}
	}

	lower, _ := b.GetPartByName(c.Lower)
	end, _ := b.GetPartByName(c.End)
	if lower.Parent != c.Upper {
		return fmt.Errorf("chain %s: %q is not a child of %q", c, c.Lower, c.Upper)
	}
	if end.Parent != c.Lower {
		return fmt.Errorf("chain %s: %q is not a child of %q", c, c.End, c.Lower)
	}
	return nil
}

// String возвращает цепочку в виде upper→lower→end
func (c Chain) String() string {
	return c.Upper + "→" + c.Lower + "→" + c.End
}
