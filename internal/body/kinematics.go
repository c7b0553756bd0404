package body

// WorldTransforms вычисляет мировые трансформации всех частей прямой кинематикой
func (b *Body) WorldTransforms() map[PartID]Transform {
	out := make(map[PartID]Transform, b.parts.count)

	type frame struct {
		id     PartID
		parent Transform
	}
	stack := make([]frame, 0, len(b.roots))
	for i := len(b.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: b.roots[i], parent: IdentityTransform()})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		p := b.parts.get(f.id)
		if p == nil {
			continue
		}
		world := f.parent.Compose(*p)
		out[f.id] = world

		for _, child := range b.children[f.id] {
			stack = append(stack, frame{id: child, parent: world})
		}
	}

	return out
}

// WorldTransform вычисляет мировую трансформацию одной части,
// проходя только по её цепочке до корня
func (b *Body) WorldTransform(name string) (Transform, bool) {
	chain := b.GetChainToRootIDs(name)
	if len(chain) == 0 {
		return Transform{}, false
	}

	world := IdentityTransform()
	for i := len(chain) - 1; i >= 0; i-- {
		world = world.Compose(*b.parts.get(chain[i]))
	}
	return world, true
}
