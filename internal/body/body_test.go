package body_test

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"block-bodies/internal/body"
)

func part(name, parent string) body.Part {
	return body.NewPart(name, parent, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 1, 1})
}

// newArmBody строит torso → shoulder → arm → hand и вторую ветку torso → head
func newArmBody(t *testing.T) *body.Body {
	t.Helper()
	b := body.New()
	for _, p := range []body.Part{
		part("torso", ""),
		part("shoulder", "torso"),
		part("arm", "shoulder"),
		part("hand", "arm"),
		part("head", "torso"),
	} {
		_, err := b.AddPart(p)
		require.NoError(t, err)
	}
	return b
}

func names(parts []body.Part) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.Name)
	}
	return out
}

// links возвращает отображение имя → родитель для сравнения структуры
func links(b *body.Body) map[string]string {
	out := make(map[string]string)
	for _, p := range b.Parts() {
		out[p.Name] = p.Parent
	}
	return out
}

// requireConsistent проверяет согласованность индексов тела через публичный API
func requireConsistent(t *testing.T, b *body.Body) {
	t.Helper()
	require.NoError(t, b.Validate())

	all := b.Parts()
	require.Equal(t, b.Len(), len(all))

	var rootNames []string
	for _, p := range all {
		id, ok := b.GetPartID(p.Name)
		require.True(t, ok, p.Name)

		if p.Parent == "" {
			rootNames = append(rootNames, p.Name)
			continue
		}
		assert.Contains(t, b.GetChildrenIDs(p.Parent), id, "%s missing from children of %s", p.Name, p.Parent)
		for _, child := range b.GetChildren(p.Name) {
			assert.Equal(t, p.Name, child.Parent)
		}
	}
	assert.ElementsMatch(t, rootNames, names(b.GetRoots()))
}

func TestAddPart(t *testing.T) {
	b := newArmBody(t)

	testCases := []struct {
		name    string
		part    body.Part
		wantErr error
	}{
		{"empty name", part("", "torso"), body.ErrInvalidPartName},
		{"duplicate", part("arm", "torso"), body.ErrPartAlreadyExists},
		{"missing parent", part("tail", "pelvis"), body.ErrParentNotFound},
		{"self parent", part("loop", "loop"), body.ErrParentNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := links(b)
			_, err := b.AddPart(tc.part)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, before, links(b), "body must stay unchanged")
			requireConsistent(t, b)
		})
	}

	t.Run("parent not found names both parts", func(t *testing.T) {
		_, err := b.AddPart(part("tail", "pelvis"))
		var pnf *body.ParentNotFoundError
		require.ErrorAs(t, err, &pnf)
		assert.Equal(t, "pelvis", pnf.Parent)
		assert.Equal(t, "tail", pnf.Child)
	})

	t.Run("zero rotation becomes identity", func(t *testing.T) {
		_, err := b.AddPart(body.Part{Name: "finger", Parent: "hand"})
		require.NoError(t, err)
		p, ok := b.GetPartByName("finger")
		require.True(t, ok)
		assert.Equal(t, mgl64.QuatIdent(), p.Rotation)
	})
}

func TestRemovePart(t *testing.T) {
	b := newArmBody(t)

	removed, err := b.RemovePart("shoulder")
	require.NoError(t, err)
	assert.Equal(t, []string{"shoulder", "arm", "hand"}, names(removed))

	for _, name := range []string{"shoulder", "arm", "hand"} {
		assert.False(t, b.Contains(name), name)
	}
	assert.Equal(t, []string{"head"}, names(b.GetChildren("torso")))
	assert.Equal(t, 2, b.Len())
	requireConsistent(t, b)

	_, err = b.RemovePart("shoulder")
	assert.ErrorIs(t, err, body.ErrPartNotFound)
}

func TestRemovePart_Root(t *testing.T) {
	b := newArmBody(t)
	_, err := b.AddPart(part("pebble", ""))
	require.NoError(t, err)

	removed, err := b.RemovePart("torso")
	require.NoError(t, err)
	assert.Len(t, removed, 5)
	assert.Equal(t, []string{"pebble"}, names(b.GetRoots()))
	requireConsistent(t, b)
}

func TestPartID_StaleAfterRemove(t *testing.T) {
	b := newArmBody(t)
	handID, ok := b.GetPartID("hand")
	require.True(t, ok)
	headID, _ := b.GetPartID("head")

	_, err := b.RemovePart("hand")
	require.NoError(t, err)

	// Новая часть занимает освободившийся слот
	clawID, err := b.AddPart(part("claw", "arm"))
	require.NoError(t, err)
	assert.NotEqual(t, handID, clawID)

	_, ok = b.GetPart(handID)
	assert.False(t, ok, "stale id must not resolve")
	_, ok = b.GetPartMut(handID)
	assert.False(t, ok)

	head, ok := b.GetPart(headID)
	require.True(t, ok, "unrelated ids stay valid")
	assert.Equal(t, "head", head.Name)

	assert.False(t, body.PartID{}.IsValid())
}

func TestSeverAt(t *testing.T) {
	b := newArmBody(t)

	severed, err := b.SeverAt("arm")
	require.NoError(t, err)

	assert.NotEqual(t, b.ID, severed.ID)
	assert.Equal(t, []string{"arm"}, names(severed.GetRoots()))
	assert.Equal(t, map[string]string{"arm": "", "hand": "arm"}, links(severed))
	requireConsistent(t, severed)

	assert.False(t, b.Contains("arm"))
	assert.False(t, b.Contains("hand"))
	assert.Empty(t, b.GetChildren("shoulder"))
	requireConsistent(t, b)

	// Изменение отрезанного тела не затрагивает исходное
	hand, ok := severed.GetPartByNameMut("hand")
	require.True(t, ok)
	hand.Position = mgl64.Vec3{9, 9, 9}
	_, err = b.AddPart(part("hand", "shoulder"))
	require.NoError(t, err)
	p, _ := b.GetPartByName("hand")
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, p.Position)

	_, err = b.SeverAt("wing")
	assert.ErrorIs(t, err, body.ErrPartNotFound)
}

func TestSeverThenAttach_RestoresStructure(t *testing.T) {
	b := newArmBody(t)
	arm, _ := b.GetPartByNameMut("arm")
	arm.Position = mgl64.Vec3{0.1, -0.3, 0}
	arm.Rotation = mgl64.QuatRotate(0.5, mgl64.Vec3{0, 0, 1})

	before := links(b)
	beforeArm, _ := b.GetPartByName("arm")

	severed, err := b.SeverAt("arm")
	require.NoError(t, err)
	require.NoError(t, b.AttachBody(severed, "shoulder", "arm"))

	assert.Equal(t, before, links(b))
	afterArm, _ := b.GetPartByName("arm")
	assert.Equal(t, beforeArm.Position, afterArm.Position)
	assert.Equal(t, beforeArm.Rotation, afterArm.Rotation)
	requireConsistent(t, b)

	assert.Equal(t, 0, severed.Len(), "donor body is consumed")
	assert.Empty(t, severed.GetRoots())
}

func TestAttachBody(t *testing.T) {
	donor := func(t *testing.T) *body.Body {
		t.Helper()
		d := body.New()
		for _, p := range []body.Part{
			part("wing_root", ""),
			part("wing_mid", "wing_root"),
			part("wing_tip", "wing_mid"),
			part("feather", ""),
		} {
			_, err := d.AddPart(p)
			require.NoError(t, err)
		}
		return d
	}

	t.Run("first root by default", func(t *testing.T) {
		b := newArmBody(t)
		d := donor(t)
		require.NoError(t, b.AttachBody(d, "torso", ""))

		assert.ElementsMatch(t, []string{"shoulder", "head", "wing_root"}, names(b.GetChildren("torso")))
		assert.ElementsMatch(t, []string{"torso", "feather"}, names(b.GetRoots()))
		assert.Equal(t, []string{"wing_tip", "wing_mid", "wing_root", "torso"}, names(b.GetChainToRoot("wing_tip")))
		requireConsistent(t, b)
	})

	t.Run("mount point below donor root", func(t *testing.T) {
		b := newArmBody(t)
		d := donor(t)
		require.NoError(t, b.AttachBody(d, "hand", "wing_mid"))

		l := links(b)
		assert.Equal(t, "hand", l["wing_mid"])
		assert.Equal(t, "wing_mid", l["wing_tip"])
		assert.Equal(t, "", l["wing_root"])
		assert.Empty(t, b.GetChildren("wing_root"))
		require.NoError(t, b.CheckAcyclic())
		requireConsistent(t, b)
	})

	errCases := []struct {
		name       string
		attachTo   string
		mountPoint string
		donor      func(t *testing.T) *body.Body
		wantErr    error
	}{
		{"missing attach target", "tail", "", donor, body.ErrPartNotFound},
		{"missing mount point", "torso", "antenna", donor, body.ErrPartNotFound},
		{"empty donor", "torso", "", func(*testing.T) *body.Body { return body.New() }, body.ErrPartNotFound},
		{"nil donor", "torso", "", func(*testing.T) *body.Body { return nil }, body.ErrPartNotFound},
		{"name collision", "torso", "", func(t *testing.T) *body.Body {
			d := donor(t)
			_, err := d.AddPart(part("head", "wing_tip"))
			require.NoError(t, err)
			return d
		}, body.ErrPartAlreadyExists},
	}

	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newArmBody(t)
			d := tc.donor(t)
			before := links(b)
			donorLen := 0
			if d != nil {
				donorLen = d.Len()
			}

			err := b.AttachBody(d, tc.attachTo, tc.mountPoint)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, before, links(b), "recipient must stay unchanged")
			if d != nil {
				assert.Equal(t, donorLen, d.Len(), "donor must stay intact")
			}
		})
	}
}

func TestQueries(t *testing.T) {
	b := newArmBody(t)

	t.Run("chain to root", func(t *testing.T) {
		assert.Equal(t, []string{"hand", "arm", "shoulder", "torso"}, names(b.GetChainToRoot("hand")))
		ids := b.GetChainToRootIDs("hand")
		require.Len(t, ids, 4)
		torsoID, _ := b.GetPartID("torso")
		assert.Equal(t, torsoID, ids[3])
		assert.Equal(t, []string{"torso"}, names(b.GetChainToRoot("torso")))
		assert.Empty(t, b.GetChainToRoot("tail"))
	})

	t.Run("descendants in pre-order", func(t *testing.T) {
		assert.Equal(t, []string{"shoulder", "arm", "hand", "head"}, names(b.GetAllDescendants("torso")))
		assert.Empty(t, b.GetAllDescendants("hand"))
		assert.Empty(t, b.GetAllDescendants("tail"))
	})

	t.Run("children of unknown name", func(t *testing.T) {
		assert.Empty(t, b.GetChildren("tail"))
		assert.Empty(t, b.GetChildrenIDs("tail"))
	})

	t.Run("children ids are a copy", func(t *testing.T) {
		ids := b.GetChildrenIDs("torso")
		ids[0] = body.PartID{}
		assert.Equal(t, []string{"shoulder", "head"}, names(b.GetChildren("torso")))
	})

	t.Run("lookups", func(t *testing.T) {
		id, ok := b.GetPartID("arm")
		require.True(t, ok)
		p, ok := b.GetPart(id)
		require.True(t, ok)
		assert.Equal(t, "shoulder", p.Parent)

		_, ok = b.GetPartByName("tail")
		assert.False(t, ok)
		_, ok = b.GetPartByNameMut("tail")
		assert.False(t, ok)
		_, ok = b.GetPartID("tail")
		assert.False(t, ok)
	})

	t.Run("mutation through pointer", func(t *testing.T) {
		arm, ok := b.GetPartByNameMut("arm")
		require.True(t, ok)
		arm.Size = mgl64.Vec3{0.2, 0.6, 0.2}
		p, _ := b.GetPartByName("arm")
		assert.Equal(t, mgl64.Vec3{0.2, 0.6, 0.2}, p.Size)
	})
}

func TestValidate(t *testing.T) {
	b := newArmBody(t)
	require.NoError(t, b.Validate())

	// Прямое переименование родителя нарушает инвариант, Validate его ловит
	arm, _ := b.GetPartByNameMut("arm")
	arm.Parent = "collarbone"
	err := b.Validate()
	require.ErrorIs(t, err, body.ErrParentNotFound)
	var pnf *body.ParentNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, "arm", pnf.Child)
}

func TestCheckAcyclic(t *testing.T) {
	b := newArmBody(t)
	require.NoError(t, b.CheckAcyclic())

	torso, _ := b.GetPartByNameMut("torso")
	torso.Parent = "hand"

	assert.NoError(t, b.Validate(), "validate does not walk parent chains")
	assert.ErrorIs(t, b.CheckAcyclic(), body.ErrCycle)

	// Обход цепочки не зацикливается
	assert.LessOrEqual(t, len(b.GetChainToRootIDs("hand")), b.Len()+1)
}

func TestClone(t *testing.T) {
	b := newArmBody(t)
	c := b.Clone()

	assert.NotEqual(t, b.ID, c.ID)
	assert.Equal(t, links(b), links(c))
	requireConsistent(t, c)

	// Идентификаторы частей сохраняются
	for _, name := range []string{"torso", "arm", "hand"} {
		want, ok := b.GetPartID(name)
		require.True(t, ok)
		got, ok := c.GetPartID(name)
		require.True(t, ok)
		assert.Equal(t, want, got, name)
	}

	// Части копии не разделяют память с исходным телом
	arm, ok := c.GetPartByNameMut("arm")
	require.True(t, ok)
	arm.Position = mgl64.Vec3{9, 9, 9}
	orig, _ := b.GetPartByName("arm")
	assert.NotEqual(t, mgl64.Vec3{9, 9, 9}, orig.Position)

	_, err := c.RemovePart("shoulder")
	require.NoError(t, err)
	assert.True(t, b.Contains("hand"))
	requireConsistent(t, b)
	requireConsistent(t, c)
}

func TestClone_AfterRemoval(t *testing.T) {
	b := newArmBody(t)
	_, err := b.RemovePart("head")
	require.NoError(t, err)

	c := b.Clone()
	requireConsistent(t, c)
	assert.Equal(t, links(b), links(c))

	// Освобождённый слот переиспользуется в копии так же, как в исходном теле
	want, err := b.AddPart(part("head", "torso"))
	require.NoError(t, err)
	got, err := c.AddPart(part("head", "torso"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBody_ZeroValue(t *testing.T) {
	var b body.Body
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.Contains("torso"))

	require.NotPanics(t, func() {
		_, err := b.AddPart(part("torso", ""))
		require.NoError(t, err)
		_, err = b.AddPart(part("head", "torso"))
		require.NoError(t, err)
	})

	assert.NotEqual(t, uuid.Nil, b.ID)
	assert.Equal(t, 2, b.Len())
	requireConsistent(t, &b)
}

func TestWorldTransforms(t *testing.T) {
	b := body.New()
	quarter := mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{0, 0, 1})

	root := body.NewPart("root", "", mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 1, 1})
	root.Rotation = quarter
	_, err := b.AddPart(root)
	require.NoError(t, err)
	_, err = b.AddPart(body.NewPart("child", "root", mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 1, 1}))
	require.NoError(t, err)
	_, err = b.AddPart(body.NewPart("grandchild", "child", mgl64.Vec3{0, 2, 0}, mgl64.Vec3{1, 1, 1}))
	require.NoError(t, err)

	all := b.WorldTransforms()
	require.Len(t, all, 3)

	childID, _ := b.GetPartID("child")
	assert.True(t, all[childID].Position.ApproxEqualThreshold(mgl64.Vec3{1, 1, 0}, 1e-9), "%v", all[childID].Position)

	grand, ok := b.WorldTransform("grandchild")
	require.True(t, ok)
	assert.True(t, grand.Position.ApproxEqualThreshold(mgl64.Vec3{-1, 1, 0}, 1e-9), "%v", grand.Position)

	grandID, _ := b.GetPartID("grandchild")
	assert.True(t, all[grandID].Position.ApproxEqualThreshold(grand.Position, 1e-9))

	_, ok = b.WorldTransform("tail")
	assert.False(t, ok)
}

// TestRandomEdits прогоняет случайные добавления и удаления и после каждого
// шага проверяет уникальность имён и кэш детей
func TestRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	b := body.New()
	next := 0

	for step := 0; step < 500; step++ {
		live := names(b.Parts())
		sort.Strings(live)

		if len(live) == 0 || rng.Intn(3) > 0 {
			parent := ""
			if len(live) > 0 && rng.Intn(5) > 0 {
				parent = live[rng.Intn(len(live))]
			}
			name := fmt.Sprintf("p%d", next)
			next++
			_, err := b.AddPart(part(name, parent))
			require.NoError(t, err)

			_, err = b.AddPart(part(name, parent))
			require.ErrorIs(t, err, body.ErrPartAlreadyExists)
		} else {
			victim := live[rng.Intn(len(live))]
			want := append([]string{victim}, names(b.GetAllDescendants(victim))...)

			removed, err := b.RemovePart(victim)
			require.NoError(t, err)
			assert.ElementsMatch(t, want, names(removed))
			for _, name := range want {
				assert.False(t, b.Contains(name))
			}
			assert.Equal(t, len(live)-len(want), b.Len())
		}

		requireConsistent(t, b)
	}
}
