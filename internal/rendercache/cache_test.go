package rendercache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardcanvas/internal/domain"
)

func node(id string, kids ...string) *domain.Block {
	b := &domain.Block{ID: id, Kind: "Box", Props: domain.NewProps("padding", "8px", "color", "red")}
	for _, k := range kids {
		b.Children = append(b.Children, &domain.Block{ID: k, Kind: "Text"})
	}
	return b
}

func TestContentHashSensitivity(t *testing.T) {
	base := ContentHash(node("n", "a", "b"))
	assert.Equal(t, base, ContentHash(node("n", "a", "b")))
	assert.Equal(t, base, ContentHash(node("other-id", "a", "b")), "own id is the cache key, not content")

	reordered := node("n", "b", "a")
	assert.NotEqual(t, base, ContentHash(reordered))

	changed := node("n", "a", "b")
	changed.Props.Set("padding", "16px")
	assert.NotEqual(t, base, ContentHash(changed))

	kind := node("n", "a", "b")
	kind.Kind = "Row"
	assert.NotEqual(t, base, ContentHash(kind))

	propOrder := node("n", "a", "b")
	propOrder.Props = domain.NewProps("color", "red", "padding", "8px")
	assert.NotEqual(t, base, ContentHash(propOrder))

	deep := node("n", "a", "b")
	deep.Children[0].Props.Set("text", "changed below")
	assert.Equal(t, base, ContentHash(deep), "grandchild content does not contribute")
}

func TestHitIffUnchanged(t *testing.T) {
	c := New[string](10)
	n := node("n", "a")
	c.Put(n, "<box>")

	out, ok := c.Get(n)
	require.True(t, ok)
	assert.Equal(t, "<box>", out)

	n.Props.Set("padding", "0")
	_, ok = c.Get(n)
	assert.False(t, ok)
	_, ok = c.Get(n)
	assert.False(t, ok, "stale entry was dropped")

	c.Put(n, "<box2>")
	n.Children = append(n.Children, &domain.Block{ID: "z", Kind: "Text"})
	_, ok = c.Get(n)
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(3), s.Misses)
	assert.Equal(t, uint64(2), s.Invalidations)
}

func TestLRUEviction(t *testing.T) {
	c := New[int](2)
	a, b, d := node("a"), node("b"), node("d")
	c.Put(a, 1)
	c.Put(b, 2)
	_, ok := c.Get(a)
	require.True(t, ok)
	c.Put(d, 3)

	_, ok = c.Get(b)
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get(a)
	assert.True(t, ok)
	s := c.Stats()
	assert.Equal(t, 2, s.Size)
	assert.Equal(t, uint64(1), s.Evictions)
	assert.InDelta(t, 1.0, s.Occupancy, 1e-9)
}

func TestInvalidatePruneClear(t *testing.T) {
	c := New[int](10)
	for i := 0; i < 5; i++ {
		c.Put(node(fmt.Sprintf("n%d", i)), i)
	}
	assert.True(t, c.Invalidate("n0"))
	assert.False(t, c.Invalidate("n0"))
	assert.Equal(t, 2, c.Prune(map[string]struct{}{"n1": {}, "n2": {}}))
	assert.Equal(t, 2, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestDisabledBypass(t *testing.T) {
	c := New[int](4)
	n := node("n")
	c.Put(n, 1)
	c.SetEnabled(false)
	assert.False(t, c.Enabled())
	_, ok := c.Get(n)
	assert.False(t, ok)
	c.Put(n, 2)
	assert.Equal(t, 0, c.Len())

	c.SetEnabled(true)
	c.Put(n, 3)
	out, ok := c.Get(n)
	assert.True(t, ok)
	assert.Equal(t, 3, out)
}
