package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cardcanvas/internal/domain"
)

func doc() *domain.Block {
	return &domain.Block{ID: "root", Kind: "Card", Children: []*domain.Block{
		{ID: "a", Kind: "Row", Children: []*domain.Block{{ID: "a1", Kind: "Text"}}},
		{ID: "b", Kind: "Text"},
	}}
}

func TestSelectReplaces(t *testing.T) {
	m := New()
	m.Select("a")
	m.AddToSelection("b")
	assert.Equal(t, []string{"a", "b"}, m.AllSelectedIDs())
	assert.Equal(t, "b", m.Primary())

	m.Select("a1")
	assert.Equal(t, []string{"a1"}, m.AllSelectedIDs())
	assert.Equal(t, "a1", m.Primary())

	m.Deselect()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, "", m.Primary())
}

func TestToggleAndRemovePrimary(t *testing.T) {
	m := New()
	m.AddToSelection("a")
	m.AddToSelection("b")
	m.AddToSelection("a")
	assert.Equal(t, 2, m.Len())

	m.Toggle("b")
	assert.False(t, m.IsSelected("b"))
	assert.Equal(t, "a", m.Primary())

	m.Toggle("b")
	assert.True(t, m.IsSelected("b"))
	assert.Equal(t, "b", m.Primary())
}

func TestContext(t *testing.T) {
	root := doc()
	m := New()

	c := m.Context(root)
	assert.False(t, c.CanDelete)
	assert.False(t, c.CanCopy)

	m.Select("a")
	c = m.Context(root)
	assert.True(t, c.CanDelete)
	assert.True(t, c.CanMove)
	assert.True(t, c.CanDuplicate)
	assert.True(t, c.CanPaste)

	m.AddToSelection("root")
	c = m.Context(root)
	assert.True(t, c.IncludesRoot)
	assert.False(t, c.CanMove)
	assert.False(t, c.CanDelete)
	assert.True(t, c.CanCopy)

	m.Select("gone")
	c = m.Context(root)
	assert.Equal(t, 1, c.Missing)
	assert.False(t, c.CanCopy)
	assert.Equal(t, []string{"gone"}, m.AllSelectedIDs(), "context must not mutate the selection")
}

func TestPruneAndTopMost(t *testing.T) {
	root := doc()
	m := New()
	m.AddToSelection("a1")
	m.AddToSelection("gone")
	m.AddToSelection("a")
	m.AddToSelection("b")

	assert.Equal(t, 1, m.Prune(root))
	assert.Equal(t, []string{"a1", "a", "b"}, m.AllSelectedIDs())

	nodes := m.SelectedNodes(root)
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}
