package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardcanvas/internal/domain"
)

// sample builds root -> [a -> [a1, a2], b, c -> [c1 -> [c1x]]].
func sample() *domain.Block {
	return &domain.Block{ID: "root", Kind: "Card", Children: []*domain.Block{
		{ID: "a", Kind: "Row", Children: []*domain.Block{
			{ID: "a1", Kind: "Text"},
			{ID: "a2", Kind: "Text"},
		}},
		{ID: "b", Kind: "Button"},
		{ID: "c", Kind: "Column", Children: []*domain.Block{
			{ID: "c1", Kind: "Row", Children: []*domain.Block{{ID: "c1x", Kind: "Image"}}},
		}},
	}}
}

func TestFindAndParent(t *testing.T) {
	root := sample()
	require.NotNil(t, Find(root, "c1x"))
	assert.Nil(t, Find(root, "missing"))
	assert.Equal(t, "c1", ParentOf(root, "c1x").ID)
	assert.Nil(t, ParentOf(root, "root"))
	assert.Nil(t, ParentOf(root, "missing"))

	n, p, idx := Locate(root, "a2")
	require.NotNil(t, n)
	assert.Equal(t, "a", p.ID)
	assert.Equal(t, 1, idx)

	assert.Equal(t, 2, IndexInParent(root, "c"))
	assert.Equal(t, -1, IndexInParent(root, "root"))
	assert.Equal(t, -1, IndexInParent(root, "missing"))
}

func TestPathDepthAncestor(t *testing.T) {
	root := sample()
	path := Path(root, "c1x")
	require.Len(t, path, 4)
	assert.Equal(t, []string{"root", "c", "c1", "c1x"}, []string{path[0].ID, path[1].ID, path[2].ID, path[3].ID})
	assert.Equal(t, 3, Depth(root, "c1x"))
	assert.Equal(t, -1, Depth(root, "nope"))

	assert.True(t, IsAncestor(root, "c", "c1x"))
	assert.False(t, IsAncestor(root, "c1x", "c"))
	assert.False(t, IsAncestor(root, "a", "a"))
	assert.False(t, IsAncestor(root, "a", "b"))
}

func TestTreeStats(t *testing.T) {
	s := TreeStats(sample())
	assert.Equal(t, 8, s.Total)
	assert.Equal(t, 4, s.Leaves)
	assert.Equal(t, 3, s.MaxDepth)
	assert.Equal(t, 2, s.ByKind["Text"])
	assert.Equal(t, 2, s.ByKind["Row"])
}

func TestIDsPreOrder(t *testing.T) {
	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "c", "c1", "c1x"}, IDs(sample()))
}

func TestValidateCleanTree(t *testing.T) {
	assert.Empty(t, Validate(sample()))
	assert.NoError(t, Check(sample()))
}

func TestValidateReportsViolations(t *testing.T) {
	root := sample()
	root.Children[1].ID = "a1"
	root.Children = append(root.Children, nil)
	root.Children[0].Children[0].Kind = ""
	root.Children[2].Children = append(root.Children[2].Children, root.Children[2])

	vs := Validate(root)
	codes := map[string]bool{}
	for _, v := range vs {
		codes[v.Code] = true
	}
	assert.True(t, codes[CodeDuplicateID], "duplicate id: %v", vs)
	assert.True(t, codes[CodeNilChild], "nil child: %v", vs)
	assert.True(t, codes[CodeEmptyKind], "empty kind: %v", vs)
	assert.True(t, codes[CodeCycle], "cycle: %v", vs)

	err := Check(root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestValidateSharedNodeAndSlots(t *testing.T) {
	shared := &domain.Block{ID: "s", Kind: "Text"}
	root := &domain.Block{ID: "r", Kind: "Card", Children: []*domain.Block{
		{ID: "x", Kind: "Row", Children: []*domain.Block{shared}},
		{ID: "y", Kind: "Row", Children: []*domain.Block{shared}},
		{ID: "h1", Kind: "Text", Slot: "header"},
		{ID: "h2", Kind: "Text", Slot: "header"},
	}}
	codes := map[string]bool{}
	for _, v := range Validate(root) {
		codes[v.Code] = true
	}
	assert.True(t, codes[CodeParentLink])
	assert.True(t, codes[CodeDuplicateSlot])
	assert.Equal(t, CodeNilRoot, Validate(nil)[0].Code)
}
