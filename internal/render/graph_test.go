package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardcanvas/internal/domain"
)

var testCatalog = StaticCatalog{
	Names:  map[string]string{"Card": "Card Face", "Text": "Text"},
	Canvas: map[string]bool{"Card": true, "Row": true},
}

func sampleTree() *domain.Block {
	return &domain.Block{ID: "root", Kind: "Card", Props: domain.NewProps("padding", "16px"), Children: []*domain.Block{
		{ID: "title", Kind: "Text", Props: domain.NewProps("text", "Question", "size", 18), Slot: "header"},
		{ID: "row", Kind: "Row", Children: []*domain.Block{
			{ID: "t1", Kind: "Text", Props: domain.NewProps("text", "{{Front}}")},
			{ID: "img", Kind: "Image", Props: domain.NewProps("style", map[string]any{"width": "50%"})},
		}},
		{ID: "empty", Kind: "Row"},
	}}
}

func TestToGraphShape(t *testing.T) {
	g, err := ToGraph(sampleTree(), testCatalog)
	require.NoError(t, err)
	assert.Equal(t, "root", g.Root)
	assert.Equal(t, 6, g.Len())

	root := g.Node("root")
	assert.Equal(t, "Card Face", root.DisplayName)
	assert.True(t, root.IsCanvas)
	assert.Equal(t, []string{"title", "row", "empty"}, root.Nodes)
	assert.Equal(t, map[string]string{"header": "title"}, root.LinkedNodes)
	assert.Empty(t, root.Parent)

	img := g.Node("img")
	assert.Equal(t, "row", img.Parent)
	assert.Equal(t, 2, img.Depth)
	assert.False(t, img.IsCanvas)
	assert.True(t, g.Node("empty").IsCanvas, "catalog canvas kinds stay canvases when empty")

	kids := g.Children("row")
	require.Len(t, kids, 2)
	assert.Equal(t, "t1", kids[0].ID)
	assert.Empty(t, g.Validate())
}

func TestRoundTrip(t *testing.T) {
	src := sampleTree()
	g, err := ToGraph(src, testCatalog)
	require.NoError(t, err)
	back, err := ToBlock(g)
	require.NoError(t, err)
	assert.True(t, domain.Equal(src, back))
}

func TestRoundTripGenerated(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		src := randomTree(rng, 4, 4)
		g, err := ToGraph(src, nil)
		require.NoError(t, err)
		require.Empty(t, g.Validate())
		back, err := ToBlock(g)
		require.NoError(t, err)
		require.True(t, domain.Equal(src, back), "tree %d did not round trip", i)
	}
}

func TestToGraphRejectsDuplicates(t *testing.T) {
	src := sampleTree()
	src.Children[2].ID = "t1"
	_, err := ToGraph(src, nil)
	assert.True(t, errors.Is(err, ErrDuplicateID))

	src = sampleTree()
	src.Children[2].Slot = "header"
	_, err = ToGraph(src, nil)
	assert.True(t, errors.Is(err, ErrDuplicateSlot))

	_, err = ToGraph(nil, nil)
	assert.True(t, errors.Is(err, ErrNilRoot))
}

func TestToBlockReconcilesLinkedNodes(t *testing.T) {
	g, err := ToGraph(sampleTree(), nil)
	require.NoError(t, err)
	// Drop the slotted child from the ordered list; the slot index still references it.
	g.Nodes["root"].Nodes = []string{"row", "empty"}
	back, err := ToBlock(g)
	require.NoError(t, err)
	require.Len(t, back.Children, 3)
	assert.Equal(t, "title", back.Children[2].ID)
	assert.Equal(t, "header", back.Children[2].Slot)
}

func TestToBlockDetectsCorruption(t *testing.T) {
	g, err := ToGraph(sampleTree(), nil)
	require.NoError(t, err)
	g.Nodes["t1"].Parent = "root"
	_, err = ToBlock(g)
	assert.True(t, errors.Is(err, ErrParentMismatch))
	assert.NotEmpty(t, g.Validate())

	g, _ = ToGraph(sampleTree(), nil)
	g.Nodes["row"].Nodes = append(g.Nodes["row"].Nodes, "ghost")
	_, err = ToBlock(g)
	assert.True(t, errors.Is(err, ErrMissingNode))

	g, _ = ToGraph(sampleTree(), nil)
	g.Nodes["img"].Nodes = []string{"row"}
	_, err = ToBlock(g)
	assert.Error(t, err)
}

func TestGraphJSON(t *testing.T) {
	g, err := ToGraph(sampleTree(), testCatalog)
	require.NoError(t, err)
	b, err := json.Marshal(g)
	require.NoError(t, err)
	var back Graph
	require.NoError(t, json.Unmarshal(b, &back))
	blk, err := ToBlock(&back)
	require.NoError(t, err)
	assert.True(t, domain.Equal(sampleTree(), blk))
}

func randomTree(rng *rand.Rand, depth, fanout int) *domain.Block {
	n := 0
	var gen func(d int) *domain.Block
	gen = func(d int) *domain.Block {
		n++
		b := &domain.Block{ID: fmt.Sprintf("n%d", n), Kind: []string{"Row", "Text", "Image"}[rng.Intn(3)]}
		b.Props.Set("w", rng.Intn(100))
		if rng.Intn(2) == 0 {
			b.Props.Set("label", fmt.Sprintf("L%d", rng.Intn(10)))
		}
		if d < depth {
			k := rng.Intn(fanout + 1)
			for i := 0; i < k; i++ {
				c := gen(d + 1)
				if i == 0 && rng.Intn(3) == 0 {
					c.Slot = "header"
				}
				b.Children = append(b.Children, c)
			}
		}
		return b
	}
	return gen(0)
}
