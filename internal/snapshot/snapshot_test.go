package snapshot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/tree"
)

func sample() *domain.Block {
	return &domain.Block{ID: "root", Kind: "Card", Props: domain.NewProps("width", 320, "style", map[string]any{"bg": "#fff"}),
		Children: []*domain.Block{
			{ID: "h", Kind: "Text", Slot: "header", Props: domain.NewProps("text", "Front")},
			{ID: "b", Kind: "Button", Props: domain.NewProps("label", "Flip", "enabled", true)},
		}}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	data, err := EncodeAt(sample(), at)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"format": "cardcanvas/document"`)

	problems, err := Validate(data)
	require.NoError(t, err)
	assert.Empty(t, problems)

	doc, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, doc.SavedAt.Equal(at))
	assert.True(t, domain.Equal(sample(), doc.Root))
	assert.Equal(t, []string{"width", "style"}, doc.Root.Props.Keys())
}

func TestDecodeRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"wrong format":  `{"format":"other","version":1,"root":{"id":"r","kind":"Card"}}`,
		"missing kind":  `{"format":"cardcanvas/document","version":1,"root":{"id":"r"}}`,
		"empty id":      `{"format":"cardcanvas/document","version":1,"root":{"id":"","kind":"Card"}}`,
		"unknown field": `{"format":"cardcanvas/document","version":1,"root":{"id":"r","kind":"Card","extra":1}}`,
		"future":        `{"format":"cardcanvas/document","version":9,"root":{"id":"r","kind":"Card"}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(in))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestDecodeRejectsCorruptTree(t *testing.T) {
	in := `{"format":"cardcanvas/document","version":1,"root":{"id":"r","kind":"Card","children":[{"id":"x","kind":"T"},{"id":"x","kind":"T"}]}}`
	_, err := Decode([]byte(in))
	require.Error(t, err)
	assert.True(t, errors.Is(err, tree.ErrCorrupt))
}

func TestEncodeRefusesCorruptTree(t *testing.T) {
	root := sample()
	root.Children = append(root.Children, root.Children[0])
	_, err := Encode(root)
	assert.ErrorIs(t, err, tree.ErrCorrupt)
}

func TestSchemaIsCopied(t *testing.T) {
	s := Schema()
	require.True(t, strings.Contains(string(s), "definitions"))
	s[0] = 'X'
	assert.NotEqual(t, byte('X'), Schema()[0])
}
