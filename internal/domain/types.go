/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the canonical document model of a card template: a tree
// of blocks. It carries no rendering concerns; the render package derives its
// display graph from it.

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyID   = errors.New("block id is empty")
	ErrEmptyKind = errors.New("block kind is empty")
)

// Block is one authored node of a template. Kind is an opaque identifier into
// the external block catalog.
type Block struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Props    Props    `json:"props"`
	Children []*Block `json:"children,omitempty"`
	// Slot names the parent's linked slot this child occupies ("" for an ordinary child).
	Slot string `json:"slot,omitempty"`
	// Metadata is free-form and never tracked by history (e.g. last drop position).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IDGenerator produces fresh unique block ids.
type IDGenerator func() string

// NewID returns a random UUID string.
func NewID() string { return uuid.NewString() }

// NewBlock instantiates a block of the given kind with a fresh id.
func NewBlock(kind string, props Props) (*Block, error) {
	b := &Block{ID: NewID(), Kind: kind, Props: props}
	if err := ValidateNew(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ValidateNew checks the instantiation input: a non-empty id/kind pair.
// Catalog semantics are not checked here.
func ValidateNew(b *Block) error {
	if b == nil || strings.TrimSpace(b.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(b.Kind) == "" {
		return ErrEmptyKind
	}
	return nil
}

func (b *Block) IsLeaf() bool { return len(b.Children) == 0 }

// ChildIndex returns the position of the child with id, or -1.
func (b *Block) ChildIndex(id string) int {
	for i, c := range b.Children {
		if c != nil && c.ID == id {
			return i
		}
	}
	return -1
}

// InsertChild inserts c at idx; out-of-range indexes append.
func (b *Block) InsertChild(idx int, c *Block) {
	if idx < 0 || idx >= len(b.Children) {
		b.Children = append(b.Children, c)
		return
	}
	b.Children = append(b.Children, nil)
	copy(b.Children[idx+1:], b.Children[idx:])
	b.Children[idx] = c
}

// RemoveChildAt detaches and returns the child at idx, or nil when out of range.
func (b *Block) RemoveChildAt(idx int) *Block {
	if idx < 0 || idx >= len(b.Children) {
		return nil
	}
	c := b.Children[idx]
	b.Children = append(b.Children[:idx], b.Children[idx+1:]...)
	return c
}

// Clone deep-copies the subtree, keeping ids.
func (b *Block) Clone() *Block {
	return b.clone(nil)
}

// CloneWithNewIDs deep-copies the subtree and assigns every node a fresh id from gen
// (NewID when gen is nil).
func (b *Block) CloneWithNewIDs(gen IDGenerator) *Block {
	if gen == nil {
		gen = NewID
	}
	return b.clone(gen)
}

func (b *Block) clone(gen IDGenerator) *Block {
	if b == nil {
		return nil
	}
	out := &Block{ID: b.ID, Kind: b.Kind, Props: b.Props.Clone(), Slot: b.Slot}
	if gen != nil {
		out.ID = gen()
	}
	if b.Metadata != nil {
		out.Metadata = make(map[string]any, len(b.Metadata))
		for k, v := range b.Metadata {
			out.Metadata[k] = CloneValue(v)
		}
	}
	if b.Children != nil {
		out.Children = make([]*Block, len(b.Children))
		for i, c := range b.Children {
			out.Children[i] = c.clone(gen)
		}
	}
	return out
}

// Equal compares two subtrees by id, kind, props (order-sensitive), slot and
// child order. Metadata is ignored; nil and empty child lists are equal.
func Equal(a, b *Block) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.Kind != b.Kind || a.Slot != b.Slot {
		return false
	}
	if !a.Props.Equal(b.Props) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
