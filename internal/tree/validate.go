/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tree

import (
	"errors"
	"fmt"
	"strings"

	"cardcanvas/internal/domain"
)

// ErrCorrupt marks a tree that violates a structural invariant. It indicates a
// prior bug, not a user action; callers should reload a known-good snapshot.
var ErrCorrupt = errors.New("tree structure corrupt")

// Violation codes.
const (
	CodeNilRoot       = "nil_root"
	CodeNilChild      = "nil_child"
	CodeEmptyID       = "empty_id"
	CodeEmptyKind     = "empty_kind"
	CodeDuplicateID   = "duplicate_id"
	CodeCycle         = "cycle"
	CodeDuplicateSlot = "duplicate_slot"
	CodeParentLink    = "parent_link"
	CodeMultipleRoots = "multiple_roots"
	CodeDangling      = "dangling_ref"
	CodeDepth         = "depth"
)

// Violation describes one broken invariant.
type Violation struct {
	Code    string
	NodeID  string
	Message string
}

func (v Violation) String() string {
	if v.NodeID == "" {
		return v.Code + ": " + v.Message
	}
	return fmt.Sprintf("%s [%s]: %s", v.Code, v.NodeID, v.Message)
}

// Validate checks the block tree invariants and returns every violation found.
// An empty result means the tree is valid.
func Validate(root *domain.Block) []Violation {
	if root == nil {
		return []Violation{{Code: CodeNilRoot, Message: "root is nil"}}
	}
	var out []Violation
	seenIDs := map[string]int{}
	onPath := map[*domain.Block]bool{}
	visited := map[*domain.Block]bool{}

	var visit func(n *domain.Block)
	visit = func(n *domain.Block) {
		if onPath[n] {
			out = append(out, Violation{Code: CodeCycle, NodeID: n.ID, Message: "node is its own ancestor"})
			return
		}
		if visited[n] {
			// Reached twice without a cycle: the same node is shared by two parents.
			out = append(out, Violation{Code: CodeParentLink, NodeID: n.ID, Message: "node has more than one parent"})
			return
		}
		visited[n] = true
		onPath[n] = true
		defer delete(onPath, n)

		if strings.TrimSpace(n.ID) == "" {
			out = append(out, Violation{Code: CodeEmptyID, Message: "node without id (kind " + n.Kind + ")"})
		} else {
			seenIDs[n.ID]++
			if seenIDs[n.ID] == 2 {
				out = append(out, Violation{Code: CodeDuplicateID, NodeID: n.ID, Message: "id used more than once"})
			}
		}
		if strings.TrimSpace(n.Kind) == "" {
			out = append(out, Violation{Code: CodeEmptyKind, NodeID: n.ID, Message: "node without kind"})
		}
		slots := map[string]bool{}
		for i, c := range n.Children {
			if c == nil {
				out = append(out, Violation{Code: CodeNilChild, NodeID: n.ID, Message: fmt.Sprintf("child %d is nil", i)})
				continue
			}
			if c.Slot != "" {
				if slots[c.Slot] {
					out = append(out, Violation{Code: CodeDuplicateSlot, NodeID: n.ID, Message: "slot " + c.Slot + " filled twice"})
				}
				slots[c.Slot] = true
			}
			visit(c)
		}
	}
	visit(root)
	return out
}

// Check returns nil for a valid tree and an error wrapping ErrCorrupt otherwise.
func Check(root *domain.Block) error {
	return AsError(Validate(root))
}

// AsError folds violations into a single error wrapping ErrCorrupt, or nil.
func AsError(vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}
	return fmt.Errorf("%w: %s", ErrCorrupt, strings.Join(parts, "; "))
}
