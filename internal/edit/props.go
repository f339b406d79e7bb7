/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package edit

import (
	"log/slog"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/tree"
	"cardcanvas/internal/undo"
)

// UpdateProperty writes key=value on the node with id. It returns false when
// the node is absent or validate rejects the value. Writing the current value
// returns true without recording history.
func (ed *Editor) UpdateProperty(root *domain.Block, id, key string, value any, validate Validator) bool {
	return ed.UpdateProperties(root, id, domain.NewProps(key, value), validate)
}

// UpdateProperties writes every key of patch as one history step. If validate
// rejects any value nothing is written.
func (ed *Editor) UpdateProperties(root *domain.Block, id string, patch domain.Props, validate Validator) bool {
	n := tree.Find(root, id)
	if n == nil {
		return false
	}
	var changes []undo.PropChange
	ok := true
	patch.Range(func(key string, value any) bool {
		if validate != nil && !validate(key, value) {
			ok = false
			return false
		}
		old, had := n.Props.Get(key)
		if had && domain.ValueEqual(old, value) {
			return true
		}
		changes = append(changes, undo.PropChange{
			Key:    key,
			Old:    domain.CloneValue(old),
			New:    domain.CloneValue(value),
			HadOld: had,
			HasNew: true,
			Pos:    n.Props.IndexOf(key),
		})
		return true
	})
	if !ok {
		ed.log.Debug("property rejected", slog.String("node", id))
		return false
	}
	if len(changes) == 0 {
		return true
	}
	label := "set " + changes[0].Key
	if len(changes) > 1 {
		label = "set properties"
	}
	// cannot fail: the node was just found
	_ = ed.Do(root, undo.Entry{Kind: undo.KindProps, Label: label, NodeID: id, Changes: changes})
	return true
}

// RemoveProperty deletes key from the node. Removing an absent key returns true
// without recording history.
func (ed *Editor) RemoveProperty(root *domain.Block, id, key string) bool {
	n := tree.Find(root, id)
	if n == nil {
		return false
	}
	old, had := n.Props.Get(key)
	if !had {
		return true
	}
	_ = ed.Do(root, undo.Entry{
		Kind:    undo.KindProps,
		Label:   "remove " + key,
		NodeID:  id,
		Changes: []undo.PropChange{{Key: key, Old: domain.CloneValue(old), HadOld: true, Pos: n.Props.IndexOf(key)}},
	})
	return true
}

// SetMetadata writes a metadata value. Metadata is not tracked by history.
func SetMetadata(root *domain.Block, id, key string, value any) bool {
	n := tree.Find(root, id)
	if n == nil {
		return false
	}
	if n.Metadata == nil {
		n.Metadata = map[string]any{}
	}
	n.Metadata[key] = value
	return true
}
