/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"encoding/json"
	"time"

	"cardcanvas/internal/domain"
)

// Kind discriminates history entries.
type Kind string

const (
	KindProps  Kind = "props"
	KindMove   Kind = "move"
	KindInsert Kind = "insert"
	KindRemove Kind = "remove"
	// KindGroup applies Steps in order and reverts them in reverse order.
	KindGroup Kind = "group"
)

// PropChange is one key's before/after value. HadOld/HasNew distinguish an
// absent key from a key holding nil. Pos is the key's position before the
// change, so removing and restoring a key keeps the property order.
type PropChange struct {
	Key    string `json:"key"`
	Old    any    `json:"old,omitempty"`
	New    any    `json:"new,omitempty"`
	HadOld bool   `json:"hadOld"`
	HasNew bool   `json:"hasNew"`
	Pos    int    `json:"pos"`
}

// Position addresses a slot among a parent's children.
type Position struct {
	ParentID string `json:"parentId"`
	Index    int    `json:"index"`
}

// Entry is a plain-data diff of one mutating command. It holds no closures, so
// entries can be inspected, serialized and compared in tests.
type Entry struct {
	Kind    Kind         `json:"kind"`
	Label   string       `json:"label,omitempty"`
	NodeID  string       `json:"nodeId"`
	Changes []PropChange `json:"changes,omitempty"`
	From    Position     `json:"from"`
	To      Position     `json:"to"`
	// MadeContainer records that a move gave a leaf its first children, so the
	// inverse can return it to a leaf.
	MadeContainer bool `json:"madeContainer,omitempty"`
	// Subtree is the inserted or removed node (KindInsert/KindRemove).
	Subtree *domain.Block `json:"subtree,omitempty"`
	Steps   []Entry       `json:"steps,omitempty"`
	// Seq ties the entry to a record kept in another history, such as the
	// clipboard's. Zero when unused.
	Seq uint64    `json:"seq,omitempty"`
	TS  time.Time `json:"ts"`
}

// Group wraps several entries into one undo step.
func Group(label string, steps ...Entry) Entry {
	e := Entry{Kind: KindGroup, Label: label, Steps: steps}
	if len(steps) > 0 {
		e.NodeID = steps[0].NodeID
	}
	return e
}

// Size estimates the memory held by the entry as its JSON length.
func (e Entry) Size() int {
	b, err := json.Marshal(e)
	if err != nil {
		return 256
	}
	return len(b)
}

// mergeable reports whether next can be folded into e: both are property
// writes to the same node touching the same key set.
func (e Entry) mergeable(next Entry) bool {
	if e.Kind != KindProps || next.Kind != KindProps || e.NodeID != next.NodeID || len(e.Changes) != len(next.Changes) {
		return false
	}
	for i := range e.Changes {
		if e.Changes[i].Key != next.Changes[i].Key {
			return false
		}
	}
	return true
}

// merge keeps the oldest before-values and the newest after-values.
func (e Entry) merge(next Entry) Entry {
	out := next
	out.Changes = make([]PropChange, len(next.Changes))
	for i := range next.Changes {
		out.Changes[i] = next.Changes[i]
		out.Changes[i].Old = e.Changes[i].Old
		out.Changes[i].HadOld = e.Changes[i].HadOld
		out.Changes[i].Pos = e.Changes[i].Pos
	}
	return out
}
