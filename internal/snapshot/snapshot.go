/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package snapshot encodes a block tree as a versioned JSON document, the form
// handed to persistence and to markup export.
package snapshot

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"cardcanvas/internal/domain"
	"cardcanvas/internal/tree"
)

const (
	Format  = "cardcanvas/document"
	Version = 1
)

//go:embed schema/document.schema.json
var schemaJSON []byte

var ErrInvalid = errors.New("invalid document")

// Document is the on-disk envelope.
type Document struct {
	Format  string        `json:"format"`
	Version int           `json:"version"`
	SavedAt time.Time     `json:"savedAt,omitempty"`
	Root    *domain.Block `json:"root"`
}

// Schema returns the embedded JSON schema.
func Schema() []byte { return append([]byte(nil), schemaJSON...) }

// Encode writes root as an indented document. A corrupt tree is refused.
func Encode(root *domain.Block) ([]byte, error) {
	return EncodeAt(root, time.Now().UTC())
}

// EncodeAt is Encode with an explicit timestamp.
func EncodeAt(root *domain.Block, at time.Time) ([]byte, error) {
	if err := tree.Check(root); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(Document{Format: Format, Version: Version, SavedAt: at, Root: root}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(data, '\n'), nil
}

// Validate checks data against the schema and returns one message per problem.
func Validate(data []byte) ([]string, error) {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var out []string
	for _, e := range res.Errors() {
		out = append(out, e.String())
	}
	return out, nil
}

// Decode validates data against the schema, parses it and checks the tree
// invariants.
func Decode(data []byte) (*Document, error) {
	problems, err := Validate(data)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if doc.Version > Version {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrInvalid, doc.Version, Version)
	}
	if err := tree.Check(doc.Root); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeRoot is Decode returning only the tree.
func DecodeRoot(data []byte) (*domain.Block, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return doc.Root, nil
}
