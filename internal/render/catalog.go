/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

// Catalog resolves presentation facts about block kinds. The block catalog
// itself lives outside the engine; this is the narrow view the adapter needs.
type Catalog interface {
	DisplayName(kind string) string
	IsCanvas(kind string) bool
}

// StaticCatalog is a map-backed Catalog. Unknown kinds display as their kind
// and are not canvases.
type StaticCatalog struct {
	Names  map[string]string
	Canvas map[string]bool
}

func (c StaticCatalog) DisplayName(kind string) string {
	if n, ok := c.Names[kind]; ok && n != "" {
		return n
	}
	return kind
}

func (c StaticCatalog) IsCanvas(kind string) bool { return c.Canvas[kind] }
