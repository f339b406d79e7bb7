/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Props is an insertion-ordered property map. Keys are unique; setting an
// existing key keeps its position, setting a new key appends it.
// Values are strings, numbers, booleans or nested style objects
// (map[string]any / []any).
type Props struct {
	keys []string
	vals map[string]any
}

// NewProps builds Props from alternating key/value pairs. Non-string keys are skipped.
func NewProps(kv ...any) Props {
	var p Props
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		p.Set(k, kv[i+1])
	}
	return p
}

func (p Props) Len() int { return len(p.keys) }

func (p Props) Get(key string) (any, bool) {
	v, ok := p.vals[key]
	return v, ok
}

func (p Props) Has(key string) bool {
	_, ok := p.vals[key]
	return ok
}

// Set writes key=value.
func (p *Props) Set(key string, value any) {
	if p.vals == nil {
		p.vals = make(map[string]any)
	}
	if _, ok := p.vals[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = value
}

// SetAt writes key=value. A new key is inserted at position idx (clamped);
// an existing key keeps its position.
func (p *Props) SetAt(idx int, key string, value any) {
	if p.Has(key) || idx < 0 || idx >= len(p.keys) {
		p.Set(key, value)
		return
	}
	p.keys = append(p.keys, "")
	copy(p.keys[idx+1:], p.keys[idx:])
	p.keys[idx] = key
	p.vals[key] = value
}

// IndexOf returns the position of key, or -1.
func (p Props) IndexOf(key string) int {
	if !p.Has(key) {
		return -1
	}
	for i, k := range p.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Delete removes key and reports whether it was present.
func (p *Props) Delete(key string) bool {
	if _, ok := p.vals[key]; !ok {
		return false
	}
	delete(p.vals, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns a copy of the keys in order.
func (p Props) Keys() []string { return append([]string(nil), p.keys...) }

// Range calls fn for each entry in order until fn returns false.
func (p Props) Range(fn func(key string, value any) bool) {
	for _, k := range p.keys {
		if !fn(k, p.vals[k]) {
			return
		}
	}
}

// Clone returns a deep copy; nested maps and slices are copied too.
func (p Props) Clone() Props {
	out := Props{keys: append([]string(nil), p.keys...)}
	if p.vals != nil {
		out.vals = make(map[string]any, len(p.vals))
		for k, v := range p.vals {
			out.vals[k] = CloneValue(v)
		}
	}
	return out
}

// Equal compares keys (order-sensitive) and values via ValueEqual.
func (p Props) Equal(o Props) bool {
	if len(p.keys) != len(o.keys) {
		return false
	}
	for i, k := range p.keys {
		if o.keys[i] != k {
			return false
		}
		if !ValueEqual(p.vals[k], o.vals[k]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the props as a JSON object in key order.
func (p Props) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(p.vals[k])
		if err != nil {
			return nil, fmt.Errorf("prop %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document's key order.
func (p *Props) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = Props{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("props: expected object, got %v", tok)
	}
	var out Props
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("props: unexpected key token %v", kt)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("prop %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// CloneValue deep-copies nested style objects and lists; scalars are returned as-is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = CloneValue(x)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, x := range t {
			s[i] = CloneValue(x)
		}
		return s
	case Props:
		return t.Clone()
	default:
		return v
	}
}

// ValueEqual compares two prop values. Numbers compare by value regardless of
// their Go type, so 16 equals 16.0 after a JSON round trip.
func ValueEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch ta := a.(type) {
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, ok := tb[k]
			if !ok || !ValueEqual(va, vb) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !ValueEqual(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case Props:
		tb, ok := b.(Props)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
