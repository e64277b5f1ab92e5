// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-josekit.
//
// go-josekit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package jwk

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// JWK field names (RFC 7517, RFC 7518, RFC 8037, draft-ietf-cose-dilithium
// for the AKP parameters).
const (
	FieldKeyType = "kty"
	FieldUse     = "use"
	FieldKeyOps  = "key_ops"
	FieldAlg     = "alg"
	FieldKeyID   = "kid"

	FieldCurve = "crv"
	FieldX     = "x"
	FieldY     = "y"
	FieldD     = "d"

	FieldN  = "n"
	FieldE  = "e"
	FieldP  = "p"
	FieldQ  = "q"
	FieldDP = "dp"
	FieldDQ = "dq"
	FieldQI = "qi"

	FieldK = "k"

	FieldPub  = "pub"
	FieldPriv = "priv"
)

// Storage is the single canonical representation of a key or header: a
// string-keyed bag of JSON-compatible values. Insertion order is
// irrelevant; serialization and thumbprint computation sort field names.
// Every concrete key type is a pure view over one Storage instance and
// mutates it only through typed setters that re-encode into the bag.
//
// Storage values are not safe for concurrent mutation; capability calls
// operate on an owned bag (or a Clone of one) and never mutate shared
// storage in place.
type Storage struct {
	fields map[string]any
}

// NewStorage creates an empty Storage.
func NewStorage() *Storage {
	return &Storage{fields: make(map[string]any)}
}

// FromMap creates a Storage over a copy of the given map.
func FromMap(m map[string]any) *Storage {
	s := NewStorage()
	for k, v := range m {
		s.fields[k] = deepCopyValue(v)
	}
	return s
}

// Get returns the raw value of a field and whether it is present.
func (s *Storage) Get(name string) (any, bool) {
	v, ok := s.fields[name]
	return v, ok
}

// Set stores a field, replacing any existing value.
func (s *Storage) Set(name string, value any) {
	s.fields[name] = value
}

// Delete removes a field if present.
func (s *Storage) Delete(name string) {
	delete(s.fields, name)
}

// Has returns true if the field is present.
func (s *Storage) Has(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Len returns the number of fields.
func (s *Storage) Len() int {
	return len(s.fields)
}

// Keys returns the field names in lexical order.
func (s *Storage) Keys() []string {
	keys := make([]string, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString returns a string-typed field.
func (s *Storage) GetString(name string) (string, bool) {
	v, ok := s.fields[name]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// SetString stores a string field.
func (s *Storage) SetString(name, value string) {
	s.fields[name] = value
}

// GetBytes returns a byte-string field, decoding the base64url (no
// padding) representation used by RFC 7517.
func (s *Storage) GetBytes(name string) ([]byte, error) {
	v, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: field %q is not present", types.ErrKeyNotFound, name)
	}
	str, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: field %q is not a base64url string", types.ErrInvalidKeyFormat, name)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q is not valid base64url: %v", types.ErrInvalidKeyFormat, name, err)
	}
	return decoded, nil
}

// SetBytes stores a byte-string field, re-encoding it as base64url
// without padding.
func (s *Storage) SetBytes(name string, value []byte) {
	s.fields[name] = base64.RawURLEncoding.EncodeToString(value)
}

// GetInt returns an integer field, tolerating the float64 representation
// produced by encoding/json.
func (s *Storage) GetInt(name string) (int, bool) {
	v, ok := s.fields[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// SetInt stores an integer field.
func (s *Storage) SetInt(name string, value int) {
	s.fields[name] = value
}

// GetStringSlice returns a string-array field such as key_ops.
func (s *Storage) GetStringSlice(name string) ([]string, bool) {
	v, ok := s.fields[name]
	if !ok {
		return nil, false
	}
	switch vs := v.(type) {
	case []string:
		out := make([]string, len(vs))
		copy(out, vs)
		return out, true
	case []any:
		out := make([]string, 0, len(vs))
		for _, e := range vs {
			str, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

// Clone returns a deep copy. Capability operations snapshot key state by
// cloning so a public key view and the private key it was derived from
// can never alias each other's storage.
func (s *Storage) Clone() *Storage {
	return FromMap(s.fields)
}

// Equal reports whether two bags hold the same fields with the same
// values, independent of insertion order.
func (s *Storage) Equal(other *Storage) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.fields) != len(other.fields) {
		return false
	}
	a, err := s.MarshalJSON()
	if err != nil {
		return false
	}
	b, err := other.MarshalJSON()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// MarshalJSON serializes the bag with lexically sorted field names and no
// insignificant whitespace.
func (s *Storage) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valueJSON, err := json.Marshal(s.fields[k])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces the bag contents with the decoded JSON object.
func (s *Storage) UnmarshalJSON(data []byte) error {
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	s.fields = m
	return nil
}

func deepCopyValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(vv))
		for k, e := range vv {
			m[k] = deepCopyValue(e)
		}
		return m
	case []any:
		l := make([]any, len(vv))
		for i, e := range vv {
			l[i] = deepCopyValue(e)
		}
		return l
	case []string:
		l := make([]string, len(vv))
		copy(l, vv)
		return l
	case []byte:
		b := make([]byte, len(vv))
		copy(b, vv)
		return b
	default:
		return v
	}
}
