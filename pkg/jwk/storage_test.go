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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-josekit/pkg/types"
)

func TestStorageTypedAccessors(t *testing.T) {
	s := NewStorage()

	s.SetString(FieldKeyType, "EC")
	kty, ok := s.GetString(FieldKeyType)
	require.True(t, ok)
	assert.Equal(t, "EC", kty)

	s.SetBytes(FieldX, []byte{0x01, 0x02, 0xfe})
	raw, ok := s.Get(FieldX)
	require.True(t, ok)
	assert.Equal(t, "AQL-", raw, "bytes must be stored as base64url without padding")

	decoded, err := s.GetBytes(FieldX)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0xfe}, decoded)

	s.SetInt("p2c", 600000)
	n, ok := s.GetInt("p2c")
	require.True(t, ok)
	assert.Equal(t, 600000, n)

	s.Set("key_ops", []any{"sign", "verify"})
	ops, ok := s.GetStringSlice("key_ops")
	require.True(t, ok)
	assert.Equal(t, []string{"sign", "verify"}, ops)
}

func TestStorageGetBytesErrors(t *testing.T) {
	s := NewStorage()

	_, err := s.GetBytes("missing")
	assert.ErrorIs(t, err, types.ErrKeyNotFound)

	s.Set("bad", 42)
	_, err = s.GetBytes("bad")
	assert.ErrorIs(t, err, types.ErrInvalidKeyFormat)

	s.SetString("notb64", "!!not base64url!!")
	_, err = s.GetBytes("notb64")
	assert.ErrorIs(t, err, types.ErrInvalidKeyFormat)
}

func TestStorageOrderIndependence(t *testing.T) {
	a := NewStorage()
	a.SetString("kty", "oct")
	a.SetString("k", "c2VjcmV0")
	a.SetString("kid", "key-1")

	b := NewStorage()
	b.SetString("kid", "key-1")
	b.SetString("k", "c2VjcmV0")
	b.SetString("kty", "oct")

	assert.True(t, a.Equal(b), "field insertion order must not affect equality")

	aj, err := a.MarshalJSON()
	require.NoError(t, err)
	bj, err := b.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj), "canonical serialization must be order independent")
	assert.Equal(t, `{"k":"c2VjcmV0","kid":"key-1","kty":"oct"}`, string(aj))
}

func TestStorageCloneIsDeep(t *testing.T) {
	s := NewStorage()
	s.SetString("kty", "oct")
	s.Set("key_ops", []any{"sign"})

	c := s.Clone()
	c.SetString("kty", "RSA")
	ops, _ := c.Get("key_ops")
	ops.([]any)[0] = "encrypt"

	kty, _ := s.GetString("kty")
	assert.Equal(t, "oct", kty, "mutating the clone must not affect the original")
	origOps, _ := s.GetStringSlice("key_ops")
	assert.Equal(t, []string{"sign"}, origOps)
}

func TestStorageUnmarshalRoundTrip(t *testing.T) {
	src := `{"kty":"EC","crv":"P-256","x":"AQ","y":"Ag","ext":true}`

	s := NewStorage()
	require.NoError(t, s.UnmarshalJSON([]byte(src)))
	assert.Equal(t, 5, s.Len())

	out, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, src, string(out))

	assert.Error(t, s.UnmarshalJSON([]byte(`[1,2,3]`)))
}
