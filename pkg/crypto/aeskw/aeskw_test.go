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

package aeskw

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/jeremyhahn/go-josekit/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 3394 Section 4.1: wrap 128 bits of key data with a 128-bit KEK.
func TestRFC3394Vector128(t *testing.T) {
	kek, _ := hex.DecodeString("000102030405060708090A0B0C0D0E0F")
	plaintext, _ := hex.DecodeString("00112233445566778899AABBCCDDEEFF")
	expected, _ := hex.DecodeString("1FA68B0A8112B447AEF34BD8FB5A7B829D3E862371D2CFE5")

	wrapped, err := Wrap(kek, plaintext)
	require.NoError(t, err)
	assert.Equal(t, expected, wrapped)

	unwrapped, err := Unwrap(kek, wrapped)
	require.NoError(t, err)
	assert.Equal(t, plaintext, unwrapped)
}

// RFC 3394 Section 4.6: wrap 256 bits of key data with a 256-bit KEK.
func TestRFC3394Vector256(t *testing.T) {
	kek, _ := hex.DecodeString("000102030405060708090A0B0C0D0E0F101112131415161718191A1B1C1D1E1F")
	plaintext, _ := hex.DecodeString("00112233445566778899AABBCCDDEEFF000102030405060708090A0B0C0D0E0F")
	expected, _ := hex.DecodeString("28C9F404C4B810F4CBCCB35CFB87F8263F5786E2D80ED326CBC7F0E71A99F43BFB988B9B7A02DD21")

	wrapped, err := Wrap(kek, plaintext)
	require.NoError(t, err)
	assert.Equal(t, expected, wrapped)

	unwrapped, err := Unwrap(kek, wrapped)
	require.NoError(t, err)
	assert.Equal(t, plaintext, unwrapped)
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	for _, kekSize := range []int{16, 24, 32} {
		for _, cekSize := range []int{16, 24, 32, 64} {
			kek := make([]byte, kekSize)
			cek := make([]byte, cekSize)
			_, err := rand.Read(kek)
			require.NoError(t, err)
			_, err = rand.Read(cek)
			require.NoError(t, err)

			wrapped, err := Wrap(kek, cek)
			require.NoError(t, err)
			assert.Len(t, wrapped, cekSize+8)

			unwrapped, err := Unwrap(kek, wrapped)
			require.NoError(t, err)
			assert.Equal(t, cek, unwrapped)
		}
	}
}

func TestUnwrapWrongKEK(t *testing.T) {
	kek := make([]byte, 16)
	cek := make([]byte, 16)
	_, err := rand.Read(kek)
	require.NoError(t, err)
	_, err = rand.Read(cek)
	require.NoError(t, err)

	wrapped, err := Wrap(kek, cek)
	require.NoError(t, err)

	wrongKEK := make([]byte, 16)
	_, err = rand.Read(wrongKEK)
	require.NoError(t, err)

	_, err = Unwrap(wrongKEK, wrapped)
	assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
}

func TestUnwrapTamperedCiphertext(t *testing.T) {
	kek := make([]byte, 32)
	cek := make([]byte, 32)
	_, err := rand.Read(kek)
	require.NoError(t, err)
	_, err = rand.Read(cek)
	require.NoError(t, err)

	wrapped, err := Wrap(kek, cek)
	require.NoError(t, err)

	wrapped[9] ^= 0x01
	_, err = Unwrap(kek, wrapped)
	assert.ErrorIs(t, err, types.ErrAuthenticationFailure)
}

func TestInvalidSizes(t *testing.T) {
	kek := make([]byte, 16)

	_, err := Wrap(kek, make([]byte, 15))
	assert.ErrorIs(t, err, types.ErrIncorrectKeySize)

	_, err = Wrap(make([]byte, 17), make([]byte, 16))
	assert.ErrorIs(t, err, types.ErrIncorrectKeySize)

	_, err = Unwrap(kek, make([]byte, 23))
	assert.ErrorIs(t, err, types.ErrInvalidKeyFormat)
}
