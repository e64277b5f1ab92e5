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

// Package aeskw implements the AES Key Wrap algorithm from RFC 3394, the
// symmetric wrap used by the JOSE A128KW, A192KW, and A256KW algorithms
// and by the ECDH-ES+A*KW and PBES2 composites.
package aeskw

import (
	"crypto/aes"
	"crypto/subtle"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// RFC 3394 Section 2.2.3 default initial value.
var defaultIV = []byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// Wrap wraps plaintext key material under kek using AES Key Wrap
// (RFC 3394). The kek comes first, like every wrap entry point in this
// module, and must be 16, 24, or 32 bytes; the plaintext must be a
// multiple of 8 bytes and at least 16 bytes long.
func Wrap(kek, plaintext []byte) ([]byte, error) {
	if len(kek) != 16 && len(kek) != 24 && len(kek) != 32 {
		return nil, fmt.Errorf("%w: AES key wrap KEK must be 16, 24, or 32 bytes, got %d",
			types.ErrIncorrectKeySize, len(kek))
	}
	if len(plaintext) < 16 || len(plaintext)%8 != 0 {
		return nil, fmt.Errorf("%w: AES key wrap input must be a multiple of 8 bytes and at least 16, got %d",
			types.ErrIncorrectKeySize, len(plaintext))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	n := len(plaintext) / 8

	// A = IV, R[i] = P[i]
	a := make([]byte, 8)
	copy(a, defaultIV)
	r := make([]byte, len(plaintext))
	copy(r, plaintext)

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			// B = AES(K, A | R[i])
			copy(buf[0:8], a)
			copy(buf[8:16], r[(i-1)*8:i*8])
			block.Encrypt(buf, buf)

			// A = MSB(64, B) ^ t where t = (n*j)+i
			t := uint64(n*j + i)
			copy(a, buf[0:8])
			for k := 0; k < 8; k++ {
				a[k] ^= byte(t >> uint((7-k)*8))
			}

			// R[i] = LSB(64, B)
			copy(r[(i-1)*8:i*8], buf[8:16])
		}
	}

	out := make([]byte, 8+len(r))
	copy(out[0:8], a)
	copy(out[8:], r)
	return out, nil
}

// Unwrap unwraps ciphertext produced by Wrap, verifying the RFC 3394
// integrity check value. A mismatched check value means the KEK is wrong
// or the ciphertext was tampered with and yields ErrAuthenticationFailure.
func Unwrap(kek, ciphertext []byte) ([]byte, error) {
	if len(kek) != 16 && len(kek) != 24 && len(kek) != 32 {
		return nil, fmt.Errorf("%w: AES key wrap KEK must be 16, 24, or 32 bytes, got %d",
			types.ErrIncorrectKeySize, len(kek))
	}
	if len(ciphertext) < 24 || len(ciphertext)%8 != 0 {
		return nil, fmt.Errorf("%w: AES key wrap ciphertext must be a multiple of 8 bytes and at least 24, got %d",
			types.ErrInvalidKeyFormat, len(ciphertext))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	n := (len(ciphertext) / 8) - 1

	a := make([]byte, 8)
	copy(a, ciphertext[0:8])
	r := make([]byte, n*8)
	copy(r, ciphertext[8:])

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			// B = AES-1(K, (A ^ t) | R[i]) where t = n*j+i
			t := uint64(n*j + i)
			copy(buf[0:8], a)
			for k := 0; k < 8; k++ {
				buf[k] ^= byte(t >> uint((7-k)*8))
			}
			copy(buf[8:16], r[(i-1)*8:i*8])
			block.Decrypt(buf, buf)

			// A = MSB(64, B), R[i] = LSB(64, B)
			copy(a, buf[0:8])
			copy(r[(i-1)*8:i*8], buf[8:16])
		}
	}

	if subtle.ConstantTimeCompare(a, defaultIV) != 1 {
		return nil, fmt.Errorf("%w: AES key wrap integrity check failed", types.ErrAuthenticationFailure)
	}

	return r, nil
}
