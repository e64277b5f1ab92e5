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

package keymgmt

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

const gcmkwNonceSize = 12

// registerAESGCMKW binds the AES-GCM key wrap algorithms (RFC 7518
// Section 4.7). The nonce and tag travel in the iv and tag header
// fields.
func registerAESGCMKW(r *jwa.Registry) {
	for alg, size := range gcmkwKeySizes {
		r.RegisterKeyManagement(alg, jwa.KeyManagementMetadata{
			KeyType: jwa.Oct,
			KeySize: size,
			Produce: produceAESGCMKW,
			Consume: consumeAESGCMKW,
		})
	}
}

// produceAESGCMKW seals the CEK under AES-GCM. A header-supplied nonce is
// reused so re-encryption is reproducible; otherwise a fresh 96-bit nonce
// is generated and recorded. If the header already carries a tag the
// computed tag must equal it, preventing tag substitution.
func produceAESGCMKW(h jwa.Header, alg jwa.KeyManagementAlgorithm, kek any, enc jwa.ContentEncryptionAlgorithm, cek *[]byte) ([]byte, error) {
	key, err := gcmkwKEK(kek, alg)
	if err != nil {
		return nil, err
	}

	nonce, ok, err := headerBytes(h, HeaderIV)
	if err != nil {
		return nil, err
	}
	if !ok {
		nonce = make([]byte, gcmkwNonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("failed to generate nonce: %w", err)
		}
		setHeaderBytes(h, HeaderIV, nonce)
	} else if len(nonce) != gcmkwNonceSize {
		return nil, fmt.Errorf("%w: header iv must be %d bytes, got %d",
			types.ErrInvalidKeyFormat, gcmkwNonceSize, len(nonce))
	}

	ciphertext, tag, err := key.Seal(*cek, nonce, nil)
	if err != nil {
		return nil, err
	}

	if existing, ok, err := headerBytes(h, HeaderTag); err != nil {
		return nil, err
	} else if ok {
		if subtle.ConstantTimeCompare(existing, tag) != 1 {
			return nil, fmt.Errorf("%w: header tag does not match the computed tag", types.ErrAuthenticationFailure)
		}
	} else {
		setHeaderBytes(h, HeaderTag, tag)
	}

	return ciphertext, nil
}

// consumeAESGCMKW reconstructs nonce, ciphertext and tag from the header
// and encrypted key, and opens the CEK.
func consumeAESGCMKW(h jwa.Header, kek any, encryptedKey []byte, cek *[]byte) error {
	alg, err := headerAlg(h)
	if err != nil {
		return err
	}
	key, err := gcmkwKEK(kek, alg)
	if err != nil {
		return err
	}

	nonce, ok, err := headerBytes(h, HeaderIV)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrAuthenticationFailure, err)
	}
	if !ok || len(nonce) != gcmkwNonceSize {
		return fmt.Errorf("%w: header iv is absent or malformed", types.ErrAuthenticationFailure)
	}
	tag, ok, err := headerBytes(h, HeaderTag)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrAuthenticationFailure, err)
	}
	if !ok || len(tag) == 0 {
		return fmt.Errorf("%w: header tag is absent or malformed", types.ErrAuthenticationFailure)
	}

	unwrapped, err := key.Open(encryptedKey, tag, nonce, nil)
	if err != nil {
		return err
	}
	*cek = unwrapped
	return nil
}

var gcmkwKeySizes = map[jwa.KeyManagementAlgorithm]int{
	jwa.A128GCMKW: 16,
	jwa.A192GCMKW: 24,
	jwa.A256GCMKW: 32,
}

func gcmkwKEK(kek any, alg jwa.KeyManagementAlgorithm) (*jwk.SymmetricKey, error) {
	size, ok := gcmkwKeySizes[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	key, err := symmetricKEK(kek)
	if err != nil {
		return nil, err
	}
	raw, err := key.Raw()
	if err != nil {
		return nil, err
	}
	if len(raw.([]byte)) != size {
		return nil, fmt.Errorf("%w: %q requires a %d-byte key, got %d bytes",
			types.ErrIncorrectKeySize, alg, size, len(raw.([]byte)))
	}
	return key, nil
}
