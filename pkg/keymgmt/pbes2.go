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
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeremyhahn/go-josekit/pkg/crypto/aeskw"
	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

const pbes2SaltSize = 16

// pbes2Defaults carries the per-algorithm parameters: the PRF, the
// derived AES-KW key size, and the default iteration count. Iteration
// defaults follow the OWASP 2023 PBKDF2 recommendations per PRF.
var pbes2Defaults = map[jwa.KeyManagementAlgorithm]struct {
	hash       jwa.HashAlgorithm
	keySize    int
	iterations int
}{
	jwa.PBES2HS256: {jwa.SHA256, 16, 600000},
	jwa.PBES2HS384: {jwa.SHA384, 24, 310000},
	jwa.PBES2HS512: {jwa.SHA512, 32, 210000},
}

// registerPBES2 binds the PBES2 password-based key wrap algorithms
// (RFC 7518 Section 4.8). The salt input and iteration count travel in
// the p2s and p2c header fields. The closures capture r so the PRF
// resolves against the registry they were bound into.
func registerPBES2(r *jwa.Registry) {
	for alg, def := range pbes2Defaults {
		r.RegisterKeyManagement(alg, jwa.KeyManagementMetadata{
			KeyType: jwa.Oct,
			Hash:    def.hash,
			KeySize: def.keySize,
			Produce: func(h jwa.Header, alg jwa.KeyManagementAlgorithm, kek any, enc jwa.ContentEncryptionAlgorithm, cek *[]byte) ([]byte, error) {
				return producePBES2(r, h, alg, kek, cek)
			},
			Consume: func(h jwa.Header, kek any, encryptedKey []byte, cek *[]byte) error {
				return consumePBES2(r, h, kek, encryptedKey, cek)
			},
		})
	}
}

// producePBES2 derives the wrapping key and AES-KW wraps the CEK,
// recording the (possibly newly chosen) salt input and iteration count
// in the header.
func producePBES2(r *jwa.Registry, h jwa.Header, alg jwa.KeyManagementAlgorithm, kek any, cek *[]byte) ([]byte, error) {
	def, ok := pbes2Defaults[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	password, err := passwordBytes(kek)
	if err != nil {
		return nil, err
	}

	saltInput, ok, err := headerBytes(h, HeaderP2S)
	if err != nil {
		return nil, err
	}
	if !ok {
		saltInput = make([]byte, pbes2SaltSize)
		if _, err := rand.Read(saltInput); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		setHeaderBytes(h, HeaderP2S, saltInput)
	}

	iterations, ok, err := headerInt(h, HeaderP2C)
	if err != nil {
		return nil, err
	}
	if !ok {
		iterations = def.iterations
		h.Set(HeaderP2C, iterations)
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("%w: p2c must be positive, got %d", types.ErrInvalidKeyFormat, iterations)
	}

	wrappingKey, err := derivePBES2Key(r, alg, password, saltInput, iterations, def.keySize, def.hash)
	if err != nil {
		return nil, err
	}
	return aeskw.Wrap(wrappingKey, *cek)
}

// consumePBES2 re-derives the wrapping key from the header parameters
// and unwraps the CEK.
func consumePBES2(r *jwa.Registry, h jwa.Header, kek any, encryptedKey []byte, cek *[]byte) error {
	alg, err := headerAlg(h)
	if err != nil {
		return err
	}
	def, ok := pbes2Defaults[alg]
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	password, err := passwordBytes(kek)
	if err != nil {
		return err
	}

	saltInput, ok, err := headerBytes(h, HeaderP2S)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: header has no p2s field", types.ErrInvalidKeyFormat)
	}
	iterations, ok, err := headerInt(h, HeaderP2C)
	if err != nil {
		return err
	}
	if !ok || iterations <= 0 {
		return fmt.Errorf("%w: header p2c is absent or not positive", types.ErrInvalidKeyFormat)
	}

	wrappingKey, err := derivePBES2Key(r, alg, password, saltInput, iterations, def.keySize, def.hash)
	if err != nil {
		return err
	}
	unwrapped, err := aeskw.Unwrap(wrappingKey, encryptedKey)
	if err != nil {
		return err
	}
	*cek = unwrapped
	return nil
}

// derivePBES2Key runs PBKDF2 over salt = alg || 0x00 || p2s, per
// RFC 7518 Section 4.8.1.1.
func derivePBES2Key(r *jwa.Registry, alg jwa.KeyManagementAlgorithm, password, saltInput []byte, iterations, keySize int, hashAlg jwa.HashAlgorithm) ([]byte, error) {
	hashMeta, ok := r.ResolveHash(hashAlg)
	if !ok {
		return nil, fmt.Errorf("%w: hash %q", types.ErrUnknownAlgorithm, hashAlg)
	}

	salt := make([]byte, 0, len(alg)+1+len(saltInput))
	salt = append(salt, []byte(alg.String())...)
	salt = append(salt, 0x00)
	salt = append(salt, saltInput...)

	return pbkdf2.Key(password, salt, iterations, keySize, hashMeta.New), nil
}
