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
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jeremyhahn/go-josekit/pkg/crypto/aeskw"
	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// SymmetricKey is the oct key family adapter: HMAC signing, AES key
// wrapping, and AEAD sealing over a single secret stored in the k field.
type SymmetricKey struct {
	baseKey
}

var (
	_ Key          = (*SymmetricKey)(nil)
	_ Signer       = (*SymmetricKey)(nil)
	_ Verifier     = (*SymmetricKey)(nil)
	_ KeyWrapper   = (*SymmetricKey)(nil)
	_ KeyUnwrapper = (*SymmetricKey)(nil)
	_ Sealer       = (*SymmetricKey)(nil)
	_ Opener       = (*SymmetricKey)(nil)
)

func newSymmetricKey(s *Storage, opts ...KeyOption) (Key, error) {
	k := &SymmetricKey{baseKey: newBaseKey(s, newKeyConfig(opts))}
	if _, err := k.secret(); err != nil {
		return nil, err
	}
	return k, nil
}

// GenerateOct generates a random symmetric key of the given byte size and
// assigns it a fresh kid.
func GenerateOct(size int, opts ...KeyOption) (*SymmetricKey, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: key size must be positive, got %d", types.ErrIncorrectKeySize, size)
	}
	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	s := NewStorage()
	s.SetString(FieldKeyType, jwa.Oct.String())
	s.SetBytes(FieldK, secret)
	s.SetString(FieldKeyID, uuid.NewString())

	key, err := newSymmetricKey(s, opts...)
	if err != nil {
		return nil, err
	}
	return key.(*SymmetricKey), nil
}

// KeyType returns jwa.Oct.
func (k *SymmetricKey) KeyType() jwa.KeyType {
	return jwa.Oct
}

// IsPrivate is always true: a symmetric secret is private material.
func (k *SymmetricKey) IsPrivate() bool {
	return true
}

// PublicKey fails: symmetric keys have no public counterpart.
func (k *SymmetricKey) PublicKey() (Key, error) {
	return nil, fmt.Errorf("%w: oct keys have no public form", types.ErrOperationNotAllowed)
}

// Raw returns a copy of the secret bytes.
func (k *SymmetricKey) Raw() (any, error) {
	return k.secret()
}

func (k *SymmetricKey) secret() ([]byte, error) {
	return k.storage.GetBytes(FieldK)
}

// Sign computes the HMAC of data under the algorithm's digest.
func (k *SymmetricKey) Sign(data []byte, alg jwa.SignatureAlgorithm) ([]byte, error) {
	meta, ok := k.reg().ResolveSignature(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	if meta.KeyType != jwa.Oct {
		return nil, fmt.Errorf("%w: %q is not an HMAC algorithm", types.ErrOperationNotAllowed, alg)
	}
	hashMeta, ok := k.reg().ResolveHash(meta.Hash)
	if !ok {
		return nil, fmt.Errorf("%w: hash %q", types.ErrUnknownAlgorithm, meta.Hash)
	}

	secret, err := k.secret()
	if err != nil {
		return nil, err
	}

	mac := hmac.New(hashMeta.New, secret)
	mac.Write(data)
	return mac.Sum(nil), nil
}

// Verify recomputes the HMAC and compares in constant time.
func (k *SymmetricKey) Verify(signature, data []byte, alg jwa.SignatureAlgorithm) error {
	expected, err := k.Sign(data, alg)
	if err != nil {
		return err
	}
	if !hmac.Equal(expected, signature) {
		return fmt.Errorf("%w: HMAC mismatch", types.ErrAuthenticationFailure)
	}
	return nil
}

// WrapKey wraps a CEK with RFC 3394 AES Key Wrap. The secret length must
// match the algorithm's KEK size.
func (k *SymmetricKey) WrapKey(cek []byte, alg jwa.KeyManagementAlgorithm) ([]byte, error) {
	kek, err := k.wrappingKey(alg)
	if err != nil {
		return nil, err
	}
	return aeskw.Wrap(kek, cek)
}

// UnwrapKey reverses WrapKey, failing with ErrAuthenticationFailure on an
// integrity check mismatch.
func (k *SymmetricKey) UnwrapKey(encryptedKey []byte, alg jwa.KeyManagementAlgorithm) ([]byte, error) {
	kek, err := k.wrappingKey(alg)
	if err != nil {
		return nil, err
	}
	return aeskw.Unwrap(kek, encryptedKey)
}

func (k *SymmetricKey) wrappingKey(alg jwa.KeyManagementAlgorithm) ([]byte, error) {
	meta, ok := k.reg().ResolveKeyManagement(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	if meta.KeyType != jwa.Oct || meta.KeySize == 0 {
		return nil, fmt.Errorf("%w: %q is not a symmetric key wrap algorithm", types.ErrOperationNotAllowed, alg)
	}

	secret, err := k.secret()
	if err != nil {
		return nil, err
	}
	if len(secret) != meta.KeySize {
		return nil, fmt.Errorf("%w: %q requires a %d-byte key, got %d bytes",
			types.ErrIncorrectKeySize, alg, meta.KeySize, len(secret))
	}
	return secret, nil
}

// Seal AEAD-encrypts plaintext, returning the ciphertext and tag
// separately as JOSE transports them. The cipher is AES-GCM unless the
// key's alg field names one of the ChaCha20-Poly1305 suites.
func (k *SymmetricKey) Seal(plaintext, nonce, aad []byte) ([]byte, []byte, error) {
	aead, err := k.aead()
	if err != nil {
		return nil, nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, nil, fmt.Errorf("%w: nonce must be %d bytes, got %d",
			types.ErrIncorrectKeySize, aead.NonceSize(), len(nonce))
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - aead.Overhead()
	return sealed[:split], sealed[split:], nil
}

// Open reverses Seal, failing with ErrAuthenticationFailure when the tag
// does not verify.
func (k *SymmetricKey) Open(ciphertext, tag, nonce, aad []byte) ([]byte, error) {
	aead, err := k.aead()
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d",
			types.ErrIncorrectKeySize, aead.NonceSize(), len(nonce))
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrAuthenticationFailure, err)
	}
	return plaintext, nil
}

func (k *SymmetricKey) aead() (cipher.AEAD, error) {
	secret, err := k.secret()
	if err != nil {
		return nil, err
	}

	switch jwa.ContentEncryptionAlgorithm(k.Algorithm()) {
	case jwa.C20P:
		return chacha20poly1305.New(secret)
	case jwa.XC20P:
		return chacha20poly1305.NewX(secret)
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIncorrectKeySize, err)
	}
	return cipher.NewGCM(block)
}
