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
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// AKPKey is the algorithm key pair adapter for the ML-DSA signature
// schemes (FIPS 204). The pub field holds the encoded public key and the
// priv field holds the 32-byte seed the key pair expands from; the alg
// field pins the parameter set. ML-DSA signs the raw message, there is no
// pre-hash.
type AKPKey struct {
	baseKey
}

var (
	_ Key      = (*AKPKey)(nil)
	_ Signer   = (*AKPKey)(nil)
	_ Verifier = (*AKPKey)(nil)
)

func newAKPKey(s *Storage, opts ...KeyOption) (Key, error) {
	k := &AKPKey{baseKey: newBaseKey(s, newKeyConfig(opts))}
	if !k.storage.Has(FieldPub) {
		return nil, fmt.Errorf("%w: AKP key requires pub", types.ErrInvalidKeyFormat)
	}
	return k, nil
}

// GenerateAKP generates an ML-DSA key pair for the given parameter set
// and assigns it a fresh kid. The alg field is pinned to the parameter
// set so the key cannot be used with a mismatched scheme.
func GenerateAKP(alg jwa.SignatureAlgorithm, opts ...KeyOption) (*AKPKey, error) {
	scheme, err := mldsaScheme(alg)
	if err != nil {
		return nil, err
	}

	seed := make([]byte, scheme.SeedSize())
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate seed: %w", err)
	}
	pub, _ := scheme.DeriveKey(seed)
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	s := NewStorage()
	s.SetString(FieldKeyType, jwa.AKP.String())
	s.SetString(FieldAlg, alg.String())
	s.SetBytes(FieldPub, pubBytes)
	s.SetBytes(FieldPriv, seed)
	s.SetString(FieldKeyID, uuid.NewString())

	key, err := newAKPKey(s, opts...)
	if err != nil {
		return nil, err
	}
	return key.(*AKPKey), nil
}

// KeyType returns jwa.AKP.
func (k *AKPKey) KeyType() jwa.KeyType {
	return jwa.AKP
}

// IsPrivate reports whether the seed is present.
func (k *AKPKey) IsPrivate() bool {
	return k.storage.Has(FieldPriv)
}

// PublicKey returns the public view holding pub.
func (k *AKPKey) PublicKey() (Key, error) {
	return newAKPKey(k.publicSubset(FieldPub))
}

// Raw returns the circl sign.PrivateKey for private keys and the
// sign.PublicKey for public keys.
func (k *AKPKey) Raw() (any, error) {
	scheme, err := k.scheme(jwa.SignatureAlgorithm(k.Algorithm()))
	if err != nil {
		return nil, err
	}
	if k.IsPrivate() {
		_, priv, err := k.deriveKeyPair(scheme)
		if err != nil {
			return nil, err
		}
		return priv, nil
	}
	return k.rawPublic(scheme)
}

func (k *AKPKey) rawPublic(scheme sign.Scheme) (sign.PublicKey, error) {
	pubBytes, err := k.storage.GetBytes(FieldPub)
	if err != nil {
		return nil, err
	}
	pub, err := scheme.UnmarshalBinaryPublicKey(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return pub, nil
}

// deriveKeyPair expands the stored seed and checks it against the stored
// public key, so a bag with an inconsistent pub/priv pair is rejected
// instead of silently signing under a different public key.
func (k *AKPKey) deriveKeyPair(scheme sign.Scheme) (sign.PublicKey, sign.PrivateKey, error) {
	seed, err := k.storage.GetBytes(FieldPriv)
	if err != nil {
		return nil, nil, err
	}
	if len(seed) != scheme.SeedSize() {
		return nil, nil, fmt.Errorf("%w: %s seed must be %d bytes, got %d",
			types.ErrIncorrectKeySize, scheme.Name(), scheme.SeedSize(), len(seed))
	}
	pub, priv := scheme.DeriveKey(seed)

	stored, err := k.storage.GetBytes(FieldPub)
	if err != nil {
		return nil, nil, err
	}
	derived, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	if subtle.ConstantTimeCompare(stored, derived) != 1 {
		return nil, nil, fmt.Errorf("%w: pub does not match the stored seed", types.ErrInvalidKeyFormat)
	}
	return pub, priv, nil
}

// Sign produces an ML-DSA signature over the raw message.
func (k *AKPKey) Sign(data []byte, alg jwa.SignatureAlgorithm) ([]byte, error) {
	scheme, err := k.scheme(alg)
	if err != nil {
		return nil, err
	}
	if !k.IsPrivate() {
		return nil, fmt.Errorf("%w: signing requires a private key", types.ErrOperationNotAllowed)
	}
	_, priv, err := k.deriveKeyPair(scheme)
	if err != nil {
		return nil, err
	}
	return scheme.Sign(priv, data, nil), nil
}

// Verify checks an ML-DSA signature, returning ErrAuthenticationFailure
// on mismatch.
func (k *AKPKey) Verify(signature, data []byte, alg jwa.SignatureAlgorithm) error {
	scheme, err := k.scheme(alg)
	if err != nil {
		return err
	}
	pub, err := k.rawPublic(scheme)
	if err != nil {
		return err
	}
	if !scheme.Verify(pub, data, signature, nil) {
		return fmt.Errorf("%w: %s signature mismatch", types.ErrAuthenticationFailure, scheme.Name())
	}
	return nil
}

// scheme resolves the parameter set for an operation, enforcing that a
// key whose alg field is set is only used with that parameter set.
func (k *AKPKey) scheme(alg jwa.SignatureAlgorithm) (sign.Scheme, error) {
	if pinned := k.Algorithm(); pinned != "" && pinned != alg.String() {
		return nil, fmt.Errorf("%w: key is pinned to %q, operation requested %q",
			types.ErrOperationNotAllowed, pinned, alg)
	}
	meta, ok := k.reg().ResolveSignature(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	if meta.KeyType != jwa.AKP {
		return nil, fmt.Errorf("%w: %q is not an AKP signature algorithm", types.ErrOperationNotAllowed, alg)
	}
	return mldsaScheme(alg)
}

func mldsaScheme(alg jwa.SignatureAlgorithm) (sign.Scheme, error) {
	switch alg {
	case jwa.MLDSA44:
		return mldsa44.Scheme(), nil
	case jwa.MLDSA65:
		return mldsa65.Scheme(), nil
	case jwa.MLDSA87:
		return mldsa87.Scheme(), nil
	default:
		return nil, fmt.Errorf("%w: %q is not an ML-DSA parameter set", types.ErrUnknownAlgorithm, alg)
	}
}
