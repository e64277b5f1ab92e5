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
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"

	cryptoecdh "github.com/jeremyhahn/go-josekit/pkg/crypto/ecdh"
	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// OKPKey is the RFC 8037 octet key pair adapter: EdDSA signatures on
// Ed25519 and key agreement on X25519. The d field holds the Ed25519 seed
// or the X25519 scalar; x holds the public key bytes.
type OKPKey struct {
	baseKey
}

var (
	_ Key                 = (*OKPKey)(nil)
	_ Signer              = (*OKPKey)(nil)
	_ Verifier            = (*OKPKey)(nil)
	_ SharedSecretDeriver = (*OKPKey)(nil)
)

func newOKPKey(s *Storage, opts ...KeyOption) (Key, error) {
	k := &OKPKey{baseKey: newBaseKey(s, newKeyConfig(opts))}
	if !k.storage.Has(FieldCurve) || !k.storage.Has(FieldX) {
		return nil, fmt.Errorf("%w: OKP key requires crv and x", types.ErrInvalidKeyFormat)
	}
	switch k.Curve() {
	case jwa.Ed25519, jwa.X25519:
	default:
		return nil, fmt.Errorf("%w: OKP curve %q", types.ErrUnknownKeyType, k.Curve())
	}
	return k, nil
}

// GenerateOKP generates a private key on Ed25519 or X25519 and assigns it
// a fresh kid.
func GenerateOKP(crv jwa.EllipticCurve, opts ...KeyOption) (*OKPKey, error) {
	s := NewStorage()
	s.SetString(FieldKeyType, jwa.OKP.String())
	s.SetString(FieldCurve, crv.String())

	switch crv {
	case jwa.Ed25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
		}
		s.SetBytes(FieldX, pub)
		s.SetBytes(FieldD, priv.Seed())
	case jwa.X25519:
		priv, err := ecdh.X25519().GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate X25519 key: %w", err)
		}
		s.SetBytes(FieldX, priv.PublicKey().Bytes())
		s.SetBytes(FieldD, priv.Bytes())
	default:
		return nil, fmt.Errorf("%w: OKP curve %q", types.ErrUnknownKeyType, crv)
	}
	s.SetString(FieldKeyID, uuid.NewString())

	key, err := newOKPKey(s, opts...)
	if err != nil {
		return nil, err
	}
	return key.(*OKPKey), nil
}

// KeyType returns jwa.OKP.
func (k *OKPKey) KeyType() jwa.KeyType {
	return jwa.OKP
}

// Curve returns the crv field.
func (k *OKPKey) Curve() jwa.EllipticCurve {
	crv, _ := k.storage.GetString(FieldCurve)
	return jwa.EllipticCurve(crv)
}

// IsPrivate reports whether the private scalar is present.
func (k *OKPKey) IsPrivate() bool {
	return k.storage.Has(FieldD)
}

// PublicKey returns the public view holding crv and x.
func (k *OKPKey) PublicKey() (Key, error) {
	return newOKPKey(k.publicSubset(FieldCurve, FieldX))
}

// Raw returns ed25519.PrivateKey/ed25519.PublicKey for Ed25519 keys and
// *ecdh.PrivateKey/*ecdh.PublicKey for X25519 keys.
func (k *OKPKey) Raw() (any, error) {
	x, err := k.storage.GetBytes(FieldX)
	if err != nil {
		return nil, err
	}

	switch k.Curve() {
	case jwa.Ed25519:
		if len(x) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: Ed25519 public key must be %d bytes", types.ErrIncorrectKeySize, ed25519.PublicKeySize)
		}
		if !k.IsPrivate() {
			return ed25519.PublicKey(x), nil
		}
		seed, err := k.storage.GetBytes(FieldD)
		if err != nil {
			return nil, err
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: Ed25519 seed must be %d bytes", types.ErrIncorrectKeySize, ed25519.SeedSize)
		}
		priv := ed25519.NewKeyFromSeed(seed)
		if subtle.ConstantTimeCompare(priv.Public().(ed25519.PublicKey), x) != 1 {
			return nil, fmt.Errorf("%w: x does not match the Ed25519 seed", types.ErrInvalidKeyFormat)
		}
		return priv, nil

	case jwa.X25519:
		if !k.IsPrivate() {
			pub, err := ecdh.X25519().NewPublicKey(x)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
			}
			return pub, nil
		}
		d, err := k.storage.GetBytes(FieldD)
		if err != nil {
			return nil, err
		}
		priv, err := ecdh.X25519().NewPrivateKey(d)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
		}
		return priv, nil

	default:
		return nil, fmt.Errorf("%w: OKP curve %q", types.ErrUnknownKeyType, k.Curve())
	}
}

// Sign produces an EdDSA signature over the raw message; there is no
// pre-hash.
func (k *OKPKey) Sign(data []byte, alg jwa.SignatureAlgorithm) ([]byte, error) {
	if err := k.checkEdDSA(alg); err != nil {
		return nil, err
	}
	if !k.IsPrivate() {
		return nil, fmt.Errorf("%w: signing requires a private key", types.ErrOperationNotAllowed)
	}
	raw, err := k.Raw()
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(raw.(ed25519.PrivateKey), data), nil
}

// Verify checks an EdDSA signature, returning ErrAuthenticationFailure on
// mismatch.
func (k *OKPKey) Verify(signature, data []byte, alg jwa.SignatureAlgorithm) error {
	if err := k.checkEdDSA(alg); err != nil {
		return err
	}
	x, err := k.storage.GetBytes(FieldX)
	if err != nil {
		return err
	}
	if len(x) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: Ed25519 public key must be %d bytes", types.ErrIncorrectKeySize, ed25519.PublicKeySize)
	}
	if !ed25519.Verify(ed25519.PublicKey(x), data, signature) {
		return fmt.Errorf("%w: EdDSA signature mismatch", types.ErrAuthenticationFailure)
	}
	return nil
}

func (k *OKPKey) checkEdDSA(alg jwa.SignatureAlgorithm) error {
	meta, ok := k.reg().ResolveSignature(alg)
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	if meta.KeyType != jwa.OKP {
		return fmt.Errorf("%w: %q is not an OKP signature algorithm", types.ErrOperationNotAllowed, alg)
	}
	if k.Curve() != jwa.Ed25519 {
		return fmt.Errorf("%w: signing requires an Ed25519 key, key is on %s", types.ErrOperationNotAllowed, k.Curve())
	}
	return nil
}

// DeriveSharedSecret performs X25519 key agreement between this private
// key and the peer's public key.
func (k *OKPKey) DeriveSharedSecret(peer Key) ([]byte, error) {
	if k.Curve() != jwa.X25519 {
		return nil, fmt.Errorf("%w: key agreement requires an X25519 key, key is on %s", types.ErrOperationNotAllowed, k.Curve())
	}
	if !k.IsPrivate() {
		return nil, fmt.Errorf("%w: key agreement requires a private key", types.ErrOperationNotAllowed)
	}
	peerOKP, ok := peer.(*OKPKey)
	if !ok || peerOKP.Curve() != jwa.X25519 {
		return nil, fmt.Errorf("%w: peer must be an X25519 key", types.ErrOperationNotAllowed)
	}

	raw, err := k.Raw()
	if err != nil {
		return nil, err
	}
	peerPub, err := peerOKP.PublicKey()
	if err != nil {
		return nil, err
	}
	peerRaw, err := peerPub.Raw()
	if err != nil {
		return nil, err
	}
	return cryptoecdh.DeriveSharedSecretX25519(raw.(*ecdh.PrivateKey), peerRaw.(*ecdh.PublicKey))
}
