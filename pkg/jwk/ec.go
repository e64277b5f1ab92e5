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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"

	cryptoecdh "github.com/jeremyhahn/go-josekit/pkg/crypto/ecdh"
	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// ECKey is the EC key family adapter: ECDSA signatures with the JOSE
// fixed-width R||S encoding, and ECDH key agreement. The NIST curves and
// secp256k1 share one adapter; every operation reads crv from storage and
// routes to the matching backend.
type ECKey struct {
	baseKey
}

var (
	_ Key                 = (*ECKey)(nil)
	_ Signer              = (*ECKey)(nil)
	_ Verifier            = (*ECKey)(nil)
	_ SharedSecretDeriver = (*ECKey)(nil)
)

func newECKey(s *Storage, opts ...KeyOption) (Key, error) {
	k := &ECKey{baseKey: newBaseKey(s, newKeyConfig(opts))}
	if !k.storage.Has(FieldCurve) || !k.storage.Has(FieldX) || !k.storage.Has(FieldY) {
		return nil, fmt.Errorf("%w: EC key requires crv, x and y", types.ErrInvalidKeyFormat)
	}
	return k, nil
}

// GenerateEC generates a private key on the named curve and assigns it a
// fresh kid.
func GenerateEC(crv jwa.EllipticCurve, opts ...KeyOption) (*ECKey, error) {
	curve, err := curveFromJWA(crv)
	if err != nil {
		return nil, err
	}
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate EC key: %w", err)
	}

	s := storageFromECPrivate(crv, priv)
	s.SetString(FieldKeyID, uuid.NewString())

	key, err := newECKey(s, opts...)
	if err != nil {
		return nil, err
	}
	return key.(*ECKey), nil
}

func storageFromECPrivate(crv jwa.EllipticCurve, priv *ecdsa.PrivateKey) *Storage {
	size := coordinateSize(priv.Curve)
	s := storageFromECPublic(crv, &priv.PublicKey)
	s.SetBytes(FieldD, leftPad(priv.D.Bytes(), size))
	return s
}

func storageFromECPublic(crv jwa.EllipticCurve, pub *ecdsa.PublicKey) *Storage {
	size := coordinateSize(pub.Curve)
	s := NewStorage()
	s.SetString(FieldKeyType, jwa.EC.String())
	s.SetString(FieldCurve, crv.String())
	s.SetBytes(FieldX, leftPad(pub.X.Bytes(), size))
	s.SetBytes(FieldY, leftPad(pub.Y.Bytes(), size))
	return s
}

// KeyType returns jwa.EC.
func (k *ECKey) KeyType() jwa.KeyType {
	return jwa.EC
}

// Curve returns the crv field.
func (k *ECKey) Curve() jwa.EllipticCurve {
	crv, _ := k.storage.GetString(FieldCurve)
	return jwa.EllipticCurve(crv)
}

// IsPrivate reports whether the private scalar is present.
func (k *ECKey) IsPrivate() bool {
	return k.storage.Has(FieldD)
}

// PublicKey returns the public view holding crv, x and y.
func (k *ECKey) PublicKey() (Key, error) {
	return newECKey(k.publicSubset(FieldCurve, FieldX, FieldY))
}

// Raw returns *ecdsa.PrivateKey for private keys and *ecdsa.PublicKey for
// public keys.
func (k *ECKey) Raw() (any, error) {
	if k.IsPrivate() {
		return k.rawPrivate()
	}
	return k.rawPublic()
}

func (k *ECKey) rawPublic() (*ecdsa.PublicKey, error) {
	curve, err := curveFromJWA(k.Curve())
	if err != nil {
		return nil, err
	}
	x, err := k.storage.GetBytes(FieldX)
	if err != nil {
		return nil, err
	}
	y, err := k.storage.GetBytes(FieldY)
	if err != nil {
		return nil, err
	}

	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}
	if !curve.IsOnCurve(pub.X, pub.Y) {
		return nil, fmt.Errorf("%w: point is not on curve %s", types.ErrInvalidKeyFormat, k.Curve())
	}
	return pub, nil
}

func (k *ECKey) rawPrivate() (*ecdsa.PrivateKey, error) {
	pub, err := k.rawPublic()
	if err != nil {
		return nil, err
	}
	d, err := k.storage.GetBytes(FieldD)
	if err != nil {
		return nil, err
	}
	return &ecdsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(d),
	}, nil
}

// Sign produces an ECDSA signature over data in the JOSE fixed-width
// R||S encoding, each component padded to the curve's coordinate size.
func (k *ECKey) Sign(data []byte, alg jwa.SignatureAlgorithm) ([]byte, error) {
	if !k.IsPrivate() {
		return nil, fmt.Errorf("%w: signing requires a private key", types.ErrOperationNotAllowed)
	}
	digest, err := k.digest(data, alg)
	if err != nil {
		return nil, err
	}
	priv, err := k.rawPrivate()
	if err != nil {
		return nil, err
	}

	r, sVal, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, fmt.Errorf("ECDSA signing failed: %w", err)
	}

	size := coordinateSize(priv.Curve)
	sig := make([]byte, 2*size)
	copy(sig[:size], leftPad(r.Bytes(), size))
	copy(sig[size:], leftPad(sVal.Bytes(), size))
	return sig, nil
}

// Verify checks a fixed-width R||S signature over data, returning
// ErrAuthenticationFailure on mismatch.
func (k *ECKey) Verify(signature, data []byte, alg jwa.SignatureAlgorithm) error {
	digest, err := k.digest(data, alg)
	if err != nil {
		return err
	}
	pub, err := k.rawPublic()
	if err != nil {
		return err
	}

	size := coordinateSize(pub.Curve)
	if len(signature) != 2*size {
		return fmt.Errorf("%w: signature must be %d bytes, got %d",
			types.ErrAuthenticationFailure, 2*size, len(signature))
	}

	r := new(big.Int).SetBytes(signature[:size])
	sVal := new(big.Int).SetBytes(signature[size:])
	if !ecdsa.Verify(pub, digest, r, sVal) {
		return fmt.Errorf("%w: ECDSA signature mismatch", types.ErrAuthenticationFailure)
	}
	return nil
}

func (k *ECKey) digest(data []byte, alg jwa.SignatureAlgorithm) ([]byte, error) {
	meta, ok := k.reg().ResolveSignature(alg)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	if meta.KeyType != jwa.EC {
		return nil, fmt.Errorf("%w: %q is not an ECDSA algorithm", types.ErrOperationNotAllowed, alg)
	}
	if meta.Curve != "" && meta.Curve != k.Curve() {
		return nil, fmt.Errorf("%w: %q requires curve %s, key is on %s",
			types.ErrOperationNotAllowed, alg, meta.Curve, k.Curve())
	}
	hashMeta, ok := k.reg().ResolveHash(meta.Hash)
	if !ok {
		return nil, fmt.Errorf("%w: hash %q", types.ErrUnknownAlgorithm, meta.Hash)
	}

	h := hashMeta.New()
	h.Write(data)
	return h.Sum(nil), nil
}

// DeriveSharedSecret performs ECDH between this private key and the
// peer's public key. Both keys must be on the same curve.
func (k *ECKey) DeriveSharedSecret(peer Key) ([]byte, error) {
	if !k.IsPrivate() {
		return nil, fmt.Errorf("%w: key agreement requires a private key", types.ErrOperationNotAllowed)
	}
	peerEC, ok := peer.(*ECKey)
	if !ok {
		return nil, fmt.Errorf("%w: peer must be an EC key, got %s", types.ErrOperationNotAllowed, peer.KeyType())
	}

	priv, err := k.rawPrivate()
	if err != nil {
		return nil, err
	}
	pub, err := peerEC.rawPublic()
	if err != nil {
		return nil, err
	}
	return cryptoecdh.DeriveSharedSecret(priv, pub)
}

// curveFromJWA maps a JWK crv identifier to its elliptic.Curve backend.
func curveFromJWA(crv jwa.EllipticCurve) (elliptic.Curve, error) {
	switch crv {
	case jwa.P256:
		return elliptic.P256(), nil
	case jwa.P384:
		return elliptic.P384(), nil
	case jwa.P521:
		return elliptic.P521(), nil
	case jwa.Secp256k1:
		return secp256k1.S256(), nil
	default:
		return nil, fmt.Errorf("%w: curve %q", types.ErrUnknownKeyType, crv)
	}
}

// coordinateSize returns the byte length of one coordinate on the curve.
func coordinateSize(curve elliptic.Curve) int {
	return (curve.Params().BitSize + 7) / 8
}

// leftPad zero-pads b on the left to size bytes. math/big strips leading
// zeros; JOSE encodings are fixed-width.
func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}
