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
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// RSAKey is the RSA key family adapter: PKCS#1 v1.5 and PSS signatures,
// PKCS#1 v1.5 and OAEP key transport.
type RSAKey struct {
	baseKey
}

var (
	_ Key          = (*RSAKey)(nil)
	_ Signer       = (*RSAKey)(nil)
	_ Verifier     = (*RSAKey)(nil)
	_ KeyWrapper   = (*RSAKey)(nil)
	_ KeyUnwrapper = (*RSAKey)(nil)
)

func newRSAKey(s *Storage, opts ...KeyOption) (Key, error) {
	k := &RSAKey{baseKey: newBaseKey(s, newKeyConfig(opts))}
	if !k.storage.Has(FieldN) || !k.storage.Has(FieldE) {
		return nil, fmt.Errorf("%w: RSA key requires n and e", types.ErrInvalidKeyFormat)
	}
	return k, nil
}

// GenerateRSA generates an RSA private key of the given modulus bit size
// and assigns it a fresh kid. Moduli below 2048 bits are rejected.
func GenerateRSA(bits int, opts ...KeyOption) (*RSAKey, error) {
	if bits < 2048 {
		return nil, fmt.Errorf("%w: RSA modulus must be at least 2048 bits, got %d", types.ErrIncorrectKeySize, bits)
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	s, err := storageFromRSAPrivate(priv)
	if err != nil {
		return nil, err
	}
	s.SetString(FieldKeyID, uuid.NewString())

	key, err := newRSAKey(s, opts...)
	if err != nil {
		return nil, err
	}
	return key.(*RSAKey), nil
}

func storageFromRSAPrivate(priv *rsa.PrivateKey) (*Storage, error) {
	if len(priv.Primes) != 2 {
		return nil, fmt.Errorf("%w: multi-prime RSA keys are not supported", types.ErrInvalidKeyFormat)
	}
	priv.Precompute()

	s := storageFromRSAPublic(&priv.PublicKey)
	s.SetBytes(FieldD, priv.D.Bytes())
	s.SetBytes(FieldP, priv.Primes[0].Bytes())
	s.SetBytes(FieldQ, priv.Primes[1].Bytes())
	s.SetBytes(FieldDP, priv.Precomputed.Dp.Bytes())
	s.SetBytes(FieldDQ, priv.Precomputed.Dq.Bytes())
	s.SetBytes(FieldQI, priv.Precomputed.Qinv.Bytes())
	return s, nil
}

func storageFromRSAPublic(pub *rsa.PublicKey) *Storage {
	s := NewStorage()
	s.SetString(FieldKeyType, jwa.RSA.String())
	s.SetBytes(FieldN, pub.N.Bytes())
	s.SetBytes(FieldE, big.NewInt(int64(pub.E)).Bytes())
	return s
}

// KeyType returns jwa.RSA.
func (k *RSAKey) KeyType() jwa.KeyType {
	return jwa.RSA
}

// IsPrivate reports whether the private exponent is present.
func (k *RSAKey) IsPrivate() bool {
	return k.storage.Has(FieldD)
}

// PublicKey returns the public view holding only n and e.
func (k *RSAKey) PublicKey() (Key, error) {
	return newRSAKey(k.publicSubset(FieldN, FieldE))
}

// Raw returns *rsa.PrivateKey for private keys and *rsa.PublicKey for
// public keys.
func (k *RSAKey) Raw() (any, error) {
	if k.IsPrivate() {
		return k.rawPrivate()
	}
	return k.rawPublic()
}

func (k *RSAKey) rawPublic() (*rsa.PublicKey, error) {
	n, err := k.storage.GetBytes(FieldN)
	if err != nil {
		return nil, err
	}
	e, err := k.storage.GetBytes(FieldE)
	if err != nil {
		return nil, err
	}
	eInt := new(big.Int).SetBytes(e)
	if !eInt.IsInt64() || eInt.Int64() <= 1 {
		return nil, fmt.Errorf("%w: invalid RSA public exponent", types.ErrInvalidKeyFormat)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(eInt.Int64()),
	}, nil
}

func (k *RSAKey) rawPrivate() (*rsa.PrivateKey, error) {
	pub, err := k.rawPublic()
	if err != nil {
		return nil, err
	}
	d, err := k.storage.GetBytes(FieldD)
	if err != nil {
		return nil, err
	}

	priv := &rsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(d),
	}

	// The CRT parameters are optional in a JWK; when the primes are
	// absent the key still signs, just without the CRT speedup.
	if k.storage.Has(FieldP) && k.storage.Has(FieldQ) {
		p, err := k.storage.GetBytes(FieldP)
		if err != nil {
			return nil, err
		}
		q, err := k.storage.GetBytes(FieldQ)
		if err != nil {
			return nil, err
		}
		priv.Primes = []*big.Int{
			new(big.Int).SetBytes(p),
			new(big.Int).SetBytes(q),
		}
		if err := priv.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
		}
		priv.Precompute()
	}
	return priv, nil
}

// Sign produces an RSA signature over data. RS* algorithms use PKCS#1
// v1.5 padding and PS* algorithms use PSS with salt length equal to the
// digest size.
func (k *RSAKey) Sign(data []byte, alg jwa.SignatureAlgorithm) ([]byte, error) {
	if !k.IsPrivate() {
		return nil, fmt.Errorf("%w: signing requires a private key", types.ErrOperationNotAllowed)
	}
	hash, digest, err := k.digest(data, alg)
	if err != nil {
		return nil, err
	}
	priv, err := k.rawPrivate()
	if err != nil {
		return nil, err
	}

	switch alg {
	case jwa.RS256, jwa.RS384, jwa.RS512:
		return rsa.SignPKCS1v15(rand.Reader, priv, hash, digest)
	case jwa.PS256, jwa.PS384, jwa.PS512:
		return rsa.SignPSS(rand.Reader, priv, hash, digest, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
	default:
		return nil, fmt.Errorf("%w: %q is not an RSA signature algorithm", types.ErrOperationNotAllowed, alg)
	}
}

// Verify checks an RSA signature over data, returning
// ErrAuthenticationFailure on mismatch.
func (k *RSAKey) Verify(signature, data []byte, alg jwa.SignatureAlgorithm) error {
	hash, digest, err := k.digest(data, alg)
	if err != nil {
		return err
	}
	pub, err := k.rawPublic()
	if err != nil {
		return err
	}

	switch alg {
	case jwa.RS256, jwa.RS384, jwa.RS512:
		err = rsa.VerifyPKCS1v15(pub, hash, digest, signature)
	case jwa.PS256, jwa.PS384, jwa.PS512:
		err = rsa.VerifyPSS(pub, hash, digest, signature, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
	default:
		return fmt.Errorf("%w: %q is not an RSA signature algorithm", types.ErrOperationNotAllowed, alg)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrAuthenticationFailure, err)
	}
	return nil
}

func (k *RSAKey) digest(data []byte, alg jwa.SignatureAlgorithm) (crypto.Hash, []byte, error) {
	meta, ok := k.reg().ResolveSignature(alg)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	if meta.KeyType != jwa.RSA {
		return 0, nil, fmt.Errorf("%w: %q is not an RSA signature algorithm", types.ErrOperationNotAllowed, alg)
	}
	hashMeta, ok := k.reg().ResolveHash(meta.Hash)
	if !ok {
		return 0, nil, fmt.Errorf("%w: hash %q", types.ErrUnknownAlgorithm, meta.Hash)
	}

	h := hashMeta.New()
	h.Write(data)
	return hashMeta.CryptoHash, h.Sum(nil), nil
}

// WrapKey encrypts a CEK to the public key. RSA1_5 uses PKCS#1 v1.5 key
// transport; the RSA-OAEP variants use OAEP with the digest from the
// algorithm metadata.
func (k *RSAKey) WrapKey(cek []byte, alg jwa.KeyManagementAlgorithm) ([]byte, error) {
	pub, err := k.rawPublic()
	if err != nil {
		return nil, err
	}

	if alg == jwa.RSA1_5 {
		return rsa.EncryptPKCS1v15(rand.Reader, pub, cek)
	}

	hash, err := k.oaepHash(alg)
	if err != nil {
		return nil, err
	}
	return rsa.EncryptOAEP(hash.New(), rand.Reader, pub, cek, nil)
}

// UnwrapKey decrypts an encrypted CEK with the private key.
func (k *RSAKey) UnwrapKey(encryptedKey []byte, alg jwa.KeyManagementAlgorithm) ([]byte, error) {
	if !k.IsPrivate() {
		return nil, fmt.Errorf("%w: key unwrap requires a private key", types.ErrOperationNotAllowed)
	}
	priv, err := k.rawPrivate()
	if err != nil {
		return nil, err
	}

	if alg == jwa.RSA1_5 {
		cek, err := rsa.DecryptPKCS1v15(rand.Reader, priv, encryptedKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrAuthenticationFailure, err)
		}
		return cek, nil
	}

	hash, err := k.oaepHash(alg)
	if err != nil {
		return nil, err
	}
	cek, err := rsa.DecryptOAEP(hash.New(), rand.Reader, priv, encryptedKey, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrAuthenticationFailure, err)
	}
	return cek, nil
}

func (k *RSAKey) oaepHash(alg jwa.KeyManagementAlgorithm) (jwa.HashMetadata, error) {
	meta, ok := k.reg().ResolveKeyManagement(alg)
	if !ok {
		return jwa.HashMetadata{}, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	if meta.KeyType != jwa.RSA {
		return jwa.HashMetadata{}, fmt.Errorf("%w: %q is not an RSA key management algorithm", types.ErrOperationNotAllowed, alg)
	}
	hashMeta, ok := k.reg().ResolveHash(meta.Hash)
	if !ok {
		return jwa.HashMetadata{}, fmt.Errorf("%w: hash %q", types.ErrUnknownAlgorithm, meta.Hash)
	}
	return hashMeta, nil
}
