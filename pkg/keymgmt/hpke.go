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

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/kem"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// hpkeSuites maps the JOSE-HPKE key encryption algorithms to their RFC
// 9180 suite and the recipient key's curve.
var hpkeSuites = map[jwa.KeyManagementAlgorithm]struct {
	kem  hpke.KEM
	kdf  hpke.KDF
	aead hpke.AEAD
	kty  jwa.KeyType
	crv  jwa.EllipticCurve
}{
	jwa.HPKEP256SHA256A128GCM:   {hpke.KEM_P256_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_AES128GCM, jwa.EC, jwa.P256},
	jwa.HPKEP384SHA384A256GCM:   {hpke.KEM_P384_HKDF_SHA384, hpke.KDF_HKDF_SHA384, hpke.AEAD_AES256GCM, jwa.EC, jwa.P384},
	jwa.HPKEP521SHA512A256GCM:   {hpke.KEM_P521_HKDF_SHA512, hpke.KDF_HKDF_SHA512, hpke.AEAD_AES256GCM, jwa.EC, jwa.P521},
	jwa.HPKEX25519SHA256A128GCM: {hpke.KEM_X25519_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_AES128GCM, jwa.OKP, jwa.X25519},
	jwa.HPKEX25519SHA256C20P:    {hpke.KEM_X25519_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_ChaCha20Poly1305, jwa.OKP, jwa.X25519},
}

// registerHPKE binds the HPKE key encryption algorithms
// (draft-ietf-jose-hpke-encrypt). The encrypted key is the KEM
// encapsulation followed by the sealed CEK.
func registerHPKE(r *jwa.Registry) {
	for alg, suite := range hpkeSuites {
		r.RegisterKeyManagement(alg, jwa.KeyManagementMetadata{
			KeyType: suite.kty,
			Curve:   suite.crv,
			Produce: produceHPKE,
			Consume: consumeHPKE,
		})
	}
}

// hpkeInfo builds the key encryption info string: the recipient label,
// then the content encryption identifier, 0xFF-delimited.
func hpkeInfo(enc jwa.ContentEncryptionAlgorithm) []byte {
	info := make([]byte, 0, 16+len(enc))
	info = append(info, []byte("JOSE-HPKE rcpt")...)
	info = append(info, 0xff)
	info = append(info, []byte(enc.String())...)
	info = append(info, 0xff)
	return info
}

func produceHPKE(h jwa.Header, alg jwa.KeyManagementAlgorithm, kek any, enc jwa.ContentEncryptionAlgorithm, cek *[]byte) ([]byte, error) {
	suite, ok := hpkeSuites[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	recipient, ok := kek.(jwk.Key)
	if !ok || kek == nil {
		return nil, fmt.Errorf("%w: HPKE requires a recipient key", types.ErrKeyNotFound)
	}

	pkR, err := hpkePublicKey(suite.kem, recipient, suite.crv)
	if err != nil {
		return nil, err
	}

	sender, err := hpke.NewSuite(suite.kem, suite.kdf, suite.aead).NewSender(pkR, hpkeInfo(enc))
	if err != nil {
		return nil, fmt.Errorf("HPKE sender setup failed: %w", err)
	}
	encapsulation, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("HPKE encapsulation failed: %w", err)
	}
	sealed, err := sealer.Seal(*cek, nil)
	if err != nil {
		return nil, fmt.Errorf("HPKE seal failed: %w", err)
	}

	encryptedKey := make([]byte, 0, len(encapsulation)+len(sealed))
	encryptedKey = append(encryptedKey, encapsulation...)
	encryptedKey = append(encryptedKey, sealed...)
	return encryptedKey, nil
}

func consumeHPKE(h jwa.Header, kek any, encryptedKey []byte, cek *[]byte) error {
	alg, err := headerAlg(h)
	if err != nil {
		return err
	}
	suite, ok := hpkeSuites[alg]
	if !ok {
		return fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
	}
	recipient, ok := kek.(jwk.Key)
	if !ok || kek == nil {
		return fmt.Errorf("%w: HPKE requires the recipient private key", types.ErrKeyNotFound)
	}
	if !recipient.IsPrivate() {
		return fmt.Errorf("%w: HPKE decryption requires a private key", types.ErrOperationNotAllowed)
	}
	enc, err := headerEnc(h)
	if err != nil {
		return err
	}

	skR, err := hpkePrivateKey(suite.kem, recipient, suite.crv)
	if err != nil {
		return err
	}

	encSize := suite.kem.Scheme().CiphertextSize()
	if len(encryptedKey) <= encSize {
		return fmt.Errorf("%w: encrypted key is shorter than the KEM encapsulation", types.ErrAuthenticationFailure)
	}

	receiver, err := hpke.NewSuite(suite.kem, suite.kdf, suite.aead).NewReceiver(skR, hpkeInfo(enc))
	if err != nil {
		return fmt.Errorf("HPKE receiver setup failed: %w", err)
	}
	opener, err := receiver.Setup(encryptedKey[:encSize])
	if err != nil {
		return fmt.Errorf("%w: HPKE decapsulation failed: %v", types.ErrAuthenticationFailure, err)
	}
	unwrapped, err := opener.Open(encryptedKey[encSize:], nil)
	if err != nil {
		return fmt.Errorf("%w: HPKE open failed: %v", types.ErrAuthenticationFailure, err)
	}
	*cek = unwrapped
	return nil
}

// hpkePublicKey encodes the recipient key into the KEM scheme's wire
// format: an uncompressed point for the NIST curves, raw bytes for
// X25519.
func hpkePublicKey(kemID hpke.KEM, key jwk.Key, crv jwa.EllipticCurve) (kem.PublicKey, error) {
	raw, err := hpkeKeyBytes(key, crv, false)
	if err != nil {
		return nil, err
	}
	pk, err := kemID.Scheme().UnmarshalBinaryPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return pk, nil
}

func hpkePrivateKey(kemID hpke.KEM, key jwk.Key, crv jwa.EllipticCurve) (kem.PrivateKey, error) {
	raw, err := hpkeKeyBytes(key, crv, true)
	if err != nil {
		return nil, err
	}
	sk, err := kemID.Scheme().UnmarshalBinaryPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return sk, nil
}

func hpkeKeyBytes(key jwk.Key, crv jwa.EllipticCurve, private bool) ([]byte, error) {
	s := key.Storage()
	switch k := key.(type) {
	case *jwk.ECKey:
		if k.Curve() != crv {
			return nil, fmt.Errorf("%w: suite requires curve %s, key is on %s", types.ErrOperationNotAllowed, crv, k.Curve())
		}
		if private {
			return s.GetBytes(jwk.FieldD)
		}
		x, err := s.GetBytes(jwk.FieldX)
		if err != nil {
			return nil, err
		}
		y, err := s.GetBytes(jwk.FieldY)
		if err != nil {
			return nil, err
		}
		point := make([]byte, 0, 1+len(x)+len(y))
		point = append(point, 0x04)
		point = append(point, x...)
		point = append(point, y...)
		return point, nil
	case *jwk.OKPKey:
		if k.Curve() != jwa.X25519 || crv != jwa.X25519 {
			return nil, fmt.Errorf("%w: suite requires curve %s, key is on %s", types.ErrOperationNotAllowed, crv, k.Curve())
		}
		if private {
			return s.GetBytes(jwk.FieldD)
		}
		return s.GetBytes(jwk.FieldX)
	default:
		return nil, fmt.Errorf("%w: %s keys cannot be HPKE recipients", types.ErrOperationNotAllowed, key.KeyType())
	}
}
