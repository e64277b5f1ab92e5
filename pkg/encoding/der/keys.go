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

package der

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/youmark/pkcs8"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// subjectPublicKeyInfo is the SPKI outer structure (RFC 5280).
type subjectPublicKeyInfo struct {
	Algorithm AlgorithmIdentifier
	PublicKey asn1.BitString
}

// pkcs8PrivateKey is the PKCS#8 outer structure (RFC 5958). The
// PrivateKey octet string content is algorithm-specific.
type pkcs8PrivateKey struct {
	Version    int
	Algorithm  AlgorithmIdentifier
	PrivateKey []byte
}

// sec1PrivateKey is the SEC1 ECPrivateKey structure (RFC 5915).
type sec1PrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

// ExportSPKI serializes a key's public part as a DER
// SubjectPublicKeyInfo. secp256k1 and ML-DSA keys use the package's own
// encoder; everything else goes through crypto/x509.
func ExportSPKI(key jwk.Key) ([]byte, error) {
	switch k := key.(type) {
	case *jwk.ECKey:
		if k.Curve() == jwa.Secp256k1 {
			point, err := ExportPoint(k, PointX963)
			if err != nil {
				return nil, err
			}
			params, err := asn1.Marshal(oidCurveSecp256k1)
			if err != nil {
				return nil, err
			}
			return asn1.Marshal(subjectPublicKeyInfo{
				Algorithm: AlgorithmIdentifier{
					Algorithm:  oidECPublicKey,
					Parameters: asn1.RawValue{FullBytes: params},
				},
				PublicKey: asn1.BitString{Bytes: point, BitLength: len(point) * 8},
			})
		}
	case *jwk.AKPKey:
		scheme, oid, err := mldsaSchemeOID(k.Algorithm())
		if err != nil {
			return nil, err
		}
		pub, err := key.Storage().GetBytes(jwk.FieldPub)
		if err != nil {
			return nil, err
		}
		if len(pub) != scheme.PublicKeySize() {
			return nil, fmt.Errorf("%w: %s public key must be %d bytes", types.ErrIncorrectKeySize, scheme.Name(), scheme.PublicKeySize())
		}
		return asn1.Marshal(subjectPublicKeyInfo{
			Algorithm: NewAlgorithmIdentifier(oid),
			PublicKey: asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
		})
	}

	pub := key
	if key.IsPrivate() {
		var err error
		if pub, err = key.PublicKey(); err != nil {
			return nil, err
		}
	}
	raw, err := pub.Raw()
	if err != nil {
		return nil, err
	}
	encoded, err := x509.MarshalPKIXPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return encoded, nil
}

// ImportSPKI parses a DER SubjectPublicKeyInfo into a public key.
func ImportSPKI(data []byte) (jwk.Key, error) {
	var spki subjectPublicKeyInfo
	if rest, err := asn1.Unmarshal(data, &spki); err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("%w: malformed SubjectPublicKeyInfo", types.ErrInvalidKeyFormat)
	}

	switch {
	case spki.Algorithm.Algorithm.Equal(oidECPublicKey):
		var curveOID asn1.ObjectIdentifier
		if _, err := asn1.Unmarshal(spki.Algorithm.Parameters.FullBytes, &curveOID); err == nil &&
			curveOID.Equal(oidCurveSecp256k1) {
			pub, err := secp256k1.ParsePubKey(spki.PublicKey.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
			}
			return jwk.FromRaw(pub.ToECDSA())
		}

	case spki.Algorithm.Algorithm.Equal(oidMLDSA44),
		spki.Algorithm.Algorithm.Equal(oidMLDSA65),
		spki.Algorithm.Algorithm.Equal(oidMLDSA87):
		alg, _ := DefaultOIDRegistry().ResolveAlgorithm(NewAlgorithmIdentifier(spki.Algorithm.Algorithm))
		scheme, _, err := mldsaSchemeOID(alg)
		if err != nil {
			return nil, err
		}
		if len(spki.PublicKey.Bytes) != scheme.PublicKeySize() {
			return nil, fmt.Errorf("%w: %s public key must be %d bytes", types.ErrIncorrectKeySize, scheme.Name(), scheme.PublicKeySize())
		}
		s := jwk.NewStorage()
		s.SetString(jwk.FieldKeyType, jwa.AKP.String())
		s.SetString(jwk.FieldAlg, alg)
		s.SetBytes(jwk.FieldPub, spki.PublicKey.Bytes)
		return jwk.FromStorage(s)
	}

	raw, err := x509.ParsePKIXPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return jwk.FromRaw(raw)
}

// ExportPKCS8 serializes a private key as a DER PKCS#8
// PrivateKeyInfo. ML-DSA keys encode the generation seed as the private
// key; secp256k1 keys wrap their SEC1 encoding.
func ExportPKCS8(key jwk.Key) ([]byte, error) {
	if !key.IsPrivate() {
		return nil, fmt.Errorf("%w: PKCS#8 holds private keys", types.ErrOperationNotAllowed)
	}

	switch k := key.(type) {
	case *jwk.ECKey:
		if k.Curve() == jwa.Secp256k1 {
			sec1, err := ExportSEC1(k)
			if err != nil {
				return nil, err
			}
			params, err := asn1.Marshal(oidCurveSecp256k1)
			if err != nil {
				return nil, err
			}
			return asn1.Marshal(pkcs8PrivateKey{
				Version: 0,
				Algorithm: AlgorithmIdentifier{
					Algorithm:  oidECPublicKey,
					Parameters: asn1.RawValue{FullBytes: params},
				},
				PrivateKey: sec1,
			})
		}
	case *jwk.AKPKey:
		_, oid, err := mldsaSchemeOID(k.Algorithm())
		if err != nil {
			return nil, err
		}
		seed, err := key.Storage().GetBytes(jwk.FieldPriv)
		if err != nil {
			return nil, err
		}
		return asn1.Marshal(pkcs8PrivateKey{
			Version:    0,
			Algorithm:  NewAlgorithmIdentifier(oid),
			PrivateKey: seed,
		})
	}

	raw, err := key.Raw()
	if err != nil {
		return nil, err
	}
	encoded, err := x509.MarshalPKCS8PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return encoded, nil
}

// ImportPKCS8 parses a DER PKCS#8 PrivateKeyInfo into a private key.
func ImportPKCS8(data []byte) (jwk.Key, error) {
	var p8 pkcs8PrivateKey
	if rest, err := asn1.Unmarshal(data, &p8); err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("%w: malformed PrivateKeyInfo", types.ErrInvalidKeyFormat)
	}

	switch {
	case p8.Algorithm.Algorithm.Equal(oidECPublicKey):
		var curveOID asn1.ObjectIdentifier
		if _, err := asn1.Unmarshal(p8.Algorithm.Parameters.FullBytes, &curveOID); err == nil &&
			curveOID.Equal(oidCurveSecp256k1) {
			return ImportSEC1(p8.PrivateKey)
		}

	case p8.Algorithm.Algorithm.Equal(oidMLDSA44),
		p8.Algorithm.Algorithm.Equal(oidMLDSA65),
		p8.Algorithm.Algorithm.Equal(oidMLDSA87):
		alg, _ := DefaultOIDRegistry().ResolveAlgorithm(NewAlgorithmIdentifier(p8.Algorithm.Algorithm))
		scheme, _, err := mldsaSchemeOID(alg)
		if err != nil {
			return nil, err
		}
		if len(p8.PrivateKey) != scheme.SeedSize() {
			return nil, fmt.Errorf("%w: %s seed must be %d bytes", types.ErrIncorrectKeySize, scheme.Name(), scheme.SeedSize())
		}
		pub, _ := scheme.DeriveKey(p8.PrivateKey)
		pubBytes, err := pub.MarshalBinary()
		if err != nil {
			return nil, err
		}
		s := jwk.NewStorage()
		s.SetString(jwk.FieldKeyType, jwa.AKP.String())
		s.SetString(jwk.FieldAlg, alg)
		s.SetBytes(jwk.FieldPub, pubBytes)
		s.SetBytes(jwk.FieldPriv, p8.PrivateKey)
		return jwk.FromStorage(s)
	}

	raw, err := x509.ParsePKCS8PrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return jwk.FromRaw(raw)
}

// ExportEncryptedPKCS8 serializes a private key as password-encrypted
// PKCS#8 (PBES2). Only the key types crypto/x509 understands are
// supported.
func ExportEncryptedPKCS8(key jwk.Key, password []byte) ([]byte, error) {
	if !key.IsPrivate() {
		return nil, fmt.Errorf("%w: PKCS#8 holds private keys", types.ErrOperationNotAllowed)
	}
	raw, err := key.Raw()
	if err != nil {
		return nil, err
	}
	encoded, err := pkcs8.MarshalPrivateKey(raw, password, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return encoded, nil
}

// ImportEncryptedPKCS8 parses password-encrypted PKCS#8 into a private
// key.
func ImportEncryptedPKCS8(data, password []byte) (jwk.Key, error) {
	raw, err := pkcs8.ParsePKCS8PrivateKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrAuthenticationFailure, err)
	}
	return jwk.FromRaw(raw)
}

// ExportSEC1 serializes an EC private key as a DER SEC1 ECPrivateKey.
func ExportSEC1(key *jwk.ECKey) ([]byte, error) {
	if !key.IsPrivate() {
		return nil, fmt.Errorf("%w: SEC1 holds private keys", types.ErrOperationNotAllowed)
	}
	if key.Curve() == jwa.Secp256k1 {
		point, err := ExportPoint(key, PointX963)
		if err != nil {
			return nil, err
		}
		d, err := key.Storage().GetBytes(jwk.FieldD)
		if err != nil {
			return nil, err
		}
		return asn1.Marshal(sec1PrivateKey{
			Version:       1,
			PrivateKey:    d,
			NamedCurveOID: oidCurveSecp256k1,
			PublicKey:     asn1.BitString{Bytes: point, BitLength: len(point) * 8},
		})
	}

	raw, err := key.Raw()
	if err != nil {
		return nil, err
	}
	encoded, err := x509.MarshalECPrivateKey(raw.(*ecdsa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return encoded, nil
}

// ImportSEC1 parses a DER SEC1 ECPrivateKey.
func ImportSEC1(data []byte) (jwk.Key, error) {
	var sec1 sec1PrivateKey
	if rest, err := asn1.Unmarshal(data, &sec1); err == nil && len(rest) == 0 &&
		sec1.NamedCurveOID.Equal(oidCurveSecp256k1) {
		priv := secp256k1.PrivKeyFromBytes(sec1.PrivateKey)
		return jwk.FromRaw(priv.ToECDSA())
	}

	priv, err := x509.ParseECPrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	return jwk.FromRaw(priv)
}

// mldsaSchemeOID maps an ML-DSA JOSE identifier to its circl scheme and
// object identifier.
func mldsaSchemeOID(alg string) (sign.Scheme, asn1.ObjectIdentifier, error) {
	switch jwa.SignatureAlgorithm(alg) {
	case jwa.MLDSA44:
		return mldsa44.Scheme(), oidMLDSA44, nil
	case jwa.MLDSA65:
		return mldsa65.Scheme(), oidMLDSA65, nil
	case jwa.MLDSA87:
		return mldsa87.Scheme(), oidMLDSA87, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q is not an ML-DSA parameter set", types.ErrUnknownAlgorithm, alg)
	}
}
