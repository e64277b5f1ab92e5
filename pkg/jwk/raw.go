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
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// FromRaw converts a crypto primitive value into its JWK adapter.
// Supported inputs: []byte (oct), *rsa.PrivateKey, *rsa.PublicKey,
// *ecdsa.PrivateKey, *ecdsa.PublicKey, ed25519.PrivateKey,
// ed25519.PublicKey, and X25519 *ecdh.PrivateKey / *ecdh.PublicKey.
//
// ML-DSA keys are excluded: the AKP priv field is the generation seed,
// which an expanded private key no longer carries. Use GenerateAKP or
// ParseKey for AKP keys.
func FromRaw(raw any, opts ...KeyOption) (Key, error) {
	switch r := raw.(type) {
	case []byte:
		s := NewStorage()
		s.SetString(FieldKeyType, jwa.Oct.String())
		s.SetBytes(FieldK, r)
		return newSymmetricKey(s, opts...)

	case *rsa.PrivateKey:
		s, err := storageFromRSAPrivate(r)
		if err != nil {
			return nil, err
		}
		return newRSAKey(s, opts...)

	case *rsa.PublicKey:
		return newRSAKey(storageFromRSAPublic(r), opts...)

	case *ecdsa.PrivateKey:
		crv, err := curveToJWA(r.Curve.Params().Name)
		if err != nil {
			return nil, err
		}
		return newECKey(storageFromECPrivate(crv, r), opts...)

	case *ecdsa.PublicKey:
		crv, err := curveToJWA(r.Curve.Params().Name)
		if err != nil {
			return nil, err
		}
		return newECKey(storageFromECPublic(crv, r), opts...)

	case ed25519.PrivateKey:
		if len(r) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: Ed25519 private key must be %d bytes", types.ErrIncorrectKeySize, ed25519.PrivateKeySize)
		}
		s := NewStorage()
		s.SetString(FieldKeyType, jwa.OKP.String())
		s.SetString(FieldCurve, jwa.Ed25519.String())
		s.SetBytes(FieldX, r.Public().(ed25519.PublicKey))
		s.SetBytes(FieldD, r.Seed())
		return newOKPKey(s, opts...)

	case ed25519.PublicKey:
		if len(r) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: Ed25519 public key must be %d bytes", types.ErrIncorrectKeySize, ed25519.PublicKeySize)
		}
		s := NewStorage()
		s.SetString(FieldKeyType, jwa.OKP.String())
		s.SetString(FieldCurve, jwa.Ed25519.String())
		s.SetBytes(FieldX, r)
		return newOKPKey(s, opts...)

	case *ecdh.PrivateKey:
		if r.Curve() != ecdh.X25519() {
			return nil, fmt.Errorf("%w: only X25519 ecdh keys are supported; use an ecdsa key for NIST curves", types.ErrUnknownKeyType)
		}
		s := NewStorage()
		s.SetString(FieldKeyType, jwa.OKP.String())
		s.SetString(FieldCurve, jwa.X25519.String())
		s.SetBytes(FieldX, r.PublicKey().Bytes())
		s.SetBytes(FieldD, r.Bytes())
		return newOKPKey(s, opts...)

	case *ecdh.PublicKey:
		if r.Curve() != ecdh.X25519() {
			return nil, fmt.Errorf("%w: only X25519 ecdh keys are supported; use an ecdsa key for NIST curves", types.ErrUnknownKeyType)
		}
		s := NewStorage()
		s.SetString(FieldKeyType, jwa.OKP.String())
		s.SetString(FieldCurve, jwa.X25519.String())
		s.SetBytes(FieldX, r.Bytes())
		return newOKPKey(s, opts...)

	default:
		return nil, fmt.Errorf("%w: unsupported raw key type %T", types.ErrUnknownKeyType, raw)
	}
}

// curveToJWA maps an elliptic.Curve parameter name to the JWK crv
// identifier.
func curveToJWA(name string) (jwa.EllipticCurve, error) {
	switch name {
	case "P-256":
		return jwa.P256, nil
	case "P-384":
		return jwa.P384, nil
	case "P-521":
		return jwa.P521, nil
	case "secp256k1":
		return jwa.Secp256k1, nil
	default:
		return "", fmt.Errorf("%w: curve %q", types.ErrUnknownKeyType, name)
	}
}
