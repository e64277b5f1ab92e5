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

// Package ecdh provides Elliptic Curve Diffie-Hellman key agreement over
// the curves the JOSE core supports: the NIST P-256/P-384/P-521 curves,
// X25519, and secp256k1.
//
// The shared secret is the raw x-coordinate output of the agreement; key
// derivation (Concat KDF for ECDH-ES) is layered on top by the caller.
package ecdh

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// DeriveSharedSecret performs ECDH key agreement between an ECDSA private
// key and an ECDSA public key on the same curve, returning the raw shared
// secret. secp256k1 keys are routed to the dedicated secp256k1 backend;
// NIST curves go through crypto/ecdh.
func DeriveSharedSecret(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	if publicKey == nil {
		return nil, fmt.Errorf("public key cannot be nil")
	}

	if privateKey.Curve != publicKey.Curve {
		return nil, fmt.Errorf("curve mismatch: private key uses %s, public key uses %s",
			privateKey.Curve.Params().Name, publicKey.Curve.Params().Name)
	}

	if privateKey.Curve == secp256k1.S256() {
		return deriveSecp256k1(privateKey, publicKey)
	}

	ecdhPriv, err := ECDSAToECDH(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}

	ecdhPub, err := ECDSAPublicToECDH(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert public key: %w", err)
	}

	sharedSecret, err := ecdhPriv.ECDH(ecdhPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH operation failed: %w", err)
	}

	return sharedSecret, nil
}

// DeriveSharedSecretX25519 performs X25519 key agreement.
func DeriveSharedSecretX25519(privateKey *ecdh.PrivateKey, publicKey *ecdh.PublicKey) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	if publicKey == nil {
		return nil, fmt.Errorf("public key cannot be nil")
	}
	if privateKey.Curve() != ecdh.X25519() || publicKey.Curve() != ecdh.X25519() {
		return nil, fmt.Errorf("both keys must be X25519 keys")
	}

	sharedSecret, err := privateKey.ECDH(publicKey)
	if err != nil {
		return nil, fmt.Errorf("X25519 operation failed: %w", err)
	}
	return sharedSecret, nil
}

// deriveSecp256k1 performs key agreement on the secp256k1 curve. The
// decred implementation returns the 32-byte x coordinate, matching the
// NIST-curve output convention.
func deriveSecp256k1(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey) ([]byte, error) {
	priv := secp256k1.PrivKeyFromBytes(paddedBytes(privateKey.D.Bytes(), 32))

	raw := make([]byte, 0, 65)
	raw = append(raw, 0x04)
	raw = append(raw, paddedBytes(publicKey.X.Bytes(), 32)...)
	raw = append(raw, paddedBytes(publicKey.Y.Bytes(), 32)...)
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 public key: %w", err)
	}

	return secp256k1.GenerateSharedSecret(priv, pub), nil
}

// ECDSAToECDH converts an ECDSA private key on a NIST curve to a
// crypto/ecdh private key.
func ECDSAToECDH(key *ecdsa.PrivateKey) (*ecdh.PrivateKey, error) {
	curve, err := CurveToECDH(key.Curve)
	if err != nil {
		return nil, err
	}

	curveByteLen := (key.Curve.Params().BitSize + 7) / 8
	return curve.NewPrivateKey(paddedBytes(key.D.Bytes(), curveByteLen))
}

// ECDSAPublicToECDH converts an ECDSA public key on a NIST curve to a
// crypto/ecdh public key.
func ECDSAPublicToECDH(key *ecdsa.PublicKey) (*ecdh.PublicKey, error) {
	curve, err := CurveToECDH(key.Curve)
	if err != nil {
		return nil, err
	}

	keyBytes := elliptic.Marshal(key.Curve, key.X, key.Y) //nolint:staticcheck // SA1019: uncompressed point form is the ecdh.NewPublicKey input format
	return curve.NewPublicKey(keyBytes)
}

// CurveToECDH maps elliptic.Curve to ecdh.Curve.
func CurveToECDH(curve elliptic.Curve) (ecdh.Curve, error) {
	switch curve.Params().Name {
	case "P-256":
		return ecdh.P256(), nil
	case "P-384":
		return ecdh.P384(), nil
	case "P-521":
		return ecdh.P521(), nil
	default:
		return nil, fmt.Errorf("unsupported curve: %s", curve.Params().Name)
	}
}

// paddedBytes left-pads b with zeros to size bytes. Coordinate and scalar
// encodings are fixed-width; math/big strips leading zeros.
func paddedBytes(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}
