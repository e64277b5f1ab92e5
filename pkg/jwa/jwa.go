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

// Package jwa implements the JSON Web Algorithms (JWA) registry as defined
// in RFC 7518 and the IANA JOSE registries.
//
// Algorithm identifiers are opaque, whitespace-trimmed string newtypes.
// Constructing an identifier never fails; resolving it against a registry
// may yield "unknown". Three parallel registries exist for signature,
// key-management, and content-encryption algorithms because the same short
// identifier may be meaningful in one family and meaningless in another
// (e.g. "A128GCM" is a content-encryption algorithm while "A128GCMKW" is a
// key-management algorithm). Smaller registries track hash algorithms,
// compression algorithms, and elliptic curves.
//
// The registries are explicitly constructed, injectable objects guarded by
// a readers-writer lock. The package-level default set is populated once
// with the RFC-registered algorithms and remains mutable for the process
// lifetime via Register.
package jwa

import "strings"

// =============================================================================
// Algorithm Identifier Newtypes
// =============================================================================
// One newtype per algorithm family. Equality is value-based on the trimmed
// string; identifiers are case-sensitive ASCII exactly as registered with
// IANA.

// SignatureAlgorithm identifies a JWS signature or MAC algorithm ("alg").
type SignatureAlgorithm string

// NewSignatureAlgorithm creates a SignatureAlgorithm from a raw string,
// trimming surrounding whitespace. It never fails; unknown identifiers are
// detected at resolution time.
func NewSignatureAlgorithm(s string) SignatureAlgorithm {
	return SignatureAlgorithm(strings.TrimSpace(s))
}

// String returns the string representation.
func (a SignatureAlgorithm) String() string {
	return string(a)
}

// IsEmpty returns true if the identifier is the empty string.
func (a SignatureAlgorithm) IsEmpty() bool {
	return a == ""
}

// KeyManagementAlgorithm identifies a JWE key management algorithm ("alg").
type KeyManagementAlgorithm string

// NewKeyManagementAlgorithm creates a KeyManagementAlgorithm from a raw
// string, trimming surrounding whitespace.
func NewKeyManagementAlgorithm(s string) KeyManagementAlgorithm {
	return KeyManagementAlgorithm(strings.TrimSpace(s))
}

// String returns the string representation.
func (a KeyManagementAlgorithm) String() string {
	return string(a)
}

// IsEmpty returns true if the identifier is the empty string.
func (a KeyManagementAlgorithm) IsEmpty() bool {
	return a == ""
}

// ContentEncryptionAlgorithm identifies a JWE content encryption
// algorithm ("enc").
type ContentEncryptionAlgorithm string

// NewContentEncryptionAlgorithm creates a ContentEncryptionAlgorithm from a
// raw string, trimming surrounding whitespace.
func NewContentEncryptionAlgorithm(s string) ContentEncryptionAlgorithm {
	return ContentEncryptionAlgorithm(strings.TrimSpace(s))
}

// String returns the string representation.
func (a ContentEncryptionAlgorithm) String() string {
	return string(a)
}

// IsEmpty returns true if the identifier is the empty string.
func (a ContentEncryptionAlgorithm) IsEmpty() bool {
	return a == ""
}

// CompressionAlgorithm identifies a JWE compression algorithm ("zip").
type CompressionAlgorithm string

// NewCompressionAlgorithm creates a CompressionAlgorithm from a raw string,
// trimming surrounding whitespace.
func NewCompressionAlgorithm(s string) CompressionAlgorithm {
	return CompressionAlgorithm(strings.TrimSpace(s))
}

// String returns the string representation.
func (a CompressionAlgorithm) String() string {
	return string(a)
}

// HashAlgorithm identifies a named hash function, e.g. for RFC 7638
// thumbprint computation.
type HashAlgorithm string

// NewHashAlgorithm creates a HashAlgorithm from a raw string, trimming
// surrounding whitespace.
func NewHashAlgorithm(s string) HashAlgorithm {
	return HashAlgorithm(strings.TrimSpace(s))
}

// String returns the string representation.
func (a HashAlgorithm) String() string {
	return string(a)
}

// KeyType identifies a JWK key type ("kty") per RFC 7517.
type KeyType string

// NewKeyType creates a KeyType from a raw string, trimming surrounding
// whitespace.
func NewKeyType(s string) KeyType {
	return KeyType(strings.TrimSpace(s))
}

// String returns the string representation.
func (k KeyType) String() string {
	return string(k)
}

// EllipticCurve identifies a JWK curve ("crv") per RFC 7518 and RFC 8037.
type EllipticCurve string

// NewEllipticCurve creates an EllipticCurve from a raw string, trimming
// surrounding whitespace.
func NewEllipticCurve(s string) EllipticCurve {
	return EllipticCurve(strings.TrimSpace(s))
}

// String returns the string representation.
func (c EllipticCurve) String() string {
	return string(c)
}

// =============================================================================
// IANA-Registered Identifiers
// =============================================================================

// Signature algorithms (RFC 7518 Section 3.1, RFC 8037, RFC 8812,
// draft-ietf-cose-dilithium for ML-DSA).
const (
	HS256  SignatureAlgorithm = "HS256"
	HS384  SignatureAlgorithm = "HS384"
	HS512  SignatureAlgorithm = "HS512"
	RS256  SignatureAlgorithm = "RS256"
	RS384  SignatureAlgorithm = "RS384"
	RS512  SignatureAlgorithm = "RS512"
	ES256  SignatureAlgorithm = "ES256"
	ES384  SignatureAlgorithm = "ES384"
	ES512  SignatureAlgorithm = "ES512"
	ES256K SignatureAlgorithm = "ES256K"
	PS256  SignatureAlgorithm = "PS256"
	PS384  SignatureAlgorithm = "PS384"
	PS512  SignatureAlgorithm = "PS512"
	EdDSA  SignatureAlgorithm = "EdDSA"

	MLDSA44 SignatureAlgorithm = "ML-DSA-44"
	MLDSA65 SignatureAlgorithm = "ML-DSA-65"
	MLDSA87 SignatureAlgorithm = "ML-DSA-87"
)

// Key management algorithms (RFC 7518 Section 4.1, draft-ietf-jose-hpke-encrypt).
const (
	RSA1_5       KeyManagementAlgorithm = "RSA1_5"
	RSAOAEP      KeyManagementAlgorithm = "RSA-OAEP"
	RSAOAEP256   KeyManagementAlgorithm = "RSA-OAEP-256"
	RSAOAEP384   KeyManagementAlgorithm = "RSA-OAEP-384"
	RSAOAEP512   KeyManagementAlgorithm = "RSA-OAEP-512"
	A128KW       KeyManagementAlgorithm = "A128KW"
	A192KW       KeyManagementAlgorithm = "A192KW"
	A256KW       KeyManagementAlgorithm = "A256KW"
	Direct       KeyManagementAlgorithm = "dir"
	ECDHES       KeyManagementAlgorithm = "ECDH-ES"
	ECDHESA128KW KeyManagementAlgorithm = "ECDH-ES+A128KW"
	ECDHESA192KW KeyManagementAlgorithm = "ECDH-ES+A192KW"
	ECDHESA256KW KeyManagementAlgorithm = "ECDH-ES+A256KW"
	A128GCMKW    KeyManagementAlgorithm = "A128GCMKW"
	A192GCMKW    KeyManagementAlgorithm = "A192GCMKW"
	A256GCMKW    KeyManagementAlgorithm = "A256GCMKW"
	PBES2HS256   KeyManagementAlgorithm = "PBES2-HS256+A128KW"
	PBES2HS384   KeyManagementAlgorithm = "PBES2-HS384+A192KW"
	PBES2HS512   KeyManagementAlgorithm = "PBES2-HS512+A256KW"

	HPKEP256SHA256A128GCM   KeyManagementAlgorithm = "HPKE-P256-SHA256-A128GCM"
	HPKEP384SHA384A256GCM   KeyManagementAlgorithm = "HPKE-P384-SHA384-A256GCM"
	HPKEP521SHA512A256GCM   KeyManagementAlgorithm = "HPKE-P521-SHA512-A256GCM"
	HPKEX25519SHA256A128GCM KeyManagementAlgorithm = "HPKE-X25519-SHA256-A128GCM"
	HPKEX25519SHA256C20P    KeyManagementAlgorithm = "HPKE-X25519-SHA256-ChaCha20Poly1305"
)

// Content encryption algorithms (RFC 7518 Section 5.1,
// draft-amringer-jose-chacha for the ChaCha20-Poly1305 suites).
const (
	A128CBCHS256 ContentEncryptionAlgorithm = "A128CBC-HS256"
	A192CBCHS384 ContentEncryptionAlgorithm = "A192CBC-HS384"
	A256CBCHS512 ContentEncryptionAlgorithm = "A256CBC-HS512"
	A128GCM      ContentEncryptionAlgorithm = "A128GCM"
	A192GCM      ContentEncryptionAlgorithm = "A192GCM"
	A256GCM      ContentEncryptionAlgorithm = "A256GCM"
	C20P         ContentEncryptionAlgorithm = "C20P"
	XC20P        ContentEncryptionAlgorithm = "XC20P"
)

// Compression algorithms (RFC 7516 Section 4.1.3).
const (
	Deflate CompressionAlgorithm = "DEF"
)

// Hash algorithms. Names follow RFC 6920 / IANA "Named Information Hash
// Algorithm" conventions where registered; BLAKE2 names follow RFC 7693.
const (
	SHA1       HashAlgorithm = "SHA-1"
	SHA256     HashAlgorithm = "SHA-256"
	SHA384     HashAlgorithm = "SHA-384"
	SHA512     HashAlgorithm = "SHA-512"
	SHA3_256   HashAlgorithm = "SHA3-256"
	SHA3_384   HashAlgorithm = "SHA3-384"
	SHA3_512   HashAlgorithm = "SHA3-512"
	BLAKE2b256 HashAlgorithm = "BLAKE2b-256"
	BLAKE2b512 HashAlgorithm = "BLAKE2b-512"
	BLAKE2s256 HashAlgorithm = "BLAKE2s-256"
)

// Key types (RFC 7518 Section 6.1, RFC 8037, draft-ietf-cose-dilithium).
const (
	EC  KeyType = "EC"
	RSA KeyType = "RSA"
	Oct KeyType = "oct"
	OKP KeyType = "OKP"
	AKP KeyType = "AKP"
)

// Elliptic curves (RFC 7518 Section 6.2.1.1, RFC 8037, RFC 8812).
const (
	P256      EllipticCurve = "P-256"
	P384      EllipticCurve = "P-384"
	P521      EllipticCurve = "P-521"
	Secp256k1 EllipticCurve = "secp256k1"
	Ed25519   EllipticCurve = "Ed25519"
	X25519    EllipticCurve = "X25519"
)
