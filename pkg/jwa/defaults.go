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

package jwa

// registerDefaults populates a registry with the RFC-registered algorithm
// sets. Key management entries carry metadata only; the keymgmt package
// attaches the handler closures through OnDefaultRegistry, so resolution
// (key types, key sizes, AnyAlgorithm family probing) works without it
// being linked.
func registerDefaults(r *Registry) {
	// Signature algorithms (RFC 7518 Section 3.1). The digest is carried
	// in the metadata, never hard-coded per key type, so one key type
	// serves multiple digest sizes.
	sigs := map[SignatureAlgorithm]SignatureMetadata{
		HS256:  {KeyType: Oct, Hash: SHA256},
		HS384:  {KeyType: Oct, Hash: SHA384},
		HS512:  {KeyType: Oct, Hash: SHA512},
		RS256:  {KeyType: RSA, Hash: SHA256},
		RS384:  {KeyType: RSA, Hash: SHA384},
		RS512:  {KeyType: RSA, Hash: SHA512},
		PS256:  {KeyType: RSA, Hash: SHA256},
		PS384:  {KeyType: RSA, Hash: SHA384},
		PS512:  {KeyType: RSA, Hash: SHA512},
		ES256:  {KeyType: EC, Curve: P256, Hash: SHA256},
		ES384:  {KeyType: EC, Curve: P384, Hash: SHA384},
		ES512:  {KeyType: EC, Curve: P521, Hash: SHA512},
		ES256K: {KeyType: EC, Curve: Secp256k1, Hash: SHA256},

		// EdDSA and ML-DSA sign the message directly; no pre-hash.
		EdDSA:   {KeyType: OKP, Curve: Ed25519},
		MLDSA44: {KeyType: AKP},
		MLDSA65: {KeyType: AKP},
		MLDSA87: {KeyType: AKP},
	}
	for alg, meta := range sigs {
		r.RegisterSignature(alg, meta)
	}

	// Key management algorithms (RFC 7518 Section 4,
	// draft-ietf-jose-hpke-encrypt). Metadata only: Produce/Consume
	// closures are bound by the keymgmt package, which re-registers each
	// entry with the same metadata plus its handlers.
	kms := map[KeyManagementAlgorithm]KeyManagementMetadata{
		Direct: {KeyType: Oct},

		A128KW: {KeyType: Oct, KeySize: 16},
		A192KW: {KeyType: Oct, KeySize: 24},
		A256KW: {KeyType: Oct, KeySize: 32},

		A128GCMKW: {KeyType: Oct, KeySize: 16},
		A192GCMKW: {KeyType: Oct, KeySize: 24},
		A256GCMKW: {KeyType: Oct, KeySize: 32},

		PBES2HS256: {KeyType: Oct, Hash: SHA256, KeySize: 16},
		PBES2HS384: {KeyType: Oct, Hash: SHA384, KeySize: 24},
		PBES2HS512: {KeyType: Oct, Hash: SHA512, KeySize: 32},

		ECDHES:       {KeyType: EC, Hash: SHA256},
		ECDHESA128KW: {KeyType: EC, Hash: SHA256, KeySize: 16},
		ECDHESA192KW: {KeyType: EC, Hash: SHA256, KeySize: 24},
		ECDHESA256KW: {KeyType: EC, Hash: SHA256, KeySize: 32},

		RSA1_5:     {KeyType: RSA},
		RSAOAEP:    {KeyType: RSA, Hash: SHA1},
		RSAOAEP256: {KeyType: RSA, Hash: SHA256},
		RSAOAEP384: {KeyType: RSA, Hash: SHA384},
		RSAOAEP512: {KeyType: RSA, Hash: SHA512},

		HPKEP256SHA256A128GCM:   {KeyType: EC, Curve: P256},
		HPKEP384SHA384A256GCM:   {KeyType: EC, Curve: P384},
		HPKEP521SHA512A256GCM:   {KeyType: EC, Curve: P521},
		HPKEX25519SHA256A128GCM: {KeyType: OKP, Curve: X25519},
		HPKEX25519SHA256C20P:    {KeyType: OKP, Curve: X25519},
	}
	for alg, meta := range kms {
		r.RegisterKeyManagement(alg, meta)
	}

	// Content encryption algorithms (RFC 7518 Section 5.1).
	encs := map[ContentEncryptionAlgorithm]ContentEncryptionMetadata{
		A128GCM:      {KeySize: 16, IVSize: 12, TagSize: 16},
		A192GCM:      {KeySize: 24, IVSize: 12, TagSize: 16},
		A256GCM:      {KeySize: 32, IVSize: 12, TagSize: 16},
		A128CBCHS256: {KeySize: 32, IVSize: 16, TagSize: 16},
		A192CBCHS384: {KeySize: 48, IVSize: 16, TagSize: 24},
		A256CBCHS512: {KeySize: 64, IVSize: 16, TagSize: 32},
		C20P:         {KeySize: 32, IVSize: 12, TagSize: 16},
		XC20P:        {KeySize: 32, IVSize: 24, TagSize: 16},
	}
	for alg, meta := range encs {
		r.RegisterContentEncryption(alg, meta)
	}

	// Named hash functions.
	for alg, meta := range defaultHashes() {
		r.RegisterHash(alg, meta)
	}

	// Curves. CoordinateSize drives the raw point length table used by
	// the DER bridge.
	curves := map[EllipticCurve]CurveMetadata{
		P256:      {KeyType: EC, CoordinateSize: 32},
		P384:      {KeyType: EC, CoordinateSize: 48},
		P521:      {KeyType: EC, CoordinateSize: 66},
		Secp256k1: {KeyType: EC, CoordinateSize: 32},
		Ed25519:   {KeyType: OKP, CoordinateSize: 32},
		X25519:    {KeyType: OKP, CoordinateSize: 32},
	}
	for crv, meta := range curves {
		r.RegisterCurve(crv, meta)
	}

	// DEF is the only compression algorithm in the RFC 7516 registry.
	// Codec selection and implementation live outside the core; the entry
	// exists so higher layers can probe support.
	r.RegisterCompression(Deflate, CompressionMetadata{})
}
