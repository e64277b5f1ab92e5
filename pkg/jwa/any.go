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

// AlgorithmFamily classifies a resolved algorithm identifier.
type AlgorithmFamily int

const (
	// FamilyUnknown marks an identifier that resolved against no registry.
	FamilyUnknown AlgorithmFamily = iota

	// FamilySignature marks a JWS signature or MAC algorithm.
	FamilySignature

	// FamilyKeyManagement marks a JWE key management algorithm.
	FamilyKeyManagement

	// FamilyContentEncryption marks a JWE content encryption algorithm.
	FamilyContentEncryption
)

// String returns the family name.
func (f AlgorithmFamily) String() string {
	switch f {
	case FamilySignature:
		return "signature"
	case FamilyKeyManagement:
		return "key management"
	case FamilyContentEncryption:
		return "content encryption"
	default:
		return "unknown"
	}
}

// AnyAlgorithm is the result of resolving a raw identifier against all
// three algorithm families. Unknown identifiers are not errors; the value
// still carries the raw string so callers can round-trip headers they do
// not understand.
type AnyAlgorithm struct {
	family AlgorithmFamily
	raw    string
}

// ResolveAny resolves a raw identifier by trying the signature,
// key-management, and content-encryption registries in that fixed order.
// The first registry containing the identifier determines the family; if
// none does, the result has FamilyUnknown.
func (r *Registry) ResolveAny(raw string) AnyAlgorithm {
	trimmed := NewSignatureAlgorithm(raw)
	if _, ok := r.ResolveSignature(trimmed); ok {
		return AnyAlgorithm{family: FamilySignature, raw: trimmed.String()}
	}
	if _, ok := r.ResolveKeyManagement(KeyManagementAlgorithm(trimmed)); ok {
		return AnyAlgorithm{family: FamilyKeyManagement, raw: trimmed.String()}
	}
	if _, ok := r.ResolveContentEncryption(ContentEncryptionAlgorithm(trimmed)); ok {
		return AnyAlgorithm{family: FamilyContentEncryption, raw: trimmed.String()}
	}
	return AnyAlgorithm{family: FamilyUnknown, raw: trimmed.String()}
}

// Family returns the algorithm family the identifier resolved to.
func (a AnyAlgorithm) Family() AlgorithmFamily {
	return a.family
}

// String returns the raw identifier string, known or not.
func (a AnyAlgorithm) String() string {
	return a.raw
}

// Signature returns the identifier as a SignatureAlgorithm if it resolved
// to the signature family.
func (a AnyAlgorithm) Signature() (SignatureAlgorithm, bool) {
	if a.family != FamilySignature {
		return "", false
	}
	return SignatureAlgorithm(a.raw), true
}

// KeyManagement returns the identifier as a KeyManagementAlgorithm if it
// resolved to the key management family.
func (a AnyAlgorithm) KeyManagement() (KeyManagementAlgorithm, bool) {
	if a.family != FamilyKeyManagement {
		return "", false
	}
	return KeyManagementAlgorithm(a.raw), true
}

// ContentEncryption returns the identifier as a
// ContentEncryptionAlgorithm if it resolved to the content encryption
// family.
func (a AnyAlgorithm) ContentEncryption() (ContentEncryptionAlgorithm, bool) {
	if a.family != FamilyContentEncryption {
		return "", false
	}
	return ContentEncryptionAlgorithm(a.raw), true
}
