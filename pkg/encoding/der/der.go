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

// Package der bridges DER key and algorithm structures to the JOSE data
// model: AlgorithmIdentifier round-trips against JOSE identifiers, and
// keys import/export as SPKI, PKCS#8 (optionally password-encrypted),
// SEC1, and raw/X9.63/compressed point encodings.
//
// Encoding rule: the RSA family emits explicit NULL parameters; EC,
// EdDSA and ML-DSA omit parameters entirely. This is a per-family
// branch, not a global default — mixing the two conventions is the most
// common interop defect in DER producers.
package der

import (
	"bytes"
	"encoding/asn1"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// AlgorithmIdentifier is the DER AlgorithmIdentifier structure: an OID
// plus optional parameters. Equality is value equality of the DER
// encoding, never pointer identity.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// asn1NullBytes is the DER encoding of NULL, the parameter value the RSA
// family requires.
var asn1NullBytes = []byte{0x05, 0x00}

// NewRSAAlgorithmIdentifier builds an identifier with explicit NULL
// parameters, as the RSA family requires.
func NewRSAAlgorithmIdentifier(oid asn1.ObjectIdentifier) AlgorithmIdentifier {
	return AlgorithmIdentifier{
		Algorithm:  oid,
		Parameters: asn1.RawValue{FullBytes: asn1NullBytes},
	}
}

// NewAlgorithmIdentifier builds an identifier with absent parameters,
// as EC, EdDSA and ML-DSA require.
func NewAlgorithmIdentifier(oid asn1.ObjectIdentifier) AlgorithmIdentifier {
	return AlgorithmIdentifier{Algorithm: oid}
}

// Encode returns the DER encoding of the identifier. The encoding is the
// registry key: two identifiers are the same algorithm exactly when
// their encodings are byte-equal.
func (ai AlgorithmIdentifier) Encode() ([]byte, error) {
	return asn1.Marshal(ai)
}

// Equal reports DER value equality.
func (ai AlgorithmIdentifier) Equal(other AlgorithmIdentifier) bool {
	a, errA := ai.Encode()
	b, errB := other.Encode()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// OIDRegistry maps DER AlgorithmIdentifier values to JOSE identifiers
// and back. It is safe for concurrent use; registration overwrites both
// directions (last writer wins).
type OIDRegistry struct {
	mu     sync.RWMutex
	byDER  map[string]string
	byJOSE map[string]AlgorithmIdentifier
}

// NewOIDRegistry creates an empty OIDRegistry.
func NewOIDRegistry() *OIDRegistry {
	return &OIDRegistry{
		byDER:  make(map[string]string),
		byJOSE: make(map[string]AlgorithmIdentifier),
	}
}

// Register binds an AlgorithmIdentifier to a JOSE identifier in both
// directions.
func (r *OIDRegistry) Register(ai AlgorithmIdentifier, joseID string) error {
	encoded, err := ai.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidKeyFormat, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDER[string(encoded)] = joseID
	r.byJOSE[joseID] = ai
	return nil
}

// ResolveAlgorithm returns the JOSE identifier for a DER
// AlgorithmIdentifier value.
func (r *OIDRegistry) ResolveAlgorithm(ai AlgorithmIdentifier) (string, bool) {
	encoded, err := ai.Encode()
	if err != nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byDER[string(encoded)]
	return id, ok
}

// ResolveIdentifier returns the DER AlgorithmIdentifier for a JOSE
// identifier.
func (r *OIDRegistry) ResolveIdentifier(joseID string) (AlgorithmIdentifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ai, ok := r.byJOSE[joseID]
	return ai, ok
}

// Registered returns the bound JOSE identifiers in map order.
func (r *OIDRegistry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byJOSE))
	for id := range r.byJOSE {
		ids = append(ids, id)
	}
	return ids
}

// Well-known object identifiers.
var (
	oidRSAEncryption   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidRSAESOAEP       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 7}
	oidRSASSAPSS       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	oidSHA256WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSHA384WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	oidSHA512WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	oidECPublicKey     = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	oidECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	oidECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
	oidCurveP256       = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	oidCurveP384       = asn1.ObjectIdentifier{1, 3, 132, 0, 34}
	oidCurveP521       = asn1.ObjectIdentifier{1, 3, 132, 0, 35}
	oidCurveSecp256k1  = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
	oidX25519          = asn1.ObjectIdentifier{1, 3, 101, 110}
	oidEd25519         = asn1.ObjectIdentifier{1, 3, 101, 112}
	oidMLDSA44         = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 17}
	oidMLDSA65         = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 18}
	oidMLDSA87         = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 3, 19}
	oidMLKEM512        = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 4, 1}
	oidMLKEM768        = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 4, 2}
	oidMLKEM1024       = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 4, 3}
)

var (
	defaultOIDOnce     sync.Once
	defaultOIDRegistry *OIDRegistry
)

// DefaultOIDRegistry returns the process-wide OID registry, populated on
// first use with the RSA, ECDSA, EdDSA, curve, ML-DSA and ML-KEM
// bindings.
func DefaultOIDRegistry() *OIDRegistry {
	defaultOIDOnce.Do(func() {
		r := NewOIDRegistry()

		// RSA family: explicit NULL parameters.
		r.Register(NewRSAAlgorithmIdentifier(oidSHA256WithRSA), jwa.RS256.String())
		r.Register(NewRSAAlgorithmIdentifier(oidSHA384WithRSA), jwa.RS384.String())
		r.Register(NewRSAAlgorithmIdentifier(oidSHA512WithRSA), jwa.RS512.String())
		r.Register(NewRSAAlgorithmIdentifier(oidRSAESOAEP), jwa.RSAOAEP.String())
		r.Register(NewRSAAlgorithmIdentifier(oidRSASSAPSS), jwa.PS256.String())
		r.Register(NewRSAAlgorithmIdentifier(oidRSAEncryption), jwa.RSA1_5.String())

		// ECDSA and EdDSA: parameters absent.
		r.Register(NewAlgorithmIdentifier(oidECDSAWithSHA256), jwa.ES256.String())
		r.Register(NewAlgorithmIdentifier(oidECDSAWithSHA384), jwa.ES384.String())
		r.Register(NewAlgorithmIdentifier(oidECDSAWithSHA512), jwa.ES512.String())
		r.Register(NewAlgorithmIdentifier(oidEd25519), jwa.EdDSA.String())

		// Named curves.
		r.Register(NewAlgorithmIdentifier(oidCurveP256), jwa.P256.String())
		r.Register(NewAlgorithmIdentifier(oidCurveP384), jwa.P384.String())
		r.Register(NewAlgorithmIdentifier(oidCurveP521), jwa.P521.String())
		r.Register(NewAlgorithmIdentifier(oidCurveSecp256k1), jwa.Secp256k1.String())
		r.Register(NewAlgorithmIdentifier(oidX25519), jwa.X25519.String())

		// FIPS 203/204 post-quantum schemes: parameters absent.
		r.Register(NewAlgorithmIdentifier(oidMLDSA44), jwa.MLDSA44.String())
		r.Register(NewAlgorithmIdentifier(oidMLDSA65), jwa.MLDSA65.String())
		r.Register(NewAlgorithmIdentifier(oidMLDSA87), jwa.MLDSA87.String())
		r.Register(NewAlgorithmIdentifier(oidMLKEM512), "ML-KEM-512")
		r.Register(NewAlgorithmIdentifier(oidMLKEM768), "ML-KEM-768")
		r.Register(NewAlgorithmIdentifier(oidMLKEM1024), "ML-KEM-1024")

		defaultOIDRegistry = r
	})
	return defaultOIDRegistry
}
