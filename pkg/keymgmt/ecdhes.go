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
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/crypto/aeskw"
	"github.com/jeremyhahn/go-josekit/pkg/crypto/concatkdf"
	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// ecdhesKeySizes maps the wrapping variants to their derived KEK size.
// The bare ECDH-ES entry is absent: its derived key length comes from
// the content encryption algorithm.
var ecdhesKeySizes = map[jwa.KeyManagementAlgorithm]int{
	jwa.ECDHESA128KW: 16,
	jwa.ECDHESA192KW: 24,
	jwa.ECDHESA256KW: 32,
}

// registerECDHES binds ECDH-ES direct agreement and the ECDH-ES+A*KW
// wrapping variants (RFC 7518 Section 4.6). The Concat KDF always runs
// over SHA-256. The closures capture r so that content encryption and
// hash lookups resolve against the registry they were bound into, never
// the process default.
func registerECDHES(r *jwa.Registry) {
	produce := func(h jwa.Header, alg jwa.KeyManagementAlgorithm, kek any, enc jwa.ContentEncryptionAlgorithm, cek *[]byte) ([]byte, error) {
		return produceECDHES(r, h, alg, kek, enc, cek)
	}
	consume := func(h jwa.Header, kek any, encryptedKey []byte, cek *[]byte) error {
		return consumeECDHES(r, h, kek, encryptedKey, cek)
	}

	r.RegisterKeyManagement(jwa.ECDHES, jwa.KeyManagementMetadata{
		KeyType: jwa.EC,
		Hash:    jwa.SHA256,
		Produce: produce,
		Consume: consume,
	})
	for alg, size := range ecdhesKeySizes {
		r.RegisterKeyManagement(alg, jwa.KeyManagementMetadata{
			KeyType: jwa.EC,
			Hash:    jwa.SHA256,
			KeySize: size,
			Produce: produce,
			Consume: consume,
		})
	}
}

// produceECDHES generates an ephemeral key on the recipient's curve,
// agrees, and derives either the CEK (bare ECDH-ES) or an AES-KW
// wrapping key (ECDH-ES+A*KW). The ephemeral public key is recorded in
// the epk header field. A header-supplied private epk is reused so
// re-encryption is reproducible.
func produceECDHES(r *jwa.Registry, h jwa.Header, alg jwa.KeyManagementAlgorithm, kek any, enc jwa.ContentEncryptionAlgorithm, cek *[]byte) ([]byte, error) {
	recipient, ok := kek.(jwk.Key)
	if !ok || kek == nil {
		return nil, fmt.Errorf("%w: ECDH-ES requires a recipient key", types.ErrKeyNotFound)
	}

	ephemeral, err := ephemeralFor(h, recipient)
	if err != nil {
		return nil, err
	}

	deriver, ok := ephemeral.(jwk.SharedSecretDeriver)
	if !ok {
		return nil, fmt.Errorf("%w: %s keys cannot perform key agreement", types.ErrOperationNotAllowed, ephemeral.KeyType())
	}
	peer := recipient
	if recipient.IsPrivate() {
		if peer, err = recipient.PublicKey(); err != nil {
			return nil, err
		}
	}
	z, err := deriver.DeriveSharedSecret(peer)
	if err != nil {
		return nil, err
	}

	derived, err := deriveAgreementKey(r, h, alg, enc, z)
	if err != nil {
		return nil, err
	}

	if alg == jwa.ECDHES {
		*cek = derived
		return nil, nil
	}
	return aeskw.Wrap(derived, *cek)
}

// consumeECDHES agrees between the static private key and the header
// ephemeral key, then derives the CEK directly or unwraps it. A curve
// mismatch between the two regenerates the static key on the ephemeral
// key's curve — recorded under the regen_epk header field — rather than
// reusing a key across curves.
func consumeECDHES(r *jwa.Registry, h jwa.Header, kek any, encryptedKey []byte, cek *[]byte) error {
	alg, err := headerAlg(h)
	if err != nil {
		return err
	}
	static, ok := kek.(jwk.Key)
	if !ok || kek == nil {
		return fmt.Errorf("%w: ECDH-ES requires the static private key", types.ErrKeyNotFound)
	}
	if !static.IsPrivate() {
		return fmt.Errorf("%w: ECDH-ES decryption requires a private key", types.ErrOperationNotAllowed)
	}

	epk, ok, err := headerKey(h, HeaderEPK)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: header has no epk field", types.ErrInvalidKeyFormat)
	}

	static, err = matchEphemeralCurve(h, static, epk)
	if err != nil {
		return err
	}

	deriver, ok := static.(jwk.SharedSecretDeriver)
	if !ok {
		return fmt.Errorf("%w: %s keys cannot perform key agreement", types.ErrOperationNotAllowed, static.KeyType())
	}
	z, err := deriver.DeriveSharedSecret(epk)
	if err != nil {
		return err
	}

	enc, err := headerEnc(h)
	if err != nil {
		return err
	}
	derived, err := deriveAgreementKey(r, h, alg, enc, z)
	if err != nil {
		return err
	}

	if alg == jwa.ECDHES {
		if len(encryptedKey) != 0 {
			return fmt.Errorf("%w: ECDH-ES carries no encrypted key", types.ErrInvalidKeyFormat)
		}
		*cek = derived
		return nil
	}
	unwrapped, err := aeskw.Unwrap(derived, encryptedKey)
	if err != nil {
		return err
	}
	*cek = unwrapped
	return nil
}

// deriveAgreementKey runs the Concat KDF over the shared secret. For
// bare ECDH-ES the algorithm ID and key length come from the content
// encryption algorithm; for the wrapping variants they come from the key
// management algorithm itself.
func deriveAgreementKey(r *jwa.Registry, h jwa.Header, alg jwa.KeyManagementAlgorithm, enc jwa.ContentEncryptionAlgorithm, z []byte) ([]byte, error) {
	var algID []byte
	var keyLen int
	if alg == jwa.ECDHES {
		meta, ok := r.ResolveContentEncryption(enc)
		if !ok {
			return nil, fmt.Errorf("%w: content encryption %q", types.ErrUnknownAlgorithm, enc)
		}
		algID = []byte(enc.String())
		keyLen = meta.KeySize
	} else {
		size, ok := ecdhesKeySizes[alg]
		if !ok {
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownAlgorithm, alg)
		}
		algID = []byte(alg.String())
		keyLen = size
	}

	hashMeta, ok := r.ResolveHash(jwa.SHA256)
	if !ok {
		return nil, fmt.Errorf("%w: hash %q", types.ErrUnknownAlgorithm, jwa.SHA256)
	}

	apu, _, err := headerBytes(h, HeaderAPU)
	if err != nil {
		return nil, err
	}
	apv, _, err := headerBytes(h, HeaderAPV)
	if err != nil {
		return nil, err
	}
	return concatkdf.Derive(hashMeta.New, z, keyLen, algID, apu, apv)
}

// ephemeralFor returns the ephemeral private key for the encrypting
// path: a private header epk when present, otherwise a fresh key on the
// recipient's curve whose public part is recorded in the header.
func ephemeralFor(h jwa.Header, recipient jwk.Key) (jwk.Key, error) {
	if existing, ok, err := headerKey(h, HeaderEPK); err != nil {
		return nil, err
	} else if ok && existing.IsPrivate() {
		return existing, nil
	}

	ephemeral, err := generateOnCurveOf(recipient)
	if err != nil {
		return nil, err
	}
	pub, err := ephemeral.PublicKey()
	if err != nil {
		return nil, err
	}
	if err := setHeaderKey(h, HeaderEPK, pub); err != nil {
		return nil, err
	}
	return ephemeral, nil
}

// matchEphemeralCurve returns the static key unchanged when its curve
// matches the ephemeral key's, and otherwise regenerates it on the
// ephemeral curve, recording the replacement public key in the header.
func matchEphemeralCurve(h jwa.Header, static, epk jwk.Key) (jwk.Key, error) {
	staticCrv, err := agreementCurve(static)
	if err != nil {
		return nil, err
	}
	epkCrv, err := agreementCurve(epk)
	if err != nil {
		return nil, err
	}
	if staticCrv == epkCrv {
		return static, nil
	}

	regenerated, err := generateOnCurveOf(epk)
	if err != nil {
		return nil, err
	}
	pub, err := regenerated.PublicKey()
	if err != nil {
		return nil, err
	}
	if err := setHeaderKey(h, HeaderRegeneratedEPK, pub); err != nil {
		return nil, err
	}
	return regenerated, nil
}

func agreementCurve(key jwk.Key) (jwa.EllipticCurve, error) {
	switch k := key.(type) {
	case *jwk.ECKey:
		return k.Curve(), nil
	case *jwk.OKPKey:
		if k.Curve() != jwa.X25519 {
			return "", fmt.Errorf("%w: OKP curve %s cannot perform key agreement", types.ErrOperationNotAllowed, k.Curve())
		}
		return jwa.X25519, nil
	default:
		return "", fmt.Errorf("%w: %s keys cannot perform key agreement", types.ErrOperationNotAllowed, key.KeyType())
	}
}

func generateOnCurveOf(key jwk.Key) (jwk.Key, error) {
	crv, err := agreementCurve(key)
	if err != nil {
		return nil, err
	}
	if crv == jwa.X25519 {
		return jwk.GenerateOKP(jwa.X25519)
	}
	return jwk.GenerateEC(crv)
}
