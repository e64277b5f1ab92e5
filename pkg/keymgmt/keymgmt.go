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

// Package keymgmt binds the JWE key management algorithms (RFC 7518
// Section 4, draft-ietf-jose-hpke-encrypt) to the algorithm registry.
//
// Each algorithm registers two closures: an encrypted-key producer for
// the encrypting path and a decryption mutator for the decrypting path.
// Producers that mint header state (ephemeral keys, nonces, PBES2 salt
// and iteration count) record it through the header collaborator before
// returning. Nothing here retries: a missing precondition is a typed
// error and the caller decides whether to fail the whole JWE or try the
// next recipient.
//
// Importing this package wires the full algorithm set into the default
// registry; Register binds the same set into an explicitly constructed
// one.
package keymgmt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/jwk"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// JOSE header field names read and written during key management
// (RFC 7516 Section 4.1, RFC 7518 Sections 4.6-4.8).
const (
	HeaderAlg = "alg"
	HeaderEnc = "enc"
	HeaderIV  = "iv"
	HeaderTag = "tag"
	HeaderEPK = "epk"
	HeaderAPU = "apu"
	HeaderAPV = "apv"
	HeaderP2S = "p2s"
	HeaderP2C = "p2c"

	// HeaderRegeneratedEPK is not a registered JOSE field. When an
	// ECDH-ES decryption finds the header ephemeral key on a different
	// curve than the static private key, the static key is regenerated on
	// the ephemeral key's curve and the replacement public key is
	// recorded here so the caller can retrieve it. A key is never reused
	// across curves.
	HeaderRegeneratedEPK = "regen_epk"
)

func init() {
	jwa.OnDefaultRegistry(Register)
}

// Register binds every key management algorithm implemented by this
// package into the registry, replacing any existing entries.
func Register(r *jwa.Registry) {
	registerDirect(r)
	registerAESKW(r)
	registerAESGCMKW(r)
	registerPBES2(r)
	registerECDHES(r)
	registerRSA(r)
	registerHPKE(r)
}

// symmetricKEK coerces the key-encryption key collaborator into a
// symmetric key.
func symmetricKEK(kek any) (*jwk.SymmetricKey, error) {
	switch k := kek.(type) {
	case *jwk.SymmetricKey:
		return k, nil
	case nil:
		return nil, fmt.Errorf("%w: key-encryption key is absent", types.ErrKeyNotFound)
	default:
		return nil, fmt.Errorf("%w: expected a symmetric key-encryption key, got %T", types.ErrOperationNotAllowed, kek)
	}
}

// passwordBytes coerces the PBES2 password collaborator: a symmetric
// key's secret, raw bytes, or a string.
func passwordBytes(kek any) ([]byte, error) {
	switch k := kek.(type) {
	case *jwk.SymmetricKey:
		raw, err := k.Raw()
		if err != nil {
			return nil, err
		}
		return raw.([]byte), nil
	case []byte:
		return k, nil
	case string:
		return []byte(k), nil
	case nil:
		return nil, fmt.Errorf("%w: password is absent", types.ErrKeyNotFound)
	default:
		return nil, fmt.Errorf("%w: expected a password, got %T", types.ErrOperationNotAllowed, kek)
	}
}

// headerAlg reads the key management algorithm from the header; the
// decrypting path has no other source for it.
func headerAlg(h jwa.Header) (jwa.KeyManagementAlgorithm, error) {
	v, ok := h.Get(HeaderAlg)
	if !ok {
		return "", fmt.Errorf("%w: header has no alg field", types.ErrInvalidKeyFormat)
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: header alg is not a string", types.ErrInvalidKeyFormat)
	}
	return jwa.NewKeyManagementAlgorithm(str), nil
}

// headerEnc reads the content encryption algorithm from the header.
func headerEnc(h jwa.Header) (jwa.ContentEncryptionAlgorithm, error) {
	v, ok := h.Get(HeaderEnc)
	if !ok {
		return "", fmt.Errorf("%w: header has no enc field", types.ErrInvalidKeyFormat)
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: header enc is not a string", types.ErrInvalidKeyFormat)
	}
	return jwa.NewContentEncryptionAlgorithm(str), nil
}

// headerBytes reads a base64url (no padding) header field.
func headerBytes(h jwa.Header, name string) ([]byte, bool, error) {
	v, ok := h.Get(name)
	if !ok {
		return nil, false, nil
	}
	str, ok := v.(string)
	if !ok {
		return nil, false, fmt.Errorf("%w: header %q is not a base64url string", types.ErrInvalidKeyFormat, name)
	}
	decoded, err := base64.RawURLEncoding.DecodeString(str)
	if err != nil {
		return nil, false, fmt.Errorf("%w: header %q is not valid base64url: %v", types.ErrInvalidKeyFormat, name, err)
	}
	return decoded, true, nil
}

func setHeaderBytes(h jwa.Header, name string, value []byte) {
	h.Set(name, base64.RawURLEncoding.EncodeToString(value))
}

// headerInt reads an integer header field, tolerating the float64
// representation produced by encoding/json.
func headerInt(h jwa.Header, name string) (int, bool, error) {
	v, ok := h.Get(name)
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		return int(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false, fmt.Errorf("%w: header %q is not an integer: %v", types.ErrInvalidKeyFormat, name, err)
		}
		return int(i), true, nil
	default:
		return 0, false, fmt.Errorf("%w: header %q is not an integer", types.ErrInvalidKeyFormat, name)
	}
}

// headerKey reads a JWK-valued header field (epk).
func headerKey(h jwa.Header, name string, opts ...jwk.KeyOption) (jwk.Key, bool, error) {
	v, ok := h.Get(name)
	if !ok {
		return nil, false, nil
	}
	switch k := v.(type) {
	case jwk.Key:
		return k, true, nil
	case map[string]any:
		key, err := jwk.FromStorage(jwk.FromMap(k), opts...)
		if err != nil {
			return nil, false, err
		}
		return key, true, nil
	case json.RawMessage:
		key, err := jwk.ParseKey(k, opts...)
		if err != nil {
			return nil, false, err
		}
		return key, true, nil
	default:
		return nil, false, fmt.Errorf("%w: header %q is not a JWK", types.ErrInvalidKeyFormat, name)
	}
}

// setHeaderKey records a key's public JWK in the header as a plain map.
func setHeaderKey(h jwa.Header, name string, key jwk.Key) error {
	data, err := key.MarshalJSON()
	if err != nil {
		return err
	}
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	h.Set(name, m)
	return nil
}
