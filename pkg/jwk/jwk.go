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

// Package jwk implements JSON Web Keys (RFC 7517) over a uniform
// key-material data model.
//
// Every key is a pure view over one Storage bag; the key family adapters
// (oct, RSA, EC, OKP, AKP) read the (kty, crv) pair from storage on every
// operation and route to the concrete backend. A public/private key pair
// is two Storage-backed values where the public fields are a strict
// subset of the private fields; the public key is always derivable from
// the private key, never the reverse.
//
// Capability interfaces express what a key can do: Signer/Verifier for
// JWS algorithms, KeyWrapper/KeyUnwrapper for key-encryption algorithms,
// Sealer/Opener for AEAD operations, and SharedSecretDeriver for EC and
// OKP key agreement. Digest selection always comes from the resolved
// algorithm metadata so one key type serves multiple digest sizes.
package jwk

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-josekit/pkg/jwa"
	"github.com/jeremyhahn/go-josekit/pkg/types"
)

// Key is the common interface of all JWK values.
type Key interface {
	json.Marshaler

	// KeyType returns the kty field.
	KeyType() jwa.KeyType

	// Storage returns an immutable snapshot of the key's storage bag.
	Storage() *Storage

	// IsPrivate reports whether the key carries private material.
	IsPrivate() bool

	// PublicKey returns the public view of the key: the same storage with
	// the private fields stripped. Calling it on a public key returns an
	// equivalent copy.
	PublicKey() (Key, error)

	// Raw converts the key to the underlying crypto primitive type
	// (*rsa.PrivateKey, *ecdsa.PublicKey, ed25519.PrivateKey, []byte for
	// oct keys, and so on).
	Raw() (any, error)

	// KeyID returns the kid field, or "".
	KeyID() string

	// SetKeyID sets the kid field.
	SetKeyID(kid string)

	// Algorithm returns the alg field, or "".
	Algorithm() string

	// SetAlgorithm sets the alg field.
	SetAlgorithm(alg string)

	// Use returns the use field, or "".
	Use() string

	// SetUse sets the use field.
	SetUse(use string)
}

// Signer is implemented by keys that can produce JWS signatures or MACs.
type Signer interface {
	// Sign signs data with the given algorithm. The digest, when the
	// algorithm requires one, comes from the resolved algorithm metadata.
	Sign(data []byte, alg jwa.SignatureAlgorithm) ([]byte, error)
}

// Verifier is implemented by keys that can verify JWS signatures or MACs.
type Verifier interface {
	// Verify checks signature over data, returning
	// ErrAuthenticationFailure on mismatch.
	Verify(signature, data []byte, alg jwa.SignatureAlgorithm) error
}

// KeyWrapper is implemented by keys that can encrypt a content-encryption
// key under a key-management algorithm.
type KeyWrapper interface {
	WrapKey(cek []byte, alg jwa.KeyManagementAlgorithm) ([]byte, error)
}

// KeyUnwrapper is implemented by keys that can decrypt an encrypted CEK.
type KeyUnwrapper interface {
	UnwrapKey(encryptedKey []byte, alg jwa.KeyManagementAlgorithm) ([]byte, error)
}

// Sealer is implemented by symmetric keys that can perform AEAD sealing,
// used for content encryption and the AES-GCM key wrap family. The
// returned ciphertext excludes the tag, which JOSE transports separately.
type Sealer interface {
	Seal(plaintext, nonce, aad []byte) (ciphertext, tag []byte, err error)
}

// Opener is the AEAD counterpart of Sealer. The ciphertext and tag are
// passed separately, as JOSE transports them.
type Opener interface {
	Open(ciphertext, tag, nonce, aad []byte) ([]byte, error)
}

// SharedSecretDeriver is implemented by EC and OKP keys that support
// Diffie-Hellman key agreement.
type SharedSecretDeriver interface {
	// DeriveSharedSecret performs key agreement between this (private)
	// key and the peer's public key.
	DeriveSharedSecret(peer Key) ([]byte, error)
}

// KeyOption configures key construction.
type KeyOption func(*keyConfig)

type keyConfig struct {
	registry *jwa.Registry
}

// WithRegistry binds a key to an explicit algorithm registry instead of
// the process default. All capability operations resolve algorithm
// metadata against the bound registry.
func WithRegistry(r *jwa.Registry) KeyOption {
	return func(c *keyConfig) {
		c.registry = r
	}
}

func newKeyConfig(opts []KeyOption) keyConfig {
	var c keyConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// KeyConstructor builds a key family adapter over a storage bag. Third
// parties register constructors for custom key types via
// RegisterKeyFamily.
type KeyConstructor func(s *Storage, opts ...KeyOption) (Key, error)

// keyFamilies is the escape hatch for third-party key types: the built-in
// families dispatch through a closed switch for exhaustiveness, and
// anything else consults this registry.
var keyFamilies = struct {
	table map[jwa.KeyType]KeyConstructor
}{table: make(map[jwa.KeyType]KeyConstructor)}

var keyFamiliesMu sync.RWMutex

// RegisterKeyFamily registers a constructor for a custom kty. Registering
// a built-in kty has no effect: the built-in dispatch path wins.
func RegisterKeyFamily(kty jwa.KeyType, ctor KeyConstructor) {
	keyFamiliesMu.Lock()
	defer keyFamiliesMu.Unlock()
	keyFamilies.table[kty] = ctor
}

func lookupKeyFamily(kty jwa.KeyType) (KeyConstructor, bool) {
	keyFamiliesMu.RLock()
	defer keyFamiliesMu.RUnlock()
	ctor, ok := keyFamilies.table[kty]
	return ctor, ok
}

// FromStorage builds the key family adapter for the bag's kty field.
// Unknown key types fail with ErrUnknownKeyType.
func FromStorage(s *Storage, opts ...KeyOption) (Key, error) {
	kty, ok := s.GetString(FieldKeyType)
	if !ok {
		return nil, fmt.Errorf("%w: storage has no kty field", types.ErrInvalidKeyFormat)
	}

	switch jwa.KeyType(kty) {
	case jwa.Oct:
		return newSymmetricKey(s, opts...)
	case jwa.RSA:
		return newRSAKey(s, opts...)
	case jwa.EC:
		return newECKey(s, opts...)
	case jwa.OKP:
		return newOKPKey(s, opts...)
	case jwa.AKP:
		return newAKPKey(s, opts...)
	default:
		if ctor, ok := lookupKeyFamily(jwa.NewKeyType(kty)); ok {
			return ctor(s, opts...)
		}
		return nil, fmt.Errorf("%w: kty %q", types.ErrUnknownKeyType, kty)
	}
}

// ParseKey decodes a JSON JWK into its key family adapter.
func ParseKey(data []byte, opts ...KeyOption) (Key, error) {
	s := NewStorage()
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return FromStorage(s, opts...)
}

// baseKey carries the storage bag and registry binding shared by all key
// family adapters. The bag is owned: constructors clone their input so a
// caller mutating the original storage cannot alias the key.
type baseKey struct {
	storage  *Storage
	registry *jwa.Registry
}

func newBaseKey(s *Storage, cfg keyConfig) baseKey {
	return baseKey{storage: s.Clone(), registry: cfg.registry}
}

// reg returns the bound registry or the process default.
func (k *baseKey) reg() *jwa.Registry {
	if k.registry != nil {
		return k.registry
	}
	return jwa.DefaultRegistry()
}

// Storage returns an immutable snapshot of the key's storage.
func (k *baseKey) Storage() *Storage {
	return k.storage.Clone()
}

// KeyID returns the kid field, or "".
func (k *baseKey) KeyID() string {
	kid, _ := k.storage.GetString(FieldKeyID)
	return kid
}

// SetKeyID sets the kid field.
func (k *baseKey) SetKeyID(kid string) {
	k.storage.SetString(FieldKeyID, kid)
}

// Algorithm returns the alg field, or "".
func (k *baseKey) Algorithm() string {
	alg, _ := k.storage.GetString(FieldAlg)
	return alg
}

// SetAlgorithm sets the alg field.
func (k *baseKey) SetAlgorithm(alg string) {
	k.storage.SetString(FieldAlg, alg)
}

// Use returns the use field, or "".
func (k *baseKey) Use() string {
	use, _ := k.storage.GetString(FieldUse)
	return use
}

// SetUse sets the use field.
func (k *baseKey) SetUse(use string) {
	k.storage.SetString(FieldUse, use)
}

// MarshalJSON serializes the key's storage bag.
func (k *baseKey) MarshalJSON() ([]byte, error) {
	return k.storage.MarshalJSON()
}

// publicSubset copies only the listed fields plus the common metadata
// fields into a fresh bag, enforcing the strict-subset invariant between
// public and private views.
func (k *baseKey) publicSubset(fields ...string) *Storage {
	out := NewStorage()
	common := []string{FieldKeyType, FieldUse, FieldKeyOps, FieldAlg, FieldKeyID}
	for _, name := range append(common, fields...) {
		if v, ok := k.storage.Get(name); ok {
			out.Set(name, deepCopyValue(v))
		}
	}
	return out
}
